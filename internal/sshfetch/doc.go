// Package sshfetch runs the remote side of a download request: it opens an
// authenticated SSH connection to the module's host, lists the configured log
// directory, and streams selected files into the request's local workspace.
//
// Connections are single-use by design. A request opens one session, performs
// one listing and one or more fetches, and closes the session unconditionally.
// There is no pooling or keepalive: request rates are low and human-triggered,
// so the simplicity of a fresh connection per request wins over throughput.
//
// All remote operations are plain shell commands over SSH exec sessions
// (ls for listing, cat for fetching), so the only requirement on the remote
// account is a POSIX shell and read permission on the log directory.
package sshfetch
