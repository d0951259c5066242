package sshfetch

import "fmt"

// ConnectError reports a failure to establish or authenticate the SSH
// connection (timeout, refused, key or password rejected).
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("ssh connect to %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ListError reports a failed remote directory listing.
type ListError struct {
	Path string
	Err  error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("list remote directory %s: %v", e.Path, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }

// FetchError reports a failed or partial remote file transfer.
type FetchError struct {
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch remote file %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
