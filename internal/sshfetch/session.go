package sshfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/mkrutov/logfetch/internal/logutil"
)

// Dialer opens single-use SSH sessions. KeyPath is optional; when set, the
// private key is offered in addition to any password from the registry.
// Port 0 means the standard SSH port.
type Dialer struct {
	KeyPath string
	Timeout time.Duration
	Port    int
}

// Entry is one file in a remote directory listing.
type Entry struct {
	Name string
	Size int64
}

// Session is an established SSH connection scoped to one download request.
type Session struct {
	client *ssh.Client
	host   string

	mu     sync.Mutex
	closed bool
}

// Open establishes an authenticated SSH connection to host:22 as user.
// The password may be empty when key auth is configured. The connection
// attempt is bounded by the dialer timeout and by ctx.
func (d *Dialer) Open(ctx context.Context, host, user, password string) (*Session, error) {
	if host == "" {
		return nil, &ConnectError{Host: host, Err: fmt.Errorf("host is empty")}
	}
	if user == "" {
		return nil, &ConnectError{Host: host, Err: fmt.Errorf("user is empty")}
	}

	var auth []ssh.AuthMethod
	if d.KeyPath != "" {
		keyData, err := os.ReadFile(d.KeyPath)
		if err != nil {
			return nil, &ConnectError{Host: host, Err: fmt.Errorf("read private key %s: %w", d.KeyPath, err)}
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, &ConnectError{Host: host, Err: fmt.Errorf("parse private key: %w", err)}
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if password != "" {
		auth = append(auth, ssh.Password(password))
	}
	if len(auth) == 0 {
		return nil, &ConnectError{Host: host, Err: fmt.Errorf("no auth method: configure a password or an SSH key")}
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	port := d.Port
	if port <= 0 {
		port = 22
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	// Use context for connection timeout
	var client *ssh.Client
	dialDone := make(chan struct{})
	var dialErr error

	go func() {
		defer close(dialDone)
		client, dialErr = ssh.Dial("tcp", addr, config)
	}()

	select {
	case <-ctx.Done():
		// The dial goroutine closes any late connection itself
		go func() {
			<-dialDone
			if client != nil {
				client.Close()
			}
		}()
		return nil, &ConnectError{Host: host, Err: ctx.Err()}
	case <-dialDone:
		if dialErr != nil {
			return nil, &ConnectError{Host: host, Err: dialErr}
		}
	}

	log.Printf("[sshfetch] connected to %s@%s", logutil.SanitizeForLog(user), logutil.SanitizeForLog(addr))
	return &Session{client: client, host: host}, nil
}

// List returns the regular files in a remote directory with their sizes.
func (s *Session) List(path string) ([]Entry, error) {
	stdout, stderr, exitCode, err := s.executeCommand(fmt.Sprintf("ls -l --color=never -- %s", shellQuote(path)))
	if err != nil {
		return nil, &ListError{Path: path, Err: err}
	}
	if exitCode != 0 {
		return nil, &ListError{Path: path, Err: fmt.Errorf("ls exited %d: %s", exitCode, strings.TrimSpace(stderr))}
	}
	return parseListing(stdout), nil
}

// FetchTo streams a remote file into localPath and returns the byte count.
func (s *Session) FetchTo(remotePath, localPath string) (int64, error) {
	start := time.Now()

	session, err := s.client.NewSession()
	if err != nil {
		return 0, &FetchError{Path: remotePath, Err: fmt.Errorf("open ssh session: %w", err)}
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return 0, &FetchError{Path: remotePath, Err: fmt.Errorf("create stdout pipe: %w", err)}
	}
	var errBuf bytes.Buffer
	session.Stderr = &errBuf

	out, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, &FetchError{Path: remotePath, Err: fmt.Errorf("create local file: %w", err)}
	}

	if err := session.Start(fmt.Sprintf("cat -- %s", shellQuote(remotePath))); err != nil {
		out.Close()
		return 0, &FetchError{Path: remotePath, Err: fmt.Errorf("start cat: %w", err)}
	}

	n, copyErr := io.Copy(out, stdout)
	closeErr := out.Close()
	waitErr := session.Wait()

	if copyErr != nil {
		return n, &FetchError{Path: remotePath, Err: fmt.Errorf("copy after %d bytes: %w", n, copyErr)}
	}
	if closeErr != nil {
		return n, &FetchError{Path: remotePath, Err: fmt.Errorf("close local file: %w", closeErr)}
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*ssh.ExitError); ok {
			return n, &FetchError{Path: remotePath, Err: fmt.Errorf("cat exited %d: %s", exitErr.ExitStatus(), strings.TrimSpace(errBuf.String()))}
		}
		return n, &FetchError{Path: remotePath, Err: waitErr}
	}

	log.Printf("[sshfetch] fetched %s (%d bytes) in %s", logutil.SanitizeForLog(remotePath), n, time.Since(start))
	return n, nil
}

// Close tears down the SSH connection. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.client.Close()
	log.Printf("[sshfetch] closed connection to %s", logutil.SanitizeForLog(s.host))
	return err
}

// executeCommand creates a new SSH session, runs cmd, and returns stdout,
// stderr, the exit code, and any transport-level error.
func (s *Session) executeCommand(cmd string) (stdout, stderr string, exitCode int, err error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", "", -1, fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	runErr := session.Run(cmd)
	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			return outBuf.String(), errBuf.String(), exitErr.ExitStatus(), nil
		}
		return outBuf.String(), errBuf.String(), -1, runErr
	}

	return outBuf.String(), errBuf.String(), 0, nil
}

// shellQuote wraps a string in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
