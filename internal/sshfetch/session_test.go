package sshfetch

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	gossh "golang.org/x/crypto/ssh"
)

// --- Test SSH server infrastructure ---

const (
	testUser     = "ubuntu"
	testPassword = "hunter2"
)

// sessionHandler receives the parsed command and the SSH channel, giving full
// control over stdout/stderr writes and exit status.
type sessionHandler func(cmd string, ch gossh.Channel)

// startSSHServer starts a password-authenticated test SSH server that invokes
// handler for each exec request, and returns a Dialer pointed at it.
func startSSHServer(t *testing.T, handler sessionHandler) (dialer *Dialer, host string, cleanup func()) {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := gossh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("create host signer: %v", err)
	}

	serverCfg := &gossh.ServerConfig{
		PasswordCallback: func(conn gossh.ConnMetadata, password []byte) (*gossh.Permissions, error) {
			if conn.User() == testUser && string(password) == testPassword {
				return &gossh.Permissions{}, nil
			}
			return nil, fmt.Errorf("wrong credentials")
		},
	}
	serverCfg.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go handleSSHConn(conn, serverCfg, handler)
		}
	}()

	addrHost, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	d := &Dialer{Timeout: 5 * time.Second, Port: port}
	return d, addrHost, func() { listener.Close() }
}

func handleSSHConn(netConn net.Conn, config *gossh.ServerConfig, handler sessionHandler) {
	defer netConn.Close()
	srvConn, chans, reqs, err := gossh.NewServerConn(netConn, config)
	if err != nil {
		return
	}
	defer srvConn.Close()
	go gossh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(gossh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go handleExecSession(ch, requests, handler)
	}
}

func handleExecSession(ch gossh.Channel, reqs <-chan *gossh.Request, handler sessionHandler) {
	defer ch.Close()

	for req := range reqs {
		switch req.Type {
		case "exec":
			if len(req.Payload) < 4 {
				req.Reply(false, nil)
				continue
			}
			cmdLen := int(req.Payload[0])<<24 | int(req.Payload[1])<<16 | int(req.Payload[2])<<8 | int(req.Payload[3])
			if len(req.Payload) < 4+cmdLen {
				req.Reply(false, nil)
				continue
			}
			cmd := string(req.Payload[4 : 4+cmdLen])
			req.Reply(true, nil)

			handler(cmd, ch)
			return

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

// sendExitStatus sends an exit-status request on the SSH channel.
func sendExitStatus(ch gossh.Channel, exitCode int) {
	payload := gossh.Marshal(struct{ Status uint32 }{uint32(exitCode)})
	ch.SendRequest("exit-status", false, payload)
}

func openSession(t *testing.T, d *Dialer, host string) *Session {
	t.Helper()
	s, err := d.Open(context.Background(), host, testUser, testPassword)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

// --- Open tests ---

func TestOpenWrongPassword(t *testing.T) {
	d, host, cleanup := startSSHServer(t, func(cmd string, ch gossh.Channel) {})
	defer cleanup()

	_, err := d.Open(context.Background(), host, testUser, "wrong")
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
}

func TestOpenNoAuthConfigured(t *testing.T) {
	d := &Dialer{}
	_, err := d.Open(context.Background(), "somehost", "user", "")
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectError for missing auth, got %v", err)
	}
}

func TestOpenEmptyHostOrUser(t *testing.T) {
	d := &Dialer{}
	var connErr *ConnectError
	if _, err := d.Open(context.Background(), "", "u", "p"); !errors.As(err, &connErr) {
		t.Errorf("empty host: expected ConnectError, got %v", err)
	}
	if _, err := d.Open(context.Background(), "h", "", "p"); !errors.As(err, &connErr) {
		t.Errorf("empty user: expected ConnectError, got %v", err)
	}
}

func TestOpenContextTimeout(t *testing.T) {
	// A listener that accepts but never speaks SSH, so the dial hangs until
	// the context gives up.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	_, portStr, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	d := &Dialer{Timeout: 30 * time.Second, Port: port}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = d.Open(ctx, "127.0.0.1", testUser, testPassword)
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectError on context timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded in chain, got %v", err)
	}
}

// --- List tests ---

func TestListParsesRemoteDirectory(t *testing.T) {
	listing := "total 40960\n" +
		"-rw-r--r-- 1 ubuntu ubuntu 15728640 Nov  1 23:59 app-01-11-2025.log\n" +
		"-rw-r--r-- 1 ubuntu ubuntu 26214400 Nov  2 23:59 app-02-11-2025.log\n" +
		"drwxr-xr-x 2 ubuntu ubuntu     4096 Nov  2 00:00 archive\n"

	d, host, cleanup := startSSHServer(t, func(cmd string, ch gossh.Channel) {
		if !strings.HasPrefix(cmd, "ls -l") {
			ch.Stderr().Write([]byte("unexpected command"))
			sendExitStatus(ch, 1)
			return
		}
		ch.Write([]byte(listing))
		sendExitStatus(ch, 0)
	})
	defer cleanup()

	s := openSession(t, d, host)
	defer s.Close()

	entries, err := s.List("/var/log/myapp/backend")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", entries)
	}
	if entries[0].Name != "app-01-11-2025.log" || entries[0].Size != 15728640 {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Name != "app-02-11-2025.log" || entries[1].Size != 26214400 {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestListUnreachablePath(t *testing.T) {
	d, host, cleanup := startSSHServer(t, func(cmd string, ch gossh.Channel) {
		ch.Stderr().Write([]byte("ls: cannot access '/nope': No such file or directory\n"))
		sendExitStatus(ch, 2)
	})
	defer cleanup()

	s := openSession(t, d, host)
	defer s.Close()

	_, err := s.List("/nope")
	var listErr *ListError
	if !errors.As(err, &listErr) {
		t.Fatalf("expected ListError, got %v", err)
	}
	if !strings.Contains(err.Error(), "No such file") {
		t.Errorf("stderr not surfaced: %v", err)
	}
}

// --- FetchTo tests ---

func TestFetchToStreamsFile(t *testing.T) {
	content := strings.Repeat("2025-11-01 log line\n", 1000)

	d, host, cleanup := startSSHServer(t, func(cmd string, ch gossh.Channel) {
		if !strings.HasPrefix(cmd, "cat") {
			sendExitStatus(ch, 1)
			return
		}
		ch.Write([]byte(content))
		sendExitStatus(ch, 0)
	})
	defer cleanup()

	s := openSession(t, d, host)
	defer s.Close()

	local := filepath.Join(t.TempDir(), "app-01-11-2025.log")
	n, err := s.FetchTo("/var/log/myapp/backend/app-01-11-2025.log", local)
	if err != nil {
		t.Fatalf("FetchTo: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("byte count = %d, want %d", n, len(content))
	}
	got, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read local copy: %v", err)
	}
	if string(got) != content {
		t.Error("local copy differs from remote content")
	}
}

func TestFetchToMissingRemoteFile(t *testing.T) {
	d, host, cleanup := startSSHServer(t, func(cmd string, ch gossh.Channel) {
		ch.Stderr().Write([]byte("cat: /gone.log: No such file or directory\n"))
		sendExitStatus(ch, 1)
	})
	defer cleanup()

	s := openSession(t, d, host)
	defer s.Close()

	local := filepath.Join(t.TempDir(), "gone.log")
	_, err := s.FetchTo("/gone.log", local)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	d, host, cleanup := startSSHServer(t, func(cmd string, ch gossh.Channel) {
		sendExitStatus(ch, 0)
	})
	defer cleanup()

	s := openSession(t, d, host)
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
