// Package secrets encrypts and decrypts SSH passwords stored in the registry
// file, so that the file can be checked into configuration management without
// exposing credentials in plaintext.
//
// Tokens are fernet tokens produced by `logfetch --encrypt-password`. The
// fernet key lives in a file under the data directory and is generated on
// first use.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fernet/fernet-go"
)

// tokenPrefix is the base64url encoding of the fernet version byte 0x80.
// Every fernet token starts with it, which lets the registry loader tell
// encrypted passwords apart from plaintext ones.
const tokenPrefix = "gAAAA"

var (
	mu     sync.Mutex
	cached *fernet.Key
)

func keyPath(dataPath string) string {
	return filepath.Join(dataPath, "fernet.key")
}

func getKey(dataPath string) (*fernet.Key, error) {
	mu.Lock()
	defer mu.Unlock()

	if cached != nil {
		return cached, nil
	}

	path := keyPath(dataPath)
	raw, err := os.ReadFile(path)
	if err == nil {
		key, err := fernet.DecodeKey(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("decode fernet key %s: %w", path, err)
		}
		cached = key
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read fernet key: %w", err)
	}

	// Generate a new key on first use
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return nil, fmt.Errorf("generate fernet key: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(k.Encode()+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("save fernet key: %w", err)
	}
	cached = &k
	return &k, nil
}

// Encrypt returns a fernet token for the given plaintext.
func Encrypt(dataPath, plaintext string) (string, error) {
	key, err := getKey(dataPath)
	if err != nil {
		return "", err
	}
	tok, err := fernet.EncryptAndSign([]byte(plaintext), key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return string(tok), nil
}

// Decrypt reverses Encrypt. Values that are not fernet tokens are returned
// unchanged, so plaintext passwords in the registry keep working.
func Decrypt(dataPath, value string) (string, error) {
	if !IsToken(value) {
		return value, nil
	}
	key, err := getKey(dataPath)
	if err != nil {
		return "", err
	}
	msg := fernet.VerifyAndDecrypt([]byte(value), 0*time.Second, []*fernet.Key{key})
	if msg == nil {
		return "", fmt.Errorf("decrypt: invalid token")
	}
	return string(msg), nil
}

// IsToken reports whether a registry value looks like a fernet token.
func IsToken(value string) bool {
	return strings.HasPrefix(value, tokenPrefix)
}

// Mask hides all but the last 4 characters of a secret for display.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 4 {
		return "****" + value[len(value)-4:]
	}
	return "****"
}
