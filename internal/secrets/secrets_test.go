package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetKey clears the cached key so each test gets its own data directory.
func resetKey(t *testing.T) {
	t.Helper()
	mu.Lock()
	cached = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		cached = nil
		mu.Unlock()
	})
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	resetKey(t)
	dataPath := t.TempDir()

	tok, err := Encrypt(dataPath, "hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !IsToken(tok) {
		t.Fatalf("token %q does not carry the fernet prefix", tok)
	}

	got, err := Decrypt(dataPath, tok)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("round trip = %q", got)
	}
}

func TestDecryptPlaintextPassthrough(t *testing.T) {
	resetKey(t)

	// Plaintext passwords are returned untouched without touching the key file
	got, err := Decrypt(t.TempDir(), "plain-password")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "plain-password" {
		t.Errorf("passthrough = %q", got)
	}
}

func TestDecryptBadToken(t *testing.T) {
	resetKey(t)
	dataPath := t.TempDir()

	if _, err := Encrypt(dataPath, "x"); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(dataPath, "gAAAAnot-a-real-token"); err == nil {
		t.Error("expected error for forged token")
	}
}

func TestKeyFileGeneratedAndReused(t *testing.T) {
	resetKey(t)
	dataPath := t.TempDir()

	tok, err := Encrypt(dataPath, "secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	keyFile := filepath.Join(dataPath, "fernet.key")
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		t.Fatalf("key file not created: %v", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		t.Fatal("key file is empty")
	}

	// A fresh process (cleared cache) must load the same key from disk and
	// still decrypt tokens produced before.
	resetKey(t)
	got, err := Decrypt(dataPath, tok)
	if err != nil {
		t.Fatalf("Decrypt after reload: %v", err)
	}
	if got != "secret" {
		t.Errorf("round trip after reload = %q", got)
	}
}

func TestIsToken(t *testing.T) {
	if IsToken("plain") {
		t.Error("plaintext flagged as token")
	}
	if !IsToken("gAAAAABc...") {
		t.Error("fernet prefix not recognized")
	}
	if IsToken("") {
		t.Error("empty value flagged as token")
	}
}

func TestMask(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"abc", "****"},
		{"abcd", "****"},
		{"supersecret", "****cret"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
