// Package workspace allocates a private scratch directory per request and
// guarantees its removal. Every download request owns exactly one Handle;
// concurrent requests never share a directory because names are drawn from
// random UUIDs.
package workspace

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Handle is the scoped-resource handle for one request's scratch directory.
// Release must be called on every exit path of the owning request; it is
// idempotent so a defer and an explicit error-path call cannot double-free.
type Handle struct {
	dir string

	mu       sync.Mutex
	released bool
}

// Acquire creates a uniquely named scratch directory under root.
func Acquire(root string) (*Handle, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	dir := filepath.Join(root, uuid.NewString())
	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Handle{dir: dir}, nil
}

// Path returns the workspace directory.
func (h *Handle) Path() string {
	return h.dir
}

// Join returns a path inside the workspace for the given filename.
func (h *Handle) Join(name string) string {
	return filepath.Join(h.dir, name)
}

// Release recursively deletes the workspace. Safe to call more than once.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	if err := os.RemoveAll(h.dir); err != nil {
		log.Printf("[workspace] failed to remove %s: %v", h.dir, err)
	}
}
