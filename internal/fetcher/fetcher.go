// Package fetcher runs the download pipeline for one request: registry
// lookup, SSH session, remote listing, date matching, transfer into a private
// workspace, and the raw-vs-zip packaging decision. The stages are strictly
// ordered and every failure path tears down the session and the workspace
// before returning.
package fetcher

import (
	"context"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/mkrutov/logfetch/internal/datematch"
	"github.com/mkrutov/logfetch/internal/logutil"
	"github.com/mkrutov/logfetch/internal/packager"
	"github.com/mkrutov/logfetch/internal/registry"
	"github.com/mkrutov/logfetch/internal/sshfetch"
	"github.com/mkrutov/logfetch/internal/workspace"
)

// Session is the remote capability one request needs: a single listing and
// one or more fetches, then an unconditional close.
type Session interface {
	List(path string) ([]sshfetch.Entry, error)
	FetchTo(remotePath, localPath string) (int64, error)
	Close() error
}

// Dialer opens a Session for a host/user pair. The production implementation
// is sshfetch.Dialer; tests substitute an in-memory fake.
type Dialer interface {
	Open(ctx context.Context, host, user, password string) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, host, user, password string) (Session, error)

func (f DialerFunc) Open(ctx context.Context, host, user, password string) (Session, error) {
	return f(ctx, host, user, password)
}

// Request is one parsed download request. Date and User are optional.
type Request struct {
	Project string
	Module  string
	Date    string
	User    string // overrides the registry's default SSH user
}

// Result describes the file to stream back. The caller owns Workspace and
// must Release it after the response body has been sent; all error returns
// from Download have already released it.
type Result struct {
	Path        string
	Filename    string
	ContentType string
	IsArchive   bool
	Size        int64
	Files       []string // original remote filenames included
	Host        string
	RemoteUser  string
	Workspace   *workspace.Handle
}

// Service wires the pipeline's collaborators together.
type Service struct {
	Registry   *registry.Registry
	Dialer     Dialer
	ScratchDir string
	Threshold  int64 // raw-vs-archive cutoff in bytes
}

// Download executes the full pipeline for one request.
func (s *Service) Download(ctx context.Context, req Request) (*Result, error) {
	entry, err := s.Registry.Lookup(req.Project, req.Module)
	if err != nil {
		return nil, err
	}

	user := entry.User
	if req.User != "" {
		user = req.User
	}

	ws, err := workspace.Acquire(s.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("acquire workspace: %w", err)
	}

	result, err := s.fetchAndPackage(ctx, req, entry, user, ws)
	if err != nil {
		ws.Release()
		return nil, err
	}
	return result, nil
}

func (s *Service) fetchAndPackage(ctx context.Context, req Request, entry registry.ModuleEntry, user string, ws *workspace.Handle) (*Result, error) {
	start := time.Now()

	session, err := s.Dialer.Open(ctx, entry.Host, user, entry.Password)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	listing, err := session.List(entry.Path)
	if err != nil {
		return nil, err
	}

	entries := make([]datematch.Entry, len(listing))
	for i, e := range listing {
		entries[i] = datematch.Entry{Name: e.Name, Size: e.Size}
	}

	candidates, err := datematch.Select(entry.Base, entries, req.Date)
	if err != nil {
		return nil, err
	}

	artifacts := make([]packager.Artifact, 0, len(candidates))
	files := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, &sshfetch.FetchError{Path: c.Name, Err: err}
		}

		localPath := ws.Join(c.Name)
		n, err := session.FetchTo(path.Join(entry.Path, c.Name), localPath)
		if err != nil {
			return nil, err
		}
		if c.Size >= 0 && n != c.Size {
			return nil, &sshfetch.FetchError{
				Path: c.Name,
				Err:  fmt.Errorf("partial transfer: got %d bytes, listing reported %d", n, c.Size),
			}
		}
		artifacts = append(artifacts, packager.Artifact{Path: localPath, Name: c.Name, Size: n})
		files = append(files, c.Name)
	}

	packed, err := packager.Package(artifacts, s.Threshold)
	if err != nil {
		return nil, err
	}

	log.Printf("[fetcher] %s/%s host=%s files=%d archive=%v size=%d duration=%s",
		logutil.SanitizeForLog(req.Project), logutil.SanitizeForLog(req.Module),
		logutil.SanitizeForLog(entry.Host), len(files), packed.IsArchive, packed.Size, time.Since(start))

	return &Result{
		Path:        packed.Path,
		Filename:    packed.Filename,
		ContentType: packed.ContentType,
		IsArchive:   packed.IsArchive,
		Size:        packed.Size,
		Files:       files,
		Host:        entry.Host,
		RemoteUser:  user,
		Workspace:   ws,
	}, nil
}
