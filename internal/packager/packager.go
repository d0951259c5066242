// Package packager decides whether a download is served as the raw log file
// or as a zip archive. A single small file passes through untouched; multiple
// files, or one file over the size threshold, are bundled into a zip written
// inside the request's workspace.
package packager

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultThreshold is the raw-vs-archive cutoff when none is configured.
const DefaultThreshold int64 = 20 * 1024 * 1024

// ErrPackaging wraps archive construction failures (disk full, permissions).
var ErrPackaging = errors.New("packaging failed")

// Artifact is one file fetched into the workspace, keyed by its original
// remote filename.
type Artifact struct {
	Path string // local path inside the workspace
	Name string // original remote filename, used inside the archive
	Size int64
}

// Result describes the file to stream back to the client.
type Result struct {
	Path        string
	Filename    string // suggested download filename
	ContentType string
	IsArchive   bool
	Size        int64
}

// Package applies the raw-vs-archive rule. thresholdBytes <= 0 selects
// DefaultThreshold. Partial archives are removed before an error is returned.
func Package(artifacts []Artifact, thresholdBytes int64) (*Result, error) {
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%w: no artifacts", ErrPackaging)
	}
	if thresholdBytes <= 0 {
		thresholdBytes = DefaultThreshold
	}

	if len(artifacts) == 1 && artifacts[0].Size <= thresholdBytes {
		a := artifacts[0]
		return &Result{
			Path:        a.Path,
			Filename:    a.Name,
			ContentType: "application/octet-stream",
			IsArchive:   false,
			Size:        a.Size,
		}, nil
	}

	archivePath := artifacts[0].Path + ".zip"
	if err := writeArchive(archivePath, artifacts); err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("%w: %v", ErrPackaging, err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("%w: stat archive: %v", ErrPackaging, err)
	}

	return &Result{
		Path:        archivePath,
		Filename:    filepath.Base(archivePath),
		ContentType: "application/zip",
		IsArchive:   true,
		Size:        info.Size(),
	}, nil
}

func writeArchive(path string, artifacts []Artifact) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	for _, a := range artifacts {
		if err := addFile(zw, a); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, a Artifact) error {
	in, err := os.Open(a.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", a.Name, err)
	}
	defer in.Close()

	w, err := zw.Create(a.Name)
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", a.Name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write %s to archive: %w", a.Name, err)
	}
	return nil
}
