package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mkrutov/logfetch/internal/activity"
	"github.com/mkrutov/logfetch/internal/datematch"
	"github.com/mkrutov/logfetch/internal/fetcher"
	"github.com/mkrutov/logfetch/internal/logutil"
	"github.com/mkrutov/logfetch/internal/packager"
	"github.com/mkrutov/logfetch/internal/registry"
	"github.com/mkrutov/logfetch/internal/sshfetch"
)

// DownloadLog serves GET /api/v1/download. On success the response body is
// the raw log file or a zip of the matching files; on failure a JSON error
// with a status derived from the pipeline's error taxonomy. The request's
// workspace is released after the body has been streamed, on every path.
func DownloadLog(w http.ResponseWriter, r *http.Request) {
	req := fetcher.Request{
		Project: r.URL.Query().Get("project"),
		Module:  r.URL.Query().Get("module"),
		Date:    r.URL.Query().Get("date"),
		User:    r.URL.Query().Get("user"),
	}
	clientIP := r.RemoteAddr

	if req.Project == "" || req.Module == "" {
		writeError(w, http.StatusBadRequest, "project and module parameters are required")
		return
	}

	start := time.Now()
	result, err := Svc.Download(r.Context(), req)
	if err != nil {
		status, detail := mapDownloadError(err)
		recordActivity(activity.Event{
			ClientIP:   clientIP,
			Project:    req.Project,
			Module:     req.Module,
			DateToken:  req.Date,
			Status:     "error",
			Detail:     detail,
			DurationMs: time.Since(start).Milliseconds(),
		})
		log.Printf("Download failed for %s/%s from %s: %v",
			logutil.SanitizeForLog(req.Project), logutil.SanitizeForLog(req.Module),
			logutil.SanitizeForLog(clientIP), err)
		writeError(w, status, detail)
		return
	}
	defer result.Workspace.Release()

	f, err := os.Open(result.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to open prepared file")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(result.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))

	sent, copyErr := io.Copy(w, f)
	if copyErr != nil {
		// Client went away mid-stream; the deferred Release still runs.
		log.Printf("Download aborted after %d/%d bytes for %s/%s: %v",
			sent, result.Size, logutil.SanitizeForLog(req.Project), logutil.SanitizeForLog(req.Module), copyErr)
	}

	recordActivity(activity.Event{
		ClientIP:   clientIP,
		Project:    req.Project,
		Module:     req.Module,
		Host:       result.Host,
		RemoteUser: result.RemoteUser,
		DateToken:  req.Date,
		Filename:   result.Filename,
		Bytes:      sent,
		Archived:   result.IsArchive,
		Status:     "ok",
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// mapDownloadError translates pipeline errors to an HTTP status and a
// client-safe message.
func mapDownloadError(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, datematch.ErrBadFormat):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, datematch.ErrNoMatch):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, packager.ErrPackaging):
		return http.StatusInternalServerError, err.Error()
	}

	var connErr *sshfetch.ConnectError
	var listErr *sshfetch.ListError
	var fetchErr *sshfetch.FetchError
	switch {
	case errors.As(err, &connErr), errors.As(err, &listErr), errors.As(err, &fetchErr):
		return http.StatusBadGateway, fmt.Sprintf("error accessing remote logs: %v", err)
	}

	return http.StatusInternalServerError, err.Error()
}

func recordActivity(ev activity.Event) {
	if Auditor == nil {
		return
	}
	// Failure to record never fails the request; Record logs its own error.
	_ = Auditor.Record(ev)
}
