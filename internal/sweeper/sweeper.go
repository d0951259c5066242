// Package sweeper runs the scheduled housekeeping jobs: removing orphaned
// scratch directories left behind by crashes, and purging activity records
// past the retention window. Normal request teardown never relies on the
// sweeper; it only catches what a dead process could not clean up itself.
package sweeper

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mkrutov/logfetch/internal/activity"
)

// Sweeper owns the cron schedule.
type Sweeper struct {
	cron       *cron.Cron
	scratchDir string
	maxAge     time.Duration
	auditor    *activity.Auditor
}

// New creates a Sweeper for the given scratch root. maxAge is how old a
// scratch subdirectory must be before it is considered orphaned.
func New(scratchDir string, maxAge time.Duration, auditor *activity.Auditor) *Sweeper {
	return &Sweeper{
		cron:       cron.New(),
		scratchDir: scratchDir,
		maxAge:     maxAge,
		auditor:    auditor,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@hourly", func() {
		if n, err := s.SweepWorkspaces(); err != nil {
			log.Printf("[sweeper] workspace sweep: %v", err)
		} else if n > 0 {
			log.Printf("[sweeper] removed %d orphaned workspace(s)", n)
		}
	}); err != nil {
		return err
	}
	if s.auditor != nil {
		if _, err := s.cron.AddFunc("@daily", func() {
			if _, err := s.auditor.Purge(); err != nil {
				log.Printf("[sweeper] activity purge: %v", err)
			}
		}); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SweepWorkspaces removes scratch subdirectories older than maxAge and
// returns how many were removed. Entries younger than the cutoff belong to
// in-flight requests and are left alone.
func (s *Sweeper) SweepWorkspaces() (int, error) {
	entries, err := os.ReadDir(s.scratchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.scratchDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Printf("[sweeper] failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}
