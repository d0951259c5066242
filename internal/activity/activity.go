// Package activity keeps the download trail: who fetched which log from
// where, how many bytes went out and whether the request succeeded. Records
// go to the database and are mirrored as log lines for observability.
package activity

import (
	"log"
	"sync"
	"time"

	"github.com/mkrutov/logfetch/internal/database"
	"github.com/mkrutov/logfetch/internal/logutil"
	"gorm.io/gorm"
)

// DefaultRetentionDays is the default number of days to keep activity records.
const DefaultRetentionDays = 90

// Event contains the fields needed to record one download attempt.
type Event struct {
	ClientIP   string
	Project    string
	Module     string
	Host       string
	RemoteUser string
	DateToken  string
	Filename   string
	Bytes      int64
	Archived   bool
	Status     string
	Detail     string
	DurationMs int64
}

// Auditor records and queries download activity.
type Auditor struct {
	mu            sync.RWMutex
	db            *gorm.DB
	retentionDays int
	nowFn         func() time.Time // injectable clock for testing
}

// NewAuditor creates an Auditor writing to the given database.
// If retentionDays is 0 or negative, DefaultRetentionDays is used.
func NewAuditor(db *gorm.DB, retentionDays int) *Auditor {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Auditor{
		db:            db,
		retentionDays: retentionDays,
		nowFn:         time.Now,
	}
}

// Record writes one activity record to the database and standard logger.
func (a *Auditor) Record(ev Event) error {
	record := database.DownloadRecord{
		ClientIP:   ev.ClientIP,
		Project:    ev.Project,
		Module:     ev.Module,
		Host:       ev.Host,
		RemoteUser: ev.RemoteUser,
		DateToken:  ev.DateToken,
		Filename:   ev.Filename,
		Bytes:      ev.Bytes,
		Archived:   ev.Archived,
		Status:     ev.Status,
		Detail:     ev.Detail,
		Duration:   ev.DurationMs,
	}

	if err := a.db.Create(&record).Error; err != nil {
		log.Printf("[activity] failed to write record: %v", err)
		return err
	}

	log.Printf("[activity] %s %s/%s host=%s file=%s bytes=%d ip=%s detail=%s",
		ev.Status,
		logutil.SanitizeForLog(ev.Project),
		logutil.SanitizeForLog(ev.Module),
		logutil.SanitizeForLog(ev.Host),
		logutil.SanitizeForLog(ev.Filename),
		ev.Bytes,
		logutil.SanitizeForLog(ev.ClientIP),
		logutil.SanitizeForLog(ev.Detail))
	return nil
}

// Recent returns the newest records, most recent first.
func (a *Auditor) Recent(limit int) ([]database.DownloadRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []database.DownloadRecord
	err := a.db.Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// Purge deletes records older than the retention window and returns the
// number removed.
func (a *Auditor) Purge() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.nowFn().AddDate(0, 0, -a.retentionDays)
	res := a.db.Where("created_at < ?", cutoff).Delete(&database.DownloadRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[activity] purged %d record(s) older than %s", res.RowsAffected, cutoff.Format(time.DateOnly))
	}
	return res.RowsAffected, nil
}
