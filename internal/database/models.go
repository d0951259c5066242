package database

import "time"

// DownloadRecord is one entry in the download activity trail.
type DownloadRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientIP   string    `gorm:"index" json:"client_ip"`
	Project    string    `gorm:"not null;index" json:"project"`
	Module     string    `gorm:"not null" json:"module"`
	Host       string    `json:"host"`
	RemoteUser string    `json:"remote_user"`
	DateToken  string    `json:"date_token"`
	Filename   string    `json:"filename"`
	Bytes      int64     `json:"bytes"`
	Archived   bool      `json:"archived"`
	Status     string    `gorm:"not null" json:"status"` // "ok" or "error"
	Detail     string    `json:"detail"`
	Duration   int64     `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
