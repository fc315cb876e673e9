package model

import "time"

type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusUploading BackupStatus = "uploading"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Backup records one encrypted snapshot in object storage.
type Backup struct {
	ID           string       `json:"id" db:"id"`
	Filename     string       `json:"filename" db:"filename"`
	ObjectKey    string       `json:"object_key" db:"object_key"`
	SizeBytes    int64        `json:"size_bytes" db:"size_bytes"`
	Status       BackupStatus `json:"status" db:"status"`
	ErrorMessage string       `json:"error_message,omitempty" db:"error_message"`
	StartedAt    *time.Time   `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}
