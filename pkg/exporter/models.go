package exporter

import (
	"time"

	"github.com/outreachly/platform/pkg/contact"
)

// QueueName is the queue that carries export job payloads.
const QueueName = "contact-export"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatTXT  = "txt"
)

// ExportJob tracks one extraction attempt. Only the worker executing the
// job mutates it after submission.
type ExportJob struct {
	ID     string `json:"id" gorm:"primaryKey;column:id"`
	Name   string `json:"name" gorm:"column:name"`
	Format string `json:"format" gorm:"column:format"`

	Filters        []contact.Filter `json:"filters" gorm:"column:filters;serializer:json"`
	MatchType      string           `json:"matchType" gorm:"column:match_type"`
	SelectedFields []string         `json:"selectedFields" gorm:"column:selected_fields;serializer:json"`

	Status     string `json:"status" gorm:"column:status;index"`
	Progress   int    `json:"progress" gorm:"column:progress"`
	QueueJobID string `json:"queueJobId,omitempty" gorm:"column:queue_job_id;index"`

	FilePath    string `json:"filePath,omitempty" gorm:"column:file_path"`
	FileSize    int64  `json:"fileSize,omitempty" gorm:"column:file_size"`
	RecordCount int    `json:"recordCount,omitempty" gorm:"column:record_count"`
	Error       string `json:"error,omitempty" gorm:"column:error"`

	CompletedAt *time.Time `json:"completedAt,omitempty" gorm:"column:completed_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at;index"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (ExportJob) TableName() string {
	return "export_jobs"
}

// JobPayload is the queue message that dispatches an export.
type JobPayload struct {
	ExportID string `json:"exportId"`
}
