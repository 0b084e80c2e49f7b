package importer

import (
	"time"

	"github.com/outreachly/platform/pkg/contact"
)

// QueueName is the queue that carries import job payloads.
const QueueName = "contact-import"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ImportError is one recorded row failure. The list on a job is capped to
// the first 100 entries.
type ImportError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportJob tracks one file-ingestion attempt. Only the worker executing the
// job mutates it after submission.
type ImportJob struct {
	ID       string `json:"id" gorm:"primaryKey;column:id"`
	FileName string `json:"fileName" gorm:"column:file_name"`
	FileSize int64  `json:"fileSize" gorm:"column:file_size"`
	FileType string `json:"fileType" gorm:"column:file_type"`
	StoredAs string `json:"storedAs,omitempty" gorm:"column:stored_as"`

	Status       string          `json:"status" gorm:"column:status;index"`
	FieldMapping contact.Mapping `json:"fieldMapping" gorm:"column:field_mapping;serializer:json"`
	QueueJobID   string          `json:"queueJobId,omitempty" gorm:"column:queue_job_id;index"`

	TotalRecords     int `json:"totalRecords" gorm:"column:total_records"`
	ProcessedRecords int `json:"processedRecords" gorm:"column:processed_records"`
	SuccessRecords   int `json:"successRecords" gorm:"column:success_records"`
	ErrorRecords     int `json:"errorRecords" gorm:"column:error_records"`
	CreatedRecords   int `json:"createdRecords" gorm:"column:created_records"`
	UpdatedRecords   int `json:"updatedRecords" gorm:"column:updated_records"`

	Errors     []ImportError `json:"errors" gorm:"column:errors;serializer:json"`
	FieldNames []string      `json:"fieldNames" gorm:"column:field_names;serializer:json"`
	Error      string        `json:"error,omitempty" gorm:"column:error"`

	CompletedAt *time.Time `json:"completedAt,omitempty" gorm:"column:completed_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at;index"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (ImportJob) TableName() string {
	return "import_jobs"
}

// JobPayload is the queue message that dispatches an import.
type JobPayload struct {
	ImportID     string          `json:"importId"`
	FilePath     string          `json:"filePath"`
	FieldMapping contact.Mapping `json:"fieldMapping,omitempty"`
}
