package exporter

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("export job not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&ExportJob{})
}

func (r *Repository) Create(ctx context.Context, job *ExportJob) error {
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.MatchType == "" {
		job.MatchType = "all"
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*ExportJob, error) {
	var job ExportJob
	result := r.db.WithContext(ctx).First(&job, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &job, result.Error
}

func (r *Repository) SetQueueJobID(ctx context.Context, id, queueJobID string) error {
	return r.updates(ctx, id, map[string]interface{}{"queue_job_id": queueJobID})
}

func (r *Repository) MarkProcessing(ctx context.Context, id string) error {
	return r.updates(ctx, id, map[string]interface{}{"status": StatusProcessing})
}

func (r *Repository) UpdateProgress(ctx context.Context, id string, progress int) error {
	return r.updates(ctx, id, map[string]interface{}{
		"status":   StatusProcessing,
		"progress": progress,
	})
}

func (r *Repository) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.updates(ctx, id, map[string]interface{}{
		"status": StatusFailed,
		"error":  errMsg,
	})
}

func (r *Repository) Complete(ctx context.Context, id, filePath string, fileSize int64, recordCount int) error {
	return r.updates(ctx, id, map[string]interface{}{
		"status":       StatusCompleted,
		"progress":     100,
		"file_path":    filePath,
		"file_size":    fileSize,
		"record_count": recordCount,
		"completed_at": time.Now().UTC(),
	})
}

func (r *Repository) List(ctx context.Context, page, pageSize int) ([]ExportJob, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&ExportJob{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []ExportJob
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error
	return jobs, total, err
}

func (r *Repository) updates(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&ExportJob{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
