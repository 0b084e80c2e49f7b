package importer

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("import job not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&ImportJob{})
}

func (r *Repository) Create(ctx context.Context, job *ImportJob) error {
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	if job.Status == "" {
		job.Status = StatusPending
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*ImportJob, error) {
	var job ImportJob
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

func (r *Repository) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.updates(ctx, id, map[string]interface{}{
		"status": StatusFailed,
		"error":  errMsg,
	})
}

// Complete persists the terminal counters and the capped error list. A
// struct update keeps the JSON serializer on the errors and field name
// columns in play.
func (r *Repository) Complete(ctx context.Context, job *ImportJob) error {
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.Status = StatusCompleted
	job.UpdatedAt = now

	result := r.db.WithContext(ctx).Model(&ImportJob{}).
		Where("id = ?", job.ID).
		Select("status", "field_names", "total_records", "processed_records",
			"success_records", "error_records", "created_records",
			"updated_records", "errors", "completed_at", "updated_at").
		Updates(job)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, page, pageSize int) ([]ImportJob, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&ImportJob{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []ImportJob
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error
	return jobs, total, err
}

// CountByStatus summarizes jobs for the stats endpoint.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type bucket struct {
		Status string
		Total  int64
	}
	var buckets []bucket
	err := r.db.WithContext(ctx).Model(&ImportJob{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&buckets).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		counts[b.Status] = b.Total
	}
	return counts, nil
}

func (r *Repository) updates(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&ImportJob{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
