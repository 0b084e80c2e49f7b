package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/outreachly/platform/pkg/common/logger"
	"github.com/outreachly/platform/pkg/contact"
)

// exportBatchSize is the cursor batch for streaming matched contacts.
const exportBatchSize = 5000

type ProgressFunc func(ctx context.Context, pct int) error

// JobStore is the slice of the export job repository the runner needs.
type JobStore interface {
	Get(ctx context.Context, id string) (*ExportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	UpdateProgress(ctx context.Context, id string, progress int) error
	Complete(ctx context.Context, id, filePath string, fileSize int64, recordCount int) error
}

// ContactSource is the read side of the contact repository.
type ContactSource interface {
	Count(ctx context.Context, cond contact.Condition) (int64, error)
	StreamMatching(ctx context.Context, cond contact.Condition, fields []string, batchSize int, fn func(records []map[string]interface{}) error) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error
}

type Service struct {
	jobs      JobStore
	contacts  ContactSource
	events    EventPublisher
	failures  EventPublisher
	exportDir string
}

// NewService wires the runner. failures additionally receives terminal
// *.failed events so downstream consumers can watch a dedicated topic.
func NewService(jobs JobStore, contacts ContactSource, events, failures EventPublisher, exportDir string) *Service {
	return &Service{jobs: jobs, contacts: contacts, events: events, failures: failures, exportDir: exportDir}
}

// Run executes one export job to completion: compile the filters, stream
// matching contacts through the format encoder, and record the produced
// file. Errors propagate so the queue can apply its retry policy.
func (s *Service) Run(ctx context.Context, payload JobPayload, progress ProgressFunc) error {
	job, err := s.jobs.Get(ctx, payload.ExportID)
	if err != nil {
		return fmt.Errorf("loading export job %s: %w", payload.ExportID, err)
	}

	if err := s.execute(ctx, job, progress); err != nil {
		return s.fail(ctx, job.ID, err)
	}
	return nil
}

// execute runs the job body. Every error return, progress persistence
// included, goes through the failed transition in Run.
func (s *Service) execute(ctx context.Context, job *ExportJob, progress ProgressFunc) error {
	if err := s.jobs.MarkProcessing(ctx, job.ID); err != nil {
		return err
	}

	cond, err := contact.Compile(job.Filters, job.MatchType)
	if err != nil {
		return err
	}

	total, err := s.contacts.Count(ctx, cond)
	if err != nil {
		return fmt.Errorf("counting matching contacts: %w", err)
	}

	outputDir := filepath.Join(s.exportDir, job.ID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, exportFileName(job.Name, job.Format))

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer file.Close()

	encoder, err := NewEncoder(job.Format, file)
	if err != nil {
		return err
	}
	if err := encoder.WriteHeader(job.SelectedFields); err != nil {
		return err
	}

	processed := 0
	lastPersisted := 0
	err = s.contacts.StreamMatching(ctx, cond, job.SelectedFields, exportBatchSize, func(records []map[string]interface{}) error {
		if err := encoder.WriteBatch(records); err != nil {
			return err
		}
		processed += len(records)

		pct := 0
		if total > 0 {
			pct = int(float64(processed) / float64(total) * 100)
		}
		if pct > 100 {
			pct = 100
		}
		if err := progress(ctx, pct); err != nil {
			return err
		}
		// Persist to the job record only on each 10% step to keep
		// write volume bounded on large result sets.
		if pct/10 > lastPersisted/10 {
			lastPersisted = pct
			if err := s.jobs.UpdateProgress(ctx, job.ID, pct); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("streaming contacts: %w", err)
	}

	if err := encoder.Finalize(); err != nil {
		return fmt.Errorf("finalizing export file: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return err
	}

	if err := s.jobs.Complete(ctx, job.ID, outputPath, info.Size(), processed); err != nil {
		return err
	}
	if err := progress(ctx, 100); err != nil {
		return err
	}

	s.publish(ctx, "export.completed", map[string]interface{}{
		"export_id":    job.ID,
		"format":       job.Format,
		"record_count": processed,
		"file_size":    info.Size(),
	})

	logger.Log.WithFields(map[string]interface{}{
		"export_id": job.ID,
		"format":    job.Format,
		"records":   processed,
	}).Info("Export job completed")

	return nil
}

func (s *Service) fail(ctx context.Context, jobID string, cause error) error {
	// The job context may already be cancelled or timed out; the terminal
	// transition still has to land.
	failCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.jobs.MarkFailed(failCtx, jobID, cause.Error()); err != nil {
		logger.Log.WithError(err).WithField("export_id", jobID).Error("Failed to persist export failure")
	}
	data := map[string]interface{}{
		"export_id": jobID,
		"error":     cause.Error(),
	}
	s.publishTo(failCtx, s.events, "export.failed", data)
	s.publishTo(failCtx, s.failures, "export.failed", data)
	return cause
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	s.publishTo(ctx, s.events, eventType, data)
}

func (s *Service) publishTo(ctx context.Context, publisher EventPublisher, eventType string, data map[string]interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishEvent(ctx, eventType, "export-worker", data); err != nil {
		logger.Log.WithError(err).Warn("Failed to publish export event")
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func exportFileName(name, format string) string {
	base := unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if base == "" {
		base = "contacts"
	}
	stamp := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("export_%s_%s.%s", base, stamp, format)
}

// CleanupExpired removes per-job export directories older than the
// retention window. Errors on individual entries are logged and skipped.
func (s *Service) CleanupExpired(retention time.Duration) {
	entries, err := os.ReadDir(s.exportDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Log.WithError(err).Warn("Failed to scan export directory")
		}
		return
	}

	cutoff := time.Now().Add(-retention)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.exportDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Log.WithError(err).WithField("path", path).Warn("Failed to remove expired export")
			continue
		}
		logger.Log.WithField("path", path).Info("Removed expired export")
	}
}
