package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/outreachly/platform/pkg/contact"
)

type fakeExportStore struct {
	job            *ExportJob
	progressWrites []int
	failedMsg      string
	completed      bool
	filePath       string
	fileSize       int64
	recordCount    int
}

func (f *fakeExportStore) Get(ctx context.Context, id string) (*ExportJob, error) {
	if f.job == nil || f.job.ID != id {
		return nil, ErrNotFound
	}
	job := *f.job
	return &job, nil
}

func (f *fakeExportStore) MarkProcessing(ctx context.Context, id string) error {
	f.job.Status = StatusProcessing
	return nil
}

func (f *fakeExportStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	f.job.Status = StatusFailed
	f.failedMsg = errMsg
	return nil
}

func (f *fakeExportStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	f.progressWrites = append(f.progressWrites, progress)
	return nil
}

func (f *fakeExportStore) Complete(ctx context.Context, id, filePath string, fileSize int64, recordCount int) error {
	f.job.Status = StatusCompleted
	f.completed = true
	f.filePath = filePath
	f.fileSize = fileSize
	f.recordCount = recordCount
	return nil
}

type fakePublisher struct {
	eventTypes []string
}

func (f *fakePublisher) PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error {
	f.eventTypes = append(f.eventTypes, eventType)
	return nil
}

// fakeContactSource serves generated records in cursor batches.
type fakeContactSource struct {
	total   int
	batches int
}

func (f *fakeContactSource) Count(ctx context.Context, cond contact.Condition) (int64, error) {
	return int64(f.total), nil
}

func (f *fakeContactSource) StreamMatching(ctx context.Context, cond contact.Condition, fields []string, batchSize int, fn func(records []map[string]interface{}) error) error {
	for start := 0; start < f.total; start += batchSize {
		end := start + batchSize
		if end > f.total {
			end = f.total
		}
		batch := make([]map[string]interface{}, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, map[string]interface{}{
				"email":     fmt.Sprintf("user%d@example.com", i),
				"firstName": fmt.Sprintf("User%d", i),
			})
		}
		f.batches++
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func newExportJob(format string) *ExportJob {
	return &ExportJob{
		ID:             "exp-1",
		Name:           "all contacts",
		Format:         format,
		MatchType:      contact.MatchAll,
		SelectedFields: []string{"email", "firstName"},
		Status:         StatusPending,
	}
}

func TestRunExportJSON(t *testing.T) {
	jobs := &fakeExportStore{job: newExportJob(FormatJSON)}
	source := &fakeContactSource{total: 12000}
	svc := NewService(jobs, source, nil, nil, t.TempDir())

	var progress []int
	err := svc.Run(context.Background(), JobPayload{ExportID: "exp-1"},
		func(ctx context.Context, pct int) error {
			progress = append(progress, pct)
			return nil
		})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if source.batches != 3 {
		t.Errorf("expected 12000 records in 3 cursor batches, got %d", source.batches)
	}
	if !jobs.completed || jobs.recordCount != 12000 {
		t.Fatalf("expected completion with 12000 records, got %+v", jobs)
	}

	content, err := os.ReadFile(jobs.filePath)
	if err != nil {
		t.Fatalf("reading export file: %v", err)
	}
	if jobs.fileSize != int64(len(content)) {
		t.Errorf("recorded size %d does not match file size %d", jobs.fileSize, len(content))
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(decoded) != 12000 {
		t.Fatalf("expected 12000 decoded records, got %d", len(decoded))
	}
	if decoded[0]["email"] != "user0@example.com" {
		t.Errorf("unexpected first record: %v", decoded[0])
	}

	if progress[len(progress)-1] != 100 {
		t.Fatalf("expected terminal progress 100, got %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress went backwards: %v", progress)
		}
	}

	// Batch boundaries land at 41%, 83% and 100%, each crossing a new
	// 10% step, so each is written through.
	if len(jobs.progressWrites) != 3 {
		t.Errorf("expected 3 persisted progress steps, got %v", jobs.progressWrites)
	}
}

func TestRunExportCSVEmptyResult(t *testing.T) {
	jobs := &fakeExportStore{job: newExportJob(FormatCSV)}
	svc := NewService(jobs, &fakeContactSource{total: 0}, nil, nil, t.TempDir())

	err := svc.Run(context.Background(), JobPayload{ExportID: "exp-1"},
		func(ctx context.Context, pct int) error { return nil })
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !jobs.completed || jobs.recordCount != 0 {
		t.Fatalf("expected empty completion, got %+v", jobs)
	}

	content, err := os.ReadFile(jobs.filePath)
	if err != nil {
		t.Fatalf("reading export file: %v", err)
	}
	if strings.TrimRight(string(content), "\n") != "email,firstName" {
		t.Errorf("expected header-only file, got %q", content)
	}
	if filepath.Ext(jobs.filePath) != ".csv" {
		t.Errorf("unexpected file name: %s", jobs.filePath)
	}
}

func TestRunExportRejectsBadFilter(t *testing.T) {
	job := newExportJob(FormatCSV)
	job.Filters = []contact.Filter{{Field: "email", Operator: "regex", Value: ".*"}}
	jobs := &fakeExportStore{job: job}
	failures := &fakePublisher{}
	svc := NewService(jobs, &fakeContactSource{total: 10}, &fakePublisher{}, failures, t.TempDir())

	err := svc.Run(context.Background(), JobPayload{ExportID: "exp-1"},
		func(ctx context.Context, pct int) error { return nil })
	if err == nil {
		t.Fatal("expected bad filter to fail the job")
	}
	if jobs.job.Status != StatusFailed {
		t.Errorf("expected failed status, got %q", jobs.job.Status)
	}
	if !strings.Contains(jobs.failedMsg, "unknown filter operator") {
		t.Errorf("unexpected failure message: %q", jobs.failedMsg)
	}
	if len(failures.eventTypes) != 1 || failures.eventTypes[0] != "export.failed" {
		t.Errorf("expected the failure topic to receive export.failed, got %v", failures.eventTypes)
	}
}

func TestRunExportProgressFailureMarksJobFailed(t *testing.T) {
	jobs := &fakeExportStore{job: newExportJob(FormatCSV)}
	svc := NewService(jobs, &fakeContactSource{total: 100}, nil, nil, t.TempDir())

	err := svc.Run(context.Background(), JobPayload{ExportID: "exp-1"},
		func(ctx context.Context, pct int) error {
			return errors.New("progress store unavailable")
		})
	if err == nil {
		t.Fatal("expected progress failure to surface")
	}
	if jobs.job.Status != StatusFailed {
		t.Fatalf("expected failed status, got %q", jobs.job.Status)
	}
	if !strings.Contains(jobs.failedMsg, "progress store unavailable") {
		t.Errorf("expected failure message to carry the cause, got %q", jobs.failedMsg)
	}
}

func TestExportFileName(t *testing.T) {
	name := exportFileName("Q3 leads / US", "csv")
	if !strings.HasPrefix(name, "export_Q3_leads_US_") || !strings.HasSuffix(name, ".csv") {
		t.Errorf("unexpected file name %q", name)
	}
	if strings.ContainsAny(name, "/ ") {
		t.Errorf("file name contains unsafe characters: %q", name)
	}

	if got := exportFileName("  ", "json"); !strings.HasPrefix(got, "export_contacts_") {
		t.Errorf("expected fallback base name, got %q", got)
	}
}

func TestCleanupExpired(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(nil, nil, nil, nil, dir)

	oldDir := filepath.Join(dir, "exp-old")
	newDir := filepath.Join(dir, "exp-new")
	for _, d := range []string{oldDir, newDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldDir, stale, stale); err != nil {
		t.Fatal(err)
	}

	svc.CleanupExpired(24 * time.Hour)

	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("expected stale export directory to be removed")
	}
	if _, err := os.Stat(newDir); err != nil {
		t.Error("expected fresh export directory to survive")
	}
}
