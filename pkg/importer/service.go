package importer

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/outreachly/platform/pkg/common/logger"
	"github.com/outreachly/platform/pkg/contact"
	"gorm.io/datatypes"
)

// batchSize bounds memory during normalization and store writes and sets
// the progress granularity.
const batchSize = 1000

// errorCap bounds the persisted error list to the first entries.
const errorCap = 100

type ProgressFunc func(ctx context.Context, pct int) error

// JobStore is the slice of the import job repository the runner needs.
type JobStore interface {
	Get(ctx context.Context, id string) (*ImportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	Complete(ctx context.Context, job *ImportJob) error
}

// ContactStore is the write side of the contact repository.
type ContactStore interface {
	BulkUpsertByEmail(ctx context.Context, batch []*contact.Contact) (created, updated int64, err error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error
}

type Service struct {
	jobs     JobStore
	contacts ContactStore
	events   EventPublisher
	failures EventPublisher
}

// NewService wires the runner. failures additionally receives terminal
// *.failed events so downstream consumers can watch a dedicated topic.
func NewService(jobs JobStore, contacts ContactStore, events, failures EventPublisher) *Service {
	return &Service{jobs: jobs, contacts: contacts, events: events, failures: failures}
}

// Run executes one import job to completion. Row validation failures are
// recorded and skipped; anything else fails the whole job and propagates so
// the queue can apply its retry policy. Upserts keyed by email keep reruns
// idempotent.
func (s *Service) Run(ctx context.Context, payload JobPayload, progress ProgressFunc) error {
	job, err := s.jobs.Get(ctx, payload.ImportID)
	if err != nil {
		return fmt.Errorf("loading import job %s: %w", payload.ImportID, err)
	}

	if err := s.execute(ctx, job, payload, progress); err != nil {
		return s.fail(ctx, job.ID, err)
	}
	return nil
}

// execute runs the job body. Every error return, progress persistence
// included, goes through the failed transition in Run.
func (s *Service) execute(ctx context.Context, job *ImportJob, payload JobPayload, progress ProgressFunc) error {
	if err := s.jobs.MarkProcessing(ctx, job.ID); err != nil {
		return err
	}

	content, err := os.ReadFile(payload.FilePath)
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}
	if err := progress(ctx, 5); err != nil {
		return err
	}

	headers, rows, err := ParseFile(content, filepath.Ext(payload.FilePath))
	if err != nil {
		return err
	}
	if err := progress(ctx, 20); err != nil {
		return err
	}

	mapping := payload.FieldMapping
	if len(mapping) == 0 {
		mapping = job.FieldMapping
	}

	// Normalization phase: progress 20 -> 70.
	var (
		mapped      []map[string]interface{}
		importErrs  []ImportError
		erroredLine = make(map[int]bool)
		success     int
		errored     int
	)
	totalBatches := (len(rows) + batchSize - 1) / batchSize
	for batchIndex := 0; batchIndex < totalBatches; batchIndex++ {
		start := batchIndex * batchSize
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		for idx, row := range rows[start:end] {
			line := start + idx + 1
			record, hasEmail, rowErrs := normalizeRow(row, mapping, line)

			for _, e := range rowErrs {
				if len(importErrs) < errorCap {
					importErrs = append(importErrs, e)
				}
				erroredLine[e.Line] = true
			}

			if !hasEmail {
				errored++
				if !erroredLine[line] && len(importErrs) < errorCap {
					importErrs = append(importErrs, ImportError{Line: line, Message: "Missing or invalid email address"})
					erroredLine[line] = true
				}
				continue
			}

			success++
			mapped = append(mapped, record)
		}

		pct := 20 + int(math.Round(float64(batchIndex+1)/float64(totalBatches)*50))
		if err := progress(ctx, pct); err != nil {
			return err
		}
	}

	// Write phase: progress 70 -> 95.
	var createdCount, updatedCount int64
	for start := 0; start < len(mapped); start += batchSize {
		end := start + batchSize
		if end > len(mapped) {
			end = len(mapped)
		}

		batch := make([]*contact.Contact, 0, end-start)
		for _, record := range mapped[start:end] {
			batch = append(batch, buildContact(record))
		}

		created, updated, err := s.contacts.BulkUpsertByEmail(ctx, batch)
		if err != nil {
			return fmt.Errorf("writing contact batch: %w", err)
		}
		createdCount += created
		updatedCount += updated

		pct := 70 + int(math.Round(float64(end)/float64(len(mapped))*25))
		if err := progress(ctx, pct); err != nil {
			return err
		}
	}

	job.FieldNames = headers
	job.TotalRecords = len(rows)
	job.ProcessedRecords = len(rows)
	job.SuccessRecords = success
	job.ErrorRecords = errored
	job.CreatedRecords = int(createdCount)
	job.UpdatedRecords = int(updatedCount)
	job.Errors = importErrs
	if err := s.jobs.Complete(ctx, job); err != nil {
		return err
	}
	if err := progress(ctx, 100); err != nil {
		return err
	}

	s.publish(ctx, "import.completed", map[string]interface{}{
		"import_id":        job.ID,
		"total_records":    job.TotalRecords,
		"success_records":  job.SuccessRecords,
		"error_records":    job.ErrorRecords,
		"created_contacts": createdCount,
		"updated_contacts": updatedCount,
	})

	logger.Log.WithFields(map[string]interface{}{
		"import_id": job.ID,
		"total":     job.TotalRecords,
		"success":   success,
		"errors":    errored,
	}).Info("Import job completed")

	return nil
}

func (s *Service) fail(ctx context.Context, jobID string, cause error) error {
	// The job context may already be cancelled or timed out; the terminal
	// transition still has to land.
	failCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.jobs.MarkFailed(failCtx, jobID, cause.Error()); err != nil {
		logger.Log.WithError(err).WithField("import_id", jobID).Error("Failed to persist import failure")
	}
	data := map[string]interface{}{
		"import_id": jobID,
		"error":     cause.Error(),
	}
	s.publishTo(failCtx, s.events, "import.failed", data)
	s.publishTo(failCtx, s.failures, "import.failed", data)
	return cause
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	s.publishTo(ctx, s.events, eventType, data)
}

func (s *Service) publishTo(ctx context.Context, publisher EventPublisher, eventType string, data map[string]interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishEvent(ctx, eventType, "import-worker", data); err != nil {
		logger.Log.WithError(err).Warn("Failed to publish import event")
	}
}

// normalizeRow applies the mapping to a source row. Email extraction errors
// are reported per source column; the row still proceeds when the
// work_email fallback resolves an address.
func normalizeRow(row Row, mapping contact.Mapping, line int) (map[string]interface{}, bool, []ImportError) {
	record := make(map[string]interface{})
	hasEmail := false
	var errs []ImportError

	for _, entry := range mapping {
		value, ok := row[entry.Source]
		if !ok || value.IsNull() {
			continue
		}
		if entry.Field == "email" {
			if email, ok := extractEmail(value.Text()); ok {
				record["email"] = email
				hasEmail = true
			} else {
				errs = append(errs, ImportError{
					Line:    line,
					Message: fmt.Sprintf("Could not extract valid email from: %q", value.Text()),
				})
			}
			continue
		}
		record[entry.Field] = cellValue(value)
	}

	if !hasEmail {
		if value, ok := row["work_email"]; ok {
			if email, ok := extractEmail(value.Text()); ok {
				record["email"] = email
				hasEmail = true
			}
		}
	}

	return record, hasEmail, errs
}

var addressKeyPattern = regexp.MustCompile(`['"]address['"]:\s*['"]([^'"]+@[^'"]+\.[^'"]+)['"]`)

// extractEmail recovers a valid address from a bare email string or from a
// stringified JSON array of address objects.
func extractEmail(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	if email, valid := contact.NormalizeEmail(trimmed); valid {
		return email, true
	}

	if strings.HasPrefix(trimmed, "[{") {
		if match := addressKeyPattern.FindStringSubmatch(trimmed); match != nil {
			if email, valid := contact.NormalizeEmail(match[1]); valid {
				return email, true
			}
		}
	}

	return "", false
}

// coreRecordKeys are the normalized fields written to dedicated columns;
// every other mapped key folds into the custom-field bag.
var coreRecordKeys = map[string]bool{
	"email": true, "firstName": true, "lastName": true, "tags": true,
	"jobTitle": true, "seniority": true, "department": true,
	"company": true, "companyWebsite": true, "companySize": true, "industry": true,
	"phone": true, "linkedinUrl": true, "twitterHandle": true,
	"country": true, "city": true, "state": true,
	"source": true, "confidence": true, "customFields": true,
}

func buildContact(record map[string]interface{}) *contact.Contact {
	pick := func(keys ...string) string {
		for _, key := range keys {
			if s := asString(record[key]); s != "" {
				return s
			}
		}
		return ""
	}

	c := &contact.Contact{
		Email:          asString(record["email"]),
		FirstName:      pick("firstName", "first_name"),
		LastName:       pick("lastName", "last_name"),
		Tags:           splitTags(pick("tags")),
		JobTitle:       pick("jobTitle", "job_title", "title"),
		Seniority:      pick("seniority", "level"),
		Department:     pick("department"),
		Company:        pick("company", "organization", "companyName"),
		CompanyWebsite: pick("companyWebsite", "company_website", "website"),
		CompanySize:    pick("companySize", "company_size"),
		Industry:       pick("industry"),
		Phone:          pick("phone", "phoneNumber", "phone_number"),
		LinkedinURL:    pick("linkedinUrl", "linkedin", "linkedin_url"),
		TwitterHandle:  pick("twitterHandle", "twitter", "twitter_handle"),
		Country:        pick("country"),
		City:           pick("city"),
		State:          pick("state"),
		Source:         pick("source"),
		CustomFields:   datatypes.JSONMap{},
	}

	if raw := pick("confidence"); raw != "" {
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			c.Confidence = int(n)
		}
	}

	for key, value := range record {
		if !coreRecordKeys[key] {
			c.CustomFields[key] = value
		}
	}

	return c
}

func asString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func cellValue(v Value) interface{} {
	if v.Kind == KindNumber {
		return v.Num
	}
	return v.Str
}

func splitTags(raw string) datatypes.JSONSlice[string] {
	if raw == "" {
		return datatypes.JSONSlice[string]{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return datatypes.JSONSlice[string](tags)
}
