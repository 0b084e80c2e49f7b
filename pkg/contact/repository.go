package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("contact not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Contact{})
}

// Count returns the number of contacts matching a compiled condition.
func (r *Repository) Count(ctx context.Context, cond Condition) (int64, error) {
	var total int64
	tx := r.db.WithContext(ctx).Model(&Contact{})
	if !cond.MatchEverything() {
		tx = tx.Where(cond.SQL, cond.Args...)
	}
	return total, tx.Count(&total).Error
}

// StreamMatching opens a forward cursor over matching contacts projected to
// the selected fields and feeds them to fn in batches of batchSize. Records
// are keyed by field id. Fields without a dedicated column are read from the
// custom-field bag.
func (r *Repository) StreamMatching(ctx context.Context, cond Condition, fields []string, batchSize int, fn func(records []map[string]interface{}) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}

	selects := make([]string, 0, len(fields))
	for _, field := range fields {
		name := strings.ReplaceAll(field, `"`, "")
		if column, ok := ColumnFor(name); ok {
			selects = append(selects, fmt.Sprintf(`%s AS "%s"`, column, name))
		} else {
			selects = append(selects, fmt.Sprintf(`custom_fields->>'%s' AS "%s"`, strings.ReplaceAll(name, "'", ""), name))
		}
	}

	tx := r.db.WithContext(ctx).Model(&Contact{}).Select(strings.Join(selects, ", ")).Order("email")
	if !cond.MatchEverything() {
		tx = tx.Where(cond.SQL, cond.Args...)
	}

	rows, err := tx.Rows()
	if err != nil {
		return fmt.Errorf("opening contact cursor: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	batch := make([]map[string]interface{}, 0, batchSize)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		targets := make([]interface{}, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return err
		}

		record := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			if raw, ok := values[i].([]byte); ok {
				record[column] = string(raw)
			} else {
				record[column] = values[i]
			}
		}
		batch = append(batch, record)

		if len(batch) >= batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]map[string]interface{}, 0, batchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// upsertColumns are the columns overwritten on an email collision. Last
// write wins; prior custom fields are not merged.
var upsertColumns = []string{
	"first_name", "last_name", "tags", "custom_fields",
	"job_title", "seniority", "department",
	"company", "company_website", "company_size", "industry",
	"phone", "linkedin_url", "twitter_handle",
	"country", "city", "state",
	"source", "confidence", "updated_at",
}

// BulkUpsertByEmail writes a batch of contacts keyed by email, returning how
// many rows were newly created versus overwritten.
func (r *Repository) BulkUpsertByEmail(ctx context.Context, batch []*Contact) (created int64, updated int64, err error) {
	if len(batch) == 0 {
		return 0, 0, nil
	}

	now := time.Now().UTC()
	emails := make([]string, 0, len(batch))
	for _, c := range batch {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		emails = append(emails, c.Email)
	}

	var existing []string
	if err := r.db.WithContext(ctx).Model(&Contact{}).
		Where("email IN ?", emails).
		Pluck("email", &existing).Error; err != nil {
		return 0, 0, fmt.Errorf("checking existing contacts: %w", err)
	}
	updated = int64(len(existing))
	created = int64(len(batch)) - updated

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&batch).Error
	if err != nil {
		return 0, 0, fmt.Errorf("upserting contact batch: %w", err)
	}
	return created, updated, nil
}

// Create inserts a single contact entered directly.
func (r *Repository) Create(ctx context.Context, c *Contact) error {
	email, valid := NormalizeEmail(c.Email)
	if !valid {
		return fmt.Errorf("invalid email address %q", c.Email)
	}
	c.Email = email
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Contact, error) {
	var c Contact
	result := r.db.WithContext(ctx).First(&c, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &c, result.Error
}

type ListOptions struct {
	Page     int
	PageSize int
	Search   string
	Filters  []Filter
	Catalog  SynonymCatalog
}

// List returns a page of contacts newest first, with explicit filters ANDed
// against the free-text search clause.
func (r *Repository) List(ctx context.Context, opts ListOptions) ([]Contact, int64, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 10
	}

	filterCond, err := Compile(opts.Filters, MatchAll)
	if err != nil {
		return nil, 0, err
	}
	cond := And(filterCond, SearchClause(opts.Catalog, opts.Search))

	tx := r.db.WithContext(ctx).Model(&Contact{})
	if !cond.MatchEverything() {
		tx = tx.Where(cond.SQL, cond.Args...)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var contacts []Contact
	err = tx.Order("created_at DESC").
		Offset((opts.Page - 1) * opts.PageSize).
		Limit(opts.PageSize).
		Find(&contacts).Error
	return contacts, total, err
}

// CountSince reports how many contacts were created after the cutoff.
func (r *Repository) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&Contact{}).
		Where("created_at > ?", cutoff).
		Count(&total).Error
	return total, err
}
