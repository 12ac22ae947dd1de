package journalbun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-docexport/export"
	"github.com/uptrace/bun"
)

// Journal stores export outcomes in a Bun-backed database.
type Journal struct {
	DB *bun.DB
}

var _ export.Journal = (*Journal)(nil)

// NewJournal creates a Bun-backed journal.
func NewJournal(db *bun.DB) *Journal {
	return &Journal{DB: db}
}

// CreateSchema creates the journal table if it does not exist.
func (j *Journal) CreateSchema(ctx context.Context) error {
	if err := j.check(); err != nil {
		return err
	}
	if _, err := j.DB.NewCreateTable().Model((*entryModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := j.DB.NewCreateIndex().
		Model((*entryModel)(nil)).
		Index("export_journal_started_at_idx").
		IfNotExists().
		Column("started_at").
		Exec(ctx)
	return err
}

// Record inserts an entry. Entry IDs are unique.
func (j *Journal) Record(ctx context.Context, entry export.JournalEntry) error {
	if err := j.check(); err != nil {
		return err
	}
	if entry.ID == "" {
		return export.NewError(export.KindValidation, "journal entry id is required", nil)
	}
	model := modelFromEntry(entry)
	_, err := j.DB.NewInsert().Model(&model).Exec(ctx)
	return err
}

// Get returns an entry by ID.
func (j *Journal) Get(ctx context.Context, id string) (export.JournalEntry, error) {
	if err := j.check(); err != nil {
		return export.JournalEntry{}, err
	}
	if id == "" {
		return export.JournalEntry{}, export.NewError(export.KindValidation, "journal entry id is required", nil)
	}

	model := new(entryModel)
	err := j.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return export.JournalEntry{}, export.NewError(export.KindNotFound, fmt.Sprintf("journal entry %q not found", id), nil)
		}
		return export.JournalEntry{}, err
	}
	return model.toEntry(), nil
}

// List returns entries matching filter, newest first.
func (j *Journal) List(ctx context.Context, filter export.JournalFilter) ([]export.JournalEntry, error) {
	if err := j.check(); err != nil {
		return nil, err
	}

	models := make([]entryModel, 0)
	query := j.DB.NewSelect().Model(&models)
	if filter.Format != "" {
		query = query.Where("format = ?", string(filter.Format))
	}
	if filter.Succeeded != nil {
		query = query.Where("succeeded = ?", *filter.Succeeded)
	}
	if !filter.Since.IsZero() {
		query = query.Where("started_at >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		query = query.Where("started_at < ?", filter.Until.UTC())
	}
	query = query.Order("started_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	entries := make([]export.JournalEntry, 0, len(models))
	for _, model := range models {
		entries = append(entries, model.toEntry())
	}
	return entries, nil
}

// Prune deletes entries that started before cutoff and reports how many went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := j.check(); err != nil {
		return 0, err
	}
	res, err := j.DB.NewDelete().Model((*entryModel)(nil)).Where("started_at < ?", cutoff.UTC()).Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (j *Journal) check() error {
	if j == nil || j.DB == nil {
		return export.NewError(export.KindNotImpl, "journal database not configured", nil)
	}
	return nil
}

type entryModel struct {
	bun.BaseModel `bun:"table:export_journal,alias:ej"`

	ID         string    `bun:",pk"`
	Format     string    `bun:",notnull"`
	Filename   string    `bun:"filename"`
	Title      string    `bun:"title"`
	Rows       int64     `bun:"row_count"`
	Bytes      int64     `bun:"byte_count"`
	Pages      int       `bun:"page_count"`
	Succeeded  bool      `bun:"succeeded,notnull"`
	ErrorKind  string    `bun:"error_kind"`
	Error      string    `bun:"error_message"`
	StartedAt  time.Time `bun:"started_at,notnull"`
	FinishedAt time.Time `bun:"finished_at,nullzero"`
}

func modelFromEntry(entry export.JournalEntry) entryModel {
	return entryModel{
		ID:         entry.ID,
		Format:     string(entry.Format),
		Filename:   entry.Filename,
		Title:      entry.Title,
		Rows:       entry.Rows,
		Bytes:      entry.Bytes,
		Pages:      entry.Pages,
		Succeeded:  entry.Succeeded,
		ErrorKind:  string(entry.ErrorKind),
		Error:      entry.Error,
		StartedAt:  entry.StartedAt.UTC(),
		FinishedAt: entry.FinishedAt.UTC(),
	}
}

func (m entryModel) toEntry() export.JournalEntry {
	return export.JournalEntry{
		ID:         m.ID,
		Format:     export.Format(m.Format),
		Filename:   m.Filename,
		Title:      m.Title,
		Rows:       m.Rows,
		Bytes:      m.Bytes,
		Pages:      m.Pages,
		Succeeded:  m.Succeeded,
		ErrorKind:  export.ErrorKind(m.ErrorKind),
		Error:      m.Error,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}
