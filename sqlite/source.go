package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/fwojciec/ragdoc"
	"github.com/google/uuid"
)

var _ ragdoc.SourceService = (*SourceService)(nil)

// SourceService implements ragdoc.SourceService using SQLite.
type SourceService struct {
	db *DB
}

// NewSourceService creates a new SourceService.
func NewSourceService(db *DB) *SourceService {
	return &SourceService{db: db}
}

const sourceColumns = "id, url, title, description, content_hash, created_at, indexed_at"

// CreateSource registers a new source with a generated ID.
func (s *SourceService) CreateSource(ctx context.Context, source *ragdoc.Source) error {
	if err := source.Validate(); err != nil {
		return err
	}

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources WHERE url = ?", source.URL).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return ragdoc.Errorf(ragdoc.EINVALID, "source %q already exists", source.URL)
	}

	source.ID = uuid.New().String()
	source.CreatedAt = time.Now().UTC().Truncate(time.Second)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, source.ID, source.URL, source.Title, source.Description, source.ContentHash,
		formatTime(source.CreatedAt), formatTime(source.IndexedAt))

	return err
}

// FindSourceByID retrieves a source by ID.
func (s *SourceService) FindSourceByID(ctx context.Context, id string) (*ragdoc.Source, error) {
	source, err := scanSource(s.db.QueryRowContext(ctx, "SELECT "+sourceColumns+" FROM sources WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ragdoc.Errorf(ragdoc.ENOTFOUND, "source not found")
	}
	return source, err
}

// FindSources retrieves sources matching the filter, oldest first.
func (s *SourceService) FindSources(ctx context.Context, filter ragdoc.SourceFilter) ([]*ragdoc.Source, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + sourceColumns + " FROM sources WHERE 1=1")
	if filter.ID != nil {
		query.WriteString(" AND id = ?")
		args = append(args, *filter.ID)
	}
	if filter.URL != nil {
		query.WriteString(" AND url = ?")
		args = append(args, *filter.URL)
	}
	query.WriteString(" ORDER BY created_at, rowid")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*ragdoc.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// UpdateSource applies the non-nil fields of upd.
func (s *SourceService) UpdateSource(ctx context.Context, id string, upd ragdoc.SourceUpdate) (*ragdoc.Source, error) {
	source, err := s.FindSourceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		source.Title = *upd.Title
	}
	if upd.Description != nil {
		source.Description = *upd.Description
	}
	if upd.ContentHash != nil {
		source.ContentHash = *upd.ContentHash
	}
	if upd.IndexedAt != nil {
		source.IndexedAt = upd.IndexedAt.UTC().Truncate(time.Second)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE sources
		SET title = ?, description = ?, content_hash = ?, indexed_at = ?
		WHERE id = ?
	`, source.Title, source.Description, source.ContentHash, formatTime(source.IndexedAt), id)
	if err != nil {
		return nil, err
	}

	return source, nil
}

// DeleteSource removes a source. Its sections are removed by cascade.
func (s *SourceService) DeleteSource(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ragdoc.Errorf(ragdoc.ENOTFOUND, "source not found")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*ragdoc.Source, error) {
	var source ragdoc.Source
	var createdAt, indexedAt string

	if err := row.Scan(&source.ID, &source.URL, &source.Title, &source.Description, &source.ContentHash,
		&createdAt, &indexedAt); err != nil {
		return nil, err
	}

	var err error
	if source.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if source.IndexedAt, err = parseTime(indexedAt, "indexed_at"); err != nil {
		return nil, err
	}
	return &source, nil
}
