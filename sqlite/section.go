package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.SectionService = (*SectionService)(nil)

// SectionService implements ragdoc.SectionService using SQLite.
type SectionService struct {
	db *DB
}

// NewSectionService creates a new SectionService.
func NewSectionService(db *DB) *SectionService {
	return &SectionService{db: db}
}

// ReplaceSections swaps the source's section tree in one transaction.
// Sections must be ordered so that parents precede their children.
func (s *SectionService) ReplaceSections(ctx context.Context, sourceID string, sections []*ragdoc.Section) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sections WHERE source_id = ?", sourceID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sections (source_id, parent_id, title, content, level, fragment, section_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	ids := make(map[int64]int64, len(sections))
	for _, sec := range sections {
		var parent sql.NullInt64
		if sec.ParentID != 0 {
			id, ok := ids[sec.ParentID]
			if !ok {
				return ragdoc.Errorf(ragdoc.EINVALID, "section %q references unknown parent %d", sec.Title, sec.ParentID)
			}
			parent = sql.NullInt64{Int64: id, Valid: true}
		}

		res, err := stmt.ExecContext(ctx, sourceID, parent, sec.Title, sec.Content, sec.Level, sec.Fragment, sec.Order)
		if err != nil {
			return fmt.Errorf("failed to insert section %q: %w", sec.Title, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		ids[sec.ID] = id
	}

	return tx.Commit()
}

// FindSections loads the source's sections depth-first in document order.
// Paths are built from the ancestor chain by a recursive query.
func (s *SectionService) FindSections(ctx context.Context, sourceID string) ([]*ragdoc.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE tree (id, parent_id, title, content, level, fragment, section_order, path, sort_key) AS (
			SELECT id, parent_id, title, content, level, fragment, section_order,
			       title, printf('%08d', section_order)
			FROM sections
			WHERE source_id = ? AND parent_id IS NULL
			UNION ALL
			SELECT s.id, s.parent_id, s.title, s.content, s.level, s.fragment, s.section_order,
			       t.path || ' > ' || s.title, t.sort_key || '.' || printf('%08d', s.section_order)
			FROM sections s
			JOIN tree t ON s.parent_id = t.id
		)
		SELECT id, parent_id, title, content, level, fragment, section_order, path
		FROM tree
		ORDER BY sort_key
	`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []*ragdoc.Section
	for rows.Next() {
		var sec ragdoc.Section
		var parent sql.NullInt64
		if err := rows.Scan(&sec.ID, &parent, &sec.Title, &sec.Content, &sec.Level, &sec.Fragment, &sec.Order, &sec.Path); err != nil {
			return nil, err
		}
		sec.ParentID = parent.Int64
		sec.SourceID = sourceID
		sections = append(sections, &sec)
	}
	return sections, rows.Err()
}
