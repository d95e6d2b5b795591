package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/fwojciec/ragdoc"
	"github.com/google/uuid"
)

var _ ragdoc.ConversationService = (*ConversationService)(nil)

// ConversationService implements ragdoc.ConversationService using SQLite.
type ConversationService struct {
	db *DB
}

// NewConversationService creates a new ConversationService.
func NewConversationService(db *DB) *ConversationService {
	return &ConversationService{db: db}
}

// CreateConversation creates a conversation with a generated ID.
func (s *ConversationService) CreateConversation(ctx context.Context, conv *ragdoc.Conversation) error {
	conv.ID = uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)
	conv.CreatedAt = now
	conv.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, conv.ID, conv.Title, conv.SourceID, formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt))
	return err
}

// FindConversationByID retrieves a conversation by ID.
func (s *ConversationService) FindConversationByID(ctx context.Context, id string) (*ragdoc.Conversation, error) {
	conv, err := scanConversation(s.db.QueryRowContext(ctx, `
		SELECT id, title, source_id, created_at, updated_at FROM conversations WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ragdoc.Errorf(ragdoc.ENOTFOUND, "conversation not found")
	}
	return conv, err
}

// FindConversations lists conversations, most recently updated first.
func (s *ConversationService) FindConversations(ctx context.Context, limit int) ([]*ragdoc.Conversation, error) {
	query := "SELECT id, title, source_id, created_at, updated_at FROM conversations ORDER BY updated_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*ragdoc.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// AppendTurn stores turn after the conversation's last turn and touches
// the conversation's update time.
func (s *ConversationService) AppendTurn(ctx context.Context, conversationID string, turn *ragdoc.Turn) error {
	hashes, err := json.Marshal(nonNil(turn.ChunkHashes))
	if err != nil {
		return err
	}
	sources, err := json.Marshal(nonNil(turn.Sources))
	if err != nil {
		return err
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", formatTime(turn.CreatedAt), conversationID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ragdoc.Errorf(ragdoc.ENOTFOUND, "conversation not found")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_id, turn_order, role, content, context, chunk_hashes, confidence, sources, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(turn_order), -1) + 1 FROM turns WHERE conversation_id = ?), ?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), conversationID, conversationID, string(turn.Role), turn.Content, turn.Context,
		string(hashes), turn.Confidence, string(sources), formatTime(turn.CreatedAt))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// FindTurns returns the conversation's turns in recorded order.
func (s *ConversationService) FindTurns(ctx context.Context, conversationID string) ([]*ragdoc.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, context, chunk_hashes, confidence, sources, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY turn_order
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []*ragdoc.Turn
	for rows.Next() {
		var turn ragdoc.Turn
		var role, hashes, sources, createdAt string
		if err := rows.Scan(&role, &turn.Content, &turn.Context, &hashes, &turn.Confidence, &sources, &createdAt); err != nil {
			return nil, err
		}
		turn.Role = ragdoc.Role(role)
		if err := json.Unmarshal([]byte(hashes), &turn.ChunkHashes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sources), &turn.Sources); err != nil {
			return nil, err
		}
		if turn.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
			return nil, err
		}
		turns = append(turns, &turn)
	}
	return turns, rows.Err()
}

// DeleteConversation removes a conversation and, by cascade, its turns.
func (s *ConversationService) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ragdoc.Errorf(ragdoc.ENOTFOUND, "conversation not found")
	}
	return nil
}

func scanConversation(row scanner) (*ragdoc.Conversation, error) {
	var conv ragdoc.Conversation
	var createdAt, updatedAt string
	if err := row.Scan(&conv.ID, &conv.Title, &conv.SourceID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if conv.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if conv.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &conv, nil
}

// nonNil keeps empty slices encoding as JSON arrays rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
