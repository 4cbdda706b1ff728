// Package store persists chats in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/docpal/docpal/internal/chat"
	"github.com/docpal/docpal/internal/pricing"
)

// ErrNotFound is returned when a chat id does not exist.
var ErrNotFound = errors.New("chat not found")

// schema creates the chats table on first open. Messages are stored as a
// JSON document; the orchestration engine only ever reads and writes the
// whole history at once.
const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	app_id TEXT NOT NULL,
	model TEXT NOT NULL,
	messages TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	estimated_cost REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chats_app_id ON chats(app_id, updated_at DESC);
`

// Store is a SQLite-backed chat store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writes; one connection avoids lock churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new chat.
func (s *Store) Create(ctx context.Context, conversation *chat.Chat) error {
	messages, err := json.Marshal(conversation.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chats (id, app_id, model, messages, prompt_tokens, completion_tokens, estimated_cost, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conversation.ID,
		conversation.AppID,
		conversation.Model,
		string(messages),
		conversation.Usage.PromptTokens,
		conversation.Usage.CompletionTokens,
		conversation.Usage.EstimatedCost,
		conversation.CreatedAt.UTC().Format(time.RFC3339Nano),
		conversation.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

// Get loads a chat by id.
func (s *Store) Get(ctx context.Context, id string) (*chat.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, app_id, model, messages, prompt_tokens, completion_tokens, estimated_cost, created_at, updated_at
		 FROM chats WHERE id = ?`, id)
	return scanChat(row)
}

// Update replaces a chat's message list, model, and usage totals.
func (s *Store) Update(ctx context.Context, conversation *chat.Chat) error {
	messages, err := json.Marshal(conversation.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE chats SET model = ?, messages = ?, prompt_tokens = ?, completion_tokens = ?, estimated_cost = ?, updated_at = ?
		 WHERE id = ?`,
		conversation.Model,
		string(messages),
		conversation.Usage.PromptTokens,
		conversation.Usage.CompletionTokens,
		conversation.Usage.EstimatedCost,
		conversation.UpdatedAt.UTC().Format(time.RFC3339Nano),
		conversation.ID,
	)
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns chats for an app ordered by last update, newest first.
func (s *Store) List(ctx context.Context, appID string, limit int) ([]*chat.Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, app_id, model, messages, prompt_tokens, completion_tokens, estimated_cost, created_at, updated_at
		 FROM chats WHERE app_id = ? ORDER BY updated_at DESC LIMIT ?`, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []*chat.Chat
	for rows.Next() {
		conversation, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// Delete removes a chat by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanChat hydrates one chat row.
func scanChat(row scanner) (*chat.Chat, error) {
	var (
		conversation chat.Chat
		messages     string
		usage        pricing.Usage
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(
		&conversation.ID,
		&conversation.AppID,
		&conversation.Model,
		&messages,
		&usage.PromptTokens,
		&usage.CompletionTokens,
		&usage.EstimatedCost,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &conversation.Messages); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	conversation.Usage = usage
	if conversation.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if conversation.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &conversation, nil
}
