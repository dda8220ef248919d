// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/haven-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("conversation not found")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// STORE
// =============================================================================

// Store persists conversations and messages to SQLite. Safe for concurrent
// use; SQLite allows one writer, so the pool is limited to one connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the conversation database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
		"PRAGMA wal_autocheckpoint=1000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init metadata: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE
// =============================================================================

// SaveConversation writes a conversation and its messages in one
// transaction, replacing any previous record. In-progress streaming messages
// are skipped; they are persisted once finalized.
func (s *Store) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (local_id, server_id, title, search_mode, sync_state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			title = excluded.title,
			search_mode = excluded.search_mode,
			sync_state = excluded.sync_state,
			updated_at = excluded.updated_at`,
		conv.LocalID, conv.ServerID, conv.Title, string(conv.SearchMode),
		int(conv.Sync), conv.CreatedAt.Unix(), conv.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conv.LocalID); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	for i, msg := range conv.Messages {
		if msg.IsStreaming {
			continue
		}
		sources := ""
		if len(msg.Sources) > 0 {
			data, err := json.Marshal(msg.Sources)
			if err != nil {
				return fmt.Errorf("%w: marshal sources: %v", ErrDatabaseError, err)
			}
			sources = string(data)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, position, role, content, sources, error, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, conv.LocalID, i, string(msg.Role), msg.Content, sources, msg.Err, msg.Timestamp.Unix())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// =============================================================================
// LOAD
// =============================================================================

// LoadConversation reads one conversation with its messages.
func (s *Store) LoadConversation(ctx context.Context, localID string) (*model.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT local_id, server_id, title, search_mode, sync_state, created_at, updated_at
		FROM conversations WHERE local_id = ?`, localID)

	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if err := s.loadMessages(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations reads all conversations with messages, most recently
// updated first.
func (s *Store) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT local_id, server_id, title, search_mode, sync_state, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var conversations []*model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	for _, conv := range conversations {
		if err := s.loadMessages(ctx, conv); err != nil {
			return nil, err
		}
	}
	return conversations, nil
}

// DeleteConversation removes a conversation; messages cascade.
func (s *Store) DeleteConversation(ctx context.Context, localID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*model.Conversation, error) {
	var (
		conv                 model.Conversation
		searchMode           string
		syncState            int
		createdAt, updatedAt int64
	)
	err := row.Scan(&conv.LocalID, &conv.ServerID, &conv.Title, &searchMode,
		&syncState, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	conv.SearchMode = model.SearchMode(searchMode)
	conv.Sync = model.SyncState(syncState)
	conv.CreatedAt = time.Unix(createdAt, 0)
	conv.UpdatedAt = time.Unix(updatedAt, 0)
	conv.Messages = make([]*model.Message, 0)
	return &conv, nil
}

func (s *Store) loadMessages(ctx context.Context, conv *model.Conversation) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, sources, error, timestamp
		FROM messages WHERE conversation_id = ? ORDER BY position`, conv.LocalID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg       model.Message
			role      string
			sources   string
			timestamp int64
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &sources, &msg.Err, &timestamp); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		msg.Role = model.Role(role)
		msg.Timestamp = time.Unix(timestamp, 0)
		if sources != "" {
			if err := json.Unmarshal([]byte(sources), &msg.Sources); err != nil {
				return fmt.Errorf("%w: unmarshal sources: %v", ErrDatabaseError, err)
			}
		}
		conv.Messages = append(conv.Messages, &msg)
	}
	return rows.Err()
}
