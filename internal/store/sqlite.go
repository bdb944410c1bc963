package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sqlx.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
		inMemory = true
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}
	db, err := sqlx.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
            id TEXT PRIMARY KEY,
            subject TEXT NOT NULL,
            sender TEXT NOT NULL,
            plain TEXT NOT NULL,
            raw BLOB,
            source TEXT NOT NULL,
            parsed INTEGER NOT NULL DEFAULT 0,
            created_at INTEGER NOT NULL,
            expires_at INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            conversation_id TEXT NOT NULL,
            position INTEGER NOT NULL,
            body TEXT NOT NULL,
            sent TEXT NOT NULL,
            sender TEXT NOT NULL,
            FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS headers (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            message_id INTEGER NOT NULL,
            field TEXT NOT NULL,
            value TEXT NOT NULL,
            FOREIGN KEY(message_id) REFERENCES messages(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_headers_message ON headers(message_id);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_parsed ON conversations(parsed, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_expires ON conversations(expires_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateConversation(ctx context.Context, c Conversation) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO conversations
        (id, subject, sender, plain, raw, source, parsed, created_at, expires_at)
        VALUES (?, ?, ?, ?, ?, ?, 0, ?, 0);`,
		c.ID,
		c.Subject,
		c.Sender,
		c.Plain,
		c.Raw,
		c.Source,
		c.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var row conversationRow
	err := s.db.GetContext(ctx, &row, `SELECT id, subject, sender, plain, raw, source, parsed, created_at, expires_at
        FROM conversations WHERE id = ?;`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, sql.ErrNoRows
		}
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return row.toConversation(), nil
}

// SaveParsed replaces every message of a conversation and marks it parsed,
// all in one transaction. Running it twice with the same input leaves the
// same rows behind.
func (s *Store) SaveParsed(ctx context.Context, id string, parsed ParsedConversation, expiresAt time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE conversations
        SET subject = ?, sender = ?, parsed = 1, expires_at = ?
        WHERE id = ?;`, parsed.Subject, parsed.Sender, expiresAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?;`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	for i, message := range parsed.Messages {
		result, err := tx.ExecContext(ctx, `INSERT INTO messages
            (conversation_id, position, body, sent, sender)
            VALUES (?, ?, ?, ?, ?);`, id, i, message.Body, message.Sent, message.Sender)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		messageID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		for _, header := range message.Headers {
			_, err = tx.ExecContext(ctx, `INSERT INTO headers (message_id, field, value)
                VALUES (?, ?, ?);`, messageID, header.Field, header.Value)
			if err != nil {
				return fmt.Errorf("insert header: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit parsed conversation: %w", err)
	}
	return nil
}

// ListMessages returns a page of a conversation's messages with their
// headers, plus the total message count. order is "oldest" (chronological,
// the default) or "newest".
func (s *Store) ListMessages(ctx context.Context, conversationID, order string, offset, limit int32) ([]Message, int32, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM messages WHERE conversation_id = ?;`, conversationID); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	if total > int64(^uint32(0)>>1) {
		total = int64(^uint32(0) >> 1)
	}

	orderBy := " ORDER BY position ASC"
	switch order {
	case "newest", "desc":
		orderBy = " ORDER BY position DESC"
	}

	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows, `SELECT id, conversation_id, position, body, sent, sender
        FROM messages WHERE conversation_id = ?`+orderBy+` LIMIT ? OFFSET ?;`, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]Message, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, Message{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			Position:       row.Position,
			Body:           row.Body,
			Sent:           row.Sent,
			Sender:         row.Sender,
		})
		ids = append(ids, row.ID)
	}
	if len(ids) == 0 {
		return messages, int32(total), nil
	}

	headers, err := s.listHeaders(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range messages {
		messages[i].Headers = headers[messages[i].ID]
	}
	return messages, int32(total), nil
}

// ListPending returns the IDs of conversations that have not been parsed
// yet, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM conversations WHERE parsed = 0 ORDER BY created_at ASC, id ASC;`); err != nil {
		return nil, fmt.Errorf("list pending conversations: %w", err)
	}
	return ids, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?;`, id)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	return rows > 0, nil
}

// DeleteExpired removes parsed conversations whose expiry is at or before
// now and returns how many were removed.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations
        WHERE parsed = 1 AND expires_at > 0 AND expires_at <= ?;`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired conversations: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired conversations: %w", err)
	}
	return rows, nil
}

func (s *Store) listHeaders(ctx context.Context, messageIDs []int64) (map[int64][]Header, error) {
	query, args, err := sqlx.In(`SELECT id, message_id, field, value FROM headers WHERE message_id IN (?) ORDER BY id;`, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("list headers: %w", err)
	}
	var rows []headerRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list headers: %w", err)
	}

	result := make(map[int64][]Header)
	for _, row := range rows {
		result[row.MessageID] = append(result[row.MessageID], Header{
			ID:        row.ID,
			MessageID: row.MessageID,
			Field:     row.Field,
			Value:     row.Value,
		})
	}
	return result, nil
}
