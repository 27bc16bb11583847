package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one conversational message. Only user messages are analyzed.
type Message struct {
	ID          string
	Role        string
	Content     string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// UserAuthored reports whether the message came from the user.
func (m *Message) UserAuthored() bool {
	return m.Role == RoleUser
}

// Processed reports whether analysis already consumed the message.
func (m *Message) Processed() bool {
	return m.ProcessedAt != nil
}

// AddMessage stores a message with a new ULID. A zero createdAt means now.
func (db *DB) AddMessage(role, content string, createdAt time.Time) (*Message, error) {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	id, err := ulid.New(ulid.Timestamp(createdAt), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO messages (id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), role, content, createdAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return &Message{
		ID:        id.String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.UnixMilli(createdAt.UnixMilli()),
	}, nil
}

// GetMessage returns a message by id, or nil if it does not exist.
func (db *DB) GetMessage(id string) (*Message, error) {
	m, err := scanMessage(db.QueryRow(`
		SELECT id, role, content, created_at, processed_at
		FROM messages WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// MarkProcessed records that analysis has consumed the message.
func (db *DB) MarkProcessed(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE messages SET processed_at = COALESCE(processed_at, ?)
		WHERE id = ?
	`, now, id)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// UnprocessedMessages returns user messages not yet analyzed, oldest first.
func (db *DB) UnprocessedMessages(limit int) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, role, content, created_at, processed_at
		FROM messages
		WHERE processed_at IS NULL AND role = 'user'
		ORDER BY created_at, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("unprocessed messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var (
		m         Message
		created   int64
		processed sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.Role, &m.Content, &created, &processed); err != nil {
		return nil, err
	}
	m.CreatedAt = time.UnixMilli(created)
	if processed.Valid {
		t := time.UnixMilli(processed.Int64)
		m.ProcessedAt = &t
	}
	return &m, nil
}
