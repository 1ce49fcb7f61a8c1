package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const messagesDBRelativePath = "Library/Messages/chat.db"

// Row is one raw result row of the polling query.
type Row struct {
	GUID       string
	Handle     sql.NullString
	Text       sql.NullString
	Date       int64
	DateRead   int64
	IsFromMe   bool
	RoomName   sql.NullString
	Attachment sql.NullString
	MimeType   sql.NullString
}

// Store is the read-only message source polled by a [Session].
type Store interface {
	// MessagesSince returns rows whose encoded sent time is >= cursor, in the
	// order the store produces them.
	MessagesSince(ctx context.Context, cursor int64) ([]Row, error)
}

// Chat is one conversation as listed by [ChatDB.RecentChats].
type Chat struct {
	ID          string
	RecipientID string
	ServiceName string
	RoomName    string
	DisplayName string
}

// ChatDB reads the Messages database. The connection is opened read-only on
// first use and shared until Close.
type ChatDB struct {
	path string

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// ErrClosed is returned by ChatDB queries after Close.
var ErrClosed = errors.New("messages: chat database closed")

// NewChatDB returns a ChatDB for the database at path.
func NewChatDB(path string) *ChatDB {
	return &ChatDB{path: path}
}

// DefaultDBPath returns ~/Library/Messages/chat.db for the current user.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("messages: unable to resolve home directory: %w", err)
	}
	return filepath.Join(home, messagesDBRelativePath), nil
}

// Path returns the database path.
func (c *ChatDB) Path() string { return c.path }

func (c *ChatDB) conn() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.db != nil {
		return c.db, nil
	}

	if _, err := os.Stat(c.path); err != nil {
		return nil, fmt.Errorf("messages: chat database unavailable at %s: %w", c.path, err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", strings.ReplaceAll(c.path, " ", "%20"))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("messages: opening sqlite database failed: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("messages: connecting to sqlite database failed: %w", err)
	}
	c.db = db
	return db, nil
}

// Close releases the shared connection. Later queries fail with ErrClosed.
func (c *ChatDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

const messagesSinceQuery = `
SELECT
	m.guid,
	h.id AS handle,
	m.text,
	COALESCE(m.date, 0),
	COALESCE(m.date_read, 0),
	COALESCE(m.is_from_me, 0),
	m.cache_roomnames,
	CASE m.cache_has_attachments
		WHEN 0 THEN NULL
		WHEN 1 THEN a.filename
	END AS attachment,
	CASE m.cache_has_attachments
		WHEN 0 THEN NULL
		WHEN 1 THEN a.mime_type
	END AS mime_type
FROM message AS m
LEFT JOIN message_attachment_join AS maj ON maj.message_id = m.ROWID
LEFT JOIN attachment AS a ON a.ROWID = maj.attachment_id
LEFT JOIN handle AS h ON h.ROWID = m.handle_id
WHERE m.date >= ?
`

// MessagesSince implements [Store].
func (c *ChatDB) MessagesSince(ctx context.Context, cursor int64) ([]Row, error) {
	db, err := c.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, messagesSinceQuery, cursor)
	if err != nil {
		return nil, fmt.Errorf("messages: sqlite query failed: %w", err)
	}
	defer rows.Close()

	result := make([]Row, 0, 16)
	for rows.Next() {
		var (
			r      Row
			fromMe int64
		)
		if err := rows.Scan(&r.GUID, &r.Handle, &r.Text, &r.Date, &r.DateRead, &fromMe, &r.RoomName, &r.Attachment, &r.MimeType); err != nil {
			return nil, fmt.Errorf("messages: scanning sqlite row failed: %w", err)
		}
		r.IsFromMe = fromMe != 0
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: iterating sqlite rows failed: %w", err)
	}
	return result, nil
}

// RecentChats lists chats ordered by most recently added handle. limit <= 0
// means 10.
func (c *ChatDB) RecentChats(ctx context.Context, limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = 10
	}
	db, err := c.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT
	COALESCE(chat.guid, ''),
	COALESCE(chat.chat_identifier, ''),
	COALESCE(chat.service_name, ''),
	COALESCE(chat.room_name, ''),
	COALESCE(chat.display_name, '')
FROM chat
JOIN chat_handle_join ON chat_handle_join.chat_id = chat.ROWID
JOIN handle ON handle.ROWID = chat_handle_join.handle_id
ORDER BY handle.ROWID DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("messages: sqlite query failed: %w", err)
	}
	defer rows.Close()

	chats := make([]Chat, 0, limit)
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.RecipientID, &chat.ServiceName, &chat.RoomName, &chat.DisplayName); err != nil {
			return nil, fmt.Errorf("messages: scanning sqlite row failed: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: iterating sqlite rows failed: %w", err)
	}
	return chats, nil
}
