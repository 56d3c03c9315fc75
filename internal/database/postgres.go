package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/umar/familychat/internal/models"
)

func InitDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Postgres implements Store on top of database/sql and lib/pq.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// --- Room ---

func (p *Postgres) RoomMessages(ctx context.Context) ([]models.RoomMessage, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, username, text, created_at FROM room_messages ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get room messages: %w", err)
	}
	defer rows.Close()

	messages := []models.RoomMessage{}
	for rows.Next() {
		var m models.RoomMessage
		if err := rows.Scan(&m.ID, &m.Username, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (p *Postgres) CreateRoomMessage(ctx context.Context, username, text string) (*models.RoomMessage, error) {
	var m models.RoomMessage
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO room_messages (username, text) VALUES ($1, $2)
		 RETURNING id, username, text, created_at`,
		username, text,
	).Scan(&m.ID, &m.Username, &m.Text, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create room message: %w", err)
	}
	return &m, nil
}

// --- Conversations ---

const conversationColumns = `id, participant1, participant2, created_at, updated_at`

func scanConversation(row interface{ Scan(...any) error }) (*models.Conversation, error) {
	var c models.Conversation
	if err := row.Scan(&c.ID, &c.Participant1, &c.Participant2, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *Postgres) ConversationsFor(ctx context.Context, participant string) ([]models.Conversation, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE participant1 = $1 OR participant2 = $1
		 ORDER BY updated_at DESC`,
		participant,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

func (p *Postgres) TouchConversation(ctx context.Context, conversationID string, at time.Time) (*models.Conversation, error) {
	c, err := scanConversation(p.db.QueryRowContext(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2
		 RETURNING `+conversationColumns,
		at, conversationID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}
	return c, nil
}

// GetOrCreateConversation calls the get_or_create_conversation procedure,
// which owns the one-conversation-per-pair invariant.
func (p *Postgres) GetOrCreateConversation(ctx context.Context, user1, user2 string) (*models.Conversation, bool, error) {
	var (
		id      string
		created bool
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT conversation_id, created FROM get_or_create_conversation($1, $2)`,
		user1, user2,
	).Scan(&id, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create conversation: %w", err)
	}

	c, err := scanConversation(p.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load conversation: %w", err)
	}
	return c, created, nil
}

// --- Messages ---

const messageColumns = `id, conversation_id, sender, text, created_at, deleted_at`

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	var (
		m         models.Message
		deletedAt sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Text, &m.CreatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		m.DeletedAt = &t
	}
	return &m, nil
}

func (p *Postgres) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// LastMessage returns the newest undeleted message, or nil when the
// conversation has none.
func (p *Postgres) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	m, err := scanMessage(p.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`,
		conversationID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last message: %w", err)
	}
	return m, nil
}

func (p *Postgres) CreateMessage(ctx context.Context, conversationID, sender, text string) (*models.Message, error) {
	m, err := scanMessage(p.db.QueryRowContext(ctx,
		`INSERT INTO messages (conversation_id, sender, text) VALUES ($1, $2, $3)
		 RETURNING `+messageColumns,
		conversationID, sender, text,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return m, nil
}

// SoftDeleteMessage marks one of sender's messages as deleted. Messages
// that belong to someone else or are already deleted yield ErrNotFound.
func (p *Postgres) SoftDeleteMessage(ctx context.Context, messageID, sender string, at time.Time) (*models.Message, error) {
	m, err := scanMessage(p.db.QueryRowContext(ctx,
		`UPDATE messages SET deleted_at = $1
		 WHERE id = $2 AND sender = $3 AND deleted_at IS NULL
		 RETURNING `+messageColumns,
		at, messageID, sender,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete message: %w", err)
	}
	return m, nil
}
