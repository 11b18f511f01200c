package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/murmurnet/murmur/internal/models"
)

// pairKey normalizes a 1:1 participant pair so the same two users always map
// to the same key, regardless of who initiates. Backed by a unique index, it
// makes direct-chat creation race-free.
func pairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if strings.Compare(x, y) > 0 {
		x, y = y, x
	}
	return x + ":" + y
}

// CreateDirectChat returns the 1:1 chat between the two users, creating it
// if it does not exist. Concurrent callers converge on the same row.
func (d *DB) CreateDirectChat(ctx context.Context, a, b uuid.UUID) (*models.Chat, error) {
	if a == b {
		return nil, fmt.Errorf("chat requires two distinct participants")
	}
	key := pairKey(a, b)

	id := uuid.New()
	tag, err := d.pool.Exec(ctx,
		`INSERT INTO chats (id, pair_key) VALUES ($1, $2) ON CONFLICT (pair_key) DO NOTHING`,
		id, key)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	if tag.RowsAffected() > 0 {
		if _, err := d.pool.Exec(ctx,
			`INSERT INTO chat_users (chat_id, user_id) VALUES ($1, $2), ($1, $3)`, id, a, b); err != nil {
			return nil, fmt.Errorf("insert chat users: %w", err)
		}
	}

	var existing uuid.UUID
	if err := d.pool.QueryRow(ctx, `SELECT id FROM chats WHERE pair_key = $1`, key).Scan(&existing); err != nil {
		return nil, fmt.Errorf("lookup chat: %w", err)
	}
	return d.GetChatByID(ctx, existing)
}

// CreateGroupChat creates a named chat containing the creator and members.
func (d *DB) CreateGroupChat(ctx context.Context, name string, creatorID uuid.UUID, memberIDs []uuid.UUID) (*models.Chat, error) {
	id := uuid.New()
	if _, err := d.pool.Exec(ctx,
		`INSERT INTO chats (id, name, is_group) VALUES ($1, $2, TRUE)`, id, name); err != nil {
		return nil, fmt.Errorf("insert group chat: %w", err)
	}

	seen := map[uuid.UUID]bool{creatorID: true}
	members := []uuid.UUID{creatorID}
	for _, m := range memberIDs {
		if !seen[m] {
			seen[m] = true
			members = append(members, m)
		}
	}
	for _, m := range members {
		if _, err := d.pool.Exec(ctx,
			`INSERT INTO chat_users (chat_id, user_id) VALUES ($1, $2)`, id, m); err != nil {
			return nil, fmt.Errorf("insert chat user: %w", err)
		}
	}
	return d.GetChatByID(ctx, id)
}

// GetChatByID loads a chat with its participant set and latest message, or
// (nil, nil) when no row exists.
func (d *DB) GetChatByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	chat := &models.Chat{}
	var latestID *uuid.UUID
	err := d.pool.QueryRow(ctx,
		`SELECT id, name, is_group, latest_message_id, created_at FROM chats WHERE id = $1`, id).
		Scan(&chat.ID, &chat.Name, &chat.IsGroup, &latestID, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan chat: %w", err)
	}

	rows, err := d.pool.Query(ctx, `SELECT user_id FROM chat_users WHERE chat_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query chat users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan chat user: %w", err)
		}
		chat.Users = append(chat.Users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if latestID != nil {
		chat.LatestMessage, err = d.GetMessageByID(ctx, *latestID)
		if err != nil {
			return nil, err
		}
	}
	return chat, nil
}

// ListChatsForUser returns the caller's chats ordered by latest activity.
func (d *DB) ListChatsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Chat, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT c.id FROM chats c
		 JOIN chat_users cu ON cu.chat_id = c.id AND cu.user_id = $1
		 LEFT JOIN messages m ON m.id = c.latest_message_id
		 ORDER BY coalesce(m.created_at, c.created_at) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var chats []*models.Chat
	for _, id := range ids {
		chat, err := d.GetChatByID(ctx, id)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// IsChatMember reports whether userID participates in the chat.
func (d *DB) IsChatMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	var member bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM chat_users WHERE chat_id = $1 AND user_id = $2)`,
		chatID, userID).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("check chat membership: %w", err)
	}
	return member, nil
}

// CreateMessage inserts a message and points the chat's latest-message
// reference at it.
func (d *DB) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = uuid.New()
	err := d.pool.QueryRow(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, text, attachment, attachment_mime, attachment_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		msg.ID, msg.ChatID, msg.SenderID, msg.Text, msg.Attachment, msg.AttachmentMIME, msg.AttachmentName).
		Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err := d.pool.Exec(ctx,
		`UPDATE chats SET latest_message_id = $2 WHERE id = $1`, msg.ChatID, msg.ID); err != nil {
		return fmt.Errorf("update latest message: %w", err)
	}
	return nil
}

// GetMessageByID returns the message or (nil, nil) when no row exists.
func (d *DB) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	err := d.pool.QueryRow(ctx,
		`SELECT id, chat_id, sender_id, text, attachment, attachment_mime, attachment_name, created_at
		 FROM messages WHERE id = $1`, id).
		Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Text, &msg.Attachment,
			&msg.AttachmentMIME, &msg.AttachmentName, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a chat's history in send order.
func (d *DB) ListMessages(ctx context.Context, chatID uuid.UUID) ([]*models.Message, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, chat_id, sender_id, text, attachment, attachment_mime, attachment_name, created_at
		 FROM messages WHERE chat_id = $1 ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Text, &msg.Attachment,
			&msg.AttachmentMIME, &msg.AttachmentName, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// DeleteMessage removes a message and clears the chat's latest-message
// reference when it pointed at the deleted row.
func (d *DB) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	if _, err := d.pool.Exec(ctx,
		`UPDATE chats SET latest_message_id = NULL WHERE latest_message_id = $1`, id); err != nil {
		return fmt.Errorf("clear latest message: %w", err)
	}
	if _, err := d.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
