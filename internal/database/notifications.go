package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/murmurnet/murmur/internal/models"
)

// CreateNotification persists a notification, assigning its id.
func (d *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.ID = uuid.New()
	err := d.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, recipient_id, sender_id, post_id, type, message)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		n.ID, n.RecipientID, n.SenderID, n.PostID, n.Type, n.Message).
		Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the recipient's notifications, newest first,
// with the sender's display name joined in.
func (d *DB) ListNotifications(ctx context.Context, recipientID uuid.UUID) ([]*models.Notification, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT n.id, n.recipient_id, n.sender_id, u.name, n.post_id, n.type, n.message, n.read, n.created_at
		 FROM notifications n
		 JOIN users u ON u.id = n.sender_id
		 WHERE n.recipient_id = $1
		 ORDER BY n.created_at DESC`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.SenderName, &n.PostID,
			&n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnread returns the recipient's unread notification count.
func (d *DB) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var count int
	err := d.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE`,
		recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkAllRead flips every unread notification for the recipient. Read only
// ever transitions false -> true.
func (d *DB) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND read = FALSE`,
		recipientID)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// ClearNotifications deletes every notification for the recipient.
func (d *DB) ClearNotifications(ctx context.Context, recipientID uuid.UUID) error {
	_, err := d.pool.Exec(ctx,
		`DELETE FROM notifications WHERE recipient_id = $1`, recipientID)
	if err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}

// HasUnreadLike reports whether an unread like notification from sender for
// the given post already exists; used to suppress duplicates across
// like/unlike cycles.
func (d *DB) HasUnreadLike(ctx context.Context, recipientID, senderID, postID uuid.UUID) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE recipient_id = $1 AND sender_id = $2 AND post_id = $3
			  AND type = $4 AND read = FALSE)`,
		recipientID, senderID, postID, models.NotificationLike).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check unread like: %w", err)
	}
	return exists, nil
}

// UpsertVerification stores a fresh OTP hash for the email, replacing any
// previous code.
func (d *DB) UpsertVerification(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO email_verifications (email, code_hash, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET code_hash = $2, expires_at = $3`,
		email, codeHash, expiresAt)
	if err != nil {
		return fmt.Errorf("upsert verification: %w", err)
	}
	return nil
}

// GetVerification returns the pending OTP record for the email, or
// (nil, nil) when none exists. Expired rows are purged and reported absent.
func (d *DB) GetVerification(ctx context.Context, email string, now time.Time) (*models.EmailVerification, error) {
	v := &models.EmailVerification{}
	err := d.pool.QueryRow(ctx,
		`SELECT email, code_hash, expires_at FROM email_verifications WHERE email = $1`,
		email).Scan(&v.Email, &v.CodeHash, &v.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan verification: %w", err)
	}
	if now.After(v.ExpiresAt) {
		_ = d.DeleteVerification(ctx, email)
		return nil, nil
	}
	return v, nil
}

// DeleteVerification consumes the OTP record.
func (d *DB) DeleteVerification(ctx context.Context, email string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM email_verifications WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	return nil
}
