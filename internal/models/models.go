// Package models contains the domain types shared by the store, the REST
// handlers, and the realtime subsystem.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
// PasswordHash is never serialized; profile reads carry follower/following
// counts computed from the follow edge table.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Picture      string    `json:"picture,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	DOB          string    `json:"dob,omitempty"`
	Verified     bool      `json:"verified"`
	Followers    int       `json:"followers"`
	Following    int       `json:"following"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Post is a content item owned by its creator. Likes holds the ids of users
// who currently like the post; the set never contains duplicates because it
// is backed by a primary key on (post_id, user_id).
type Post struct {
	ID         uuid.UUID   `json:"id"`
	CreatorID  uuid.UUID   `json:"creatorId"`
	Title      string      `json:"title"`
	Body       string      `json:"body"`
	Tags       []string    `json:"tags,omitempty"`
	Likes      []uuid.UUID `json:"likes"`
	Comments   []*Comment  `json:"comments"`
	ShareCount int         `json:"shareCount"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Comment is attached to exactly one post. AuthorName is a snapshot taken at
// comment time and is not updated when the author later renames.
type Comment struct {
	ID         uuid.UUID   `json:"id"`
	PostID     uuid.UUID   `json:"postId"`
	AuthorID   uuid.UUID   `json:"authorId"`
	AuthorName string      `json:"authorName"`
	Text       string      `json:"text"`
	Likes      []uuid.UUID `json:"likes"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Chat is a conversation between two users (direct) or more (group).
// LatestMessage backs the chat-list ordering.
type Chat struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name,omitempty"`
	IsGroup       bool        `json:"isGroup"`
	Users         []uuid.UUID `json:"users"`
	LatestMessage *Message    `json:"latestMessage,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Message belongs to one chat and one sender. The attachment travels base64
// over the wire and is stored as raw bytes.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ChatID         uuid.UUID `json:"chatId"`
	SenderID       uuid.UUID `json:"senderId"`
	Text           string    `json:"text,omitempty"`
	Attachment     []byte    `json:"attachment,omitempty"`
	AttachmentMIME string    `json:"attachmentMime,omitempty"`
	AttachmentName string    `json:"attachmentName,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NotificationType tags what triggered a notification.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationMessage NotificationType = "message"
)

// Notification is a durable record addressed to one recipient. Read is
// monotonic: once marked true it never reverts.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID uuid.UUID        `json:"recipientId"`
	SenderID    uuid.UUID        `json:"senderId"`
	SenderName  string           `json:"senderName"`
	PostID      *uuid.UUID       `json:"postId,omitempty"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// EmailVerification is a short-lived OTP record keyed by email address.
// Expired records are treated as absent and purged opportunistically.
type EmailVerification struct {
	Email     string
	CodeHash  string
	ExpiresAt time.Time
}
