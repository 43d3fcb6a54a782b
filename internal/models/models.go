package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                 uuid.UUID `json:"user_id"`
	NormalizedUsername string    `json:"-"`
	DisplayUsername    string    `json:"username"`
	PasswordHash       string    `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
}

// NormalizeUsername folds a username to its canonical form used for
// uniqueness checks and login lookups.
func NormalizeUsername(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

type Session struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsActive   bool      `json:"is_active"`
	DeviceInfo string    `json:"device_info,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
}

// Usable reports whether the session is accepted for authentication at the
// given instant. Expiry is enforced here lazily; expired rows are never swept.
func (s *Session) Usable(now time.Time) bool {
	return s.IsActive && now.UTC().Before(s.ExpiresAt.UTC())
}

type UserSettings struct {
	UserID               uuid.UUID `json:"-"`
	MaxSessions          int       `json:"max_sessions"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
}

const (
	DefaultMaxSessions = 2
	MinMaxSessions     = 1
	MaxMaxSessions     = 10
)

// ClampMaxSessions bounds the concurrent-session cap to its allowed range.
func ClampMaxSessions(n int) int {
	if n < MinMaxSessions {
		return MinMaxSessions
	}
	if n > MaxMaxSessions {
		return MaxMaxSessions
	}
	return n
}

type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

type MemberRole string

// RoleMember is the only role private chats assign; the schema's role column
// leaves room for richer group-chat roles.
const RoleMember MemberRole = "member"

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

type Chat struct {
	ID        uuid.UUID `json:"chat_id"`
	Type      ChatType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID             uuid.UUID     `json:"message_id"`
	ChatID         uuid.UUID     `json:"chat_id"`
	SenderID       uuid.UUID     `json:"sender_id"`
	SenderDeviceID uuid.UUID     `json:"sender_device_id"`
	Payload        string        `json:"payload"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      *time.Time    `json:"updated_at"`
	Status         MessageStatus `json:"status"`
}

// MessageView is a persisted message joined with display names for the UI:
// the sender's name plus the names of every other chat member.
type MessageView struct {
	Message
	SenderUsername    string   `json:"sender_username"`
	ReceiverIDs       []string `json:"receiver_id,omitempty"`
	ReceiverUsernames []string `json:"receiver_username,omitempty"`
}
