package domain

import (
	"context"
	"time"
)

// MessageKind classifies a chat message.
type MessageKind string

const (
	KindText   MessageKind = "TEXT"
	KindPoll   MessageKind = "POLL"
	KindImage  MessageKind = "IMAGE"
	KindSystem MessageKind = "SYSTEM"
)

// ParseMessageKind maps a wire string to a MessageKind, defaulting to TEXT.
func ParseMessageKind(s string) MessageKind {
	switch MessageKind(s) {
	case KindPoll, KindImage, KindSystem:
		return MessageKind(s)
	default:
		return KindText
	}
}

// ChatMessage is a message in a group's live chat. CreatedAt is immutable
// once set; only Body and Edited change after creation (via edits), plus the
// Reactions and Ballots lists via their own subsystems.
type ChatMessage struct {
	ID           string        `json:"id"`
	GroupID      string        `json:"group_id"`
	AuthorID     string        `json:"author_id"`
	AuthorName   string        `json:"author_name"`
	Body         string        `json:"body"`
	Kind         MessageKind   `json:"kind"`
	ReplyToID    *string       `json:"reply_to_id,omitempty"`
	ReplyTo      *ReplyPreview `json:"reply_to,omitempty"`
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
	Edited       bool          `json:"edited"`
	PollQuestion string        `json:"poll_question,omitempty"`
	PollOptions  []string      `json:"poll_options,omitempty"`
	Reactions    []Reaction    `json:"reactions"`
	Ballots      []PollBallot  `json:"ballots"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ReplyPreview is a one-level view of the message being replied to. Reply
// chains are never expanded further than this when serializing.
type ReplyPreview struct {
	ID         string `json:"id"`
	AuthorName string `json:"author_name"`
	Body       string `json:"body"`
}

// Expired reports whether the message's expiry timestamp has passed.
func (m *ChatMessage) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && m.ExpiresAt.Before(now)
}

// Clone returns a shallow copy safe for read-time view transforms such as
// redaction, leaving the stored message untouched.
func (m *ChatMessage) Clone() *ChatMessage {
	cp := *m
	return &cp
}

// Reaction is one user's single emoji reaction to a message. At most one row
// exists per (message, user).
type Reaction struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// PollBallot is one user's recorded poll choice, overwritten on re-vote.
type PollBallot struct {
	MessageID   string    `json:"message_id"`
	UserID      string    `json:"user_id"`
	OptionIndex int       `json:"option_index"`
	CreatedAt   time.Time `json:"created_at"`
}

// EditHistoryEntry snapshots a message body immediately before an edit.
// Entries are append-only.
type EditHistoryEntry struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	OldBody   string    `json:"old_body"`
	EditedAt  time.Time `json:"edited_at"`
}

// MessageRepository defines the interface for chat message data access.
// Read methods return messages hydrated with reactions, ballots and the
// one-level reply preview.
type MessageRepository interface {
	Create(ctx context.Context, message *ChatMessage) error
	GetByID(ctx context.Context, id string) (*ChatMessage, error)
	ListByGroup(ctx context.Context, groupID string) ([]*ChatMessage, error)
	ListRecent(ctx context.Context, limit int) ([]*ChatMessage, error)
	UpdateBody(ctx context.Context, id, body string, edited bool) error
	Delete(ctx context.Context, id string) error
}

// ReactionRepository defines the interface for reaction rows.
type ReactionRepository interface {
	Get(ctx context.Context, messageID, userID string) (*Reaction, error)
	Upsert(ctx context.Context, reaction *Reaction) error
	Delete(ctx context.Context, messageID, userID string) error
}

// BallotRepository defines the interface for poll ballot rows.
type BallotRepository interface {
	Upsert(ctx context.Context, ballot *PollBallot) error
}

// EditHistoryRepository defines the interface for the append-only edit log.
type EditHistoryRepository interface {
	Append(ctx context.Context, entry *EditHistoryEntry) error
	ListByMessage(ctx context.Context, messageID string) ([]*EditHistoryEntry, error)
}
