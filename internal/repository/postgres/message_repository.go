package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"shadownet-chat/internal/domain"
)

// MessageRepository implements domain.MessageRepository for PostgreSQL.
// Read methods return messages hydrated with reactions, ballots and the
// one-level reply preview.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `
	m.id, m.group_id, m.author_id, u.display_name, m.body, m.kind,
	m.reply_to_id, m.expires_at, m.edited, m.poll_question, m.poll_options,
	m.created_at
`

// Create inserts a new message into the database
func (r *MessageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		INSERT INTO messages (group_id, author_id, body, kind, reply_to_id, expires_at, poll_question, poll_options)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		message.GroupID,
		message.AuthorID,
		message.Body,
		message.Kind,
		message.ReplyToID,
		message.ExpiresAt,
		message.PollQuestion,
		pq.Array(message.PollOptions),
	).Scan(&message.ID, &message.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID retrieves a single hydrated message
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.author_id = u.id
		WHERE m.id = $1
	`
	msg, err := r.scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, []*domain.ChatMessage{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListByGroup retrieves a group's messages, oldest first
func (r *MessageRepository) ListByGroup(ctx context.Context, groupID string) ([]*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.author_id = u.id
		WHERE m.group_id = $1
		ORDER BY m.created_at
	`
	return r.queryMessages(ctx, query, groupID)
}

// ListRecent retrieves the newest messages across all groups
func (r *MessageRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.author_id = u.id
		ORDER BY m.created_at DESC
		LIMIT $1
	`
	return r.queryMessages(ctx, query, limit)
}

// UpdateBody replaces a message body and edited flag
func (r *MessageRepository) UpdateBody(ctx context.Context, id, body string, edited bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE messages SET body = $2, edited = $3 WHERE id = $1`,
		id, body, edited)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// Delete removes a message and, via cascade, its reactions and ballots
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *MessageRepository) queryMessages(ctx context.Context, query string, args ...any) ([]*domain.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.ChatMessage, 0)
	for rows.Next() {
		msg, err := r.scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	if err := r.hydrate(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *MessageRepository) scanMessage(row rowScanner) (*domain.ChatMessage, error) {
	msg := &domain.ChatMessage{}
	var replyToID sql.NullString
	var expiresAt sql.NullTime
	var pollQuestion sql.NullString
	err := row.Scan(
		&msg.ID,
		&msg.GroupID,
		&msg.AuthorID,
		&msg.AuthorName,
		&msg.Body,
		&msg.Kind,
		&replyToID,
		&expiresAt,
		&msg.Edited,
		&pollQuestion,
		pq.Array(&msg.PollOptions),
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if replyToID.Valid {
		msg.ReplyToID = &replyToID.String
	}
	if expiresAt.Valid {
		msg.ExpiresAt = &expiresAt.Time
	}
	msg.PollQuestion = pollQuestion.String
	msg.Reactions = []domain.Reaction{}
	msg.Ballots = []domain.PollBallot{}
	return msg, nil
}

// hydrate attaches reactions, ballots and reply previews to a batch of
// messages with one query per concern.
func (r *MessageRepository) hydrate(ctx context.Context, messages []*domain.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]string, 0, len(messages))
	byID := make(map[string]*domain.ChatMessage, len(messages))
	var replyIDs []string
	for _, msg := range messages {
		ids = append(ids, msg.ID)
		byID[msg.ID] = msg
		if msg.ReplyToID != nil {
			replyIDs = append(replyIDs, *msg.ReplyToID)
		}
	}

	if err := r.loadReactions(ctx, ids, byID); err != nil {
		return err
	}
	if err := r.loadBallots(ctx, ids, byID); err != nil {
		return err
	}
	return r.loadReplyPreviews(ctx, replyIDs, messages)
}

func (r *MessageRepository) loadReactions(ctx context.Context, ids []string, byID map[string]*domain.ChatMessage) error {
	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM reactions
		WHERE message_id = ANY($1)
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reaction domain.Reaction
		if err := rows.Scan(&reaction.MessageID, &reaction.UserID, &reaction.Emoji, &reaction.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan reaction: %w", err)
		}
		if msg, ok := byID[reaction.MessageID]; ok {
			msg.Reactions = append(msg.Reactions, reaction)
		}
	}
	return rows.Err()
}

func (r *MessageRepository) loadBallots(ctx context.Context, ids []string, byID map[string]*domain.ChatMessage) error {
	query := `
		SELECT message_id, user_id, option_index, created_at
		FROM poll_ballots
		WHERE message_id = ANY($1)
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query ballots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ballot domain.PollBallot
		if err := rows.Scan(&ballot.MessageID, &ballot.UserID, &ballot.OptionIndex, &ballot.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan ballot: %w", err)
		}
		if msg, ok := byID[ballot.MessageID]; ok {
			msg.Ballots = append(msg.Ballots, ballot)
		}
	}
	return rows.Err()
}

// loadReplyPreviews resolves reply targets one level deep. A target deleted
// since the reply was written simply leaves the preview empty.
func (r *MessageRepository) loadReplyPreviews(ctx context.Context, replyIDs []string, messages []*domain.ChatMessage) error {
	if len(replyIDs) == 0 {
		return nil
	}

	query := `
		SELECT m.id, u.display_name, m.body
		FROM messages m
		JOIN users u ON m.author_id = u.id
		WHERE m.id = ANY($1)
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(replyIDs))
	if err != nil {
		return fmt.Errorf("failed to query reply previews: %w", err)
	}
	defer rows.Close()

	previews := make(map[string]*domain.ReplyPreview)
	for rows.Next() {
		preview := &domain.ReplyPreview{}
		if err := rows.Scan(&preview.ID, &preview.AuthorName, &preview.Body); err != nil {
			return fmt.Errorf("failed to scan reply preview: %w", err)
		}
		previews[preview.ID] = preview
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, msg := range messages {
		if msg.ReplyToID != nil {
			msg.ReplyTo = previews[*msg.ReplyToID]
		}
	}
	return nil
}
