package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shadownet-chat/internal/domain"
	"shadownet-chat/internal/observability"
)

const (
	// editWindow bounds how long after creation a message may be edited.
	editWindow = 5 * time.Minute

	// redactedBody replaces expired message bodies on the read path. The
	// stored body is never touched.
	redactedBody = "👻 [Message Expired]"

	maxBodyLen = 2000
)

// TermFilter is the moderation gate consulted on every chat write.
type TermFilter interface {
	Evaluate(text string) int
}

// ChatService owns the chat write pipeline plus the poll, reaction and edit
// subsystems.
type ChatService struct {
	userRepo     domain.UserRepository
	groupRepo    domain.GroupRepository
	messageRepo  domain.MessageRepository
	reactionRepo domain.ReactionRepository
	ballotRepo   domain.BallotRepository
	historyRepo  domain.EditHistoryRepository
	filter       TermFilter
}

func NewChatService(
	userRepo domain.UserRepository,
	groupRepo domain.GroupRepository,
	messageRepo domain.MessageRepository,
	reactionRepo domain.ReactionRepository,
	ballotRepo domain.BallotRepository,
	historyRepo domain.EditHistoryRepository,
	filter TermFilter,
) *ChatService {
	return &ChatService{
		userRepo:     userRepo,
		groupRepo:    groupRepo,
		messageRepo:  messageRepo,
		reactionRepo: reactionRepo,
		ballotRepo:   ballotRepo,
		historyRepo:  historyRepo,
		filter:       filter,
	}
}

// SubmitInput carries one chat-send request through the write pipeline.
type SubmitInput struct {
	GroupID          string
	Body             string
	Kind             domain.MessageKind
	ReplyToID        string
	ExpiresInMinutes int
	PollQuestion     string
	PollOptions      []string
}

// Submit runs the write pipeline: author resolution, mute check, moderation,
// group lookup, message construction (polls, commands), expiry, reply
// resolution, persistence. Each step short-circuits on failure.
//
// Two concurrent sends from a not-yet-muted user can both pass the mute check
// before either applies a ban; that race is accepted and not closed here.
func (s *ChatService) Submit(ctx context.Context, authorID string, in SubmitInput) (*domain.ChatMessage, error) {
	author, err := s.userRepo.GetByID(ctx, authorID)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}

	now := time.Now()
	if author.Muted(now) {
		return nil, &domain.MutedError{Until: *author.MutedUntil}
	}

	// Moderation covers the body and, for polls, the question. On a hit the
	// mute is persisted immediately even though no message is created.
	minutes := s.filter.Evaluate(in.Body)
	if m := s.filter.Evaluate(in.PollQuestion); m > minutes {
		minutes = m
	}
	if minutes > 0 {
		until := now.Add(time.Duration(minutes) * time.Minute)
		if err := s.userRepo.SetMutedUntil(ctx, author.ID, until); err != nil {
			return nil, fmt.Errorf("failed to apply mute: %w", err)
		}
		observability.ModerationMutesApplied.Inc()
		return nil, &domain.ContentRejectedError{MuteMinutes: minutes}
	}

	group, err := s.groupRepo.GetByID(ctx, in.GroupID)
	if err != nil {
		return nil, domain.ErrGroupNotFound
	}

	msg := &domain.ChatMessage{
		GroupID:    group.ID,
		AuthorID:   author.ID,
		AuthorName: author.DisplayName,
		Body:       in.Body,
		Kind:       in.Kind,
	}

	switch in.Kind {
	case domain.KindPoll:
		if in.PollQuestion == "" || len(in.PollOptions) < 2 {
			return nil, domain.ErrInvalidInput
		}
		msg.PollQuestion = in.PollQuestion
		msg.PollOptions = in.PollOptions
		msg.Body = "[POLL] " + in.PollQuestion
	case domain.KindText:
		if response, ok := RunCommand(in.Body, author.DisplayName); ok {
			msg.Body = response
			msg.Kind = domain.KindSystem
		}
	}

	if len(msg.Body) == 0 || len(msg.Body) > maxBodyLen {
		return nil, domain.ErrInvalidInput
	}

	if in.ExpiresInMinutes > 0 {
		expiresAt := now.Add(time.Duration(in.ExpiresInMinutes) * time.Minute)
		msg.ExpiresAt = &expiresAt
	}

	// A dangling or cross-group reply target drops the link, never the send.
	if in.ReplyToID != "" {
		if target, err := s.messageRepo.GetByID(ctx, in.ReplyToID); err == nil && target.GroupID == group.ID {
			msg.ReplyToID = &target.ID
			msg.ReplyTo = &domain.ReplyPreview{
				ID:         target.ID,
				AuthorName: target.AuthorName,
				Body:       target.Body,
			}
		}
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a group's messages in creation order. Expired bodies
// are redacted on the returned copies unless the caller is a moderator; the
// stored bodies stay intact.
func (s *ChatService) ListMessages(ctx context.Context, groupID, callerID string) ([]*domain.ChatMessage, error) {
	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}

	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, domain.ErrGroupNotFound
	}

	messages, err := s.messageRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	if caller.Moderator() {
		return messages, nil
	}

	now := time.Now()
	out := make([]*domain.ChatMessage, len(messages))
	for i, msg := range messages {
		if msg.Expired(now) {
			redacted := msg.Clone()
			redacted.Body = redactedBody
			out[i] = redacted
			continue
		}
		out[i] = msg
	}
	return out, nil
}

// Edit replaces a message body within the edit window, logging the prior
// body to the append-only history first.
func (s *ChatService) Edit(ctx context.Context, messageID, userID, newBody string) (*domain.ChatMessage, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, domain.ErrMessageNotFound
	}

	if msg.AuthorID != userID {
		return nil, domain.ErrNotOwner
	}

	now := time.Now()
	if now.After(msg.CreatedAt.Add(editWindow)) {
		return nil, domain.ErrEditWindowExpired
	}

	if len(newBody) == 0 || len(newBody) > maxBodyLen {
		return nil, domain.ErrInvalidInput
	}

	entry := &domain.EditHistoryEntry{
		MessageID: msg.ID,
		OldBody:   msg.Body,
		EditedAt:  now,
	}
	if err := s.historyRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record edit history: %w", err)
	}

	if err := s.messageRepo.UpdateBody(ctx, msg.ID, newBody, true); err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}

	return s.messageRepo.GetByID(ctx, msg.ID)
}

// EditHistory returns the append-only log of prior bodies for a message.
func (s *ChatService) EditHistory(ctx context.Context, messageID string) ([]*domain.EditHistoryEntry, error) {
	if _, err := s.messageRepo.GetByID(ctx, messageID); err != nil {
		return nil, domain.ErrMessageNotFound
	}
	return s.historyRepo.ListByMessage(ctx, messageID)
}

// Vote records a user's poll ballot, overwriting any previous one
// (last-vote-wins), and returns the refreshed message.
func (s *ChatService) Vote(ctx context.Context, messageID, userID string, optionIndex int) (*domain.ChatMessage, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, domain.ErrMessageNotFound
	}

	if msg.Kind != domain.KindPoll {
		return nil, domain.ErrNotAPoll
	}
	if optionIndex < 0 || optionIndex >= len(msg.PollOptions) {
		return nil, domain.ErrInvalidOption
	}

	ballot := &domain.PollBallot{
		MessageID:   msg.ID,
		UserID:      userID,
		OptionIndex: optionIndex,
	}
	if err := s.ballotRepo.Upsert(ctx, ballot); err != nil {
		return nil, fmt.Errorf("failed to record ballot: %w", err)
	}

	return s.messageRepo.GetByID(ctx, msg.ID)
}

// React toggles or replaces a user's single emoji reaction on a message:
// same emoji removes it, a different one replaces it, none inserts it. The
// refreshed message is returned.
func (s *ChatService) React(ctx context.Context, messageID, userID, emoji string) (*domain.ChatMessage, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, domain.ErrMessageNotFound
	}
	if emoji == "" {
		return nil, domain.ErrInvalidInput
	}

	existing, err := s.reactionRepo.Get(ctx, msg.ID, userID)
	switch {
	case err == nil && existing.Emoji == emoji:
		if err := s.reactionRepo.Delete(ctx, msg.ID, userID); err != nil {
			return nil, fmt.Errorf("failed to remove reaction: %w", err)
		}
	case err == nil || errors.Is(err, domain.ErrReactionNotFound):
		reaction := &domain.Reaction{
			MessageID: msg.ID,
			UserID:    userID,
			Emoji:     emoji,
		}
		if err := s.reactionRepo.Upsert(ctx, reaction); err != nil {
			return nil, fmt.Errorf("failed to save reaction: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up reaction: %w", err)
	}

	return s.messageRepo.GetByID(ctx, msg.ID)
}

// DeleteMessage removes a message outright. Moderator-only; role is checked
// at the transport layer.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID string) error {
	if _, err := s.messageRepo.GetByID(ctx, messageID); err != nil {
		return domain.ErrMessageNotFound
	}
	return s.messageRepo.Delete(ctx, messageID)
}

// RecentMessages returns the newest messages across all groups, unredacted.
// Moderator-only inspection feed.
func (s *ChatService) RecentMessages(ctx context.Context, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	return s.messageRepo.ListRecent(ctx, limit)
}
