package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthenticated    = errors.New("caller identity could not be resolved")
	ErrForbidden          = errors.New("caller is not allowed to perform this action")
	ErrUserNotFound       = errors.New("user not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrNotAPoll           = errors.New("message is not a poll")
	ErrInvalidOption      = errors.New("poll option index out of range")
	ErrNotOwner           = errors.New("only the author can edit a message")
	ErrReactionNotFound   = errors.New("reaction not found")
	ErrEditWindowExpired  = errors.New("edit window (5 min) has expired")
	ErrEmailExists        = errors.New("email already registered")
	ErrNameExists         = errors.New("display name already taken")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// MutedError rejects a write from a user whose mute has not yet elapsed.
type MutedError struct {
	Until time.Time
}

func (e *MutedError) Error() string {
	return fmt.Sprintf("you are temporarily muted until %s", e.Until.Format(time.RFC3339))
}

// ContentRejectedError rejects a write that tripped the moderation filter.
// The mute it reports has already been applied to the author.
type ContentRejectedError struct {
	MuteMinutes int
}

func (e *ContentRejectedError) Error() string {
	return fmt.Sprintf("content blocked, you are muted for %d minutes", e.MuteMinutes)
}
