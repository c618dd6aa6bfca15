package domain

import (
	"context"
	"time"
)

// Group is a chat room users subscribe to.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// GroupRepository defines the interface for group data access.
type GroupRepository interface {
	Create(ctx context.Context, group *Group) error
	GetByID(ctx context.Context, id string) (*Group, error)
	List(ctx context.Context) ([]*Group, error)
	Delete(ctx context.Context, id string) error
}
