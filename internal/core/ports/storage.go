package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// PendingStore keeps at most one action awaiting confirmation per conversation.
// Set, Clear and Consume finish once started even if ctx is cancelled.
type PendingStore interface {
	// Get returns the pending item, or nil when absent. Expired or malformed
	// records are deleted as a side effect.
	Get(ctx context.Context, conversationID string, now time.Time) (*domain.PendingItem, error)

	// Set overwrites any pending item for the conversation.
	Set(ctx context.Context, conversationID string, action domain.Action, now time.Time) error

	// Clear removes the pending item. Clearing an absent item is not an error.
	Clear(ctx context.Context, conversationID string) error

	// Consume returns the pending item and removes it.
	Consume(ctx context.Context, conversationID string, now time.Time) (*domain.PendingItem, error)

	// Sweep deletes every expired record and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore is the bounded per-conversation log of recent turns. Append
// finishes once started even if ctx is cancelled.
type MemoryStore interface {
	// LoadRecent returns the messages of the trailing time window, oldest
	// first, truncated to the configured message cap.
	LoadRecent(ctx context.Context, conversationID string, now time.Time) ([]domain.MemoryMessage, error)

	// Append writes msg and prunes the log to the configured bounds.
	Append(ctx context.Context, conversationID string, msg domain.MemoryMessage, now time.Time) error
}

// Closer is implemented by backends holding connections or handles.
type Closer interface {
	Close() error
}
