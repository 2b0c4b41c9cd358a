// Package storage holds what the pending-confirmation and conversation memory
// backends share: bounds, key sanitizing and pruning.
package storage

import (
	"strings"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/domain"
)

const (
	DefaultPendingTTL  = 2 * time.Minute
	DefaultMemoryTTL   = 24 * time.Hour
	DefaultMaxMessages = 40

	maxSafeNameLen = 120
)

// Options bounds what a backend keeps.
type Options struct {
	// PendingTTL is how long a pending confirmation stays answerable.
	PendingTTL time.Duration

	// MemoryTTL is the trailing window of conversation memory.
	MemoryTTL time.Duration

	// MaxMessages caps the memory log of one conversation.
	MaxMessages int
}

// WithDefaults fills unset bounds.
func (o Options) WithDefaults() Options {
	if o.PendingTTL <= 0 {
		o.PendingTTL = DefaultPendingTTL
	}
	if o.MemoryTTL <= 0 {
		o.MemoryTTL = DefaultMemoryTTL
	}
	if o.MaxMessages <= 0 {
		o.MaxMessages = DefaultMaxMessages
	}
	return o
}

// SafeName maps a conversation id onto a string usable as a file name or key
// suffix: lower-cased, runs of characters outside [a-z0-9._-] replaced by a
// single underscore, capped at 120 bytes.
func SafeName(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))

	var b strings.Builder
	b.Grow(len(s))
	replaced := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
			replaced = false
			continue
		}
		if !replaced {
			b.WriteByte('_')
			replaced = true
		}
	}

	out := b.String()
	if len(out) > maxSafeNameLen {
		out = out[:maxSafeNameLen]
	}
	if out == "" || out == "." || out == ".." {
		return domain.DefaultConversationID
	}
	return out
}

// PruneMessages keeps the valid messages newer than now-ttl, then the last
// max of those. Order is preserved.
func PruneMessages(msgs []domain.MemoryMessage, now time.Time, ttl time.Duration, max int) []domain.MemoryMessage {
	cutoff := now.Add(-ttl)

	kept := make([]domain.MemoryMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.Valid() || m.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, m)
	}
	if max > 0 && len(kept) > max {
		kept = kept[len(kept)-max:]
	}
	return kept
}

// NewPendingItem builds the record Set stores.
func NewPendingItem(action domain.Action, now time.Time, ttl time.Duration) domain.PendingItem {
	return domain.PendingItem{
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Action:    action,
	}
}
