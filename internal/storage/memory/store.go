package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/storage"
)

// Store is an in-memory implementation of PendingStore and MemoryStore.
// State is lost on restart.
type Store struct {
	opts storage.Options

	mu       sync.RWMutex
	pending  map[string]domain.PendingItem
	messages map[string][]domain.MemoryMessage
}

var (
	_ ports.PendingStore = (*Store)(nil)
	_ ports.MemoryStore  = (*Store)(nil)
)

// New creates a new in-memory store
func New(opts storage.Options) *Store {
	return &Store{
		opts:     opts.WithDefaults(),
		pending:  make(map[string]domain.PendingItem),
		messages: make(map[string][]domain.MemoryMessage),
	}
}

func (s *Store) Get(ctx context.Context, conversationID string, now time.Time) (*domain.PendingItem, error) {
	key := storage.SafeName(conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLocked(key, now), nil
}

func (s *Store) getLocked(key string, now time.Time) *domain.PendingItem {
	item, ok := s.pending[key]
	if !ok {
		return nil
	}
	if item.Expired(now) {
		delete(s.pending, key)
		return nil
	}
	return &item
}

func (s *Store) Set(ctx context.Context, conversationID string, action domain.Action, now time.Time) error {
	key := storage.SafeName(conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[key] = storage.NewPendingItem(action, now, s.opts.PendingTTL)
	return nil
}

func (s *Store) Clear(ctx context.Context, conversationID string) error {
	key := storage.SafeName(conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, key)
	return nil
}

func (s *Store) Consume(ctx context.Context, conversationID string, now time.Time) (*domain.PendingItem, error) {
	key := storage.SafeName(conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.getLocked(key, now)
	delete(s.pending, key)
	return item, nil
}

func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, item := range s.pending {
		if item.Expired(now) {
			delete(s.pending, key)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) LoadRecent(ctx context.Context, conversationID string, now time.Time) ([]domain.MemoryMessage, error) {
	key := storage.SafeName(conversationID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return storage.PruneMessages(s.messages[key], now, s.opts.MemoryTTL, s.opts.MaxMessages), nil
}

func (s *Store) Append(ctx context.Context, conversationID string, msg domain.MemoryMessage, now time.Time) error {
	key := storage.SafeName(conversationID)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.messages[key], msg)
	s.messages[key] = storage.PruneMessages(log, now, s.opts.MemoryTTL, s.opts.MaxMessages)
	return nil
}

func (s *Store) Close() error {
	return nil
}
