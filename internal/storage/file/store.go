// Package file stores pending confirmations and conversation memory as plain
// files under a root directory: pending/<id>.json holds one record and
// memory/<id>.ndjson holds one message per line.
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/storage"
)

const (
	pendingDir = "pending"
	memoryDir  = "memory"
)

// Store is a file-backed PendingStore and MemoryStore.
type Store struct {
	root string
	opts storage.Options
}

var (
	_ ports.PendingStore = (*Store)(nil)
	_ ports.MemoryStore  = (*Store)(nil)
)

// New creates the directory layout under root.
func New(root string, opts storage.Options) (*Store, error) {
	for _, dir := range []string{pendingDir, memoryDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	return &Store{root: root, opts: opts.WithDefaults()}, nil
}

func (s *Store) pendingPath(conversationID string) string {
	return filepath.Join(s.root, pendingDir, storage.SafeName(conversationID)+".json")
}

func (s *Store) memoryPath(conversationID string) string {
	return filepath.Join(s.root, memoryDir, storage.SafeName(conversationID)+".ndjson")
}

// readPending returns nil for a missing file. A record that does not decode
// is removed and reported as missing.
func readPending(path string) (*domain.PendingItem, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending record: %w", err)
	}

	var item domain.PendingItem
	if err := json.Unmarshal(data, &item); err != nil {
		if err := removeIfExists(path); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &item, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeAtomic replaces path through a temporary file in the same directory.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, conversationID string, now time.Time) (*domain.PendingItem, error) {
	path := s.pendingPath(conversationID)
	item, err := readPending(path)
	if err != nil || item == nil {
		return nil, err
	}
	if item.Expired(now) {
		return nil, removeIfExists(path)
	}
	return item, nil
}

func (s *Store) Set(ctx context.Context, conversationID string, action domain.Action, now time.Time) error {
	data, err := json.Marshal(storage.NewPendingItem(action, now, s.opts.PendingTTL))
	if err != nil {
		return fmt.Errorf("failed to encode pending record: %w", err)
	}
	return writeAtomic(s.pendingPath(conversationID), data)
}

func (s *Store) Clear(ctx context.Context, conversationID string) error {
	return removeIfExists(s.pendingPath(conversationID))
}

// Consume reads the record and removes it. When two callers race, only the
// one whose remove succeeds gets the item.
func (s *Store) Consume(ctx context.Context, conversationID string, now time.Time) (*domain.PendingItem, error) {
	path := s.pendingPath(conversationID)
	item, err := s.Get(ctx, conversationID, now)
	if err != nil || item == nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to remove pending record: %w", err)
	}
	return item, nil
}

func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, pendingDir))
	if err != nil {
		return 0, fmt.Errorf("failed to list pending records: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		path := filepath.Join(s.root, pendingDir, e.Name())
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to read pending record: %w", err)
		}

		var item domain.PendingItem
		if err := json.Unmarshal(data, &item); err == nil && !item.Expired(now) {
			continue
		}
		if err := removeIfExists(path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// readMessages decodes every well-formed line of the log.
func readMessages(path string) ([]domain.MemoryMessage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read memory log: %w", err)
	}

	var msgs []domain.MemoryMessage
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var m domain.MemoryMessage
		if err := json.Unmarshal(line, &m); err != nil || !m.Valid() {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan memory log: %w", err)
	}
	return msgs, nil
}

func (s *Store) LoadRecent(ctx context.Context, conversationID string, now time.Time) ([]domain.MemoryMessage, error) {
	msgs, err := readMessages(s.memoryPath(conversationID))
	if err != nil {
		return nil, err
	}
	return storage.PruneMessages(msgs, now, s.opts.MemoryTTL, s.opts.MaxMessages), nil
}

// Append writes msg to the end of the log first, then rewrites the log
// pruned to the configured bounds.
func (s *Store) Append(ctx context.Context, conversationID string, msg domain.MemoryMessage, now time.Time) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode memory message: %w", err)
	}

	path := s.memoryPath(conversationID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open memory log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to append memory message: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close memory log: %w", err)
	}

	msgs, err := readMessages(path)
	if err != nil {
		return err
	}
	kept := storage.PruneMessages(msgs, now, s.opts.MemoryTTL, s.opts.MaxMessages)

	var buf bytes.Buffer
	for _, m := range kept {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode memory message: %w", err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return writeAtomic(path, buf.Bytes())
}

func (s *Store) Close() error {
	return nil
}
