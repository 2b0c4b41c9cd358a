package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/storage"
)

// Store is a SQLite implementation of PendingStore and MemoryStore.
// Timestamps are stored as Unix nanoseconds.
type Store struct {
	db   *sql.DB
	opts storage.Options
}

var (
	_ ports.PendingStore = (*Store)(nil)
	_ ports.MemoryStore  = (*Store)(nil)
)

// New creates a new SQLite store
func New(dbPath string, opts storage.Options) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, opts: opts.WithDefaults()}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pending_actions (
			conversation_id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS memory_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_expires ON pending_actions(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_conversation ON memory_messages(conversation_id, id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// decodePending returns nil when the stored action no longer decodes.
func decodePending(action string, createdAt, expiresAt int64) *domain.PendingItem {
	a, err := domain.UnmarshalAction([]byte(action))
	if err != nil {
		return nil
	}
	return &domain.PendingItem{
		CreatedAt: time.Unix(0, createdAt).UTC(),
		ExpiresAt: time.Unix(0, expiresAt).UTC(),
		Action:    a,
	}
}

func (s *Store) Get(ctx context.Context, conversationID string, now time.Time) (*domain.PendingItem, error) {
	key := storage.SafeName(conversationID)

	var (
		action               string
		createdAt, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT action, created_at, expires_at FROM pending_actions WHERE conversation_id = ?`, key,
	).Scan(&action, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending action: %w", err)
	}

	item := decodePending(action, createdAt, expiresAt)
	if item == nil || item.Expired(now) {
		return nil, s.Clear(ctx, conversationID)
	}
	return item, nil
}

func (s *Store) Set(ctx context.Context, conversationID string, action domain.Action, now time.Time) error {
	encoded, err := domain.MarshalAction(action)
	if err != nil {
		return fmt.Errorf("failed to encode pending action: %w", err)
	}
	item := storage.NewPendingItem(action, now, s.opts.PendingTTL)

	// Writes run to completion once started.
	ctx = context.WithoutCancel(ctx)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_actions (conversation_id, action, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			action = excluded.action,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, storage.SafeName(conversationID), string(encoded), item.CreatedAt.UnixNano(), item.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to set pending action: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(context.WithoutCancel(ctx),
		`DELETE FROM pending_actions WHERE conversation_id = ?`, storage.SafeName(conversationID))
	if err != nil {
		return fmt.Errorf("failed to clear pending action: %w", err)
	}
	return nil
}

// Consume deletes the row and reads it back in one statement.
func (s *Store) Consume(ctx context.Context, conversationID string, now time.Time) (*domain.PendingItem, error) {
	var (
		action               string
		createdAt, expiresAt int64
	)
	err := s.db.QueryRowContext(context.WithoutCancel(ctx),
		`DELETE FROM pending_actions WHERE conversation_id = ? RETURNING action, created_at, expires_at`,
		storage.SafeName(conversationID),
	).Scan(&action, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume pending action: %w", err)
	}

	item := decodePending(action, createdAt, expiresAt)
	if item == nil || item.Expired(now) {
		return nil, nil
	}
	return item, nil
}

func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_actions WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep pending actions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept pending actions: %w", err)
	}
	return int(n), nil
}

func (s *Store) LoadRecent(ctx context.Context, conversationID string, now time.Time) ([]domain.MemoryMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, ts FROM (
			SELECT id, role, content, ts FROM memory_messages
			WHERE conversation_id = ? AND ts >= ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, storage.SafeName(conversationID), now.Add(-s.opts.MemoryTTL).UnixNano(), s.opts.MaxMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}
	defer rows.Close()

	var msgs []domain.MemoryMessage
	for rows.Next() {
		var (
			role, content string
			ts            int64
		)
		if err := rows.Scan(&role, &content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan memory message: %w", err)
		}
		msgs = append(msgs, domain.MemoryMessage{
			Timestamp: time.Unix(0, ts).UTC(),
			Role:      domain.Role(role),
			Content:   content,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memory: %w", err)
	}

	return storage.PruneMessages(msgs, now, s.opts.MemoryTTL, s.opts.MaxMessages), nil
}

// Append inserts msg and prunes the conversation in the same transaction.
// Cancelling ctx does not abort a started append.
func (s *Store) Append(ctx context.Context, conversationID string, msg domain.MemoryMessage, now time.Time) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	key := storage.SafeName(conversationID)
	ctx = context.WithoutCancel(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memory_messages (conversation_id, role, content, ts) VALUES (?, ?, ?, ?)`,
		key, string(msg.Role), msg.Content, msg.Timestamp.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to append memory message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM memory_messages
		WHERE conversation_id = ?
		AND (ts < ? OR id NOT IN (
			SELECT id FROM memory_messages
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		))
	`, key, now.Add(-s.opts.MemoryTTL).UnixNano(), key, s.opts.MaxMessages); err != nil {
		return fmt.Errorf("failed to prune memory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit memory append: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
