package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tjfontaine/jarvis/internal/adapters/config/file"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/pkg/config"
	"github.com/tjfontaine/jarvis/internal/storage"
	filestore "github.com/tjfontaine/jarvis/internal/storage/file"
	"github.com/tjfontaine/jarvis/internal/storage/memory"
	redisstore "github.com/tjfontaine/jarvis/internal/storage/redis"
	"github.com/tjfontaine/jarvis/internal/storage/sqlite"
)

// redisDialTimeout bounds the connectivity check when opening Redis.
const redisDialTimeout = 5 * time.Second

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithFileConfig loads path and watches it; alias and API key edits apply
// without restart.
func WithFileConfig(path string) Option {
	return func(a *App) error {
		provider, err := file.NewProvider(path, a.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		cfg, err := provider.Load(context.Background())
		if err != nil {
			return err
		}
		a.configSource = provider
		a.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		a.cfg = cfg
		return nil
	}
}

// WithFileStorage keeps one JSON file per conversation under dir (default).
func WithFileStorage(dir string) Option {
	return func(a *App) error {
		a.storeFactory = func(opts storage.Options) (Store, error) {
			return filestore.New(dir, opts)
		}
		return nil
	}
}

// WithMemoryStorage keeps state in process; it is lost on restart.
func WithMemoryStorage() Option {
	return func(a *App) error {
		a.storeFactory = func(opts storage.Options) (Store, error) {
			return memory.New(opts), nil
		}
		return nil
	}
}

// WithSQLite uses an embedded SQLite database.
func WithSQLite(path string) Option {
	return func(a *App) error {
		a.storeFactory = func(opts storage.Options) (Store, error) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
			return sqlite.New(path, opts)
		}
		return nil
	}
}

// WithRedis shares state between instances through Redis.
func WithRedis(url, keyPrefix string) Option {
	return func(a *App) error {
		a.storeFactory = func(opts storage.Options) (Store, error) {
			ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
			defer cancel()
			return redisstore.Dial(ctx, url, redisstore.Opts{KeyPrefix: keyPrefix, Storage: opts})
		}
		return nil
	}
}

// WithStorage sets a custom store.
func WithStorage(store Store) Option {
	return func(a *App) error {
		a.storeFactory = func(storage.Options) (Store, error) {
			return store, nil
		}
		return nil
	}
}

// WithHomeAssistant sets a custom controller client.
func WithHomeAssistant(ha ports.HomeAssistant) Option {
	return func(a *App) error {
		a.ha = ha
		return nil
	}
}

// WithChatModel sets a custom language model and enables the fallback.
func WithChatModel(model ports.ChatModel) Option {
	return func(a *App) error {
		a.model = model
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

func storeFromConfig(cfg config.StorageConfig) (func(storage.Options) (Store, error), error) {
	a := &App{}
	var opt Option
	switch cfg.Type {
	case "", "file":
		opt = WithFileStorage(cfg.Dir)
	case "memory":
		opt = WithMemoryStorage()
	case "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = filepath.Join(cfg.Dir, "jarvis.db")
		}
		opt = WithSQLite(path)
	case "redis":
		opt = WithRedis(cfg.Redis.URL, cfg.Redis.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err := opt(a); err != nil {
		return nil, err
	}
	return a.storeFactory, nil
}
