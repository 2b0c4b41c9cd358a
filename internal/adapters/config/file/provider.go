// Package file provides file-based configuration with hot-reload.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/tjfontaine/jarvis/internal/pkg/config"
)

// Provider loads the config file and keeps the entity alias map current as
// the file changes. Other settings take effect on restart.
type Provider struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	mu      sync.RWMutex
	current *config.Config
	aliases atomic.Pointer[map[string]string]
}

// NewProvider creates a new file-based config provider.
func NewProvider(path string, logger *slog.Logger) (*Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		path:   path,
		logger: logger,
	}
	empty := map[string]string{}
	p.aliases.Store(&empty)
	return p, nil
}

// Load loads the configuration from the file.
func (p *Provider) Load(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(p.path)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", p.path, err)
	}
	p.swap(cfg)
	p.logger.InfoContext(ctx, "config loaded",
		slog.String("path", p.path),
		slog.Int("aliases", len(cfg.HomeAssistant.Aliases)))
	return cfg, nil
}

// Current returns the last loaded configuration.
func (p *Provider) Current() *config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Aliases returns the current alias map. The map is replaced, never
// mutated, on reload.
func (p *Provider) Aliases() map[string]string {
	return *p.aliases.Load()
}

func (p *Provider) swap(cfg *config.Config) {
	aliases := maps.Clone(cfg.HomeAssistant.Aliases)
	if aliases == nil {
		aliases = map[string]string{}
	}

	p.mu.Lock()
	p.current = cfg
	p.mu.Unlock()
	p.aliases.Store(&aliases)
}

// Watch reloads the file whenever it is written or replaced and then calls
// onChange, which may be nil. The config directory is watched so editors that
// save by rename are seen.
func (p *Provider) Watch(ctx context.Context, onChange func(*config.Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	p.mu.Lock()
	p.watcher = watcher
	p.mu.Unlock()

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	p.logger.Info("watching config file for changes", slog.String("path", p.path))
	target := filepath.Clean(p.path)

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("config watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				p.logger.Info("config file changed, reloading", slog.String("path", event.Name))

				cfg, err := config.Load(p.path)
				if err != nil {
					p.logger.Error("failed to reload config",
						slog.String("error", err.Error()),
						slog.String("path", p.path))
					continue
				}
				p.swap(cfg)

				if onChange != nil {
					onChange(cfg)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Error("config watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

// Close stops watching the config file.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watcher != nil {
		return p.watcher.Close()
	}

	return nil
}
