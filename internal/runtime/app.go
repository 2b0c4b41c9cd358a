// Package runtime assembles the command router, its stores and its HTTP
// server from configuration.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tjfontaine/jarvis/internal/adapters/config/file"
	"github.com/tjfontaine/jarvis/internal/auth"
	"github.com/tjfontaine/jarvis/internal/command"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/fallback"
	"github.com/tjfontaine/jarvis/internal/homeassistant"
	"github.com/tjfontaine/jarvis/internal/janitor"
	"github.com/tjfontaine/jarvis/internal/llm"
	"github.com/tjfontaine/jarvis/internal/pkg/config"
	"github.com/tjfontaine/jarvis/internal/router"
	"github.com/tjfontaine/jarvis/internal/server"
	"github.com/tjfontaine/jarvis/internal/skills"
	"github.com/tjfontaine/jarvis/internal/storage"
	"github.com/tjfontaine/jarvis/internal/tokens"
)

// Store is a backend holding both pending confirmations and memory.
type Store interface {
	ports.PendingStore
	ports.MemoryStore
}

// App is the assembled assistant. It can serve HTTP or handle one-off
// commands.
type App struct {
	// Dependencies (injected via options)
	cfg          *config.Config
	configSource *file.Provider
	storeFactory func(storage.Options) (Store, error)
	store        Store
	ha           ports.HomeAssistant
	model        ports.ChatModel
	logger       *slog.Logger

	// Assembled components
	router        *router.Router
	commands      *command.Service
	authenticator *auth.Authenticator
	janitor       *janitor.Janitor
	server        *server.Server

	closeOnce sync.Once
}

// New assembles an App. Configuration must come from WithFileConfig or
// WithConfig; everything else defaults from it.
func New(opts ...Option) (*App, error) {
	app := &App{logger: slog.Default()}

	// Apply options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if app.cfg == nil {
		return nil, fmt.Errorf("config required (use WithFileConfig or WithConfig)")
	}
	cfg := app.cfg

	storeOpts := storage.Options{
		PendingTTL:  cfg.Storage.PendingTTL,
		MemoryTTL:   cfg.Storage.MemoryTTL,
		MaxMessages: cfg.Storage.MaxMessages,
	}.WithDefaults()

	if app.storeFactory == nil {
		factory, err := storeFromConfig(cfg.Storage)
		if err != nil {
			return nil, err
		}
		app.storeFactory = factory
	}
	store, err := app.storeFactory(storeOpts)
	if err != nil {
		return nil, fmt.Errorf("create storage: %w", err)
	}
	app.store = store

	if app.ha == nil {
		app.ha = homeassistant.New(cfg.HomeAssistant.BaseURL, cfg.HomeAssistant.Token,
			homeassistant.WithTimeout(cfg.HomeAssistant.Timeout))
	}
	if app.model == nil && cfg.LLM.Enabled {
		app.model = llm.New(cfg.LLM.APIKey, cfg.LLM.Model,
			llm.WithBaseURL(cfg.LLM.BaseURL),
			llm.WithTimeout(cfg.LLM.Timeout),
			llm.WithTemperature(cfg.LLM.Temperature))
	}

	app.router = router.New(skills.DefaultRegistry(), app.store, app.logger)

	cmdOpts := []command.Option{
		command.WithHomeAssistant(app.ha),
		command.WithAliases(app.aliases),
		command.WithExecuteDefault(cfg.ExecuteActions),
	}
	if cfg.Storage.LockConversations {
		cmdOpts = append(cmdOpts, command.WithLocker(&storage.Locker{}))
	}
	if app.model != nil {
		cmdOpts = append(cmdOpts, command.WithFallback(app.newOrchestrator()))
	}
	app.commands = command.NewService(app.router, app.logger, cmdOpts...)

	if cfg.Server.RequireAPIKey {
		app.authenticator = auth.NewAuthenticator(authKeys(cfg.Server.APIKeys))
	}

	app.janitor, err = janitor.New(app.store, cfg.Storage.SweepSchedule, app.logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.server = server.New(server.Options{
		Port:           cfg.Server.Port,
		Logger:         app.logger,
		Authenticator:  app.authenticator,
		RequestTimeout: cfg.Server.RequestTimeout,
		Commands:       app.commands,
		HomeAssistant:  app.ha,
		Build: server.BuildInfo{
			Version: cfg.Build.Version,
			SHA:     cfg.Build.SHA,
			Time:    cfg.Build.Time,
		},
	})

	return app, nil
}

func (a *App) newOrchestrator() *fallback.Orchestrator {
	cfg := a.cfg.LLM
	opts := []fallback.Option{
		fallback.WithMode(fallback.Mode(cfg.RouterMode)),
		fallback.WithHistoryBudget(tokens.NewCounter(cfg.Model), cfg.MaxHistoryTokens),
	}
	if cfg.ServiceCatalog {
		opts = append(opts, fallback.WithCatalog(fallback.NewCatalog(a.ha, cfg.CatalogTTL)))
	}
	return fallback.New(a.model, a.store, a.router, a.logger, opts...)
}

// aliases prefers the watched config file so edits apply without restart.
func (a *App) aliases() map[string]string {
	if a.configSource != nil {
		return a.configSource.Aliases()
	}
	return a.cfg.HomeAssistant.Aliases
}

func authKeys(keys []config.APIKeyConfig) []auth.Key {
	out := make([]auth.Key, 0, len(keys))
	for _, k := range keys {
		out = append(out, auth.Key{KeyHash: k.KeyHash, Description: k.Description})
	}
	return out
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Commands returns the command service for in-process use.
func (a *App) Commands() *command.Service {
	return a.commands
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Router
}

// Run serves HTTP and sweeps expired confirmations until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.configSource != nil {
		err := a.configSource.Watch(ctx, func(cfg *config.Config) {
			if a.authenticator != nil {
				a.authenticator.SetKeys(authKeys(cfg.Server.APIKeys))
			}
		})
		if err != nil {
			a.logger.Warn("config hot reload disabled", slog.String("error", err.Error()))
		}
	}

	a.janitor.Start()
	defer a.janitor.Stop()

	return a.server.Start(ctx)
}

// Close releases the store and the config watcher.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if closer, ok := a.store.(ports.Closer); ok {
			errs = append(errs, closer.Close())
		}
		if a.configSource != nil {
			errs = append(errs, a.configSource.Close())
		}
	})
	return errors.Join(errs...)
}
