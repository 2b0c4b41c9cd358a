package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/jarvis/internal/auth"
	"github.com/tjfontaine/jarvis/internal/command"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/pkg/config"
)

type fakeHA struct{}

func (fakeHA) CallService(ctx context.Context, req ports.ServiceCallRequest) (*ports.HAResponse, error) {
	return &ports.HAResponse{Status: 200}, nil
}

func (fakeHA) GetServices(ctx context.Context) ([]ports.DomainServices, error) {
	return []ports.DomainServices{{Domain: "light", Services: map[string]ports.ServiceInfo{"turn_on": {}}}}, nil
}

type fakeModel struct{ reply string }

func (m fakeModel) Complete(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	return m.reply, nil
}

func testConfig(storageType string) *config.Config {
	return &config.Config{
		Server:        config.ServerConfig{Port: 18080},
		HomeAssistant: config.HomeAssistantConfig{BaseURL: "http://ha", Token: "t", Aliases: map[string]string{"kitchen light": "light.kitchen"}},
		LLM:           config.LLMConfig{RouterMode: "fallback", ServiceCatalog: true, CatalogTTL: time.Minute},
		Storage:       config.StorageConfig{Type: storageType},
		Build:         config.BuildConfig{Version: "test"},
	}
}

func TestApp_New_RequiresConfig(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("Expected error without config")
	}
	if err.Error() != "config required (use WithFileConfig or WithConfig)" {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestApp_New_UnknownStorage(t *testing.T) {
	if _, err := New(WithConfig(testConfig("etcd")), WithHomeAssistant(fakeHA{})); err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}

func TestApp_StorageFromConfig(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		cfg   func() *config.Config
		check string
	}{
		{"file", func() *config.Config {
			c := testConfig("file")
			c.Storage.Dir = filepath.Join(dir, "files")
			return c
		}, filepath.Join(dir, "files", "pending")},
		{"sqlite", func() *config.Config {
			c := testConfig("sqlite")
			c.Storage.SQLite.Path = filepath.Join(dir, "db", "jarvis.db")
			return c
		}, filepath.Join(dir, "db", "jarvis.db")},
		{"memory", func() *config.Config { return testConfig("memory") }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := New(WithConfig(tt.cfg()), WithHomeAssistant(fakeHA{}))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer app.Close()

			if tt.check != "" {
				if _, err := os.Stat(tt.check); err != nil {
					t.Errorf("expected %s: %v", tt.check, err)
				}
			}

			env, err := app.Commands().Handle(context.Background(), "r", command.Request{Text: "ping"})
			if err != nil || env.Skill != "ping" {
				t.Errorf("Handle() = %+v, %v", env, err)
			}
		})
	}
}

func TestApp_ModelFallback(t *testing.T) {
	app, err := New(
		WithConfig(testConfig("memory")),
		WithHomeAssistant(fakeHA{}),
		WithChatModel(fakeModel{reply: `{"type":"chat","text":"Bonsoir"}`}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	env, err := app.Commands().Handle(context.Background(), "r", command.Request{Text: "raconte une blague"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if env.Skill != "llm" || env.Result["message"] != "Bonsoir" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestApp_Handler(t *testing.T) {
	cfg := testConfig("memory")
	cfg.Server.RequireAPIKey = true
	cfg.Server.APIKeys = []config.APIKeyConfig{{KeyHash: auth.HashAPIKey("secret")}}

	app, err := New(WithConfig(cfg), WithHomeAssistant(fakeHA{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var health map[string]any
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ok" || health["version"] != "test" {
		t.Errorf("health = %v", health)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/command", strings.NewReader(`{"text":"turn on kitchen light"}`))
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env command.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Intent != "lights.on" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestApp_WithFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "home_assistant:\n  base_url: http://ha\n  token: t\n  aliases:\n    salon light: light.salon\nstorage:\n  type: memory\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := New(WithFileConfig(path), WithHomeAssistant(fakeHA{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Config().Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q", app.Config().Storage.Type)
	}
	if app.aliases()["salon light"] != "light.salon" {
		t.Errorf("aliases = %v", app.aliases())
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig("memory")
	cfg.Server.Port = 0
	app, err := New(WithConfig(cfg), WithHomeAssistant(fakeHA{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
