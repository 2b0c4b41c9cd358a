package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/jarvis/internal/auth"
)

// DefaultPath is read when no config file is named.
const DefaultPath = "config.yaml"

// EnvPrefix marks configuration environment variables. Nested keys are
// separated by a double underscore: JARVIS_HOME_ASSISTANT__BASE_URL.
const EnvPrefix = "JARVIS_"

type Config struct {
	Server         ServerConfig        `koanf:"server"`
	Log            LogConfig           `koanf:"log"`
	HomeAssistant  HomeAssistantConfig `koanf:"home_assistant"`
	LLM            LLMConfig           `koanf:"llm"`
	Storage        StorageConfig       `koanf:"storage"`
	Telemetry      TelemetryConfig     `koanf:"telemetry"`
	Build          BuildConfig         `koanf:"build"`
	ExecuteActions bool                `koanf:"execute_actions"`
}

type ServerConfig struct {
	Port           int            `koanf:"port"`
	RequestTimeout time.Duration  `koanf:"request_timeout"`
	RequireAPIKey  bool           `koanf:"require_api_key"`
	APIKeys        []APIKeyConfig `koanf:"api_keys"`
}

// APIKeyConfig holds the hex sha256 of an accepted bearer key.
type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type HomeAssistantConfig struct {
	BaseURL string        `koanf:"base_url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
	// Aliases maps spoken names ("kitchen light") to entity ids.
	Aliases map[string]string `koanf:"aliases"`
}

type LLMConfig struct {
	Enabled          bool          `koanf:"enabled"`
	APIKey           string        `koanf:"api_key"`
	BaseURL          string        `koanf:"base_url"`
	Model            string        `koanf:"model"`
	Temperature      float32       `koanf:"temperature"`
	Timeout          time.Duration `koanf:"timeout"`
	RouterMode       string        `koanf:"router_mode"` // fallback, always_actions
	MaxHistoryTokens int           `koanf:"max_history_tokens"`
	ServiceCatalog   bool          `koanf:"service_catalog"`
	CatalogTTL       time.Duration `koanf:"catalog_ttl"`
}

type StorageConfig struct {
	Type              string        `koanf:"type"` // file, memory, sqlite, redis
	Dir               string        `koanf:"dir"`
	SQLite            SQLiteConfig  `koanf:"sqlite"`
	Redis             RedisConfig   `koanf:"redis"`
	PendingTTL        time.Duration `koanf:"pending_ttl"`
	MemoryTTL         time.Duration `koanf:"memory_ttl"`
	MaxMessages       int           `koanf:"max_messages"`
	LockConversations bool          `koanf:"lock_conversations"`
	SweepSchedule     string        `koanf:"sweep_schedule"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	URL       string `koanf:"url"`
	KeyPrefix string `koanf:"key_prefix"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

type BuildConfig struct {
	Version string `koanf:"version"`
	SHA     string `koanf:"sha"`
	Time    string `koanf:"time"`
}

var defaults = map[string]any{
	"server.port":              8080,
	"server.request_timeout":   "30s",
	"log.level":                "info",
	"home_assistant.timeout":   "10s",
	"llm.model":                "gpt-4o-mini",
	"llm.temperature":          0.2,
	"llm.timeout":              "15s",
	"llm.router_mode":          "fallback",
	"llm.max_history_tokens":   2000,
	"llm.service_catalog":      true,
	"llm.catalog_ttl":          "60s",
	"storage.type":             "file",
	"storage.dir":              "data",
	"storage.sqlite.path":      "data/jarvis.db",
	"storage.redis.key_prefix": "jarvis:",
	"storage.pending_ttl":      "2m",
	"storage.memory_ttl":       "24h",
	"storage.max_messages":     40,
	"storage.sweep_schedule":   "@every 1m",
	"build.version":            "dev",
}

// legacyEnv maps the flat variable names of earlier deployments to keys.
var legacyEnv = map[string]string{
	"PORT":                   "server.port",
	"LOG_LEVEL":              "log.level",
	"REQUIRE_API_KEY":        "server.require_api_key",
	"EXECUTE_ACTIONS":        "execute_actions",
	"HA_BASE_URL":            "home_assistant.base_url",
	"HA_TOKEN":               "home_assistant.token",
	"HA_TIMEOUT_MS":          "home_assistant.timeout",
	"HA_ENTITY_ALIASES_JSON": "home_assistant.aliases",
	"OPENAI_API_KEY":         "llm.api_key",
	"BUILD_SHA":              "build.sha",
	"BUILD_TIME":             "build.time",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (missing is fine), then legacy environment variables, then
// JARVIS_ variables. Later sources win.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	for key, v := range defaults {
		k.Set(key, v)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := checkLegacyEnv(); err != nil {
		return nil, err
	}
	if err := k.Load(env.ProviderWithValue("", ".", legacyValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load legacy environment: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if key := os.Getenv("API_KEY"); key != "" {
		cfg.Server.APIKeys = append(cfg.Server.APIKeys, APIKeyConfig{KeyHash: auth.HashAPIKey(key), Description: "API_KEY"})
	}

	cfg.HomeAssistant.Token = substituteEnvVars(cfg.HomeAssistant.Token)
	cfg.LLM.APIKey = substituteEnvVars(cfg.LLM.APIKey)
	cfg.Storage.Redis.URL = substituteEnvVars(cfg.Storage.Redis.URL)
	cfg.LLM.Enabled = cfg.LLM.Enabled || cfg.LLM.APIKey != ""

	return &cfg, nil
}

// checkLegacyEnv rejects legacy variables whose values legacyValue cannot
// convert.
func checkLegacyEnv() error {
	var errs []error
	if v := os.Getenv("HA_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err != nil || ms <= 0 {
			errs = append(errs, fmt.Errorf("HA_TIMEOUT_MS %q must be a positive number of milliseconds", v))
		}
	}
	if v := os.Getenv("HA_ENTITY_ALIASES_JSON"); v != "" {
		var aliases map[string]string
		if err := json.Unmarshal([]byte(v), &aliases); err != nil || aliases == nil {
			errs = append(errs, errors.New("HA_ENTITY_ALIASES_JSON must be a JSON object mapping alias to entity_id"))
		}
	}
	return errors.Join(errs...)
}

// legacyValue converts a legacy variable to its key and typed value. Unknown
// variables map to the empty key and are dropped.
func legacyValue(name, value string) (string, any) {
	key, ok := legacyEnv[name]
	if !ok || value == "" {
		return "", nil
	}
	switch name {
	case "HA_TIMEOUT_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return "", nil
		}
		return key, (time.Duration(ms) * time.Millisecond).String()
	case "HA_ENTITY_ALIASES_JSON":
		var aliases map[string]any
		if err := json.Unmarshal([]byte(value), &aliases); err != nil {
			return "", nil
		}
		return key, aliases
	}
	return key, value
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RequireAPIKey && len(c.Server.APIKeys) == 0 {
		errs = append(errs, errors.New("server.require_api_key needs at least one server.api_keys entry"))
	}
	if strings.TrimSpace(c.HomeAssistant.BaseURL) == "" {
		errs = append(errs, errors.New("home_assistant.base_url is required"))
	}
	if strings.TrimSpace(c.HomeAssistant.Token) == "" {
		errs = append(errs, errors.New("home_assistant.token is required"))
	}
	switch c.LLM.RouterMode {
	case "fallback", "always_actions":
	default:
		errs = append(errs, fmt.Errorf("llm.router_mode %q is not fallback or always_actions", c.LLM.RouterMode))
	}
	switch c.Storage.Type {
	case "file", "memory", "sqlite":
	case "redis":
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url is required for redis storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not file, memory, sqlite or redis", c.Storage.Type))
	}
	return errors.Join(errs...)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
