package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tjfontaine/jarvis/internal/auth"
)

func TestKeygen_HashesGivenKey(t *testing.T) {
	cmd := newKeygenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"secret"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), `key_hash: "`+auth.HashAPIKey("secret")+`"`) {
		t.Errorf("output missing hash:\n%s", out.String())
	}
}

func TestKeygen_GeneratesKey(t *testing.T) {
	cmd := newKeygenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "API Key: jv_") {
		t.Errorf("output missing generated key:\n%s", out.String())
	}
}

func TestRoute_PrintsEnvelope(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "home_assistant:\n  base_url: http://ha.invalid\n  token: t\nstorage:\n  type: memory\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	configPath = path
	t.Cleanup(func() { configPath = "" })

	cmd := newRouteCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ping"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var env struct {
		Skill string `json:"skill"`
		Mode  string `json:"mode"`
	}
	if err := json.Unmarshal(out.Bytes(), &env); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if env.Skill != "ping" || env.Mode != "plan" {
		t.Errorf("envelope = %+v", env)
	}
}
