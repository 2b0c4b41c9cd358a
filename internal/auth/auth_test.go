package auth

import (
	"net/http"
	"strings"
	"testing"
)

func TestHashAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		expected string
	}{
		{
			name:     "simple key",
			apiKey:   "test-key-123",
			expected: "625faa3fbbc3d2bd9d6ee7678d04cc5339cb33dc68d9b58451853d60046e226a",
		},
		{
			name:     "empty key",
			apiKey:   "",
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashAPIKey(tt.apiKey)
			if hash != tt.expected {
				t.Errorf("HashAPIKey() = %v, want %v", hash, tt.expected)
			}
		})
	}
}

func TestAuthenticator_ValidateAPIKey(t *testing.T) {
	auth := NewAuthenticator([]Key{
		{KeyHash: HashAPIKey("valid-key-1"), Description: "kitchen tablet"},
		{KeyHash: strings.ToUpper(HashAPIKey("valid-key-2")), Description: "phone shortcut"},
		{KeyHash: "  "},
	})

	tests := []struct {
		name      string
		apiKey    string
		wantDesc  string
		wantError bool
	}{
		{"valid key 1", "valid-key-1", "kitchen tablet", false},
		{"valid key 2 with upper-case hash", "valid-key-2", "phone shortcut", false},
		{"invalid key", "invalid-key", "", true},
		{"empty key", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := auth.ValidateAPIKey(tt.apiKey)
			if tt.wantError {
				if err == nil {
					t.Error("ValidateAPIKey() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateAPIKey() unexpected error: %v", err)
			}
			if key.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", key.Description, tt.wantDesc)
			}
		})
	}
}

func TestAuthenticator_SetKeys(t *testing.T) {
	auth := NewAuthenticator([]Key{{KeyHash: HashAPIKey("old")}})
	auth.SetKeys([]Key{{KeyHash: HashAPIKey("new")}})

	if _, err := auth.ValidateAPIKey("old"); err == nil {
		t.Error("old key still accepted")
	}
	if _, err := auth.ValidateAPIKey("new"); err != nil {
		t.Errorf("new key rejected: %v", err)
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantKey   string
		wantError bool
	}{
		{"valid bearer token", "Bearer test-key-123", "test-key-123", false},
		{"lowercase bearer", "bearer test-key-123", "test-key-123", false},
		{"missing header", "", "", true},
		{"no scheme", "test-key-123", "", true},
		{"basic scheme", "Basic dGVzdA==", "", true},
		{"empty token", "Bearer  ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, "/v1/command", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			key, err := ExtractAPIKey(req)
			if tt.wantError {
				if err == nil {
					t.Errorf("ExtractAPIKey() expected error, got key %q", key)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractAPIKey() unexpected error: %v", err)
			}
			if key != tt.wantKey {
				t.Errorf("ExtractAPIKey() = %q, want %q", key, tt.wantKey)
			}
		})
	}
}
