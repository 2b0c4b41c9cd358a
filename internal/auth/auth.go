// Package auth validates bearer API keys against configured sha256 hashes.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Key is one accepted API key, stored as the hex sha256 of the secret.
type Key struct {
	KeyHash     string
	Description string
}

// Authenticator validates API keys. Keys may be replaced at runtime.
type Authenticator struct {
	mu   sync.RWMutex
	keys []Key
}

// NewAuthenticator creates an authenticator accepting keys.
func NewAuthenticator(keys []Key) *Authenticator {
	a := &Authenticator{}
	a.SetKeys(keys)
	return a
}

// SetKeys replaces the accepted keys.
func (a *Authenticator) SetKeys(keys []Key) {
	normalized := make([]Key, 0, len(keys))
	for _, k := range keys {
		h := strings.ToLower(strings.TrimSpace(k.KeyHash))
		if h == "" {
			continue
		}
		normalized = append(normalized, Key{KeyHash: h, Description: k.Description})
	}

	a.mu.Lock()
	a.keys = normalized
	a.mu.Unlock()
}

// ValidateAPIKey reports the matching key for apiKey.
func (a *Authenticator) ValidateAPIKey(apiKey string) (*Key, error) {
	keyHash := []byte(HashAPIKey(apiKey))

	a.mu.RLock()
	defer a.mu.RUnlock()

	// Every configured key is compared so timing does not reveal which matched.
	var match *Key
	for i := range a.keys {
		if subtle.ConstantTimeCompare(keyHash, []byte(a.keys[i].KeyHash)) == 1 && match == nil {
			k := a.keys[i]
			match = &k
		}
	}
	if match == nil {
		return nil, fmt.Errorf("invalid API key")
	}
	return match, nil
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	key := strings.TrimSpace(parts[1])
	if key == "" {
		return "", fmt.Errorf("empty API key")
	}
	return key, nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
