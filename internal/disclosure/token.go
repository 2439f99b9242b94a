package disclosure

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Credentials is the persisted bearer token with its expiry.
// A missing expiry is treated as already expired.
type Credentials struct {
	Token          string     `json:"token"`
	ExpirationDate *time.Time `json:"expirationDate"`
}

// Expired reports whether the credentials are unusable at the given instant
func (c Credentials) Expired(now time.Time) bool {
	if c.Token == "" || c.ExpirationDate == nil {
		return true
	}
	return !now.Before(*c.ExpirationDate)
}

// credentialFor decides, without side effects, whether the cached credentials
// can serve a request issued at now. It returns the token to use and whether
// a refresh is required first.
func credentialFor(cred Credentials, now time.Time) (string, bool) {
	if cred.Expired(now) {
		return "", true
	}
	return cred.Token, false
}

// AuthorizeFunc performs the provider's login/password exchange
type AuthorizeFunc func(ctx context.Context) (Credentials, error)

// TokenCache persists credentials to a JSON file and refreshes them on demand.
// The file is overwritten wholesale on every refresh so a restart picks up the
// last valid token.
type TokenCache struct {
	path      string
	authorize AuthorizeFunc
	mu        sync.Mutex
}

// NewTokenCache creates a cache backed by the given file path
func NewTokenCache(path string, authorize AuthorizeFunc) *TokenCache {
	return &TokenCache{path: path, authorize: authorize}
}

// Token returns a non-expired bearer token, refreshing and persisting
// a new one first when the cached token is missing or expired.
func (tc *TokenCache) Token(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	cred, err := tc.load()
	if err != nil {
		logrus.Warnf("Failed to load cached token, re-authorizing: %v", err)
		cred = Credentials{}
	}

	token, needsRefresh := credentialFor(cred, time.Now().UTC())
	if !needsRefresh {
		return token, nil
	}

	logrus.Info("Disclosure token missing or expired, authorizing")
	fresh, err := tc.authorize(ctx)
	if err != nil {
		return "", fmt.Errorf("authorization failed: %w", err)
	}
	if fresh.Token == "" {
		return "", fmt.Errorf("authorization returned an empty token")
	}

	if err := tc.save(fresh); err != nil {
		// A token that cannot be persisted is still usable for this cycle.
		logrus.Warnf("Failed to persist token: %v", err)
	}

	return fresh.Token, nil
}

func (tc *TokenCache) load() (Credentials, error) {
	data, err := os.ReadFile(tc.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("read token file: %w", err)
	}

	var cred Credentials
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credentials{}, fmt.Errorf("parse token file: %w", err)
	}
	return cred, nil
}

func (tc *TokenCache) save(cred Credentials) error {
	if dir := filepath.Dir(tc.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create token directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(tc.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
