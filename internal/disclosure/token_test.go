package disclosure

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsExpired(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.True(t, Credentials{}.Expired(now))
	assert.True(t, Credentials{Token: "t"}.Expired(now))
	assert.True(t, Credentials{Token: "t", ExpirationDate: &past}.Expired(now))
	assert.True(t, Credentials{Token: "t", ExpirationDate: &now}.Expired(now))
	assert.False(t, Credentials{Token: "t", ExpirationDate: &future}.Expired(now))
}

func TestCredentialFor(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Hour)

	token, refresh := credentialFor(Credentials{Token: "live", ExpirationDate: &future}, now)
	assert.Equal(t, "live", token)
	assert.False(t, refresh)

	_, refresh = credentialFor(Credentials{}, now)
	assert.True(t, refresh)
}

func TestTokenCacheRefreshesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	calls := 0
	future := time.Now().UTC().Add(time.Hour)

	cache := NewTokenCache(path, func(ctx context.Context) (Credentials, error) {
		calls++
		return Credentials{Token: fmt.Sprintf("token-%d", calls), ExpirationDate: &future}, nil
	})

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, 1, calls)

	// Second call reads the persisted, still-valid token without re-authorizing
	token, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, 1, calls)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored Credentials
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "token-1", stored.Token)
}

func TestTokenCacheReauthorizesExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	past := time.Now().UTC().Add(-time.Hour)
	stale, err := json.Marshal(Credentials{Token: "stale", ExpirationDate: &past})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, stale, 0o600))

	future := time.Now().UTC().Add(time.Hour)
	cache := NewTokenCache(path, func(ctx context.Context) (Credentials, error) {
		return Credentials{Token: "fresh", ExpirationDate: &future}, nil
	})

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
}

func TestTokenCachePropagatesAuthFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	cache := NewTokenCache(path, func(ctx context.Context) (Credentials, error) {
		return Credentials{}, fmt.Errorf("bad credentials")
	})

	_, err := cache.Token(context.Background())
	assert.Error(t, err)
}
