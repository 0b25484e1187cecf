package googleauth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const installedCredentials = `{
  "installed": {
    "client_id": "client-123.apps.googleusercontent.com",
    "client_secret": "shh",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token",
    "redirect_uris": ["http://localhost"]
  }
}`

func TestOAuthConfig(t *testing.T) {
	dir := t.TempDir()
	credentials := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(credentials, []byte(installedCredentials), 0600))

	t.Run("credentials file", func(t *testing.T) {
		cfg, err := OAuthConfig(Config{CredentialsFile: credentials})
		require.NoError(t, err)
		assert.Equal(t, "client-123.apps.googleusercontent.com", cfg.ClientID)
		assert.Equal(t, "http://localhost:8080/callback", cfg.RedirectURL)
		assert.Equal(t, DefaultScopes, cfg.Scopes)
	})

	t.Run("client id and secret", func(t *testing.T) {
		cfg, err := OAuthConfig(Config{
			ClientID:     "id",
			ClientSecret: "secret",
			CallbackAddr: "127.0.0.1:9999",
			Scopes:       []string{"scope-a"},
		})
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:9999/callback", cfg.RedirectURL)
		assert.Equal(t, []string{"scope-a"}, cfg.Scopes)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := OAuthConfig(Config{})
		assert.ErrorIs(t, err, common.ErrMissingConfig)
	})

	t.Run("missing credentials file", func(t *testing.T) {
		_, err := OAuthConfig(Config{CredentialsFile: filepath.Join(dir, "nope.json")})
		assert.ErrorIs(t, err, common.ErrMissingConfig)
	})

	t.Run("malformed credentials file", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0600))
		_, err := OAuthConfig(Config{CredentialsFile: bad})
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SaveToken(path, token))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, loaded.AccessToken)
	assert.Equal(t, token.RefreshToken, loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))
}

func TestTokenSource_MissingToken(t *testing.T) {
	_, err := TokenSource(context.Background(), Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenFile:    filepath.Join(t.TempDir(), "token.json"),
	})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestTokenSource_ValidTokenIsUsedAsIs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{
		AccessToken: "still-good",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))

	ts, err := TokenSource(context.Background(), Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenFile:    path,
	})
	require.NoError(t, err)

	token, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "still-good", token.AccessToken)
}

func TestSavingTokenSource_PersistsNewTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	ts := &savingTokenSource{
		base: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "fresh"}),
		path: path,
		last: "stale",
	}

	token, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)

	saved, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
}
