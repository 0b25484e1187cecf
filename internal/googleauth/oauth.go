// Package googleauth runs the Google OAuth2 installed-app flow and keeps the
// resulting token on disk for the Gmail and Sheets clients.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"
)

// DefaultScopes lets one token read and label mail, send replies, and write
// the export spreadsheet.
var DefaultScopes = []string{gmail.GmailModifyScope, sheets.SpreadsheetsScope}

// Config holds OAuth2 configuration. CredentialsFile, the client JSON
// downloaded from the Google Cloud console, takes precedence over
// ClientID and ClientSecret.
type Config struct {
	CredentialsFile string
	ClientID        string
	ClientSecret    string
	TokenFile       string // where to save the token
	CallbackAddr    string // local listener for the redirect, default localhost:8080
	Scopes          []string
	Timeout         time.Duration
}

func (c Config) scopes() []string {
	if len(c.Scopes) == 0 {
		return DefaultScopes
	}
	return c.Scopes
}

func (c Config) callbackAddr() string {
	if c.CallbackAddr == "" {
		return "localhost:8080"
	}
	return c.CallbackAddr
}

// OAuthConfig builds the oauth2 client configuration.
func OAuthConfig(c Config) (*oauth2.Config, error) {
	if c.CredentialsFile != "" {
		data, err := os.ReadFile(c.CredentialsFile) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("%w: cannot read credentials file %s: %w", common.ErrMissingConfig, c.CredentialsFile, err)
		}
		cfg, err := google.ConfigFromJSON(data, c.scopes()...)
		if err != nil {
			return nil, fmt.Errorf("%w: credentials file %s: %w", common.ErrInvalidConfig, c.CredentialsFile, err)
		}
		cfg.RedirectURL = "http://" + c.callbackAddr() + "/callback"
		return cfg, nil
	}

	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, fmt.Errorf("%w: google credentials file or client id and secret", common.ErrMissingConfig)
	}

	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  "http://" + c.callbackAddr() + "/callback",
		Scopes:       c.scopes(),
	}, nil
}

// AuthenticateInteractive performs the OAuth2 flow: it prints the consent URL,
// waits for Google to redirect to a local callback, and exchanges the code.
func AuthenticateInteractive(ctx context.Context, c Config) (*oauth2.Token, error) {
	oauthConfig, err := OAuthConfig(c)
	if err != nil {
		return nil, err
	}

	state := uuid.NewString()
	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			errorChan <- fmt.Errorf("no authorization code received")
			_, _ = fmt.Fprint(w, `<html><body>
				<h1>Authentication Failed</h1>
				<p>No authorization code received. Please try again.</p>
			</body></html>`)
			return
		}

		codeChan <- code
		_, _ = fmt.Fprint(w, `<html><body>
			<h1>Authentication Successful!</h1>
			<p>You can close this window and return to the terminal.</p>
		</body></html>`)
	})

	server := &http.Server{
		Addr:              c.callbackAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errorChan <- fmt.Errorf("failed to start callback server: %w", err)
		}
	}()

	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	slog.Info("Google authentication required")
	slog.Info("Please visit this URL to authenticate", "url", authURL)
	slog.Info("Waiting for authentication...")

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	var authCode string
	select {
	case authCode = <-codeChan:
		slog.Info("Received authorization code")
	case err := <-errorChan:
		_ = server.Shutdown(ctx)
		return nil, err
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return nil, ctx.Err()
	case <-time.After(timeout):
		_ = server.Shutdown(ctx)
		return nil, fmt.Errorf("authentication timeout - no response received within %s", timeout)
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("Error shutting down callback server", "error", err)
	}

	token, err := oauthConfig.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if c.TokenFile != "" {
		if err := SaveToken(c.TokenFile, token); err != nil {
			return token, err
		}
		slog.Info("Token saved", "file", c.TokenFile)
	}

	return token, nil
}

// LoadToken loads a token from file.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	f, err := os.Open(tokenFile) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token %s: %w", tokenFile, err)
	}
	return token, nil
}

// SaveToken writes a token readable only by the current user.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return nil
}

// TokenSource returns a refreshing token source backed by the saved token.
// Refreshed tokens are written back to the token file.
func TokenSource(ctx context.Context, c Config) (oauth2.TokenSource, error) {
	oauthConfig, err := OAuthConfig(c)
	if err != nil {
		return nil, err
	}

	token, err := LoadToken(c.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no google token at %s, run 'chaser auth' first", common.ErrMissingConfig, c.TokenFile)
		}
		return nil, err
	}

	return &savingTokenSource{
		base: oauthConfig.TokenSource(ctx, token),
		path: c.TokenFile,
		last: token.AccessToken,
	}, nil
}

// HTTPClient returns an authorized client for the Google API packages.
func HTTPClient(ctx context.Context, c Config) (*http.Client, error) {
	ts, err := TokenSource(ctx, c)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}

// savingTokenSource persists every token it has not seen before.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string
	last string
	mu   sync.Mutex
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := SaveToken(s.path, token); err != nil {
			slog.Warn("Failed to save refreshed token", "error", err)
		}
	}
	return token, nil
}
