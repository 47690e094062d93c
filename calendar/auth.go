package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// AuthConfig locates the OAuth client secrets and the cached user token.
type AuthConfig struct {
	CredentialsFile string // client secrets JSON downloaded from the Google console
	TokenFile       string // cached oauth2.Token, written by Exchange
}

// OAuthConfig reads the client secrets file for the events scope.
func OAuthConfig(cfg AuthConfig) (*oauth2.Config, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret file %s: %w", cfg.CredentialsFile, err)
	}
	oc, err := google.ConfigFromJSON(b, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}
	return oc, nil
}

// AuthURL returns the consent page the user visits to obtain a code.
func AuthURL(oc *oauth2.Config) string {
	return oc.AuthCodeURL("showroom", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a token and caches it.
func Exchange(ctx context.Context, oc *oauth2.Config, code, tokenFile string) error {
	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return saveToken(tokenFile, tok)
}

// NewService builds an authenticated Calendar service from a cached token.
// Refreshed tokens are written back to cfg.TokenFile.
func NewService(ctx context.Context, cfg AuthConfig) (*gcal.Service, error) {
	oc, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("load token (run `showroom calendar auth` first): %w", err)
	}

	src := &savingTokenSource{
		base: oc.TokenSource(ctx, tok),
		path: cfg.TokenFile,
		last: tok.AccessToken,
	}
	client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src))

	srv, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return srv, nil
}

// savingTokenSource persists the token whenever the access token changes.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := saveToken(s.path, tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("cache token %s: %w", path, err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return nil
}
