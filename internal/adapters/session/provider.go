// Package session is the client side of authentication: it exchanges an
// authorization code for a bearer token, keeps the token in a TokenStore and
// answers whether the actor is still signed in.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/prefrank/internal/adapters/remote"
	"github.com/okian/prefrank/internal/domain/submission"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/logger"
)

// Token is a stored credential.
type Token struct {
	Value     string         `json:"value"`
	ExpiresAt time.Time      `json:"expires_at"`
	Identity  types.Identity `json:"user"`
}

// TokenStore persists the current credential.
type TokenStore interface {
	LoadToken(ctx context.Context) (Token, bool, error)
	SaveToken(ctx context.Context, t Token) error
	ClearToken(ctx context.Context) error
}

// Backend is the remote half of the session: code exchange and identity.
type Backend interface {
	Exchange(ctx context.Context, code string) (types.Grant, error)
	Me(ctx context.Context) (types.Session, error)
}

var (
	_ submission.SessionChecker = (*Provider)(nil)
	_ remote.TokenSource        = (*Provider)(nil)
)

// Provider is the Session Provider.
type Provider struct {
	backend Backend
	tokens  *tokenReader
	logger  logger.Logger
}

// New creates a provider over store.
func New(store TokenStore, opts ...Option) (*Provider, error) {
	if store == nil {
		return nil, ErrNoTokenSink
	}
	p := &Provider{
		tokens: &tokenReader{store: store, now: time.Now},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// TokenSource returns a remote.TokenSource that reads store directly. It lets
// the HTTP client be built before the Provider that uses it as a Backend.
func TokenSource(store TokenStore) remote.TokenSource {
	return &tokenReader{store: store, now: time.Now}
}

// Exchange trades code for a token, stores it and returns the identity.
func (p *Provider) Exchange(ctx context.Context, code string) (types.Identity, error) {
	if code == "" {
		return types.Identity{}, ErrEmptyCode
	}
	if p.backend == nil {
		return types.Identity{}, ErrNoBackend
	}
	resp, err := p.backend.Exchange(ctx, code)
	if err != nil {
		return types.Identity{}, fmt.Errorf("exchange code: %w", err)
	}
	if resp.Token == "" {
		return types.Identity{}, ErrEmptyToken
	}
	tok := Token{Value: resp.Token, ExpiresAt: resp.ExpiresAt, Identity: resp.User}
	if err := p.tokens.store.SaveToken(ctx, tok); err != nil {
		return types.Identity{}, fmt.Errorf("save token: %w", err)
	}
	p.logger.Info(ctx, "signed in",
		logger.String("user_id", resp.User.ID),
		logger.Bool("mentor", resp.User.IsMentor),
	)
	return resp.User, nil
}

// Session implements submission.SessionChecker. A missing or expired token
// yields an unauthenticated session without a network call. A token the
// backend refuses is forgotten.
func (p *Provider) Session(ctx context.Context) (types.Session, error) {
	tok, ok, err := p.tokens.current(ctx)
	if err != nil {
		return types.Session{}, err
	}
	if !ok {
		return types.Session{}, nil
	}
	if p.backend == nil {
		return types.Session{Authenticated: true, Identity: tok.Identity}, nil
	}

	s, err := p.backend.Me(ctx)
	switch {
	case errors.Is(err, submission.ErrSessionExpired):
		p.logger.Warn(ctx, "session rejected by server", logger.String("user_id", tok.Identity.ID))
		return types.Session{}, p.forget(ctx)
	case err != nil:
		return types.Session{}, fmt.Errorf("session: %w", err)
	case !s.Authenticated:
		return types.Session{}, p.forget(ctx)
	}
	return s, nil
}

// IsAuthenticated reports whether a usable token is stored.
func (p *Provider) IsAuthenticated(ctx context.Context) bool {
	_, ok, err := p.tokens.current(ctx)
	return err == nil && ok
}

// CurrentIdentity returns the identity stored with the token.
func (p *Provider) CurrentIdentity(ctx context.Context) (types.Identity, bool) {
	tok, ok, err := p.tokens.current(ctx)
	if err != nil || !ok {
		return types.Identity{}, false
	}
	return tok.Identity, true
}

// Logout forgets the stored token.
func (p *Provider) Logout(ctx context.Context) error {
	if err := p.forget(ctx); err != nil {
		return err
	}
	p.logger.Info(ctx, "signed out")
	return nil
}

// Token implements remote.TokenSource.
func (p *Provider) Token(ctx context.Context) (string, error) {
	return p.tokens.Token(ctx)
}

func (p *Provider) forget(ctx context.Context) error {
	if err := p.tokens.store.ClearToken(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

type tokenReader struct {
	store TokenStore
	now   func() time.Time
}

// current returns the stored token if it has not expired.
func (r *tokenReader) current(ctx context.Context) (Token, bool, error) {
	tok, ok, err := r.store.LoadToken(ctx)
	if err != nil {
		return Token{}, false, fmt.Errorf("load token: %w", err)
	}
	if !ok || tok.Value == "" {
		return Token{}, false, nil
	}
	exp := Expiry(tok)
	if !exp.IsZero() && !r.now().Before(exp) {
		return Token{}, false, nil
	}
	return tok, true, nil
}

func (r *tokenReader) Token(ctx context.Context) (string, error) {
	tok, ok, err := r.store.LoadToken(ctx)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if !ok || tok.Value == "" {
		return "", remote.ErrNoToken
	}
	if exp := Expiry(tok); !exp.IsZero() && !r.now().Before(exp) {
		return "", submission.ErrSessionExpired
	}
	return tok.Value, nil
}

// Expiry returns when t stops being valid. The exp claim of a JWT wins over
// the stored ExpiresAt; the signature is not checked here.
func Expiry(t Token) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(t.Value, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return t.ExpiresAt
}
