package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/logger"
)

// Exchange trades an authorization code for a signed session token.
func (s *Service) Exchange(ctx context.Context, code string) (types.Grant, error) {
	st, err := s.backend()
	if err != nil {
		return types.Grant{}, err
	}
	s.mu.RLock()
	userID, ok := s.codes[code]
	s.mu.RUnlock()
	if !ok {
		return types.Grant{}, ErrInvalidCredentials
	}
	user, err := st.User(ctx, userID)
	if err != nil {
		return types.Grant{}, translate(err)
	}

	now := s.now()
	exp := now.Add(s.sessionTTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString(s.jwtSecret)
	if err != nil {
		return types.Grant{}, fmt.Errorf("sign token: %w", err)
	}
	s.logger.Info(ctx, "session issued", logger.String("user_id", user.ID), logger.Bool("mentor", user.IsMentor))
	return types.Grant{Token: signed, ExpiresAt: exp.UTC(), User: user}, nil
}

// Authenticate verifies a bearer token and returns its user.
func (s *Service) Authenticate(ctx context.Context, token string) (types.Identity, error) {
	st, err := s.backend()
	if err != nil {
		return types.Identity{}, err
	}
	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	user, err := st.User(ctx, claims.Subject)
	if err != nil {
		if errors.Is(translate(err), ErrNotFound) {
			return types.Identity{}, fmt.Errorf("%w: unknown subject", ErrUnauthorized)
		}
		return types.Identity{}, err
	}
	return user, nil
}

// Me returns the session of an authenticated user.
func (s *Service) Me(_ context.Context, user types.Identity) types.Session {
	return types.Session{Authenticated: true, Identity: user}
}
