package tokens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ovenlight/pizzeria-backend/internal/users"
	"github.com/ovenlight/pizzeria-backend/pkg/config"
	"github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/recordstore"
	"github.com/ovenlight/pizzeria-backend/pkg/security"
)

// Token is the stored session document, keyed by its random id. Expires is
// a millisecond epoch.
type Token struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Expires int64  `json:"expires"`
}

// ExpiresAt returns the expiry as a time.
func (t Token) ExpiresAt() time.Time {
	return time.UnixMilli(t.Expires)
}

type recordStore interface {
	Create(ctx context.Context, collection, key string, doc any) error
	Read(ctx context.Context, collection, key string, out any) error
	Update(ctx context.Context, collection, key string, doc any) error
	Delete(ctx context.Context, collection, key string) error
}

// Service exposes the token lifecycle.
type Service interface {
	Issue(ctx context.Context, email, password string) (*Token, error)
	Verify(ctx context.Context, tokenID, email string) bool
	Resolve(ctx context.Context, tokenID string) (*Token, error)
	Renew(ctx context.Context, tokenID string) (*Token, error)
	Revoke(ctx context.Context, tokenID, email string) error
}

type service struct {
	store recordStore
	cfg   config.TokenConfig
	now   func() time.Time
}

// NewService builds a token service backed by the record store.
func NewService(store recordStore, cfg config.TokenConfig) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("record store required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.IDLength <= 0 {
		cfg.IDLength = 20
	}
	return &service{store: store, cfg: cfg, now: time.Now}, nil
}

// Issue authenticates the credentials and mints a fresh token bound to the
// account. The token id is also appended to the user's token list so account
// deletion can revoke every outstanding session.
func (s *service) Issue(ctx context.Context, email, password string) (*Token, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errors.New(errors.CodeValidation, "email and password are required")
	}

	var user users.User
	if err := s.store.Read(ctx, recordstore.CollectionUsers, email, &user); err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return nil, errors.New(errors.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(password, user.HashedPassword)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return nil, errors.New(errors.CodeUnauthorized, "invalid credentials")
	}

	id, err := security.GenerateTokenID(s.cfg.IDLength)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "generating token id")
	}

	token := Token{
		ID:      id,
		Email:   email,
		Expires: s.now().Add(s.cfg.TTL).UnixMilli(),
	}
	if err := s.store.Create(ctx, recordstore.CollectionTokens, id, token); err != nil {
		return nil, err
	}

	user.Tokens = append(user.Tokens, id)
	if err := s.store.Update(ctx, recordstore.CollectionUsers, email, user); err != nil {
		return nil, err
	}

	return &token, nil
}

// Verify reports whether the token exists, is bound to the given email, and
// has not expired. It never returns an error; any miss is simply false.
func (s *service) Verify(ctx context.Context, tokenID, email string) bool {
	var token Token
	if err := s.store.Read(ctx, recordstore.CollectionTokens, tokenID, &token); err != nil {
		return false
	}
	if token.Email != normalizeEmail(email) {
		return false
	}
	return token.Expires > s.now().UnixMilli()
}

// Resolve loads the token and rejects expired or unknown ids with
// UNAUTHORIZED. The auth middleware uses this to bind a request to an email.
func (s *service) Resolve(ctx context.Context, tokenID string) (*Token, error) {
	if strings.TrimSpace(tokenID) == "" {
		return nil, errors.New(errors.CodeUnauthorized, "missing token")
	}
	var token Token
	if err := s.store.Read(ctx, recordstore.CollectionTokens, tokenID, &token); err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return nil, errors.New(errors.CodeUnauthorized, "invalid token")
		}
		return nil, err
	}
	if token.Expires <= s.now().UnixMilli() {
		return nil, errors.New(errors.CodeUnauthorized, "token expired")
	}
	return &token, nil
}

// Renew extends an unexpired token by a fresh TTL from now.
func (s *service) Renew(ctx context.Context, tokenID string) (*Token, error) {
	var token Token
	if err := s.store.Read(ctx, recordstore.CollectionTokens, tokenID, &token); err != nil {
		return nil, err
	}
	if token.Expires <= s.now().UnixMilli() {
		return nil, errors.New(errors.CodeUnauthorized, "token already expired")
	}

	token.Expires = s.now().Add(s.cfg.TTL).UnixMilli()
	if err := s.store.Update(ctx, recordstore.CollectionTokens, tokenID, token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Revoke deletes the token and removes it from the owner's token list. A
// token bound to a different email is treated as absent.
func (s *service) Revoke(ctx context.Context, tokenID, email string) error {
	email = normalizeEmail(email)

	var token Token
	if err := s.store.Read(ctx, recordstore.CollectionTokens, tokenID, &token); err != nil {
		return err
	}
	if token.Email != email {
		return errors.New(errors.CodeNotFound, "record not found")
	}

	var user users.User
	if err := s.store.Read(ctx, recordstore.CollectionUsers, email, &user); err == nil {
		kept := user.Tokens[:0]
		for _, id := range user.Tokens {
			if id != tokenID {
				kept = append(kept, id)
			}
		}
		user.Tokens = kept
		if err := s.store.Update(ctx, recordstore.CollectionUsers, email, user); err != nil {
			return err
		}
	} else if !errors.IsCode(err, errors.CodeNotFound) {
		return err
	}

	return s.store.Delete(ctx, recordstore.CollectionTokens, tokenID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
