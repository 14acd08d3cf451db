package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/ovenlight/pizzeria-backend/pkg/config"
	"github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/recordstore"
	"github.com/ovenlight/pizzeria-backend/pkg/security"
)

// User is the stored account document, keyed by email.
type User struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Address        string   `json:"address"`
	HashedPassword string   `json:"hashedPassword"`
	Tokens         []string `json:"tokens"`
}

// Profile is the sanitized view returned to callers. It never carries the
// password hash.
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// SignupInput carries a new account registration.
type SignupInput struct {
	Name     string
	Email    string
	Address  string
	Password string
}

// UpdateInput carries optional profile mutations. At least one field must be
// set.
type UpdateInput struct {
	Name     *string
	Address  *string
	Password *string
}

type recordStore interface {
	Create(ctx context.Context, collection, key string, doc any) error
	Read(ctx context.Context, collection, key string, out any) error
	Update(ctx context.Context, collection, key string, doc any) error
	Delete(ctx context.Context, collection, key string) error
	Exists(ctx context.Context, collection, key string) (bool, error)
}

// Service exposes user account operations.
type Service interface {
	Signup(ctx context.Context, input SignupInput) (*Profile, error)
	Get(ctx context.Context, email string) (*Profile, error)
	Update(ctx context.Context, email string, input UpdateInput) (*Profile, error)
	Delete(ctx context.Context, email string) error
}

type service struct {
	store       recordStore
	passwordCfg config.PasswordConfig
}

// NewService builds a user service backed by the record store.
func NewService(store recordStore, passwordCfg config.PasswordConfig) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("record store required")
	}
	return &service{store: store, passwordCfg: passwordCfg}, nil
}

// Signup registers a new account. The email is the account key; a second
// signup with the same email fails with ALREADY_EXISTS.
func (s *service) Signup(ctx context.Context, input SignupInput) (*Profile, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, errors.New(errors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New(errors.CodeValidation, "name is required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return nil, errors.New(errors.CodeValidation, "address is required")
	}
	if input.Password == "" {
		return nil, errors.New(errors.CodeValidation, "password is required")
	}

	// Check before hashing; Create still backstops a concurrent signup.
	if taken, err := s.store.Exists(ctx, recordstore.CollectionUsers, email); err != nil {
		return nil, err
	} else if taken {
		return nil, errors.New(errors.CodeAlreadyExists, "an account with this email already exists")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "hashing password")
	}

	user := User{
		Name:           strings.TrimSpace(input.Name),
		Email:          email,
		Address:        strings.TrimSpace(input.Address),
		HashedPassword: hash,
		Tokens:         []string{},
	}
	if err := s.store.Create(ctx, recordstore.CollectionUsers, email, user); err != nil {
		return nil, err
	}
	return profileOf(user), nil
}

// Get returns the sanitized profile.
func (s *service) Get(ctx context.Context, email string) (*Profile, error) {
	var user User
	if err := s.store.Read(ctx, recordstore.CollectionUsers, normalizeEmail(email), &user); err != nil {
		return nil, err
	}
	return profileOf(user), nil
}

// Update mutates name, address, and/or password.
func (s *service) Update(ctx context.Context, email string, input UpdateInput) (*Profile, error) {
	if input.Name == nil && input.Address == nil && input.Password == nil {
		return nil, errors.New(errors.CodeValidation, "at least one field must be provided")
	}

	key := normalizeEmail(email)
	var user User
	if err := s.store.Read(ctx, recordstore.CollectionUsers, key, &user); err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.New(errors.CodeValidation, "name cannot be blank")
		}
		user.Name = name
	}
	if input.Address != nil {
		address := strings.TrimSpace(*input.Address)
		if address == "" {
			return nil, errors.New(errors.CodeValidation, "address cannot be blank")
		}
		user.Address = address
	}
	if input.Password != nil {
		if *input.Password == "" {
			return nil, errors.New(errors.CodeValidation, "password cannot be blank")
		}
		hash, err := security.HashPassword(*input.Password, s.passwordCfg)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "hashing password")
		}
		user.HashedPassword = hash
	}

	if err := s.store.Update(ctx, recordstore.CollectionUsers, key, user); err != nil {
		return nil, err
	}
	return profileOf(user), nil
}

// Delete removes the account and every token issued to it.
func (s *service) Delete(ctx context.Context, email string) error {
	key := normalizeEmail(email)
	var user User
	if err := s.store.Read(ctx, recordstore.CollectionUsers, key, &user); err != nil {
		return err
	}

	for _, tokenID := range user.Tokens {
		if err := s.store.Delete(ctx, recordstore.CollectionTokens, tokenID); err != nil && !errors.IsCode(err, errors.CodeNotFound) {
			return err
		}
	}

	return s.store.Delete(ctx, recordstore.CollectionUsers, key)
}

func profileOf(user User) *Profile {
	return &Profile{Name: user.Name, Email: user.Email, Address: user.Address}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
