package tokens

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ovenlight/pizzeria-backend/internal/users"
	"github.com/ovenlight/pizzeria-backend/pkg/config"
	pkgerrors "github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/security"
)

type memStore struct {
	docs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string][]byte)}
}

func (m *memStore) key(collection, key string) string { return collection + "/" + key }

func (m *memStore) Create(ctx context.Context, collection, key string, doc any) error {
	k := m.key(collection, key)
	if _, ok := m.docs[k]; ok {
		return pkgerrors.New(pkgerrors.CodeAlreadyExists, "a record with this key already exists")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[k] = payload
	return nil
}

func (m *memStore) Read(ctx context.Context, collection, key string, out any) error {
	payload, ok := m.docs[m.key(collection, key)]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
	}
	return json.Unmarshal(payload, out)
}

func (m *memStore) Update(ctx context.Context, collection, key string, doc any) error {
	k := m.key(collection, key)
	if _, ok := m.docs[k]; !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[k] = payload
	return nil
}

func (m *memStore) Delete(ctx context.Context, collection, key string) error {
	k := m.key(collection, key)
	if _, ok := m.docs[k]; !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
	}
	delete(m.docs, k)
	return nil
}

func seedUser(t *testing.T, store *memStore, email, password string) {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{
		ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16,
	})
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := users.User{Name: "Ada", Email: email, Address: "addr", HashedPassword: hash, Tokens: []string{}}
	if err := store.Create(context.Background(), "users", email, user); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
}

func newTestService(t *testing.T, store *memStore, now time.Time) *service {
	t.Helper()
	svc, err := NewService(store, config.TokenConfig{TTL: time.Hour, IDLength: 20})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	typed := svc.(*service)
	typed.now = func() time.Time { return now }
	return typed
}

func TestIssueMintsTokenAndTracksIt(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, now)
	seedUser(t, store, "a@b.c", "secret")

	token, err := svc.Issue(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if len(token.ID) != 20 {
		t.Fatalf("expected 20-char token id, got %q", token.ID)
	}
	if token.Expires != now.Add(time.Hour).UnixMilli() {
		t.Fatalf("expected expiry one hour out, got %d", token.Expires)
	}

	var user users.User
	if err := store.Read(context.Background(), "users", "a@b.c", &user); err != nil {
		t.Fatalf("reading user: %v", err)
	}
	if len(user.Tokens) != 1 || user.Tokens[0] != token.ID {
		t.Fatalf("expected token id tracked on user, got %v", user.Tokens)
	}
}

func TestIssueRejectsBadCredentials(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, time.Now())
	seedUser(t, store, "a@b.c", "secret")

	if _, err := svc.Issue(context.Background(), "a@b.c", "wrong"); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for wrong password, got %v", err)
	}
	if _, err := svc.Issue(context.Background(), "nobody@b.c", "secret"); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for unknown email, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, now)
	seedUser(t, store, "a@b.c", "secret")

	token, err := svc.Issue(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	ctx := context.Background()
	if !svc.Verify(ctx, token.ID, "a@b.c") {
		t.Fatal("expected valid token to verify")
	}
	if svc.Verify(ctx, token.ID, "other@b.c") {
		t.Fatal("token must not verify for a different email")
	}
	if svc.Verify(ctx, "nosuchtoken", "a@b.c") {
		t.Fatal("missing token must not verify")
	}

	// Advance past expiry; verification flips to false with no state change.
	svc.now = func() time.Time { return now.Add(2 * time.Hour) }
	if svc.Verify(ctx, token.ID, "a@b.c") {
		t.Fatal("expired token must not verify")
	}
	if svc.Verify(ctx, token.ID, "a@b.c") {
		t.Fatal("repeated verification must stay false")
	}
}

func TestResolve(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, now)
	seedUser(t, store, "a@b.c", "secret")

	token, err := svc.Issue(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), token.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Email != "a@b.c" {
		t.Fatalf("unexpected bound email %q", resolved.Email)
	}

	if _, err := svc.Resolve(context.Background(), "unknown"); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for unknown token, got %v", err)
	}

	svc.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := svc.Resolve(context.Background(), token.ID); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for expired token, got %v", err)
	}
}

func TestRenew(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, now)
	seedUser(t, store, "a@b.c", "secret")

	token, err := svc.Issue(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	later := now.Add(30 * time.Minute)
	svc.now = func() time.Time { return later }
	renewed, err := svc.Renew(context.Background(), token.ID)
	if err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if renewed.Expires != later.Add(time.Hour).UnixMilli() {
		t.Fatalf("expected expiry reset from renewal time, got %d", renewed.Expires)
	}

	svc.now = func() time.Time { return now.Add(3 * time.Hour) }
	if _, err := svc.Renew(context.Background(), token.ID); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for expired renewal, got %v", err)
	}

	if _, err := svc.Renew(context.Background(), "unknown"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown token, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, time.Now())
	seedUser(t, store, "a@b.c", "secret")

	token, err := svc.Issue(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := svc.Revoke(context.Background(), token.ID, "other@b.c"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for foreign revoke, got %v", err)
	}

	if err := svc.Revoke(context.Background(), token.ID, "a@b.c"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	var user users.User
	if err := store.Read(context.Background(), "users", "a@b.c", &user); err != nil {
		t.Fatalf("reading user: %v", err)
	}
	if len(user.Tokens) != 0 {
		t.Fatalf("expected token removed from user list, got %v", user.Tokens)
	}

	if err := svc.Revoke(context.Background(), token.ID, "a@b.c"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for second revoke, got %v", err)
	}
}
