package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ovenlight/pizzeria-backend/internal/catalog"
	"github.com/ovenlight/pizzeria-backend/internal/orders"
	"github.com/ovenlight/pizzeria-backend/internal/users"
	"github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/recordstore"
)

// recentWindow is the lookback applied by the --recent filters.
const recentWindow = 24 * time.Hour

// OrderSummary is one row in the operator order listing.
type OrderSummary struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	PlacedAt    time.Time        `json:"placed_at"`
	Status      orders.Status    `json:"status"`
	PayStatus   orders.PayStatus `json:"payStatus"`
	AmountCents int              `json:"amount"`
}

// OrderDetail is the full operator view of one order.
type OrderDetail struct {
	OrderSummary
	Items map[string]int `json:"items"`
}

// UserSummary is one row in the operator user listing.
type UserSummary struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	SignedUpAt time.Time `json:"signed_up_at"`
	OrderCount int       `json:"order_count"`
}

// UserDetail is the full operator view of one account.
type UserDetail struct {
	UserSummary
	Address string         `json:"address"`
	Orders  []OrderSummary `json:"orders"`
}

type recordStore interface {
	Read(ctx context.Context, collection, key string, out any) error
	List(ctx context.Context, collection string) ([]recordstore.Entry, error)
	ListKeys(ctx context.Context, collection string) ([]string, error)
	ListMask(ctx context.Context, collection, mask string) ([]recordstore.Entry, error)
}

// Service exposes read-only projections for operators. Nothing here mutates
// state.
type Service interface {
	ListOrders(ctx context.Context, recentOnly bool) ([]OrderSummary, error)
	GetOrder(ctx context.Context, id string) (*OrderDetail, error)
	ListUsers(ctx context.Context, recentOnly bool) ([]UserSummary, error)
	GetUser(ctx context.Context, email string) (*UserDetail, error)
	Menu() []catalog.Item
}

type service struct {
	store recordStore
	menu  *catalog.Catalog
	now   func() time.Time
}

// NewService builds the operator projection service.
func NewService(store recordStore, menu *catalog.Catalog) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("record store required")
	}
	if menu == nil {
		return nil, fmt.Errorf("catalog required")
	}
	return &service{store: store, menu: menu, now: time.Now}, nil
}

// ListOrders returns every order, newest first, optionally only the trailing
// 24 hours.
func (s *service) ListOrders(ctx context.Context, recentOnly bool) ([]OrderSummary, error) {
	entries, err := s.store.List(ctx, recordstore.CollectionOrders)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-recentWindow)
	summaries := make([]OrderSummary, 0, len(entries))
	for _, entry := range entries {
		var order orders.Order
		if err := json.Unmarshal(entry.Document, &order); err != nil {
			return nil, errors.Wrap(errors.CodeStorage, err, "decoding order document")
		}
		summary := summarize(order)
		if recentOnly && summary.PlacedAt.Before(cutoff) {
			continue
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].PlacedAt.After(summaries[j].PlacedAt) })
	return summaries, nil
}

// GetOrder loads one order by its full id.
func (s *service) GetOrder(ctx context.Context, id string) (*OrderDetail, error) {
	var order orders.Order
	if err := s.store.Read(ctx, recordstore.CollectionOrders, id, &order); err != nil {
		return nil, err
	}
	return &OrderDetail{OrderSummary: summarize(order), Items: order.Cart.Items}, nil
}

// ListUsers returns every account with its order count, optionally only
// signups from the trailing 24 hours.
func (s *service) ListUsers(ctx context.Context, recentOnly bool) ([]UserSummary, error) {
	userEntries, err := s.store.List(ctx, recordstore.CollectionUsers)
	if err != nil {
		return nil, err
	}
	orderKeys, err := s.store.ListKeys(ctx, recordstore.CollectionOrders)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, key := range orderKeys {
		counts[ownerOf(key)]++
	}

	cutoff := s.now().Add(-recentWindow)
	summaries := make([]UserSummary, 0, len(userEntries))
	for _, entry := range userEntries {
		if recentOnly && entry.CreatedAt.Before(cutoff) {
			continue
		}
		var user users.User
		if err := json.Unmarshal(entry.Document, &user); err != nil {
			return nil, errors.Wrap(errors.CodeStorage, err, "decoding user document")
		}
		summaries = append(summaries, UserSummary{
			Name:       user.Name,
			Email:      user.Email,
			SignedUpAt: entry.CreatedAt,
			OrderCount: counts[user.Email],
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Email < summaries[j].Email })
	return summaries, nil
}

// GetUser loads one account with its orders.
func (s *service) GetUser(ctx context.Context, email string) (*UserDetail, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user users.User
	if err := s.store.Read(ctx, recordstore.CollectionUsers, email, &user); err != nil {
		return nil, err
	}

	var signedUp time.Time
	if entries, err := s.store.List(ctx, recordstore.CollectionUsers); err == nil {
		for _, entry := range entries {
			if entry.Key == email {
				signedUp = entry.CreatedAt
				break
			}
		}
	}

	prefix := email + "_"
	orderEntries, err := s.store.ListMask(ctx, recordstore.CollectionOrders, prefix)
	if err != nil {
		return nil, err
	}

	owned := make([]OrderSummary, 0)
	for _, entry := range orderEntries {
		if !strings.HasPrefix(entry.Key, prefix) {
			continue
		}
		var order orders.Order
		if err := json.Unmarshal(entry.Document, &order); err != nil {
			return nil, errors.Wrap(errors.CodeStorage, err, "decoding order document")
		}
		owned = append(owned, summarize(order))
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].PlacedAt.After(owned[j].PlacedAt) })

	return &UserDetail{
		UserSummary: UserSummary{
			Name:       user.Name,
			Email:      user.Email,
			SignedUpAt: signedUp,
			OrderCount: len(owned),
		},
		Address: user.Address,
		Orders:  owned,
	}, nil
}

// Menu returns the catalog.
func (s *service) Menu() []catalog.Item {
	return s.menu.All()
}

func summarize(order orders.Order) OrderSummary {
	return OrderSummary{
		ID:          order.ID,
		Email:       order.Email,
		PlacedAt:    time.UnixMilli(order.Date),
		Status:      order.Status,
		PayStatus:   order.PayStatus,
		AmountCents: order.Cart.AmountCents,
	}
}

// ownerOf extracts the email from an `{email}_{ms}` order key.
func ownerOf(key string) string {
	idx := strings.LastIndex(key, "_")
	if idx < 0 {
		return key
	}
	return key[:idx]
}
