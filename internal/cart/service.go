package cart

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ovenlight/pizzeria-backend/internal/catalog"
	"github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/recordstore"
)

// Cart is the stored document, keyed by the owner's email. Items maps menu
// item name to quantity; AmountCents is recomputed on every write.
type Cart struct {
	Items       map[string]int `json:"items"`
	AmountCents int            `json:"amount"`
}

// ItemView is a cart line enriched with catalog data.
type ItemView struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price"`
	ImageURL       string `json:"image"`
}

// View is the enriched cart returned to callers.
type View struct {
	Items       []ItemView `json:"items"`
	AmountCents int        `json:"amount"`
}

type recordStore interface {
	Read(ctx context.Context, collection, key string, out any) error
	Upsert(ctx context.Context, collection, key string, doc any) error
	Delete(ctx context.Context, collection, key string) error
}

// Service exposes cart operations. Writes replace the whole cart;
// last-writer-wins under concurrency.
type Service interface {
	SetItems(ctx context.Context, email string, items map[string]int) (*View, error)
	Get(ctx context.Context, email string) (*View, error)
	Clear(ctx context.Context, email string) error
}

type service struct {
	store recordStore
	menu  *catalog.Catalog
}

// NewService builds a cart service backed by the record store and menu.
func NewService(store recordStore, menu *catalog.Catalog) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("record store required")
	}
	if menu == nil {
		return nil, fmt.Errorf("catalog required")
	}
	return &service{store: store, menu: menu}, nil
}

// SetItems validates every line against the menu, recomputes the total, and
// replaces the stored cart. The first write for an email creates the cart.
func (s *service) SetItems(ctx context.Context, email string, items map[string]int) (*View, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New(errors.CodeValidation, "email is required")
	}
	if len(items) == 0 {
		return nil, errors.New(errors.CodeValidation, "cart must contain at least one item")
	}

	amount := 0
	for name, qty := range items {
		if qty <= 0 {
			return nil, errors.New(errors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"item": name, "quantity": qty})
		}
		item, err := s.menu.Get(name)
		if err != nil {
			return nil, errors.New(errors.CodeValidation, "item is not on the menu").
				WithDetails(map[string]any{"item": name})
		}
		amount += qty * item.PriceCents
	}

	doc := Cart{Items: items, AmountCents: amount}
	if err := s.store.Upsert(ctx, recordstore.CollectionCarts, email, doc); err != nil {
		return nil, err
	}
	return s.enrich(doc)
}

// Get returns the enriched cart, NOT_FOUND when the email has none.
func (s *service) Get(ctx context.Context, email string) (*View, error) {
	var doc Cart
	if err := s.store.Read(ctx, recordstore.CollectionCarts, normalizeEmail(email), &doc); err != nil {
		return nil, err
	}
	return s.enrich(doc)
}

// Clear deletes the cart. A missing cart is already clear, so NOT_FOUND is
// swallowed.
func (s *service) Clear(ctx context.Context, email string) error {
	err := s.store.Delete(ctx, recordstore.CollectionCarts, normalizeEmail(email))
	if err != nil && !errors.IsCode(err, errors.CodeNotFound) {
		return err
	}
	return nil
}

func (s *service) enrich(doc Cart) (*View, error) {
	view := View{Items: make([]ItemView, 0, len(doc.Items)), AmountCents: doc.AmountCents}
	for name, qty := range doc.Items {
		line := ItemView{Name: name, Quantity: qty}
		if item, err := s.menu.Get(name); err == nil {
			line.UnitPriceCents = item.PriceCents
			line.ImageURL = item.ImageURL
		}
		view.Items = append(view.Items, line)
	}
	sort.Slice(view.Items, func(i, j int) bool { return view.Items[i].Name < view.Items[j].Name })
	return &view, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
