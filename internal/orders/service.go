package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ovenlight/pizzeria-backend/internal/cart"
	"github.com/ovenlight/pizzeria-backend/internal/catalog"
	"github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/logger"
	"github.com/ovenlight/pizzeria-backend/pkg/mailgun"
	"github.com/ovenlight/pizzeria-backend/pkg/metrics"
	"github.com/ovenlight/pizzeria-backend/pkg/recordstore"
	"github.com/ovenlight/pizzeria-backend/pkg/stripe"
)

// Status is the fulfilment state of an order.
type Status string

// PayStatus is the payment state of an order.
type PayStatus string

const (
	StatusActive    Status = "active"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"

	PayStatusUnpaid PayStatus = "unpaid"
	PayStatusPaid   PayStatus = "paid"
)

// ValidStatus reports enum membership.
func ValidStatus(s Status) bool {
	return s == StatusActive || s == StatusDone || s == StatusCancelled
}

// ValidPayStatus reports enum membership.
func ValidPayStatus(s PayStatus) bool {
	return s == PayStatusUnpaid || s == PayStatusPaid
}

// keyCollisionAttempts bounds the retry loop when two orders for one email
// land on the same millisecond.
const keyCollisionAttempts = 5

// Order is the stored document, keyed by `{email}_{msEpoch}`. Orders are
// never deleted; cancellation is a status change.
type Order struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Cart      cart.Cart `json:"cart"`
	Date      int64     `json:"date"`
	Status    Status    `json:"status"`
	PayStatus PayStatus `json:"payStatus"`
}

// CardInput carries the checkout card details. The shape check mirrors the
// gateway's expectations: 16-digit number, 2-digit month, 4-digit year,
// 3-digit cvc.
type CardInput struct {
	Number   string `json:"number" validate:"required,len=16,numeric"`
	ExpMonth string `json:"exp_month" validate:"required,len=2,numeric"`
	ExpYear  string `json:"exp_year" validate:"required,len=4,numeric"`
	CVC      string `json:"cvc" validate:"required,len=3,numeric"`
}

// ItemView is an order line enriched with catalog data.
type ItemView struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price"`
	ImageURL       string `json:"image"`
}

// View is the enriched order returned to callers.
type View struct {
	ID          string     `json:"id"`
	Date        int64      `json:"date"`
	Status      Status     `json:"status"`
	PayStatus   PayStatus  `json:"payStatus"`
	Items       []ItemView `json:"items"`
	AmountCents int        `json:"amount"`
}

type recordStore interface {
	Create(ctx context.Context, collection, key string, doc any) error
	Read(ctx context.Context, collection, key string, out any) error
	Update(ctx context.Context, collection, key string, doc any) error
	Delete(ctx context.Context, collection, key string) error
	ListMask(ctx context.Context, collection, mask string) ([]recordstore.Entry, error)
}

// Service exposes the order workflow.
type Service interface {
	PlaceOrder(ctx context.Context, email string, card CardInput) (*View, error)
	GetOrder(ctx context.Context, email string, date int64) (*View, error)
	ListOrders(ctx context.Context, email string) ([]View, error)
	UpdateOrder(ctx context.Context, email string, date int64, status Status, payStatus PayStatus) (*View, error)
	CancelOrder(ctx context.Context, email string, date int64) (*View, error)
}

type service struct {
	store    recordStore
	menu     *catalog.Catalog
	gateway  stripe.Charger
	sender   mailgun.Sender
	metrics  *metrics.OrderMetrics
	logger   *logger.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds the order workflow.
func NewService(store recordStore, menu *catalog.Catalog, gateway stripe.Charger, sender mailgun.Sender, orderMetrics *metrics.OrderMetrics, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("record store required")
	}
	if menu == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if sender == nil {
		return nil, fmt.Errorf("receipt sender required")
	}
	return &service{
		store:    store,
		menu:     menu,
		gateway:  gateway,
		sender:   sender,
		metrics:  orderMetrics,
		logger:   logg,
		validate: validator.New(),
		now:      time.Now,
	}, nil
}

// PlaceOrder runs the checkout sequence: validate card, snapshot the cart
// into a new order, clear the cart, charge once, mark paid, email a receipt.
// There is no rollback: each failure leaves all earlier steps' state intact
// and reports exactly how far the workflow got.
func (s *service) PlaceOrder(ctx context.Context, email string, card CardInput) (*View, error) {
	email = normalizeEmail(email)

	if err := s.validate.Struct(card); err != nil {
		fields := map[string]any{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		return nil, errors.New(errors.CodeValidation, "invalid payment details").WithDetails(fields)
	}

	var snapshot cart.Cart
	if err := s.store.Read(ctx, recordstore.CollectionCarts, email, &snapshot); err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return nil, errors.New(errors.CodeValidation, "cart is empty")
		}
		return nil, err
	}
	if len(snapshot.Items) == 0 {
		return nil, errors.New(errors.CodeValidation, "cart is empty")
	}

	order, err := s.createOrder(ctx, email, snapshot)
	if err != nil {
		return nil, err
	}
	ctx = s.withOrderContext(ctx, order.ID)

	if err := s.store.Delete(ctx, recordstore.CollectionCarts, email); err != nil && !errors.IsCode(err, errors.CodeNotFound) {
		// The order exists but the cart could not be cleared; surfaced, not repaired.
		return nil, err
	}

	description := fmt.Sprintf("Pizza order %s", order.ID)
	if _, err := s.gateway.ChargeCard(ctx, stripe.Card{
		Number:   card.Number,
		ExpMonth: card.ExpMonth,
		ExpYear:  card.ExpYear,
		CVC:      card.CVC,
	}, order.Cart.AmountCents, description); err != nil {
		s.metrics.IncPaymentFailed()
		if s.logger != nil {
			s.logger.Error(ctx, "card charge failed", err)
		}
		return nil, errors.Wrap(errors.CodePayment, err, "card charge failed").
			WithDetails(map[string]any{"order_id": order.ID, "pay_status": string(PayStatusUnpaid)})
	}

	order.PayStatus = PayStatusPaid
	if err := s.store.Update(ctx, recordstore.CollectionOrders, order.ID, order); err != nil {
		return nil, err
	}
	s.metrics.IncPlaced(order.Cart.AmountCents)

	receipt := mailgun.Message{
		To:      email,
		Subject: fmt.Sprintf("Your pizza order %s", order.ID),
		Text:    RenderReceipt(order.Cart),
	}
	if err := s.sender.Send(ctx, receipt); err != nil {
		s.metrics.IncReceiptFailed()
		if s.logger != nil {
			s.logger.Error(ctx, "receipt email failed", err)
		}
		return nil, errors.Wrap(errors.CodeNotification, err, "order paid but receipt email failed").
			WithDetails(map[string]any{
				"order_id":     order.ID,
				"pay_status":   string(PayStatusPaid),
				"receipt_sent": false,
			})
	}

	if s.logger != nil {
		s.logger.Info(ctx, "order placed")
	}
	return s.enrich(order), nil
}

// createOrder persists the snapshot under `{email}_{ms}`, nudging the
// timestamp forward on a same-millisecond collision.
func (s *service) createOrder(ctx context.Context, email string, snapshot cart.Cart) (Order, error) {
	ms := s.now().UnixMilli()
	for attempt := 0; attempt < keyCollisionAttempts; attempt++ {
		order := Order{
			ID:        orderKey(email, ms),
			Email:     email,
			Cart:      snapshot,
			Date:      ms,
			Status:    StatusActive,
			PayStatus: PayStatusUnpaid,
		}
		err := s.store.Create(ctx, recordstore.CollectionOrders, order.ID, order)
		if err == nil {
			return order, nil
		}
		if !errors.IsCode(err, errors.CodeAlreadyExists) {
			return Order{}, err
		}
		ms++
	}
	return Order{}, errors.New(errors.CodeStorage, "could not allocate an order id")
}

// GetOrder loads a single order by its owner and timestamp.
func (s *service) GetOrder(ctx context.Context, email string, date int64) (*View, error) {
	var order Order
	if err := s.store.Read(ctx, recordstore.CollectionOrders, orderKey(normalizeEmail(email), date), &order); err != nil {
		return nil, err
	}
	return s.enrich(order), nil
}

// ListOrders returns every order belonging to the email, oldest first.
func (s *service) ListOrders(ctx context.Context, email string) ([]View, error) {
	email = normalizeEmail(email)
	prefix := email + "_"
	entries, err := s.store.ListMask(ctx, recordstore.CollectionOrders, prefix)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0)
	for _, entry := range entries {
		// the mask is a substring match, so keep only true prefix hits
		if !strings.HasPrefix(entry.Key, prefix) {
			continue
		}
		var order Order
		if err := json.Unmarshal(entry.Document, &order); err != nil {
			return nil, errors.Wrap(errors.CodeStorage, err, "decoding order record")
		}
		views = append(views, *s.enrich(order))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Date < views[j].Date })
	return views, nil
}

// UpdateOrder overwrites both statuses after enum membership checks. There
// is no transition guard: done can go back to active.
func (s *service) UpdateOrder(ctx context.Context, email string, date int64, status Status, payStatus PayStatus) (*View, error) {
	if !ValidStatus(status) {
		return nil, errors.New(errors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": string(status)})
	}
	if !ValidPayStatus(payStatus) {
		return nil, errors.New(errors.CodeValidation, "invalid payment status").
			WithDetails(map[string]any{"payStatus": string(payStatus)})
	}

	key := orderKey(normalizeEmail(email), date)
	var order Order
	if err := s.store.Read(ctx, recordstore.CollectionOrders, key, &order); err != nil {
		return nil, err
	}

	order.Status = status
	order.PayStatus = payStatus
	if err := s.store.Update(ctx, recordstore.CollectionOrders, key, order); err != nil {
		return nil, err
	}
	return s.enrich(order), nil
}

// CancelOrder sets status=cancelled unconditionally, even on a done order.
func (s *service) CancelOrder(ctx context.Context, email string, date int64) (*View, error) {
	key := orderKey(normalizeEmail(email), date)
	var order Order
	if err := s.store.Read(ctx, recordstore.CollectionOrders, key, &order); err != nil {
		return nil, err
	}

	order.Status = StatusCancelled
	if err := s.store.Update(ctx, recordstore.CollectionOrders, key, order); err != nil {
		return nil, err
	}
	return s.enrich(order), nil
}

func (s *service) enrich(order Order) *View {
	view := View{
		ID:          order.ID,
		Date:        order.Date,
		Status:      order.Status,
		PayStatus:   order.PayStatus,
		Items:       make([]ItemView, 0, len(order.Cart.Items)),
		AmountCents: order.Cart.AmountCents,
	}
	for name, qty := range order.Cart.Items {
		line := ItemView{Name: name, Quantity: qty}
		if item, err := s.menu.Get(name); err == nil {
			line.UnitPriceCents = item.PriceCents
			line.ImageURL = item.ImageURL
		}
		view.Items = append(view.Items, line)
	}
	sort.Slice(view.Items, func(i, j int) bool { return view.Items[i].Name < view.Items[j].Name })
	return &view
}

func (s *service) withOrderContext(ctx context.Context, orderID string) context.Context {
	if s.logger == nil {
		return ctx
	}
	return s.logger.WithOrderID(ctx, orderID)
}

func orderKey(email string, ms int64) string {
	return fmt.Sprintf("%s_%d", email, ms)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
