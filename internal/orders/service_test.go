package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ovenlight/pizzeria-backend/internal/cart"
	"github.com/ovenlight/pizzeria-backend/internal/catalog"
	pkgerrors "github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/mailgun"
	"github.com/ovenlight/pizzeria-backend/pkg/metrics"
	"github.com/ovenlight/pizzeria-backend/pkg/recordstore"
	"github.com/ovenlight/pizzeria-backend/pkg/stripe"
)

type memStore struct {
	docs      map[string]map[string][]byte
	updateErr error
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]map[string][]byte)}
}

func (m *memStore) bucket(collection string) map[string][]byte {
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string][]byte)
	}
	return m.docs[collection]
}

func (m *memStore) Create(ctx context.Context, collection, key string, doc any) error {
	bucket := m.bucket(collection)
	if _, ok := bucket[key]; ok {
		return pkgerrors.New(pkgerrors.CodeAlreadyExists, "a record with this key already exists")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	bucket[key] = payload
	return nil
}

func (m *memStore) Read(ctx context.Context, collection, key string, out any) error {
	payload, ok := m.bucket(collection)[key]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
	}
	return json.Unmarshal(payload, out)
}

func (m *memStore) Update(ctx context.Context, collection, key string, doc any) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	bucket := m.bucket(collection)
	if _, ok := bucket[key]; !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	bucket[key] = payload
	return nil
}

func (m *memStore) Delete(ctx context.Context, collection, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	bucket := m.bucket(collection)
	if _, ok := bucket[key]; !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
	}
	delete(bucket, key)
	return nil
}

func (m *memStore) ListMask(ctx context.Context, collection, mask string) ([]recordstore.Entry, error) {
	bucket := m.bucket(collection)
	entries := make([]recordstore.Entry, 0, len(bucket))
	for key, payload := range bucket {
		if !strings.Contains(key, mask) {
			continue
		}
		entries = append(entries, recordstore.Entry{Key: key, Document: json.RawMessage(payload)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

type stubGateway struct {
	err     error
	charges []int
}

func (g *stubGateway) ChargeCard(ctx context.Context, card stripe.Card, amountCents int, description string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.charges = append(g.charges, amountCents)
	return "ch_test", nil
}

type stubSender struct {
	err  error
	sent []mailgun.Message
}

func (s *stubSender) Send(ctx context.Context, msg mailgun.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fixture struct {
	store   *memStore
	gateway *stubGateway
	sender  *stubSender
	svc     *service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   newMemStore(),
		gateway: &stubGateway{},
		sender:  &stubSender{},
	}
	svc, err := NewService(f.store, catalog.Default(), f.gateway, f.sender, metrics.NewOrderMetrics(nil), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	f.svc = svc.(*service)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) seedCart(t *testing.T, email string, items map[string]int, amount int) {
	t.Helper()
	doc := cart.Cart{Items: items, AmountCents: amount}
	if err := f.store.Create(context.Background(), recordstore.CollectionCarts, email, doc); err != nil {
		t.Fatalf("seeding cart: %v", err)
	}
}

var validCard = CardInput{Number: "4242424242424242", ExpMonth: "05", ExpYear: "2030", CVC: "123"}

func TestPlaceOrderSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "a@b.c", map[string]int{"Margherita": 2, "Marinara": 1}, 170)

	view, err := f.svc.PlaceOrder(ctx, "a@b.c", validCard)
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	if view.PayStatus != PayStatusPaid || view.Status != StatusActive {
		t.Fatalf("unexpected order state %+v", view)
	}
	if view.AmountCents != 170 {
		t.Fatalf("expected amount 170, got %d", view.AmountCents)
	}
	if len(f.gateway.charges) != 1 || f.gateway.charges[0] != 170 {
		t.Fatalf("expected one 170-cent charge, got %v", f.gateway.charges)
	}

	// Cart is consumed.
	if err := f.store.Read(ctx, recordstore.CollectionCarts, "a@b.c", &cart.Cart{}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected cart deleted, got %v", err)
	}

	// Receipt itemizes the cart.
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected one receipt, got %d", len(f.sender.sent))
	}
	body := f.sender.sent[0].Text
	if !strings.Contains(body, "Margherita-2 pcs") || !strings.Contains(body, "Marinara-1 pcs") {
		t.Fatalf("receipt missing item lines:\n%s", body)
	}
	if !strings.Contains(body, "Amount 1.70 dollars") {
		t.Fatalf("receipt missing total:\n%s", body)
	}

	// The stored order survives with the snapshot.
	var stored Order
	if err := f.store.Read(ctx, recordstore.CollectionOrders, view.ID, &stored); err != nil {
		t.Fatalf("reading stored order: %v", err)
	}
	if stored.Cart.AmountCents != 170 || stored.PayStatus != PayStatusPaid {
		t.Fatalf("unexpected stored order %+v", stored)
	}
}

func TestPlaceOrderInvalidCard(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "a@b.c", map[string]int{"Margherita": 1}, 50)

	cards := []CardInput{
		{Number: "4242", ExpMonth: "05", ExpYear: "2030", CVC: "123"},
		{Number: "4242424242424242", ExpMonth: "5", ExpYear: "2030", CVC: "123"},
		{Number: "4242424242424242", ExpMonth: "05", ExpYear: "30", CVC: "123"},
		{Number: "4242424242424242", ExpMonth: "05", ExpYear: "2030", CVC: "12"},
		{Number: "4242424242424242", ExpMonth: "05", ExpYear: "2030", CVC: "abc"},
		{},
	}
	for _, card := range cards {
		_, err := f.svc.PlaceOrder(context.Background(), "a@b.c", card)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected VALIDATION for card %+v, got %v", card, err)
		}
	}

	// Validation happens before any I/O: cart untouched, nothing charged.
	if err := f.store.Read(context.Background(), recordstore.CollectionCarts, "a@b.c", &cart.Cart{}); err != nil {
		t.Fatalf("cart should remain, got %v", err)
	}
	if len(f.gateway.charges) != 0 {
		t.Fatalf("expected no charges, got %v", f.gateway.charges)
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), "a@b.c", validCard)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION for missing cart, got %v", err)
	}
}

func TestPlaceOrderPaymentFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "a@b.c", map[string]int{"Margherita": 2, "Marinara": 1}, 170)
	f.gateway.err = errors.New("card declined")

	_, err := f.svc.PlaceOrder(ctx, "a@b.c", validCard)
	if !pkgerrors.IsCode(err, pkgerrors.CodePayment) {
		t.Fatalf("expected PAYMENT_FAILED, got %v", err)
	}

	// The order exists, unpaid; the cart is already gone; no email went out.
	views, listErr := f.svc.ListOrders(ctx, "a@b.c")
	if listErr != nil {
		t.Fatalf("list failed: %v", listErr)
	}
	if len(views) != 1 || views[0].PayStatus != PayStatusUnpaid {
		t.Fatalf("expected one unpaid order, got %+v", views)
	}
	if err := f.store.Read(ctx, recordstore.CollectionCarts, "a@b.c", &cart.Cart{}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected cart deleted, got %v", err)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("expected no receipt, got %d", len(f.sender.sent))
	}
}

func TestPlaceOrderCartDeleteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "a@b.c", map[string]int{"Margherita": 2, "Marinara": 1}, 170)
	f.store.deleteErr = pkgerrors.New(pkgerrors.CodeStorage, "disk failure")

	_, err := f.svc.PlaceOrder(ctx, "a@b.c", validCard)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStorage) {
		t.Fatalf("expected STORAGE_FAILURE, got %v", err)
	}

	// The order survives unpaid and nothing downstream ran: no charge, no
	// email, cart still in place.
	views, listErr := f.svc.ListOrders(ctx, "a@b.c")
	if listErr != nil {
		t.Fatalf("list failed: %v", listErr)
	}
	if len(views) != 1 || views[0].PayStatus != PayStatusUnpaid {
		t.Fatalf("expected one unpaid order, got %+v", views)
	}
	if len(f.gateway.charges) != 0 {
		t.Fatalf("expected no charge, got %v", f.gateway.charges)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("expected no receipt, got %d", len(f.sender.sent))
	}
	f.store.deleteErr = nil
	if err := f.store.Read(ctx, recordstore.CollectionCarts, "a@b.c", &cart.Cart{}); err != nil {
		t.Fatalf("cart must remain, got %v", err)
	}
}

func TestPlaceOrderPaidUpdateFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "a@b.c", map[string]int{"Crudo": 1}, 250)
	f.store.updateErr = pkgerrors.New(pkgerrors.CodeStorage, "disk failure")

	_, err := f.svc.PlaceOrder(ctx, "a@b.c", validCard)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStorage) {
		t.Fatalf("expected STORAGE_FAILURE, got %v", err)
	}

	// The charge went through but the paid state never landed: the stored
	// order still says unpaid and no receipt was attempted.
	if len(f.gateway.charges) != 1 || f.gateway.charges[0] != 250 {
		t.Fatalf("expected one charge of 250, got %v", f.gateway.charges)
	}
	views, listErr := f.svc.ListOrders(ctx, "a@b.c")
	if listErr != nil {
		t.Fatalf("list failed: %v", listErr)
	}
	if len(views) != 1 || views[0].PayStatus != PayStatusUnpaid {
		t.Fatalf("expected one unpaid order, got %+v", views)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("expected no receipt, got %d", len(f.sender.sent))
	}
}

func TestPlaceOrderReceiptFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "a@b.c", map[string]int{"Crudo": 1}, 250)
	f.sender.err = errors.New("mailgun 401")

	_, err := f.svc.PlaceOrder(ctx, "a@b.c", validCard)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotification) {
		t.Fatalf("expected NOTIFICATION_FAILED, got %v", err)
	}

	// The error details pinpoint the stranded state: paid, receipt not sent.
	typed := pkgerrors.As(err)
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if details["pay_status"] != "paid" || details["receipt_sent"] != false {
		t.Fatalf("unexpected details %v", details)
	}

	orderID, _ := details["order_id"].(string)
	var stored Order
	if err := f.store.Read(ctx, recordstore.CollectionOrders, orderID, &stored); err != nil {
		t.Fatalf("reading stored order: %v", err)
	}
	if stored.PayStatus != PayStatusPaid {
		t.Fatalf("order must remain paid, got %s", stored.PayStatus)
	}
}

func TestPlaceOrderKeyCollisionRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A prior order occupies the exact millisecond the clock reports.
	ms := f.svc.now().UnixMilli()
	existing := Order{ID: orderKey("a@b.c", ms), Email: "a@b.c", Date: ms, Status: StatusActive, PayStatus: PayStatusPaid}
	if err := f.store.Create(ctx, recordstore.CollectionOrders, existing.ID, existing); err != nil {
		t.Fatalf("seeding existing order: %v", err)
	}
	f.seedCart(t, "a@b.c", map[string]int{"Margherita": 1}, 50)

	view, err := f.svc.PlaceOrder(ctx, "a@b.c", validCard)
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if view.Date != ms+1 {
		t.Fatalf("expected nudged timestamp %d, got %d", ms+1, view.Date)
	}
}

func TestUpdateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "a@b.c", map[string]int{"Margherita": 1}, 50)

	placed, err := f.svc.PlaceOrder(ctx, "a@b.c", validCard)
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	updated, err := f.svc.UpdateOrder(ctx, "a@b.c", placed.Date, StatusDone, PayStatusPaid)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != StatusDone {
		t.Fatalf("expected done, got %s", updated.Status)
	}

	// No transition guard: done can go back to active and unpaid.
	reverted, err := f.svc.UpdateOrder(ctx, "a@b.c", placed.Date, StatusActive, PayStatusUnpaid)
	if err != nil {
		t.Fatalf("revert failed: %v", err)
	}
	if reverted.Status != StatusActive || reverted.PayStatus != PayStatusUnpaid {
		t.Fatalf("unexpected state %+v", reverted)
	}

	if _, err := f.svc.UpdateOrder(ctx, "a@b.c", placed.Date, "shipped", PayStatusPaid); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION for bad status, got %v", err)
	}
	if _, err := f.svc.UpdateOrder(ctx, "a@b.c", 123, StatusDone, PayStatusPaid); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown order, got %v", err)
	}
}

func TestCancelOrderUnconditional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "a@b.c", map[string]int{"Margherita": 1}, 50)

	placed, err := f.svc.PlaceOrder(ctx, "a@b.c", validCard)
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if _, err := f.svc.UpdateOrder(ctx, "a@b.c", placed.Date, StatusDone, PayStatusPaid); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	cancelled, err := f.svc.CancelOrder(ctx, "a@b.c", placed.Date)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.PayStatus != PayStatusPaid {
		t.Fatalf("cancellation must not touch payment status, got %s", cancelled.PayStatus)
	}

	// Cancelling again is equally unguarded: same outcome, no error.
	again, err := f.svc.CancelOrder(ctx, "a@b.c", placed.Date)
	if err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if again.Status != StatusCancelled || again.PayStatus != PayStatusPaid {
		t.Fatalf("unexpected state after repeated cancel: %+v", again)
	}

	if _, err := f.svc.CancelOrder(ctx, "a@b.c", 123); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestListOrdersScopedToEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedCart(t, "a@b.c", map[string]int{"Margherita": 1}, 50)
	if _, err := f.svc.PlaceOrder(ctx, "a@b.c", validCard); err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC) }
	f.seedCart(t, "other@b.c", map[string]int{"Crudo": 2}, 500)
	if _, err := f.svc.PlaceOrder(ctx, "other@b.c", validCard); err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	views, err := f.svc.ListOrders(ctx, "a@b.c")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 order for a@b.c, got %d", len(views))
	}
	if views[0].Items[0].Name != "Margherita" || views[0].Items[0].UnitPriceCents != 50 {
		t.Fatalf("expected enriched Margherita line, got %+v", views[0].Items)
	}
}

func TestRenderReceipt(t *testing.T) {
	body := RenderReceipt(cart.Cart{
		Items:       map[string]int{"Marinara": 1, "Margherita": 2},
		AmountCents: 170,
	})
	want := "Margherita-2 pcs\nMarinara-1 pcs\nAmount 1.70 dollars"
	if body != want {
		t.Fatalf("unexpected receipt body:\n%q\nwant:\n%q", body, want)
	}
}
