package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks the order placement workflow.
type OrderMetrics struct {
	placed         prometheus.Counter
	paymentFailed  prometheus.Counter
	receiptFailed  prometheus.Counter
	chargedCents   prometheus.Counter
}

// NewOrderMetrics registers the order workflow metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders placed and charged successfully.",
	})
	paymentFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_payment_failed_total",
		Help: "Orders whose card charge was declined or errored.",
	})
	receiptFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_receipt_failed_total",
		Help: "Paid orders whose receipt email could not be sent.",
	})
	chargedCents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_charged_cents_total",
		Help: "Total amount charged across all paid orders, in cents.",
	})
	reg.MustRegister(placed, paymentFailed, receiptFailed, chargedCents)
	return &OrderMetrics{
		placed:        placed,
		paymentFailed: paymentFailed,
		receiptFailed: receiptFailed,
		chargedCents:  chargedCents,
	}
}

// IncPlaced records a successfully charged order and its amount.
func (o *OrderMetrics) IncPlaced(amountCents int) {
	if o == nil || o.placed == nil {
		return
	}
	o.placed.Inc()
	if amountCents > 0 {
		o.chargedCents.Add(float64(amountCents))
	}
}

// IncPaymentFailed records a declined or errored charge.
func (o *OrderMetrics) IncPaymentFailed() {
	if o == nil || o.paymentFailed == nil {
		return
	}
	o.paymentFailed.Inc()
}

// IncReceiptFailed records a paid order whose receipt email failed.
func (o *OrderMetrics) IncReceiptFailed() {
	if o == nil || o.receiptFailed == nil {
		return
	}
	o.receiptFailed.Inc()
}
