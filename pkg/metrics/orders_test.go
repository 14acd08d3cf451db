package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestOrderMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewOrderMetrics(reg)

	metrics.IncPlaced(170)
	metrics.IncPlaced(250)
	metrics.IncPaymentFailed()
	metrics.IncReceiptFailed()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "orders_placed_total"); err != nil {
		t.Fatalf("fetch placed: %v", err)
	} else if got != 2 {
		t.Fatalf("expected placed=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "orders_charged_cents_total"); err != nil {
		t.Fatalf("fetch charged: %v", err)
	} else if got != 420 {
		t.Fatalf("expected charged=420, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "orders_payment_failed_total"); err != nil {
		t.Fatalf("fetch payment failed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected payment_failed=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "orders_receipt_failed_total"); err != nil {
		t.Fatalf("fetch receipt failed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected receipt_failed=1, got %f", got)
	}
}

func TestOrderMetricsNilRegisterer(t *testing.T) {
	metrics := NewOrderMetrics(nil)

	// Must not panic when nothing is registered.
	metrics.IncPlaced(100)
	metrics.IncPaymentFailed()
	metrics.IncReceiptFailed()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		metrics := mf.GetMetric()
		if len(metrics) == 0 {
			return 0, fmt.Errorf("metric %q has no samples", name)
		}
		return metrics[0].GetCounter().GetValue(), nil
	}
	return 0, fmt.Errorf("metric %q not found", name)
}
