package catalog

import (
	"testing"

	"github.com/ovenlight/pizzeria-backend/pkg/errors"
)

func TestDefaultMenuPrices(t *testing.T) {
	menu := Default()

	prices := map[string]int{
		"Margherita": 50,
		"Marinara":   70,
		"Quattro":    100,
		"Carbonara":  90,
		"Frutti":     200,
		"Crudo":      250,
	}
	for name, want := range prices {
		item, err := menu.Get(name)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", name, err)
		}
		if item.PriceCents != want {
			t.Fatalf("expected %q price %d, got %d", name, want, item.PriceCents)
		}
	}
}

func TestGetUnknownItem(t *testing.T) {
	menu := Default()

	_, err := menu.Get("Hawaiian")
	if err == nil {
		t.Fatal("expected error for unknown item")
	}
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if menu.Has("Hawaiian") {
		t.Fatal("Has should be false for unknown item")
	}
}

func TestAllSortedByName(t *testing.T) {
	items := Default().All()
	if len(items) != 6 {
		t.Fatalf("expected 6 items, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].Name >= items[i].Name {
			t.Fatalf("items not sorted: %q before %q", items[i-1].Name, items[i].Name)
		}
	}
}
