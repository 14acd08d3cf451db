package orders

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ovenlight/pizzeria-backend/internal/cart"
)

// RenderReceipt produces the plain-text receipt body: one `name-qty pcs`
// line per item, then the dollar total.
func RenderReceipt(snapshot cart.Cart) string {
	names := make([]string, 0, len(snapshot.Items))
	for name := range snapshot.Items {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s-%d pcs\n", name, snapshot.Items[name])
	}
	fmt.Fprintf(&b, "Amount %.2f dollars", float64(snapshot.AmountCents)/100)
	return b.String()
}
