package catalog

import (
	"sort"

	"github.com/ovenlight/pizzeria-backend/pkg/errors"
)

// Item is a menu entry. Prices are integer cents.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int    `json:"price"`
	ImageURL    string `json:"image"`
}

// Catalog is the immutable pizza menu. It lives in process; nothing writes
// to it after construction.
type Catalog struct {
	items map[string]Item
}

// New builds a catalog from the provided items.
func New(items []Item) *Catalog {
	indexed := make(map[string]Item, len(items))
	for _, item := range items {
		indexed[item.Name] = item
	}
	return &Catalog{items: indexed}
}

// Default returns the house menu.
func Default() *Catalog {
	return New([]Item{
		{Name: "Margherita", Description: "Tomato sauce, mozzarella, and oregano", PriceCents: 50, ImageURL: "margherita.png"},
		{Name: "Marinara", Description: "Tomato sauce, garlic and basil", PriceCents: 70, ImageURL: "marinara.png"},
		{Name: "Quattro", Description: "Tomato sauce, mozzarella, mushrooms, ham, artichokes, olives, and oregano", PriceCents: 100, ImageURL: "stagioni.png"},
		{Name: "Carbonara", Description: "Tomato sauce, mozzarella, parmesan, eggs, and bacon", PriceCents: 90, ImageURL: "carbonara.png"},
		{Name: "Frutti", Description: "Tomato sauce and seafood", PriceCents: 200, ImageURL: "frutti.png"},
		{Name: "Crudo", Description: "Tomato sauce, mozzarella and Parma ham", PriceCents: 250, ImageURL: "crudo.png"},
	})
}

// Get returns the item by exact name.
func (c *Catalog) Get(name string) (Item, error) {
	item, ok := c.items[name]
	if !ok {
		return Item{}, errors.New(errors.CodeNotFound, "menu item not found").
			WithDetails(map[string]any{"name": name})
	}
	return item, nil
}

// Has reports whether the named item is on the menu.
func (c *Catalog) Has(name string) bool {
	_, ok := c.items[name]
	return ok
}

// All returns the full menu sorted by name.
func (c *Catalog) All() []Item {
	items := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}
