package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownItem is returned when an item id is not present in the catalog.
	ErrUnknownItem = errors.New("unknown item")
	// ErrInvalidCatalog indicates the menu definition failed validation.
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Category groups menu items for promotion rules.
type Category string

const (
	CategoryCoffee Category = "coffee"
	CategoryJuice  Category = "juice"
	CategoryCake   Category = "cake"
	CategoryOther  Category = "other"
)

// ParseCategory normalises a category label into one of the known categories.
func ParseCategory(value string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(value))); c {
	case CategoryCoffee, CategoryJuice, CategoryCake, CategoryOther:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidCatalog, value)
	}
}

// Item is a single priced menu entry.
type Item struct {
	ID        string
	Category  Category
	UnitPrice decimal.Decimal
	Variants  []string
}

// Catalog is an immutable menu. Items keep their declaration order.
type Catalog struct {
	items []Item
	index map[string]int
}

// New validates items and builds a catalog from them.
func New(items []Item) (*Catalog, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidCatalog)
	}
	c := &Catalog{
		items: make([]Item, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, it := range items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: item id is required", ErrInvalidCatalog)
		}
		if _, dup := c.index[id]; dup {
			return nil, fmt.Errorf("%w: duplicate item %q", ErrInvalidCatalog, id)
		}
		category, err := ParseCategory(string(it.Category))
		if err != nil {
			return nil, err
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: negative price for %q", ErrInvalidCatalog, id)
		}
		if !it.UnitPrice.Equal(it.UnitPrice.Round(2)) {
			return nil, fmt.Errorf("%w: price for %q has more than 2 decimals", ErrInvalidCatalog, id)
		}
		variants := append([]string(nil), it.Variants...)
		c.index[id] = len(c.items)
		c.items = append(c.items, Item{ID: id, Category: category, UnitPrice: it.UnitPrice, Variants: variants})
	}
	return c, nil
}

// MustNew is New for static menus; it panics on invalid input.
func MustNew(items []Item) *Catalog {
	c, err := New(items)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the item registered under id.
func (c *Catalog) Lookup(id string) (Item, error) {
	if c == nil {
		return Item{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	i, ok := c.index[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	return c.items[i], nil
}

// PriceOf returns the unit price for id.
func (c *Catalog) PriceOf(id string) (decimal.Decimal, error) {
	it, err := c.Lookup(id)
	if err != nil {
		return decimal.Zero, err
	}
	return it.UnitPrice, nil
}

// CategoryOf returns the category for id.
func (c *Catalog) CategoryOf(id string) (Category, error) {
	it, err := c.Lookup(id)
	if err != nil {
		return "", err
	}
	return it.Category, nil
}

// Items returns a copy of the menu in declaration order.
func (c *Catalog) Items() []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the number of items on the menu.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Default returns the house menu.
func Default() *Catalog {
	return MustNew([]Item{
		{ID: "Coffee", Category: CategoryCoffee, UnitPrice: decimal.RequireFromString("3.00"), Variants: []string{"Mocha", "Latte", "Cappuccino"}},
		{ID: "Fruit Juice", Category: CategoryJuice, UnitPrice: decimal.RequireFromString("2.00"), Variants: []string{"Apple", "Lemon", "Watermelon"}},
		{ID: "Cake", Category: CategoryCake, UnitPrice: decimal.RequireFromString("6.00"), Variants: []string{"Chocolate", "Vanilla", "Cheese"}},
	})
}
