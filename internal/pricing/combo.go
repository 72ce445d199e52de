package pricing

import "github.com/noah-isme/cafe-pricing/internal/catalog"

// HasCombo reports whether the order holds at least one coffee item and at least one cake item.
// Ids missing from the menu are ignored; Evaluate rejects them separately.
func HasCombo(m Menu, o Order) bool {
	var coffee, cake bool
	for id, qty := range o {
		if qty <= 0 {
			continue
		}
		it, err := m.Lookup(id)
		if err != nil {
			continue
		}
		switch it.Category {
		case catalog.CategoryCoffee:
			coffee = true
		case catalog.CategoryCake:
			cake = true
		}
		if coffee && cake {
			return true
		}
	}
	return false
}
