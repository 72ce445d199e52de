package pricing

import (
	"testing"

	"github.com/noah-isme/cafe-pricing/internal/catalog"
)

func TestHasCombo(t *testing.T) {
	menu := catalog.MustNew([]catalog.Item{
		{ID: "Latte", Category: catalog.CategoryCoffee, UnitPrice: d("4.50")},
		{ID: "Mocha", Category: catalog.CategoryCoffee, UnitPrice: d("5.00")},
		{ID: "Cheesecake", Category: catalog.CategoryCake, UnitPrice: d("6.00")},
		{ID: "Orange", Category: catalog.CategoryJuice, UnitPrice: d("2.00")},
		{ID: "Muffin", Category: catalog.CategoryOther, UnitPrice: d("3.00")},
	})

	cases := []struct {
		name  string
		order Order
		want  bool
	}{
		{name: "empty", order: Order{}, want: false},
		{name: "coffee and cake", order: Order{"Latte": 1, "Cheesecake": 1}, want: true},
		{name: "other coffee counts", order: Order{"Mocha": 5, "Cheesecake": 2}, want: true},
		{name: "third category does not matter", order: Order{"Latte": 1, "Cheesecake": 1, "Orange": 4, "Muffin": 1}, want: true},
		{name: "coffee only", order: Order{"Latte": 2, "Mocha": 1}, want: false},
		{name: "cake only", order: Order{"Cheesecake": 3, "Orange": 1}, want: false},
		{name: "zero cake", order: Order{"Latte": 1, "Cheesecake": 0}, want: false},
		{name: "unknown ids ignored", order: Order{"Latte": 1, "Brownie": 2}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasCombo(menu, tc.order); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
