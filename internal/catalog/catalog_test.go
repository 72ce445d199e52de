package catalog_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-pricing/internal/catalog"
)

func TestDefaultMenu(t *testing.T) {
	c := catalog.Default()
	require.Equal(t, 3, c.Len())

	price, err := c.PriceOf("Cake")
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(6)))

	cat, err := c.CategoryOf("Fruit Juice")
	require.NoError(t, err)
	require.Equal(t, catalog.CategoryJuice, cat)

	ids := make([]string, 0, c.Len())
	for _, it := range c.Items() {
		ids = append(ids, it.ID)
	}
	require.Equal(t, []string{"Coffee", "Fruit Juice", "Cake"}, ids)
}

func TestUnknownItem(t *testing.T) {
	c := catalog.Default()
	_, err := c.PriceOf("Tea")
	require.True(t, errors.Is(err, catalog.ErrUnknownItem))
	_, err = c.CategoryOf("Tea")
	require.True(t, errors.Is(err, catalog.ErrUnknownItem))

	var nilCatalog *catalog.Catalog
	_, err = nilCatalog.Lookup("Coffee")
	require.True(t, errors.Is(err, catalog.ErrUnknownItem))
}

func TestNewRejectsInvalidMenus(t *testing.T) {
	price := decimal.RequireFromString("1.00")
	cases := map[string][]catalog.Item{
		"empty":          nil,
		"blank id":       {{ID: " ", Category: catalog.CategoryCoffee, UnitPrice: price}},
		"duplicate":      {{ID: "A", Category: catalog.CategoryCoffee, UnitPrice: price}, {ID: "A", Category: catalog.CategoryCake, UnitPrice: price}},
		"bad category":   {{ID: "A", Category: "sandwich", UnitPrice: price}},
		"negative price": {{ID: "A", Category: catalog.CategoryCoffee, UnitPrice: decimal.RequireFromString("-1")}},
		"sub cent":       {{ID: "A", Category: catalog.CategoryCoffee, UnitPrice: decimal.RequireFromString("1.005")}},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.New(items)
			require.True(t, errors.Is(err, catalog.ErrInvalidCatalog), "got %v", err)
		})
	}
}

func TestItemsIsACopy(t *testing.T) {
	c := catalog.Default()
	items := c.Items()
	items[0].ID = "Changed"
	_, err := c.Lookup("Coffee")
	require.NoError(t, err)
	require.Equal(t, "Coffee", c.Items()[0].ID)
}

func TestParseCategoryNormalises(t *testing.T) {
	cat, err := catalog.ParseCategory(" Coffee ")
	require.NoError(t, err)
	require.Equal(t, catalog.CategoryCoffee, cat)
}
