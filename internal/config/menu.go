package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/cafe-pricing/internal/catalog"
	"github.com/noah-isme/cafe-pricing/internal/timeband"
	"github.com/noah-isme/cafe-pricing/internal/voucher"
)

// ErrInvalidMenu wraps failures while reading a menu document.
var ErrInvalidMenu = errors.New("invalid menu file")

// Menu bundles the reference data a pricing evaluation needs.
type Menu struct {
	Currency   string
	Catalog    *catalog.Catalog
	Slots      *timeband.Table
	Vouchers   *voucher.Book
	Promotions *voucher.Promotions
}

type menuDoc struct {
	Currency   string         `yaml:"currency"`
	Items      []itemDoc      `yaml:"items"`
	Slots      []slotDoc      `yaml:"slots"`
	Vouchers   []voucherDoc   `yaml:"vouchers"`
	Promotions []promotionDoc `yaml:"promotions"`
}

type itemDoc struct {
	ID       string   `yaml:"id"`
	Category string   `yaml:"category"`
	Price    string   `yaml:"price"`
	Variants []string `yaml:"variants"`
}

type slotDoc struct {
	Label     string `yaml:"label"`
	Band      string `yaml:"band"`
	StartHour *int   `yaml:"start_hour"`
	EndHour   *int   `yaml:"end_hour"`
}

type voucherDoc struct {
	Code       string     `yaml:"code"`
	PercentBps int32      `yaml:"percent_bps"`
	MinSpend   string     `yaml:"min_spend"`
	ValidFrom  *time.Time `yaml:"valid_from"`
	ValidTo    *time.Time `yaml:"valid_to"`
}

type promotionDoc struct {
	Name     string   `yaml:"name"`
	Requires []string `yaml:"requires"`
	Amount   string   `yaml:"amount"`
}

// DefaultMenu is the built-in house menu with the named slot table.
func DefaultMenu(slotTable string) (*Menu, error) {
	slots, err := timeband.Named(slotTable)
	if err != nil {
		return nil, err
	}
	return &Menu{
		Currency: "SGD",
		Catalog:  catalog.Default(),
		Slots:    slots,
		Vouchers: voucher.DefaultBook(),
	}, nil
}

// LoadMenu reads a YAML menu file. An empty path yields DefaultMenu.
// slotTable names the built-in table used when the file declares no slots.
func LoadMenu(path, slotTable string) (*Menu, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultMenu(slotTable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu %s: %w", path, err)
	}
	menu, err := ParseMenu(data, slotTable)
	if err != nil {
		return nil, fmt.Errorf("menu %s: %w", path, err)
	}
	return menu, nil
}

// ParseMenu decodes a YAML menu document.
func ParseMenu(data []byte, slotTable string) (*Menu, error) {
	var doc menuDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMenu, err)
	}

	items := make([]catalog.Item, 0, len(doc.Items))
	for _, it := range doc.Items {
		price, err := decimal.NewFromString(strings.TrimSpace(it.Price))
		if err != nil {
			return nil, fmt.Errorf("%w: item %q price %q", ErrInvalidMenu, it.ID, it.Price)
		}
		items = append(items, catalog.Item{
			ID:        it.ID,
			Category:  catalog.Category(it.Category),
			UnitPrice: price,
			Variants:  it.Variants,
		})
	}
	cat, err := catalog.New(items)
	if err != nil {
		return nil, err
	}

	var slots *timeband.Table
	if len(doc.Slots) == 0 {
		slots, err = timeband.Named(slotTable)
	} else {
		defs := make([]timeband.Slot, 0, len(doc.Slots))
		for _, s := range doc.Slots {
			defs = append(defs, timeband.Slot{
				Label:     s.Label,
				Band:      timeband.Band(s.Band),
				StartHour: hourOrNone(s.StartHour),
				EndHour:   hourOrNone(s.EndHour),
			})
		}
		slots, err = timeband.NewTable(defs)
	}
	if err != nil {
		return nil, err
	}

	rules := make([]voucher.Rule, 0, len(doc.Vouchers))
	for _, v := range doc.Vouchers {
		minSpend := decimal.Zero
		if strings.TrimSpace(v.MinSpend) != "" {
			minSpend, err = decimal.NewFromString(strings.TrimSpace(v.MinSpend))
			if err != nil {
				return nil, fmt.Errorf("%w: voucher %q min_spend %q", ErrInvalidMenu, v.Code, v.MinSpend)
			}
		}
		rules = append(rules, voucher.Rule{
			Code:       v.Code,
			PercentBps: v.PercentBps,
			MinSpend:   minSpend,
			ValidFrom:  v.ValidFrom,
			ValidTo:    v.ValidTo,
		})
	}
	book, err := voucher.NewBook(rules)
	if err != nil {
		return nil, err
	}

	promoDefs := make([]voucher.Promotion, 0, len(doc.Promotions))
	for _, p := range doc.Promotions {
		amount, err := decimal.NewFromString(strings.TrimSpace(p.Amount))
		if err != nil {
			return nil, fmt.Errorf("%w: promotion %q amount %q", ErrInvalidMenu, p.Name, p.Amount)
		}
		promoDefs = append(promoDefs, voucher.Promotion{Name: p.Name, Requires: p.Requires, Amount: amount})
	}
	promos, err := voucher.NewPromotions(promoDefs)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(doc.Currency))
	if currency == "" {
		currency = "SGD"
	}
	return &Menu{Currency: currency, Catalog: cat, Slots: slots, Vouchers: book, Promotions: promos}, nil
}

func hourOrNone(h *int) int {
	if h == nil {
		return timeband.NoHour
	}
	return *h
}
