package pricing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/cafe-pricing/internal/catalog"
	"github.com/noah-isme/cafe-pricing/internal/timeband"
)

// ErrInvalidOrder is returned when an order carries a negative quantity.
var ErrInvalidOrder = errors.New("invalid order")

// Menu is the read-only catalog view the engine prices against.
type Menu interface {
	Items() []catalog.Item
	Lookup(id string) (catalog.Item, error)
}

// Order maps item ids to quantities. Entries with quantity 0 are ignored.
type Order map[string]int

// Rounding selects where monetary values are rounded to cents.
type Rounding int

const (
	// PerStage rounds after the raw amount, the bulk discount and the time discount,
	// each rounded value feeding the next stage.
	PerStage Rounding = iota
	// RoundAtEnd keeps full precision and rounds only the reported figures.
	RoundAtEnd
)

// Policy holds discount thresholds and rates.
type Policy struct {
	BulkThreshold      int
	BulkRate           decimal.Decimal
	EveningRate        decimal.Decimal
	AfternoonJuiceRate decimal.Decimal
	MorningComboRate   decimal.Decimal
	Rounding           Rounding
}

// DefaultPolicy returns the house discount rules.
func DefaultPolicy() Policy {
	return Policy{
		BulkThreshold:      3,
		BulkRate:           decimal.RequireFromString("0.10"),
		EveningRate:        decimal.RequireFromString("0.30"),
		AfternoonJuiceRate: decimal.RequireFromString("0.20"),
		MorningComboRate:   decimal.RequireFromString("0.20"),
		Rounding:           PerStage,
	}
}

// LineResult is the priced breakdown of one ordered item.
type LineResult struct {
	ItemID             string
	Category           catalog.Category
	Quantity           int
	UnitPrice          decimal.Decimal
	RawAmount          decimal.Decimal
	BulkDiscount       decimal.Decimal
	BeforeTimeDiscount decimal.Decimal
	TimeDiscountRate   decimal.Decimal
	TimeDiscount       decimal.Decimal
	FinalAmount        decimal.Decimal
}

// Summary aggregates line results.
type Summary struct {
	RawTotal          decimal.Decimal
	BulkDiscountTotal decimal.Decimal
	TimeDiscountTotal decimal.Decimal
	FinalTotal        decimal.Decimal
	ComboActive       bool
}

// Engine prices orders under a policy. The zero value is not usable; use NewEngine.
type Engine struct {
	policy Policy
}

// NewEngine constructs an engine with the given policy.
func NewEngine(p Policy) Engine {
	return Engine{policy: p}
}

// Policy returns the engine's discount rules.
func (e Engine) Policy() Policy { return e.policy }

// Evaluate prices an order with DefaultPolicy.
func Evaluate(m Menu, o Order, band timeband.Band) ([]LineResult, Summary, error) {
	return NewEngine(DefaultPolicy()).Evaluate(m, o, band)
}

// Evaluate validates the order and returns one line per ordered item, in menu order, plus totals.
// Any unknown item or negative quantity fails the whole evaluation.
func (e Engine) Evaluate(m Menu, o Order, band timeband.Band) ([]LineResult, Summary, error) {
	band, err := timeband.ParseBand(string(band))
	if err != nil {
		return nil, zeroSummary(), err
	}
	if err := Validate(m, o); err != nil {
		return nil, zeroSummary(), err
	}

	combo := HasCombo(m, o)
	lines := make([]LineResult, 0, len(o))
	for _, it := range m.Items() {
		qty := o[it.ID]
		if qty <= 0 {
			continue
		}
		lines = append(lines, e.line(it, qty, band, combo))
	}

	summary := e.summarise(lines)
	summary.ComboActive = combo
	return lines, summary, nil
}

// Validate checks quantities and item ids without pricing anything.
// Negative quantities are reported before unknown ids, each in sorted id order.
func Validate(m Menu, o Order) error {
	ids := make([]string, 0, len(o))
	for id := range o {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if qty := o[id]; qty < 0 {
			return fmt.Errorf("%w: negative quantity %d for %q", ErrInvalidOrder, qty, id)
		}
	}
	for _, id := range ids {
		if o[id] == 0 {
			continue
		}
		if _, err := m.Lookup(id); err != nil {
			return err
		}
	}
	return nil
}

// TimeRate picks the time-band factor for an item. Rules are checked in order and the first match wins.
func (e Engine) TimeRate(band timeband.Band, category catalog.Category, combo bool) decimal.Decimal {
	switch {
	case band == timeband.Evening:
		return e.policy.EveningRate
	case band == timeband.Afternoon && category == catalog.CategoryJuice:
		return e.policy.AfternoonJuiceRate
	case band == timeband.Morning && combo && (category == catalog.CategoryCoffee || category == catalog.CategoryCake):
		return e.policy.MorningComboRate
	default:
		return decimal.Zero
	}
}

func (e Engine) line(it catalog.Item, qty int, band timeband.Band, combo bool) LineResult {
	stage := func(d decimal.Decimal) decimal.Decimal {
		if e.policy.Rounding == PerStage {
			return cents(d)
		}
		return d
	}

	raw := stage(it.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
	before := raw
	if e.policy.BulkThreshold > 0 && qty >= e.policy.BulkThreshold {
		before = stage(raw.Mul(one.Sub(e.policy.BulkRate)))
	}
	rate := e.TimeRate(band, it.Category, combo)
	timeDisc := stage(before.Mul(rate))
	final := stage(before.Sub(timeDisc))

	return LineResult{
		ItemID:             it.ID,
		Category:           it.Category,
		Quantity:           qty,
		UnitPrice:          it.UnitPrice,
		RawAmount:          cents(raw),
		BulkDiscount:       cents(raw.Sub(before)),
		BeforeTimeDiscount: cents(before),
		TimeDiscountRate:   rate,
		TimeDiscount:       cents(timeDisc),
		FinalAmount:        cents(final),
	}
}

func (e Engine) summarise(lines []LineResult) Summary {
	if e.policy.Rounding == RoundAtEnd {
		return e.summariseUnrounded(lines)
	}
	s := zeroSummary()
	for _, l := range lines {
		s.RawTotal = s.RawTotal.Add(l.RawAmount)
		s.BulkDiscountTotal = s.BulkDiscountTotal.Add(l.BulkDiscount)
		s.TimeDiscountTotal = s.TimeDiscountTotal.Add(l.TimeDiscount)
		s.FinalTotal = s.FinalTotal.Add(l.FinalAmount)
	}
	return s
}

// summariseUnrounded re-derives full-precision line values and rounds the sums once.
func (e Engine) summariseUnrounded(lines []LineResult) Summary {
	var raw, bulk, timeDisc, final decimal.Decimal
	for _, l := range lines {
		r := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		before := r
		if e.policy.BulkThreshold > 0 && l.Quantity >= e.policy.BulkThreshold {
			before = r.Mul(one.Sub(e.policy.BulkRate))
		}
		td := before.Mul(l.TimeDiscountRate)
		raw = raw.Add(r)
		bulk = bulk.Add(r.Sub(before))
		timeDisc = timeDisc.Add(td)
		final = final.Add(before.Sub(td))
	}
	return Summary{
		RawTotal:          cents(raw),
		BulkDiscountTotal: cents(bulk),
		TimeDiscountTotal: cents(timeDisc),
		FinalTotal:        cents(final),
	}
}

var one = decimal.NewFromInt(1)

func cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func zeroSummary() Summary {
	return Summary{
		RawTotal:          decimal.Zero,
		BulkDiscountTotal: decimal.Zero,
		TimeDiscountTotal: decimal.Zero,
		FinalTotal:        decimal.Zero,
	}
}
