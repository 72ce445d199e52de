package voucher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownCode is returned when the code is not in the voucher book.
	ErrUnknownCode = errors.New("unknown voucher code")
	// ErrVoucherInactive is returned when attempting to use a voucher before its active window.
	ErrVoucherInactive = errors.New("voucher not active")
	// ErrVoucherExpired is returned when the voucher has already expired.
	ErrVoucherExpired = errors.New("voucher expired")
	// ErrMinimumSpendUnmet indicates the order total did not meet the voucher requirement.
	ErrMinimumSpendUnmet = errors.New("voucher minimum spend not met")
	// ErrInvalidRule indicates a voucher definition failed validation.
	ErrInvalidRule = errors.New("invalid voucher rule")
)

// Rule is a percentage-off voucher applied to the order total.
type Rule struct {
	Code       string
	PercentBps int32
	MinSpend   decimal.Decimal
	ValidFrom  *time.Time
	ValidTo    *time.Time
}

// Validate ensures the rule can be applied at the provided instant and order total.
func (r Rule) Validate(now time.Time, total decimal.Decimal) error {
	if total.LessThan(r.MinSpend) {
		return ErrMinimumSpendUnmet
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrVoucherInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrVoucherExpired
	}
	return nil
}

// Compute returns the discount for total, rounded to cents and never above total.
func Compute(total decimal.Decimal, r Rule) decimal.Decimal {
	if !total.IsPositive() || r.PercentBps <= 0 {
		return decimal.Zero
	}
	discount := total.Mul(decimal.NewFromInt32(r.PercentBps)).Div(decimal.NewFromInt(10000)).Round(2)
	if discount.GreaterThan(total) {
		return total
	}
	return discount
}

// Book is an immutable set of vouchers keyed by normalised code.
type Book struct {
	rules map[string]Rule
}

// NormalizeCode trims and upper-cases a voucher code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewBook validates rules and indexes them by code.
func NewBook(rules []Rule) (*Book, error) {
	b := &Book{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		code := NormalizeCode(r.Code)
		if code == "" {
			return nil, fmt.Errorf("%w: code is required", ErrInvalidRule)
		}
		if _, dup := b.rules[code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %q", ErrInvalidRule, code)
		}
		if r.PercentBps <= 0 || r.PercentBps > 10000 {
			return nil, fmt.Errorf("%w: %s percentBps must be within 1..10000", ErrInvalidRule, code)
		}
		if r.MinSpend.IsNegative() {
			return nil, fmt.Errorf("%w: %s has negative minimum spend", ErrInvalidRule, code)
		}
		if r.ValidFrom != nil && r.ValidTo != nil && r.ValidTo.Before(*r.ValidFrom) {
			return nil, fmt.Errorf("%w: %s ends before it starts", ErrInvalidRule, code)
		}
		r.Code = code
		b.rules[code] = r
	}
	return b, nil
}

// Lookup finds a voucher by code, ignoring case and surrounding whitespace.
func (b *Book) Lookup(code string) (Rule, error) {
	if b != nil {
		if r, ok := b.rules[NormalizeCode(code)]; ok {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: %s", ErrUnknownCode, strings.TrimSpace(code))
}

// Codes lists the codes in the book, sorted.
func (b *Book) Codes() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.rules))
	for code := range b.rules {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Application is the outcome of applying a voucher to an order total.
type Application struct {
	Code      string
	Discount  decimal.Decimal
	AmountDue decimal.Decimal
}

// Apply looks up code, validates it against total and computes the discounted amount due.
func (b *Book) Apply(code string, now time.Time, total decimal.Decimal) (Application, error) {
	r, err := b.Lookup(code)
	if err != nil {
		return Application{}, err
	}
	if err := r.Validate(now, total); err != nil {
		return Application{}, err
	}
	discount := Compute(total, r)
	return Application{Code: r.Code, Discount: discount, AmountDue: total.Sub(discount)}, nil
}

// DefaultBook holds the counter vouchers.
func DefaultBook() *Book {
	b, err := NewBook([]Rule{
		{Code: "WELCOME10", PercentBps: 1000},
		{Code: "FRIEND5", PercentBps: 500},
	})
	if err != nil {
		panic(err)
	}
	return b
}
