package voucher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidPromotion indicates a promotion definition failed validation.
var ErrInvalidPromotion = errors.New("invalid promotion")

// Promotion takes a flat amount off the order once when every required item is ordered.
// A requirement matches an ordered line by item id or by category, ignoring case.
type Promotion struct {
	Name     string
	Requires []string
	Amount   decimal.Decimal
}

// Ordered is one priced line as seen by promotions.
type Ordered struct {
	ID       string
	Category string
}

// Matches reports whether every requirement is met by at least one ordered line.
func (p Promotion) Matches(lines []Ordered) bool {
	if len(p.Requires) == 0 {
		return false
	}
	for _, req := range p.Requires {
		found := false
		for _, l := range lines {
			if strings.EqualFold(req, l.ID) || strings.EqualFold(req, l.Category) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Promotions is an ordered, validated set of flat promotions.
type Promotions struct {
	list []Promotion
}

// PromotionApplication records the discount a promotion actually took.
type PromotionApplication struct {
	Name     string
	Discount decimal.Decimal
}

// NewPromotions validates promotions and keeps their declaration order.
func NewPromotions(list []Promotion) (*Promotions, error) {
	seen := make(map[string]struct{}, len(list))
	out := make([]Promotion, 0, len(list))
	for _, p := range list {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidPromotion)
		}
		key := strings.ToLower(p.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidPromotion, p.Name)
		}
		seen[key] = struct{}{}
		reqs := make([]string, 0, len(p.Requires))
		for _, r := range p.Requires {
			if r = strings.TrimSpace(r); r != "" {
				reqs = append(reqs, r)
			}
		}
		if len(reqs) == 0 {
			return nil, fmt.Errorf("%w: %s requires no items", ErrInvalidPromotion, p.Name)
		}
		if !p.Amount.IsPositive() || !p.Amount.Equal(p.Amount.Round(2)) {
			return nil, fmt.Errorf("%w: %s amount must be positive with at most 2 decimals", ErrInvalidPromotion, p.Name)
		}
		p.Requires = reqs
		out = append(out, p)
	}
	return &Promotions{list: out}, nil
}

// Len returns the number of promotions.
func (p *Promotions) Len() int {
	if p == nil {
		return 0
	}
	return len(p.list)
}

// Apply takes each matching promotion off amount once, in declaration order.
// The amount never drops below zero; a promotion that would overshoot takes only what is left.
func (p *Promotions) Apply(lines []Ordered, amount decimal.Decimal) ([]PromotionApplication, decimal.Decimal) {
	if p == nil {
		return nil, amount
	}
	var applied []PromotionApplication
	for _, promo := range p.list {
		if !amount.IsPositive() {
			break
		}
		if !promo.Matches(lines) {
			continue
		}
		discount := decimal.Min(promo.Amount, amount)
		amount = amount.Sub(discount)
		applied = append(applied, PromotionApplication{Name: promo.Name, Discount: discount})
	}
	return applied, amount
}
