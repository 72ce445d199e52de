package quote

import "time"

// Request is the caller's selection: a time slot (or hour of day), item quantities and an
// optional voucher code.
type Request struct {
	Slot    string         `json:"slot,omitempty" validate:"required_without=Hour,excluded_with=Hour,max=64"`
	Hour    *int           `json:"hour,omitempty" validate:"omitempty,min=0,max=23"`
	Items   map[string]int `json:"items" validate:"max=100,dive,keys,required,max=64,endkeys"`
	Voucher string         `json:"voucher,omitempty" validate:"max=32"`
}

// Line is the display form of a priced order line. Amounts are fixed two-decimal strings.
type Line struct {
	Item               string `json:"item"`
	Category           string `json:"category"`
	Quantity           int    `json:"quantity"`
	UnitPrice          string `json:"unitPrice"`
	Raw                string `json:"raw"`
	BulkDiscount       string `json:"bulkDiscount"`
	BeforeTimeDiscount string `json:"beforeTimeDiscount"`
	TimeDiscountRate   string `json:"timeDiscountRate"`
	TimeDiscount       string `json:"timeDiscount"`
	Final              string `json:"final"`
}

// Summary is the display form of the order totals.
type Summary struct {
	Raw          string `json:"raw"`
	BulkDiscount string `json:"bulkDiscount"`
	TimeDiscount string `json:"timeDiscount"`
	Total        string `json:"total"`
	ComboActive  bool   `json:"comboActive"`
}

// VoucherResult describes the voucher the caller entered. An unknown code is echoed
// back with Applied false and no discount.
type VoucherResult struct {
	Code     string `json:"code"`
	Discount string `json:"discount"`
	Applied  bool   `json:"applied"`
}

// PromotionResult describes a flat promotion taken off the amount due.
type PromotionResult struct {
	Name     string `json:"name"`
	Discount string `json:"discount"`
}

// Result is a complete quote. ID and EvaluatedAt are fresh on every call; Cached reports
// whether the line pricing was served from the cache.
type Result struct {
	ID          string            `json:"id"`
	Slot        string            `json:"slot"`
	Band        string            `json:"band"`
	Currency    string            `json:"currency"`
	Lines       []Line            `json:"lines"`
	Summary     Summary           `json:"summary"`
	Voucher     *VoucherResult    `json:"voucher,omitempty"`
	Promotions  []PromotionResult `json:"promotions,omitempty"`
	AmountDue   string            `json:"amountDue"`
	EvaluatedAt time.Time         `json:"evaluatedAt"`
	Cached      bool              `json:"cached"`
}

// Empty reports whether the quote priced no items.
func (r *Result) Empty() bool {
	return r == nil || len(r.Lines) == 0
}

// MenuItem is the public view of a catalog entry.
type MenuItem struct {
	ID        string   `json:"id"`
	Category  string   `json:"category"`
	UnitPrice string   `json:"unitPrice"`
	Variants  []string `json:"variants,omitempty"`
}

// MenuView is the public menu payload.
type MenuView struct {
	Currency string     `json:"currency"`
	Items    []MenuItem `json:"items"`
}

// SlotView is the public view of a time slot.
type SlotView struct {
	Label     string `json:"label"`
	Band      string `json:"band"`
	StartHour *int   `json:"startHour,omitempty"`
	EndHour   *int   `json:"endHour,omitempty"`
}
