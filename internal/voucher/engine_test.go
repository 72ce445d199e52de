package voucher

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func money(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestComputePercent(t *testing.T) {
	discount := Compute(money("11.28"), Rule{PercentBps: 1000})
	if !discount.Equal(money("1.13")) {
		t.Fatalf("expected 1.13 discount, got %s", discount)
	}
	if d := Compute(money("0"), Rule{PercentBps: 1000}); !d.IsZero() {
		t.Fatalf("expected zero discount on empty total, got %s", d)
	}
	if d := Compute(money("5"), Rule{PercentBps: 10000}); !d.Equal(money("5")) {
		t.Fatalf("expected full discount, got %s", d)
	}
}

func TestBookLookupNormalisesCode(t *testing.T) {
	book := DefaultBook()
	r, err := book.Lookup("  welcome10 ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if r.Code != "WELCOME10" || r.PercentBps != 1000 {
		t.Fatalf("unexpected rule %+v", r)
	}
	if _, err := book.Lookup("NOPE"); !errors.Is(err, ErrUnknownCode) {
		t.Fatalf("expected ErrUnknownCode, got %v", err)
	}
	codes := book.Codes()
	if len(codes) != 2 || codes[0] != "FRIEND5" || codes[1] != "WELCOME10" {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestRuleValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if err := (Rule{MinSpend: money("10")}).Validate(now, money("9.99")); !errors.Is(err, ErrMinimumSpendUnmet) {
		t.Fatalf("expected ErrMinimumSpendUnmet, got %v", err)
	}
	if err := (Rule{ValidFrom: &future}).Validate(now, money("1")); !errors.Is(err, ErrVoucherInactive) {
		t.Fatalf("expected ErrVoucherInactive, got %v", err)
	}
	if err := (Rule{ValidTo: &past}).Validate(now, money("1")); !errors.Is(err, ErrVoucherExpired) {
		t.Fatalf("expected ErrVoucherExpired, got %v", err)
	}
	if err := (Rule{ValidFrom: &past, ValidTo: &future}).Validate(now, money("1")); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}
}

func TestApply(t *testing.T) {
	app, err := DefaultBook().Apply("friend5", time.Now(), money("11.28"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if app.Code != "FRIEND5" || !app.Discount.Equal(money("0.56")) || !app.AmountDue.Equal(money("10.72")) {
		t.Fatalf("unexpected application %+v", app)
	}
}

func TestNewBookValidation(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)
	bad := [][]Rule{
		{{Code: " ", PercentBps: 100}},
		{{Code: "A", PercentBps: 100}, {Code: "a", PercentBps: 200}},
		{{Code: "A", PercentBps: 0}},
		{{Code: "A", PercentBps: 10001}},
		{{Code: "A", PercentBps: 100, MinSpend: money("-1")}},
		{{Code: "A", PercentBps: 100, ValidFrom: &now, ValidTo: &earlier}},
	}
	for i, rules := range bad {
		if _, err := NewBook(rules); !errors.Is(err, ErrInvalidRule) {
			t.Fatalf("case %d: expected ErrInvalidRule, got %v", i, err)
		}
	}
}
