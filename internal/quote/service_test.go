package quote

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-pricing/internal/catalog"
	"github.com/noah-isme/cafe-pricing/internal/common"
	"github.com/noah-isme/cafe-pricing/internal/obs"
	"github.com/noah-isme/cafe-pricing/internal/resilience"
	"github.com/noah-isme/cafe-pricing/internal/timeband"
	"github.com/noah-isme/cafe-pricing/internal/voucher"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, cache *Cache, metrics *obs.QuoteMetrics) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Catalog:  catalog.Default(),
		Slots:    timeband.DefaultTable(),
		Vouchers: voucher.DefaultBook(),
		Currency: "sgd",
		Cache:    cache,
		Metrics:  metrics,
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc
}

func intPtr(v int) *int { return &v }

func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*common.AppError)
	require.True(t, ok, "expected AppError, got %T", err)
	require.Equal(t, code, appErr.Code)
}

func TestQuoteMorningCombo(t *testing.T) {
	svc := newTestService(t, nil, nil)
	res, err := svc.Quote(context.Background(), Request{
		Slot:  "09:00–11:59",
		Items: map[string]int{"Coffee": 3, "Cake": 1, "Fruit Juice": 0},
	})
	require.NoError(t, err)
	require.Equal(t, "morning", res.Band)
	require.Equal(t, "SGD", res.Currency)
	require.Len(t, res.Lines, 2)
	require.Equal(t, Line{
		Item: "Coffee", Category: "coffee", Quantity: 3, UnitPrice: "3.00",
		Raw: "9.00", BulkDiscount: "0.90", BeforeTimeDiscount: "8.10",
		TimeDiscountRate: "0.20", TimeDiscount: "1.62", Final: "6.48",
	}, res.Lines[0])
	require.Equal(t, "Cake", res.Lines[1].Item)
	require.Equal(t, Summary{Raw: "15.00", BulkDiscount: "0.90", TimeDiscount: "2.82", Total: "11.28", ComboActive: true}, res.Summary)
	require.Equal(t, "11.28", res.AmountDue)
	require.Nil(t, res.Voucher)
	require.Equal(t, fixedNow, res.EvaluatedAt)
	require.NotEmpty(t, res.ID)
}

func TestQuoteByHour(t *testing.T) {
	svc := newTestService(t, nil, nil)
	res, err := svc.Quote(context.Background(), Request{Hour: intPtr(19), Items: map[string]int{"Coffee": 1}})
	require.NoError(t, err)
	require.Equal(t, "evening", res.Band)
	require.Equal(t, "18:00–20:59", res.Slot)
	require.Equal(t, "2.10", res.Summary.Total)

	_, err = svc.Quote(context.Background(), Request{Hour: intPtr(3), Items: map[string]int{"Coffee": 1}})
	requireAppError(t, err, "UNKNOWN_SLOT")
}

func TestQuoteEmptyOrder(t *testing.T) {
	svc := newTestService(t, nil, nil)
	res, err := svc.Quote(context.Background(), Request{Slot: "12:00–14:59", Items: map[string]int{}, Voucher: "WELCOME10"})
	require.NoError(t, err)
	require.True(t, res.Empty())
	require.NotNil(t, res.Lines)
	require.Equal(t, "0.00", res.Summary.Total)
	require.Equal(t, "0.00", res.AmountDue)
	require.Nil(t, res.Voucher)
}

func TestQuoteVoucher(t *testing.T) {
	svc := newTestService(t, nil, nil)
	res, err := svc.Quote(context.Background(), Request{
		Slot:    "09:00–11:59",
		Items:   map[string]int{"Coffee": 3, "Cake": 1},
		Voucher: " welcome10 ",
	})
	require.NoError(t, err)
	require.Equal(t, &VoucherResult{Code: "WELCOME10", Discount: "1.13", Applied: true}, res.Voucher)
	require.Equal(t, "11.28", res.Summary.Total)
	require.Equal(t, "10.15", res.AmountDue)
}

func TestQuoteUnknownVoucherIsIgnored(t *testing.T) {
	svc := newTestService(t, nil, nil)
	res, err := svc.Quote(context.Background(), Request{Slot: "09:00–11:59", Items: map[string]int{"Coffee": 1}, Voucher: " free "})
	require.NoError(t, err)
	require.Equal(t, &VoucherResult{Code: "FREE", Discount: "0.00", Applied: false}, res.Voucher)
	require.Equal(t, "3.00", res.Summary.Total)
	require.Equal(t, "3.00", res.AmountDue)
}

func TestQuoteVoucherNotEligible(t *testing.T) {
	book, err := voucher.NewBook([]voucher.Rule{{Code: "OLD", PercentBps: 500, ValidTo: timePtr(fixedNow.Add(-time.Hour))}})
	require.NoError(t, err)
	svc, err := NewService(ServiceConfig{
		Catalog:  catalog.Default(),
		Slots:    timeband.DefaultTable(),
		Vouchers: book,
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	_, err = svc.Quote(context.Background(), Request{Slot: "09:00–11:59", Items: map[string]int{"Coffee": 1}, Voucher: "old"})
	requireAppError(t, err, "VOUCHER_NOT_ELIGIBLE")
}

func timePtr(t time.Time) *time.Time { return &t }

func TestQuoteErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewQuoteMetrics("test", registry)
	svc := newTestService(t, nil, metrics)
	ctx := context.Background()

	cases := []struct {
		name string
		req  Request
		code string
	}{
		{name: "unknown item", req: Request{Slot: "09:00–11:59", Items: map[string]int{"Tea": 1}}, code: "UNKNOWN_ITEM"},
		{name: "unknown slot", req: Request{Slot: "midnight", Items: map[string]int{"Coffee": 1}}, code: "UNKNOWN_SLOT"},
		{name: "negative quantity", req: Request{Slot: "09:00–11:59", Items: map[string]int{"Coffee": -2}}, code: "INVALID_ORDER"},
		{name: "missing slot and hour", req: Request{Items: map[string]int{"Coffee": 1}}, code: "BAD_REQUEST"},
		{name: "slot and hour", req: Request{Slot: "09:00–11:59", Hour: intPtr(9), Items: map[string]int{"Coffee": 1}}, code: "BAD_REQUEST"},
		{name: "hour out of range", req: Request{Hour: intPtr(24), Items: map[string]int{"Coffee": 1}}, code: "BAD_REQUEST"},
		{name: "blank item id", req: Request{Slot: "09:00–11:59", Items: map[string]int{"": 1}}, code: "BAD_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Quote(ctx, tc.req)
			requireAppError(t, err, tc.code)
		})
	}

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Total.WithLabelValues("morning", "unknown_item")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Total.WithLabelValues("unknown", "unknown_slot")))
	require.Equal(t, float64(4), testutil.ToFloat64(metrics.Total.WithLabelValues("unknown", "bad_request")))
}

func TestQuoteCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	registry := prometheus.NewRegistry()
	metrics := obs.NewQuoteMetrics("test", registry)
	svc := newTestService(t, NewCache(client, time.Minute), metrics)
	ctx := context.Background()
	req := Request{Slot: "15:00–17:59", Items: map[string]int{"Fruit Juice": 4, "Cake": 0}}

	first, err := svc.Quote(ctx, req)
	require.NoError(t, err)
	require.False(t, first.Cached)
	require.Equal(t, "5.76", first.Summary.Total)

	second, err := svc.Quote(ctx, req)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.NotEmpty(t, second.ID)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, fixedNow, second.EvaluatedAt)
	require.Equal(t, first.Lines, second.Lines)

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Cache.WithLabelValues("miss")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Cache.WithLabelValues("hit")))
	require.Len(t, mr.Keys(), 1)

	mr.FastForward(2 * time.Minute)
	third, err := svc.Quote(ctx, req)
	require.NoError(t, err)
	require.False(t, third.Cached)
}

func TestQuoteCachedPricingRechecksVoucher(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	now := fixedNow
	book, err := voucher.NewBook([]voucher.Rule{{Code: "LATE", PercentBps: 1000, ValidTo: timePtr(fixedNow.Add(time.Minute))}})
	require.NoError(t, err)
	svc, err := NewService(ServiceConfig{
		Catalog:  catalog.Default(),
		Slots:    timeband.DefaultTable(),
		Vouchers: book,
		Cache:    NewCache(client, time.Hour),
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	ctx := context.Background()
	req := Request{Slot: "12:00–14:59", Items: map[string]int{"Coffee": 1}, Voucher: "late"}

	first, err := svc.Quote(ctx, req)
	require.NoError(t, err)
	require.False(t, first.Cached)
	require.Equal(t, "2.70", first.AmountDue)

	now = now.Add(10 * time.Minute)
	_, err = svc.Quote(ctx, req)
	requireAppError(t, err, "VOUCHER_NOT_ELIGIBLE")

	req.Voucher = ""
	plain, err := svc.Quote(ctx, req)
	require.NoError(t, err)
	require.True(t, plain.Cached)
	require.Nil(t, plain.Voucher)
	require.Equal(t, "3.00", plain.AmountDue)
}

func TestQuotePromotions(t *testing.T) {
	promos, err := voucher.NewPromotions([]voucher.Promotion{{Name: "coffee-cake", Requires: []string{"Coffee", "cake"}, Amount: decimal.RequireFromString("1.00")}})
	require.NoError(t, err)
	svc, err := NewService(ServiceConfig{
		Catalog:    catalog.Default(),
		Slots:      timeband.DefaultTable(),
		Vouchers:   voucher.DefaultBook(),
		Promotions: promos,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := svc.Quote(ctx, Request{Slot: "09:00–11:59", Items: map[string]int{"Coffee": 3, "Cake": 1}, Voucher: "WELCOME10"})
	require.NoError(t, err)
	require.Equal(t, "11.28", res.Summary.Total)
	require.Equal(t, "1.13", res.Voucher.Discount)
	require.Equal(t, []PromotionResult{{Name: "coffee-cake", Discount: "1.00"}}, res.Promotions)
	require.Equal(t, "9.15", res.AmountDue)

	res, err = svc.Quote(ctx, Request{Slot: "09:00–11:59", Items: map[string]int{"Coffee": 1}})
	require.NoError(t, err)
	require.Empty(t, res.Promotions)
	require.Equal(t, "3.00", res.AmountDue)
}

func TestQuotePromotionFloorsAtZero(t *testing.T) {
	promos, err := voucher.NewPromotions([]voucher.Promotion{{Name: "big", Requires: []string{"Cake"}, Amount: decimal.RequireFromString("50.00")}})
	require.NoError(t, err)
	svc, err := NewService(ServiceConfig{
		Catalog:    catalog.Default(),
		Slots:      timeband.DefaultTable(),
		Promotions: promos,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	res, err := svc.Quote(context.Background(), Request{Slot: "18:00–20:59", Items: map[string]int{"Cake": 1}})
	require.NoError(t, err)
	require.Equal(t, "4.20", res.Summary.Total)
	require.Equal(t, []PromotionResult{{Name: "big", Discount: "4.20"}}, res.Promotions)
	require.Equal(t, "0.00", res.AmountDue)
}

func TestQuoteCacheFailureDoesNotFailQuote(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	defer func() { _ = client.Close() }()

	registry := prometheus.NewRegistry()
	metrics := obs.NewQuoteMetrics("test", registry)
	svc := newTestService(t, NewCache(client, time.Minute), metrics)

	res, err := svc.Quote(context.Background(), Request{Slot: "18:00–20:59", Items: map[string]int{"Cake": 1}})
	require.NoError(t, err)
	require.Equal(t, "4.20", res.Summary.Total)
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.Cache.WithLabelValues("error")))
}

func TestQuoteCacheBreakerBypassesRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	defer func() { _ = client.Close() }()

	registry := prometheus.NewRegistry()
	metrics := obs.NewQuoteMetrics("test", registry)
	breaker := resilience.NewBreaker(resilience.Options{Target: "quote_cache", MinCalls: 1, OpenFor: time.Hour})
	svc := newTestService(t, NewCache(client, time.Minute).WithBreaker(breaker), metrics)

	for i := 0; i < 3; i++ {
		res, err := svc.Quote(context.Background(), Request{Slot: "18:00–20:59", Items: map[string]int{"Cake": 1}})
		require.NoError(t, err)
		require.Equal(t, "4.20", res.Summary.Total)
	}
	require.Equal(t, resilience.Open, breaker.State())
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Cache.WithLabelValues("error")))
	require.Equal(t, float64(5), testutil.ToFloat64(metrics.Cache.WithLabelValues("bypass")))
}

func TestCacheKeyIgnoresMapOrderAndVoucher(t *testing.T) {
	svc := newTestService(t, nil, nil)
	a := svc.cacheKey(Request{Slot: "x", Items: map[string]int{"Coffee": 1, "Cake": 2}, Voucher: "welcome10"})
	b := svc.cacheKey(Request{Slot: "x", Items: map[string]int{"Cake": 2, "Coffee": 1}})
	require.Equal(t, a, b)
	c := svc.cacheKey(Request{Slot: "x", Items: map[string]int{"Cake": 3, "Coffee": 1}})
	require.NotEqual(t, a, c)
}

func TestMenuAndSlots(t *testing.T) {
	svc := newTestService(t, nil, nil)
	menu := svc.Menu()
	require.Equal(t, "SGD", menu.Currency)
	require.Len(t, menu.Items, 3)
	require.Equal(t, MenuItem{ID: "Fruit Juice", Category: "juice", UnitPrice: "2.00", Variants: []string{"Apple", "Lemon", "Watermelon"}}, menu.Items[1])

	slots := svc.Slots()
	require.Len(t, slots, 4)
	require.Equal(t, "afternoon", slots[2].Band)
	require.Equal(t, 15, *slots[2].StartHour)
}

func TestNewServiceRequiresMenu(t *testing.T) {
	_, err := NewService(ServiceConfig{Slots: timeband.DefaultTable()})
	require.Error(t, err)
	_, err = NewService(ServiceConfig{Catalog: catalog.Default()})
	require.Error(t, err)
}
