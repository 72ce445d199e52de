package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/cafe-pricing/internal/catalog"
	"github.com/noah-isme/cafe-pricing/internal/common"
	"github.com/noah-isme/cafe-pricing/internal/obs"
	"github.com/noah-isme/cafe-pricing/internal/pricing"
	"github.com/noah-isme/cafe-pricing/internal/resilience"
	"github.com/noah-isme/cafe-pricing/internal/timeband"
	"github.com/noah-isme/cafe-pricing/internal/voucher"
)

var tracer = otel.Tracer("github.com/noah-isme/cafe-pricing/internal/quote")

// Service turns caller selections into priced quotes.
type Service struct {
	catalog    *catalog.Catalog
	slots      *timeband.Table
	vouchers   *voucher.Book
	promotions *voucher.Promotions
	engine     pricing.Engine
	currency   string
	cache      *Cache
	metrics    *obs.QuoteMetrics
	logger     zerolog.Logger
	validate   *validator.Validate
	now        func() time.Time
	menuStamp  string
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Catalog    *catalog.Catalog
	Slots      *timeband.Table
	Vouchers   *voucher.Book
	Promotions *voucher.Promotions
	Policy     *pricing.Policy
	Currency   string
	Cache      *Cache
	Metrics    *obs.QuoteMetrics
	Logger     *zerolog.Logger
	Now        func() time.Time
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Catalog == nil || cfg.Catalog.Len() == 0 {
		return nil, errors.New("quote: catalog is required")
	}
	if cfg.Slots == nil {
		return nil, errors.New("quote: slot table is required")
	}
	policy := pricing.DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	vouchers := cfg.Vouchers
	if vouchers == nil {
		vouchers, _ = voucher.NewBook(nil)
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "quote").Logger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "SGD"
	}
	s := &Service{
		catalog:    cfg.Catalog,
		slots:      cfg.Slots,
		vouchers:   vouchers,
		promotions: cfg.Promotions,
		engine:     pricing.NewEngine(policy),
		currency:   currency,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        now,
	}
	s.menuStamp = s.fingerprint()
	return s, nil
}

// Menu returns the catalog in declaration order.
func (s *Service) Menu() MenuView {
	items := s.catalog.Items()
	out := MenuView{Currency: s.currency, Items: make([]MenuItem, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, MenuItem{
			ID:        it.ID,
			Category:  string(it.Category),
			UnitPrice: it.UnitPrice.StringFixed(2),
			Variants:  it.Variants,
		})
	}
	return out
}

// Slots returns the slot table in declaration order.
func (s *Service) Slots() []SlotView {
	slots := s.slots.Slots()
	out := make([]SlotView, 0, len(slots))
	for _, sl := range slots {
		view := SlotView{Label: sl.Label, Band: string(sl.Band)}
		if sl.StartHour != timeband.NoHour {
			start, end := sl.StartHour, sl.EndHour
			view.StartHour, view.EndHour = &start, &end
		}
		out = append(out, view)
	}
	return out
}

// Quote validates req, resolves its time band and prices the order. Vouchers and
// promotions are applied on every call, after the line pricing.
func (s *Service) Quote(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "quote.Evaluate")
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		s.metrics.ObserveQuote("", "bad_request", 0)
		span.SetStatus(codes.Error, "validation")
		return nil, validationError(err)
	}

	res, band, err := s.price(ctx, req)
	if err == nil {
		res.ID = uuid.NewString()
		res.EvaluatedAt = s.now().UTC()
		err = s.applyDiscounts(res, req)
	}
	if err != nil {
		appErr := mapError(err)
		s.metrics.ObserveQuote(string(band), strings.ToLower(appErr.Code), 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, appErr.Code)
		s.logger.Debug().Err(err).Str("code", appErr.Code).Msg("quote rejected")
		return nil, appErr
	}

	span.SetAttributes(
		attribute.String("quote.band", res.Band),
		attribute.Int("quote.lines", len(res.Lines)),
		attribute.Bool("quote.combo", res.Summary.ComboActive),
		attribute.Bool("quote.cached", res.Cached),
	)
	s.metrics.ObserveQuote(res.Band, "ok", discountTotal(res))
	s.logger.Debug().
		Str("quote_id", res.ID).
		Str("band", res.Band).
		Int("lines", len(res.Lines)).
		Bool("cached", res.Cached).
		Str("amount_due", res.AmountDue).
		Msg("quote evaluated")
	return res, nil
}

// price returns the line pricing for req, from the cache when possible. The result
// carries no voucher or promotion.
func (s *Service) price(ctx context.Context, req Request) (*Result, timeband.Band, error) {
	key := s.cacheKey(req)
	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.cacheFailure(err, "quote cache read")
	} else if ok {
		s.metrics.ObserveCache("hit")
		cached.Cached = true
		return cached, timeband.Band(cached.Band), nil
	} else if s.cache.enabled() {
		s.metrics.ObserveCache("miss")
	}

	res, band, err := s.evaluate(req)
	if err != nil {
		return nil, band, err
	}
	if err := s.cache.Set(ctx, key, res); err != nil {
		s.cacheFailure(err, "quote cache write")
	}
	return res, band, nil
}

func (s *Service) cacheFailure(err error, msg string) {
	if errors.Is(err, resilience.ErrOpenCircuit) {
		s.metrics.ObserveCache("bypass")
		return
	}
	s.metrics.ObserveCache("error")
	s.logger.Warn().Err(err).Msg(msg)
}

func (s *Service) evaluate(req Request) (*Result, timeband.Band, error) {
	band, slot, err := s.resolveBand(req)
	if err != nil {
		return nil, "", err
	}

	lines, summary, err := s.engine.Evaluate(s.catalog, pricing.Order(req.Items), band)
	if err != nil {
		return nil, band, err
	}

	res := &Result{
		Slot:     slot,
		Band:     string(band),
		Currency: s.currency,
		Lines:    make([]Line, 0, len(lines)),
		Summary: Summary{
			Raw:          summary.RawTotal.StringFixed(2),
			BulkDiscount: summary.BulkDiscountTotal.StringFixed(2),
			TimeDiscount: summary.TimeDiscountTotal.StringFixed(2),
			Total:        summary.FinalTotal.StringFixed(2),
			ComboActive:  summary.ComboActive,
		},
		AmountDue: summary.FinalTotal.StringFixed(2),
	}
	for _, l := range lines {
		res.Lines = append(res.Lines, Line{
			Item:               l.ItemID,
			Category:           string(l.Category),
			Quantity:           l.Quantity,
			UnitPrice:          l.UnitPrice.StringFixed(2),
			Raw:                l.RawAmount.StringFixed(2),
			BulkDiscount:       l.BulkDiscount.StringFixed(2),
			BeforeTimeDiscount: l.BeforeTimeDiscount.StringFixed(2),
			TimeDiscountRate:   l.TimeDiscountRate.StringFixed(2),
			TimeDiscount:       l.TimeDiscount.StringFixed(2),
			Final:              l.FinalAmount.StringFixed(2),
		})
	}
	return res, band, nil
}

// applyDiscounts takes the voucher and then the flat promotions off the order total.
// An empty order gets neither. An unknown voucher code is reported but not an error.
func (s *Service) applyDiscounts(res *Result, req Request) error {
	res.Voucher, res.Promotions = nil, nil
	res.AmountDue = res.Summary.Total
	if res.Empty() {
		return nil
	}
	due, err := decimal.NewFromString(res.Summary.Total)
	if err != nil {
		return fmt.Errorf("quote: summary total %q: %w", res.Summary.Total, err)
	}

	if code := strings.TrimSpace(req.Voucher); code != "" {
		app, err := s.vouchers.Apply(code, s.now(), due)
		switch {
		case errors.Is(err, voucher.ErrUnknownCode):
			res.Voucher = &VoucherResult{Code: voucher.NormalizeCode(code), Discount: "0.00"}
			s.logger.Debug().Str("voucher", res.Voucher.Code).Msg("unknown voucher ignored")
		case err != nil:
			return err
		default:
			res.Voucher = &VoucherResult{Code: app.Code, Discount: app.Discount.StringFixed(2), Applied: true}
			due = app.AmountDue
		}
	}

	ordered := make([]voucher.Ordered, 0, len(res.Lines))
	for _, l := range res.Lines {
		ordered = append(ordered, voucher.Ordered{ID: l.Item, Category: l.Category})
	}
	applied, due := s.promotions.Apply(ordered, due)
	for _, a := range applied {
		res.Promotions = append(res.Promotions, PromotionResult{Name: a.Name, Discount: a.Discount.StringFixed(2)})
	}
	res.AmountDue = due.StringFixed(2)
	return nil
}

func (s *Service) resolveBand(req Request) (timeband.Band, string, error) {
	if req.Hour != nil {
		band, slot, err := s.slots.BandAt(*req.Hour)
		return band, slot.Label, err
	}
	band, err := s.slots.BandFor(req.Slot)
	return band, strings.TrimSpace(req.Slot), err
}

// cacheKey hashes the menu fingerprint together with the slot or hour and the items.
// The voucher is not part of the key because it is applied per call.
func (s *Service) cacheKey(req Request) string {
	ids := make([]string, 0, len(req.Items))
	for id := range req.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString(s.menuStamp)
	b.WriteString("|slot=")
	b.WriteString(strings.TrimSpace(req.Slot))
	b.WriteString("|hour=")
	if req.Hour != nil {
		b.WriteString(strconv.Itoa(*req.Hour))
	}
	for _, id := range ids {
		fmt.Fprintf(&b, "|%q=%d", id, req.Items[id])
	}
	return common.Sha256Hex(b.String())
}

func (s *Service) fingerprint() string {
	var b strings.Builder
	b.WriteString(s.currency)
	for _, it := range s.catalog.Items() {
		fmt.Fprintf(&b, "|%q:%s:%s", it.ID, it.Category, it.UnitPrice.StringFixed(2))
	}
	for _, sl := range s.slots.Slots() {
		fmt.Fprintf(&b, "|%q:%s:%d-%d", sl.Label, sl.Band, sl.StartHour, sl.EndHour)
	}
	p := s.engine.Policy()
	fmt.Fprintf(&b, "|%d:%s:%s:%s:%s:%d", p.BulkThreshold, p.BulkRate, p.EveningRate, p.AfternoonJuiceRate, p.MorningComboRate, p.Rounding)
	return common.Sha256Hex(b.String())
}

func discountTotal(res *Result) float64 {
	raw, err := decimal.NewFromString(res.Summary.Raw)
	if err != nil {
		return 0
	}
	due, err := decimal.NewFromString(res.AmountDue)
	if err != nil {
		return 0
	}
	return raw.Sub(due).InexactFloat64()
}

func validationError(err error) *common.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.NewAppError("BAD_REQUEST", "invalid quote request", http.StatusBadRequest, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return common.NewAppError("BAD_REQUEST", "invalid quote request", http.StatusBadRequest, err).WithDetails(map[string]any{"fields": fields})
}

func mapError(err error) *common.AppError {
	switch {
	case errors.Is(err, catalog.ErrUnknownItem):
		return common.NewAppError("UNKNOWN_ITEM", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, timeband.ErrUnknownSlot), errors.Is(err, timeband.ErrUnknownBand):
		return common.NewAppError("UNKNOWN_SLOT", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, pricing.ErrInvalidOrder):
		return common.NewAppError("INVALID_ORDER", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, voucher.ErrVoucherInactive), errors.Is(err, voucher.ErrVoucherExpired), errors.Is(err, voucher.ErrMinimumSpendUnmet):
		return common.NewAppError("VOUCHER_NOT_ELIGIBLE", err.Error(), http.StatusUnprocessableEntity, err)
	default:
		return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}
