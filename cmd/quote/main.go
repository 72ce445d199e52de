// Command quote prices a single order from the command line.
//
//	quote -slot "09:00–11:59" -item Coffee=3 -item Cake=1
//	quote -menu configs/menu.yaml -hour 19 -item "Fruit Juice=2" -voucher WELCOME10 -json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/noah-isme/cafe-pricing/internal/common"
	"github.com/noah-isme/cafe-pricing/internal/config"
	"github.com/noah-isme/cafe-pricing/internal/obs"
	"github.com/noah-isme/cafe-pricing/internal/quote"
)

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type itemFlags map[string]int

func (f itemFlags) String() string {
	parts := make([]string, 0, len(f))
	for id, qty := range f {
		parts = append(parts, id+"="+strconv.Itoa(qty))
	}
	return strings.Join(parts, ",")
}

func (f itemFlags) Set(value string) error {
	id, qty, ok := strings.Cut(value, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return fmt.Errorf("expected id=qty, got %q", value)
	}
	n, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return fmt.Errorf("quantity for %s: %w", id, err)
	}
	// A negative quantity sticks so the order is rejected as invalid.
	if n < 0 || f[id] < 0 {
		f[id] = min(f[id], n)
		return nil
	}
	f[id] += n
	return nil
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	items := itemFlags{}
	menuFile := fs.String("menu", os.Getenv("MENU_FILE"), "menu YAML file (default: built-in menu)")
	slotTable := fs.String("slots", envOr("SLOT_TABLE", "default"), "built-in slot table when the menu has none: default or hourly")
	slot := fs.String("slot", "", "time slot label")
	hour := fs.Int("hour", -1, "hour of day (0-23), instead of -slot")
	voucherCode := fs.String("voucher", "", "voucher code")
	asJSON := fs.Bool("json", false, "print the quote as JSON")
	verbose := fs.Bool("v", false, "log evaluation details to stderr")
	fs.Var(items, "item", "item quantity as id=qty (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := obs.NewLoggerTo(stderr, "console", level)

	menu, err := config.LoadMenu(*menuFile, *slotTable)
	if err != nil {
		logger.Error().Err(err).Msg("load menu")
		return 1
	}
	svc, err := quote.NewService(quote.ServiceConfig{
		Catalog:    menu.Catalog,
		Slots:      menu.Slots,
		Vouchers:   menu.Vouchers,
		Promotions: menu.Promotions,
		Currency:   menu.Currency,
		Logger:     &logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise quote service")
		return 1
	}

	req := quote.Request{Slot: *slot, Items: map[string]int(items), Voucher: *voucherCode}
	if *hour >= 0 {
		h := *hour
		req.Hour = &h
	}
	res, err := svc.Quote(context.Background(), req)
	if err != nil {
		reportError(stderr, err)
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			logger.Error().Err(err).Msg("encode quote")
			return 1
		}
		return 0
	}
	if err := printReceipt(stdout, res); err != nil {
		logger.Error().Err(err).Msg("print receipt")
		return 1
	}
	return 0
}

func reportError(w io.Writer, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		fmt.Fprintf(w, "%s: %s\n", appErr.Code, appErr.Error())
		if appErr.Details != nil {
			details, _ := json.Marshal(appErr.Details)
			fmt.Fprintf(w, "details: %s\n", details)
		}
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

func printReceipt(w io.Writer, res *quote.Result) error {
	fmt.Fprintf(w, "Slot: %s (%s)\n", res.Slot, res.Band)
	if res.Empty() {
		fmt.Fprintln(w, "No items selected.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Item\tQty\tRaw\tBulk\tBefore time\tRate\tTime\tFinal\t")
	for _, l := range res.Lines {
		fmt.Fprintf(tw, "%s\t%d\t%s\t-%s\t%s\t%s\t-%s\t%s\t\n",
			l.Item, l.Quantity, l.Raw, l.BulkDiscount, l.BeforeTimeDiscount, l.TimeDiscountRate, l.TimeDiscount, l.Final)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Raw total:      %s %s\n", res.Currency, res.Summary.Raw)
	fmt.Fprintf(w, "Bulk discount: -%s %s\n", res.Currency, res.Summary.BulkDiscount)
	fmt.Fprintf(w, "Time discount: -%s %s\n", res.Currency, res.Summary.TimeDiscount)
	fmt.Fprintf(w, "Total:          %s %s\n", res.Currency, res.Summary.Total)
	if res.Summary.ComboActive {
		fmt.Fprintln(w, "Combo: coffee + cake")
	}
	if res.Voucher != nil {
		if res.Voucher.Applied {
			fmt.Fprintf(w, "Voucher %s:  -%s %s\n", res.Voucher.Code, res.Currency, res.Voucher.Discount)
		} else {
			fmt.Fprintf(w, "Voucher %s:  not recognised\n", res.Voucher.Code)
		}
	}
	for _, p := range res.Promotions {
		fmt.Fprintf(w, "Promotion %s:  -%s %s\n", p.Name, res.Currency, p.Discount)
	}
	if res.Voucher != nil || len(res.Promotions) > 0 {
		fmt.Fprintf(w, "Amount due:     %s %s\n", res.Currency, res.AmountDue)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
