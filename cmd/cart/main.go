package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/cart"
	"github.com/Mide008/Roothaus-1/internal/catalog"
	"github.com/Mide008/Roothaus-1/internal/checkout"
	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/currency"
	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/notify"
	"github.com/Mide008/Roothaus-1/internal/repository/backends"
)

const usage = `Usage: go run ./cmd/cart <command> [args]

Commands:
  show                   list the cart with prices in your display currency
  add <product_id> [n]   add n (default 1) of a product
  set <product_id> <n>   set the quantity of a line (0 removes it)
  remove <product_id>    remove a line
  clear                  empty the cart
  checkout               create a checkout session and print the payment URL
  watch                  print the item count whenever another client changes the cart

The cart lives in Redis (REDIS_URL) under CART_ID, shared by every client using the same id.`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	products, err := catalog.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
		os.Exit(1)
	}

	client, err := backends.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	store, err := cart.NewStore(ctx, cart.NewRedisStorage(client, cfg.Checkout.CartID, logger), products, notify.NotifierFunc(printNotification), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open cart: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	detector := currency.NewDetector(
		currency.NewGeoClient(cfg.Currency.GeoAPIURL, logger),
		currency.NewRatesClient(cfg.Currency.RatesAPIURL, cfg.Currency.RatesTTL, logger),
		cfg.Currency.Locale,
		logger,
	)

	args := os.Args[2:]
	switch os.Args[1] {
	case "show":
		display := detector.Detect(ctx, "")
		printCart(store, display)

	case "add":
		if len(args) < 1 {
			fail(usage)
		}
		qty := 1
		if len(args) > 1 {
			qty = atoi(args[1])
		}
		if _, ok := products.Get(args[0]); !ok {
			fail(fmt.Sprintf("unknown product %q", args[0]))
		}
		check(store.Add(ctx, args[0], qty))

	case "set":
		if len(args) < 2 {
			fail(usage)
		}
		check(store.SetQuantity(ctx, args[0], atoi(args[1])))

	case "remove":
		if len(args) < 1 {
			fail(usage)
		}
		check(store.Remove(ctx, args[0]))

	case "clear":
		check(store.Clear(ctx))

	case "checkout":
		display := detector.Detect(ctx, "")
		redirect := checkout.RedirectorFunc(func(ctx context.Context, session domain.CheckoutSession) error {
			fmt.Printf("💳 Complete your payment at:\n   %s\n", session.URL)
			return nil
		})
		initiator := checkout.NewInitiator(cfg.Checkout.Endpoint, store, redirect, notify.NotifierFunc(printNotification), logger).
			WithCurrency(display.Currency)
		if _, err := initiator.Start(ctx); err != nil {
			os.Exit(1)
		}

	case "watch":
		fmt.Printf("👀 Watching cart %q (Ctrl+C to stop)\n", cfg.Checkout.CartID)
		store.OnChange(func(count int) {
			fmt.Printf("[%s] cart now holds %d item(s)\n", time.Now().Format(time.Kitchen), count)
		})
		<-ctx.Done()

	default:
		fail(usage)
	}
}

func printCart(store *cart.Store, display currency.Display) {
	items := store.Items()
	if len(items) == 0 {
		fmt.Println("🛒 Your cart is empty")
		return
	}
	fmt.Println("🛒 Cart:")
	for _, item := range items {
		fmt.Printf("  %-28s x%-3d %s\n", item.Name, item.Quantity, display.Format(item.LineTotal()))
	}
	fmt.Printf("\n  %d item(s), total %s\n", store.Count(), display.Format(store.Total()))
	if display.Currency != domain.BaseCurrency {
		fmt.Printf("  You will be charged %s\n", currency.MustFormat(store.Total(), domain.BaseCurrency, display.Locale))
	}
}

func printNotification(n notify.Notification) {
	icon := "✅"
	if n.Level == notify.LevelError {
		icon = "❌"
	}
	fmt.Printf("%s %s\n", icon, n.Message)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		fail(fmt.Sprintf("invalid quantity %q", s))
	}
	return n
}

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
