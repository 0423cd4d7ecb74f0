package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/email"
	"github.com/Mide008/Roothaus-1/internal/payments"
	"github.com/Mide008/Roothaus-1/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/get-checkout-session/main.go <session_id> [--html customer|admin]")
		fmt.Println("Example: go run cmd/get-checkout-session/main.go cs_test_a1b2c3")
		os.Exit(1)
	}
	sessionID := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Stripe.SecretKey == "" {
		fmt.Fprintln(os.Stderr, "STRIPE_SECRET_KEY is required")
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	client := payments.NewStripeClient(cfg.Stripe, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("🔍 Fetching checkout session from Stripe: %s\n\n", sessionID)
	sess, err := client.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to fetch session: %v\n", err)
		os.Exit(1)
	}

	order, err := service.BuildOrderDetails(sess, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to map session: %v\n", err)
		os.Exit(1)
	}

	// --html prints the email the webhook would send for this session
	if len(os.Args) >= 4 && os.Args[2] == "--html" {
		renderer := email.NewRenderer(cfg.SiteURL, cfg.Stripe.DashboardURL, cfg.Currency.Locale)
		var html string
		switch os.Args[3] {
		case "admin":
			html, err = renderer.RenderAdmin(order)
		default:
			html, err = renderer.RenderCustomer(order)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to render email: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(html)
		return
	}

	out, _ := json.MarshalIndent(order, "", "  ")
	fmt.Println(string(out))
	fmt.Printf("\nPayment status: %s\n", sess.PaymentStatus)
	if v, ok := sess.Metadata["display_currency"]; ok {
		fmt.Printf("Display currency at checkout: %s\n", v)
	}
	fmt.Printf("Dashboard: %s/payments/%s\n", cfg.Stripe.DashboardURL, sess.ID)
}
