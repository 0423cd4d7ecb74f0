package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/email"
)

// Run this to test the email configuration before deployment:
//
//	go run ./cmd/test-email
func main() {
	// Load .env when present; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	businessEmail := cfg.Notify.BusinessEmail
	if businessEmail == "" {
		businessEmail = cfg.SMTP.User
	}

	fmt.Println("\n========================================")
	fmt.Println("   RootHaus Email Configuration Test   ")
	fmt.Println("========================================")
	fmt.Println("Configuration:")
	fmt.Println("  SMTP Host:", cfg.SMTP.Host)
	fmt.Println("  SMTP Port:", cfg.SMTP.Port)
	fmt.Println("  SMTP User:", cfg.SMTP.User)
	fmt.Println("  Business Email:", businessEmail)
	fmt.Println()

	if err := cfg.ValidateSMTP(); err != nil {
		fmt.Fprintln(os.Stderr, "❌ Missing required environment variables!")
		fmt.Fprintln(os.Stderr, "Please check your .env file has:")
		for _, name := range []string{"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "BUSINESS_EMAIL"} {
			fmt.Fprintln(os.Stderr, "  -", name)
		}
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
		os.Exit(1)
	}

	renderer := email.NewRenderer(cfg.SiteURL, cfg.Stripe.DashboardURL, cfg.Currency.Locale)
	sender := email.NewSMTPSender(cfg.SMTP, logger)
	order := sampleOrder(cfg.SMTP.User, time.Now())

	messages, err := testMessages(renderer, order, businessEmail)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to render test emails: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	passed := true
	for _, msg := range messages {
		fmt.Printf("🧪 Testing %s...\n", msg.Subject)
		if err := sender.Send(ctx, msg); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Error sending email: %v\n\n", err)
			passed = false
			continue
		}
		fmt.Printf("✅ Sent successfully!\n📬 Sent to: %s\n\n", msg.To)
	}

	fmt.Println("========================================")
	fmt.Println("               Results                  ")
	fmt.Println("========================================")
	if passed {
		fmt.Println("✅ All tests passed!")
		fmt.Println("📧 Check your inbox for the test emails.")
		return
	}
	fmt.Println("❌ Some tests failed.")
	fmt.Println("Common issues:")
	fmt.Println("  - Gmail: Use App Password, not regular password")
	fmt.Println("  - Wrong SMTP host or port")
	fmt.Println("  - Incorrect credentials")
	fmt.Println("  - Firewall blocking SMTP port")
	os.Exit(1)
}

// sampleOrder is a fixed two-line order sent to the configured mailbox
func sampleOrder(customerEmail string, now time.Time) domain.OrderDetails {
	shipping := &domain.Address{
		Name:       "Test Customer",
		Line1:      "123 Test Street",
		Line2:      "Apt 4B",
		City:       "Lagos",
		State:      "Lagos",
		PostalCode: "100001",
		Country:    "NG",
	}
	return domain.OrderDetails{
		OrderID:     "cs_test_123456789",
		OrderNumber: "TEST-ORDER-001",
		Customer: domain.Customer{
			Email: customerEmail,
			Name:  "Test Customer",
			Phone: "+1 234 567 8900",
		},
		ShippingAddress: shipping,
		BillingAddress:  shipping,
		Items: []domain.OrderItem{
			{Name: "Executive Briefcase", Quantity: 1, UnitPrice: decimal.NewFromInt(450), LineTotal: decimal.NewFromInt(450), Currency: "USD"},
			{Name: "Leather Wallet", Quantity: 2, UnitPrice: decimal.NewFromInt(120), LineTotal: decimal.NewFromInt(240), Currency: "USD"},
		},
		Subtotal:      decimal.NewFromInt(690),
		Total:         decimal.NewFromInt(690),
		Currency:      "USD",
		PaymentStatus: "paid",
		OrderDate:     now,
	}
}

// testMessages renders the customer and admin emails, marking the subjects as tests
func testMessages(renderer *email.Renderer, order domain.OrderDetails, businessEmail string) ([]email.Message, error) {
	customerHTML, err := renderer.RenderCustomer(order)
	if err != nil {
		return nil, err
	}
	adminHTML, err := renderer.RenderAdmin(order)
	if err != nil {
		return nil, err
	}
	return []email.Message{
		{FromName: "RootHaus Test", To: order.Customer.Email, Subject: "🧪 Test: " + email.CustomerSubject(order), HTML: customerHTML},
		{FromName: "RootHaus Order System", To: businessEmail, Subject: "🧪 Test: " + email.AdminSubject(order), HTML: adminHTML},
	}, nil
}
