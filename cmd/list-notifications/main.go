package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/repository/backends"
)

func main() {
	limit := flag.Int("limit", 100, "maximum rows to show")
	offset := flag.Int("offset", 0, "rows to skip")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Dedup.Backend == "memory" {
		fmt.Fprintln(os.Stderr, "DEDUP_BACKEND is memory: the ledger lives inside the server process, nothing to list")
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repos, closeLedger, err := backends.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open notification ledger: %v\n", err)
		os.Exit(1)
	}
	defer closeLedger()

	fmt.Printf("📋 Listing order notifications (%s ledger):\n\n", cfg.Dedup.Backend)

	records, err := repos.Notification.List(ctx, *limit, *offset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list notifications: %v\n", err)
		os.Exit(1)
	}

	var pending int
	for i, rec := range records {
		fmt.Printf("Notification #%d:\n", *offset+i+1)
		fmt.Printf("  Session ID: %s\n", rec.SessionID)
		fmt.Printf("  Kind: %s\n", rec.Kind)
		fmt.Printf("  Status: %s\n", rec.Status)
		fmt.Printf("  Claimed At: %s\n", rec.ClaimedAt.Format(time.RFC3339))
		if rec.SentAt != nil {
			fmt.Printf("  Sent At: %s\n", rec.SentAt.Format(time.RFC3339))
		}
		if rec.Status == domain.NotificationPending {
			pending++
		}
		fmt.Println()
	}

	fmt.Printf("Total: %d notification(s), %d pending\n", len(records), pending)
	if pending > 0 {
		fmt.Printf("Pending claims older than %s are retried on the next Stripe redelivery.\n", cfg.Dedup.ClaimTTL)
	}
}
