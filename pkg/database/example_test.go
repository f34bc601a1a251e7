package database_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wonny/fundarb/pkg/config"
	"github.com/wonny/fundarb/pkg/database"
)

// Example demonstrates opening the pool and using the fired ledger
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create database connection
	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Get health status
	status := db.HealthCheck(ctx)
	fmt.Printf("Database is healthy: %v (%v)\n", status.Healthy, status.ResponseTime)

	// Claim today's run
	ledger, err := database.NewFiredLedger(ctx, db)
	if err != nil {
		log.Fatalf("Failed to prepare ledger: %v", err)
	}

	today := time.Now().Format("2006-01-02")
	claimed, err := ledger.Claim(ctx, "opportunity_scan", today)
	if err != nil {
		log.Fatalf("Claim failed: %v", err)
	}
	fmt.Printf("Claimed %s: %v\n", today, claimed)
}
