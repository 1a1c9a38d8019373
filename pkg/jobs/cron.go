package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shippingcomps/backend/pkg/subscription"
)

// StaleReaper marks abandoned processing analyses as failed
type StaleReaper interface {
	MarkStaleProcessingFailed(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron         *cron.Cron
	reaper       StaleReaper
	subscription *subscription.Service
	staleAfter   time.Duration
	logger       *log.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(reaper StaleReaper, subs *subscription.Service, staleAfter time.Duration, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}

	return &CronManager{
		cron:         cron.New(),
		reaper:       reaper,
		subscription: subs,
		staleAfter:   staleAfter,
		logger:       logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Every 2 minutes: reap processing analyses abandoned by a crashed worker
	_, err := cm.cron.AddFunc("*/2 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		reaped, err := cm.reaper.MarkStaleProcessingFailed(ctx, cm.staleAfter)
		if err != nil {
			cm.logger.Printf("❌ Stale analysis reaper failed: %v", err)
			return
		}
		if reaped > 0 {
			cm.logger.Printf("🧹 Reaped %d stale processing analyses", reaped)
		}
	})
	if err != nil {
		return err
	}

	// Hourly: run due report subscriptions
	_, err = cm.cron.AddFunc("0 * * * *", func() {
		cm.logger.Println("🕐 Running due report subscriptions...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		ran, err := cm.subscription.RunDue(ctx, 100)
		if err != nil {
			cm.logger.Printf("❌ Subscription runner failed: %v", err)
			return
		}
		if ran > 0 {
			cm.logger.Printf("✅ Delivered %d subscription reports", ran)
		}
	})
	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Println("  - Every 2 minutes: reap stale processing analyses")
	cm.logger.Println("  - Hourly: run due report subscriptions")

	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	cm.cron.Stop()
}
