package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jordanlanch/leadrouter/pkg/watchdog"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron     *cron.Cron
	watchdog *watchdog.Service
	interval time.Duration
	logger   *log.Logger
}

// NewCronManager creates a new cron manager. The interval controls how often
// the SLA watchdog sweeps all tenants.
func NewCronManager(wd *watchdog.Service, sweepInterval time.Duration, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	return &CronManager{
		cron:     cron.New(),
		watchdog: wd,
		interval: sweepInterval,
		logger:   logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	spec := fmt.Sprintf("@every %s", cm.interval)
	_, err := cm.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := cm.watchdog.SweepAll(ctx); err != nil {
			cm.logger.Printf("❌ SLA watchdog sweep failed: %v", err)
			return
		}
	})
	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Printf("  - Every %s: SLA watchdog sweep", cm.interval)

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
