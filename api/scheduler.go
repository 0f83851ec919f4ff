/*
scheduler.go - Automated cashflow batch scheduler

PURPOSE:
  Periodically folds every VALIDATED pricing into a cashflow batch and
  submits the batch for review, replacing the manual
  POST /api/cashflows/generate + /submit sequence in deployments where the
  transfer cadence is fixed (e.g. every fortnight in production, daily in
  staging).

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each run uses the wall clock as the cutoff, so a pricing validated
    after the tick simply joins the next batch
  - An empty run produces an empty batch and submits nothing; generation
    is idempotent at the pricing level so overlapping manual runs are safe

CONFIGURATION:
  - Interval: how often to run (FINANCE_CASHFLOW_INTERVAL)
  - Enabled:  whether the scheduler is active (FINANCE_SCHEDULER_ENABLED)

USAGE:
  scheduler := NewCashflowScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - finance/cashflow.go: GenerateCashflows and SubmitBatch
  - handlers.go: the manual endpoints
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/culturepass/finance-engine/finance"
)

// CashflowScheduler runs cashflow batch generation on a fixed cadence.
type CashflowScheduler struct {
	Engine   *finance.Engine
	Interval time.Duration
	Enabled  bool

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCashflowScheduler creates a new scheduler with a daily default interval.
func NewCashflowScheduler(engine *finance.Engine, logger *slog.Logger) *CashflowScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CashflowScheduler{
		Engine:   engine,
		Interval: 24 * time.Hour,
		Enabled:  true,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler.
func (cs *CashflowScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.logger.Info("cashflow scheduler disabled, not starting")
		return
	}

	cs.ticker = time.NewTicker(cs.Interval)
	cs.wg.Add(1)

	go cs.run()

	cs.logger.Info("cashflow scheduler started", "interval", cs.Interval.String())
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (cs *CashflowScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		cs.logger.Info("cashflow scheduler stopped")
	}
}

func (cs *CashflowScheduler) run() {
	defer cs.wg.Done()

	for {
		select {
		case <-cs.ticker.C:
			cs.generateAndSubmit()
		case <-cs.stop:
			return
		}
	}
}

func (cs *CashflowScheduler) generateAndSubmit() {
	ctx := context.Background()
	cutoff := time.Now()

	batch, err := cs.Engine.GenerateCashflows(ctx, cutoff)
	if err != nil {
		cs.logger.Error("scheduled cashflow generation failed", "error", err)
		return
	}
	if len(batch.CashflowIDs) == 0 {
		cs.logger.Info("scheduled cashflow run found nothing to batch", "batch", batch.Label)
		return
	}
	if err := cs.Engine.SubmitBatch(ctx, batch.ID); err != nil {
		cs.logger.Error("scheduled batch submission failed", "batch", batch.Label, "error", err)
		return
	}
	cs.logger.Info("scheduled cashflow run completed",
		"batch", batch.Label, "cashflows", len(batch.CashflowIDs))
}

// RunNow triggers an immediate run (for testing/admin).
func (cs *CashflowScheduler) RunNow() {
	cs.generateAndSubmit()
}
