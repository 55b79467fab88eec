package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"csetrack/pkg/csetrack"
)

// CSE trades 09:30-14:30 Colombo time, Monday to Friday. Prices are
// refreshed every 15 minutes inside that window and rules are rechecked
// after the close.
const (
	priceRefreshSpec = "*/15 9-14 * * MON-FRI"
	ruleCheckSpec    = "45 14 * * MON-FRI"
)

const jobTimeout = 2 * time.Minute

// Scheduler runs periodic price refreshes and rule checks.
type Scheduler struct {
	cron   *cron.Cron
	core   *csetrack.Core
	logger *slog.Logger
}

// New creates a scheduler bound to the exchange timezone.
func New(core *csetrack.Core, logger *slog.Logger, location *time.Location) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(location)),
		core:   core,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(priceRefreshSpec, s.refreshPrices); err != nil {
		return nil, fmt.Errorf("register price refresh: %w", err)
	}
	if _, err := s.cron.AddFunc(ruleCheckSpec, s.checkRules); err != nil {
		return nil, fmt.Errorf("register rule check: %w", err)
	}
	return s, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		"price_refresh", priceRefreshSpec,
		"rule_check", ruleCheckSpec,
	)
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) refreshPrices() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	results, err := s.core.UpdateAllPrices(ctx)
	if err != nil {
		s.logger.Error("scheduled price refresh failed", "err", err)
		return
	}
	updated := 0
	for symbol, result := range results {
		if result.Price != nil {
			updated++
			continue
		}
		s.logger.Warn("price refresh skipped symbol", "symbol", symbol, "reason", result.Message)
	}
	s.logger.Info("scheduled price refresh done", "symbols", len(results), "updated", updated)
}

func (s *Scheduler) checkRules() {
	violations, err := s.core.EvaluateActiveRules()
	if err != nil {
		s.logger.Error("scheduled rule check failed", "err", err)
		return
	}
	if len(violations) == 0 {
		s.logger.Info("scheduled rule check done", "violations", 0)
		return
	}
	total := 0
	for ruleID, list := range violations {
		total += len(list)
		for _, v := range list {
			s.logger.Warn("rule violation",
				"rule_id", ruleID,
				"rule_type", v.RuleType,
				"severity", v.Severity,
				"message", v.Message,
			)
		}
	}
	s.logger.Info("scheduled rule check done", "violations", total)
}
