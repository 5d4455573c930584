// Package scheduler drives the periodic settlement sweep: due subscription
// accruals followed by price-expired trades.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/observability"

	"go.uber.org/zap"
)

const (
	DefaultInterval     = 60 * time.Second
	DefaultInitialDelay = 5 * time.Second
)

// TradeSweeper settles every expired pending trade.
type TradeSweeper interface {
	SettleExpired(ctx context.Context) (int, error)
}

// AccrualSweeper credits every due subscription.
type AccrualSweeper interface {
	SweepDue(ctx context.Context) (int, error)
}

type Scheduler struct {
	trades   TradeSweeper
	accruals AccrualSweeper
	metrics  *observability.Metrics

	interval     time.Duration
	initialDelay time.Duration

	running  atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(trades TradeSweeper, accruals AccrualSweeper, metrics *observability.Metrics, interval, initialDelay time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if initialDelay < 0 {
		initialDelay = 0
	}
	return &Scheduler{
		trades:       trades,
		accruals:     accruals,
		metrics:      metrics,
		interval:     interval,
		initialDelay: initialDelay,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Sweep runs one accrual pass and one trade pass. If a sweep is already in
// flight, from the timer or from an API call, it returns immediately with
// Skipped set and does nothing. A failing pass does not prevent the other from running.
func (s *Scheduler) Sweep(ctx context.Context) (models.SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		zap.L().Debug("Sweep already running, skipping")
		s.metrics.SweepFinished("skipped", 0)
		return models.SweepResult{Skipped: true}, nil
	}
	defer s.running.Store(false)

	start := time.Now()
	var result models.SweepResult
	var errs []error

	accrued, err := s.accruals.SweepDue(ctx)
	result.SubscriptionsAccrued = accrued
	if err != nil {
		errs = append(errs, fmt.Errorf("accrual sweep: %w", err))
	}

	settled, err := s.trades.SettleExpired(ctx)
	result.TradesSettled = settled
	if err != nil {
		errs = append(errs, fmt.Errorf("trade sweep: %w", err))
	}

	err = errors.Join(errs...)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.SweepFinished(outcome, time.Since(start))
	return result, err
}

// Start launches the sweep loop. The first sweep runs after the initial
// delay to pick up anything that matured while the process was down.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.runLoop(ctx)

	zap.L().Info("Settlement scheduler started",
		zap.Duration("interval", s.interval),
		zap.Duration("initial_delay", s.initialDelay))
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		zap.L().Info("Stopping settlement scheduler")
		close(s.stopChan)
	})
	if s.started.Load() {
		<-s.doneChan
	}
	zap.L().Info("Settlement scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneChan)

	initial := time.NewTimer(s.initialDelay)
	defer initial.Stop()

	select {
	case <-initial.C:
		s.tick(ctx)
	case <-s.stopChan:
		return
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one sweep. Errors and panics are logged so the loop survives.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.SweepFinished("panic", 0)
			zap.L().Error("Settlement sweep panicked", zap.Any("panic", r))
		}
	}()

	ctx = models.WithRequestContext(ctx, &models.RequestContext{Source: "scheduler"})
	result, err := s.Sweep(ctx)
	if err != nil {
		zap.L().Error("Settlement sweep failed",
			zap.Int("trades_settled", result.TradesSettled),
			zap.Int("subscriptions_accrued", result.SubscriptionsAccrued),
			zap.Error(err))
		return
	}
	if result.Skipped {
		return
	}
	zap.L().Debug("Settlement sweep finished",
		zap.Int("trades_settled", result.TradesSettled),
		zap.Int("subscriptions_accrued", result.SubscriptionsAccrued))
}
