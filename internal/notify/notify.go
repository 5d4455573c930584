// Package notify delivers user-facing settlement events. Delivery is
// best-effort: callers go through Emit, which bounds the call with a timeout
// and logs failures instead of returning them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement-ledger-go/internal/observability"
	"settlement-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Emit sends one notification and swallows any failure. It never holds a
// caller's lock, so call it only after the state change is committed.
func Emit(ctx context.Context, n store.Notifier, timeout time.Duration, metrics *observability.Metrics, userId, title, body string) {
	if n == nil {
		return
	}

	// Delivery must not be cut short by a request that already finished
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := n.Notify(notifyCtx, userId, title, body); err != nil {
		metrics.Notified("error")
		zap.L().Warn("Notification failed",
			zap.String("user_id", userId),
			zap.String("title", title),
			zap.Error(err))
		return
	}
	metrics.Notified("ok")
}

// LogSink writes notifications to the structured log. It is the default
// sink when no message broker is configured.
type LogSink struct{}

func (LogSink) Notify(ctx context.Context, userId, title, body string) error {
	zap.L().Info("Notification",
		zap.String("user_id", userId),
		zap.String("title", title),
		zap.String("body", body))
	return nil
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []store.Notifier

func (m Multi) Notify(ctx context.Context, userId, title, body string) error {
	var errs []error
	for i, sink := range m {
		if err := sink.Notify(ctx, userId, title, body); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", store.ErrExternalUnavailable, errors.Join(errs...))
	}
	return nil
}
