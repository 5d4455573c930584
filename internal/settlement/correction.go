package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/notify"
	"settlement-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SetForcedOutcome pins the outcome a trade will settle with. On a pending
// trade it only records the override (an empty outcome clears it); on a
// settled trade with a different status it runs the correction path.
func (s *Service) SetForcedOutcome(ctx context.Context, tradeId string, outcome models.TradeStatus) (*models.Trade, error) {
	if outcome != "" && !outcome.IsTerminal() {
		return nil, fmt.Errorf("%w: invalid outcome %q", store.ErrInvalidArgument, outcome)
	}

	trade, err := s.loadTrade(ctx, tradeId)
	if err != nil {
		return nil, err
	}

	var updated *models.Trade
	var corrected bool
	err = s.ledger.WithUser(ctx, trade.UserId, func(scope *ledger.Scope) error {
		current, err := s.loadTrade(ctx, tradeId)
		if err != nil {
			return err
		}
		updated = current

		if !current.SettlementApplied {
			current.ForcedOutcome = outcome
			current.UpdatedAt = s.now()
			return s.saveTrade(ctx, current)
		}

		if outcome == "" {
			return fmt.Errorf("%w: trade %s is settled, its forced outcome cannot be cleared", store.ErrInvalidState, tradeId)
		}
		if outcome == current.Status {
			if current.ForcedOutcome == outcome {
				return nil
			}
			current.ForcedOutcome = outcome
			current.UpdatedAt = s.now()
			return s.saveTrade(ctx, current)
		}
		if _, err := s.correctLocked(ctx, scope, current, outcome); err != nil {
			return err
		}
		corrected = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("force outcome of trade %s: %w", tradeId, err)
	}

	zap.L().Info("Forced outcome set",
		zap.String("trade_id", tradeId),
		zap.String("user_id", updated.UserId),
		zap.String("forced_outcome", string(outcome)))
	if corrected {
		s.notifyCorrected(ctx, updated)
	}
	return updated, nil
}

// CorrectTradeOutcome changes the recorded outcome of a settled trade. The
// previous delta is reversed before the new one is applied, and repeating
// the same correction is a no-op.
func (s *Service) CorrectTradeOutcome(ctx context.Context, tradeId string, outcome models.TradeStatus) (*models.SettlementResult, error) {
	if !outcome.IsTerminal() {
		return nil, fmt.Errorf("%w: invalid outcome %q", store.ErrInvalidArgument, outcome)
	}

	trade, err := s.loadTrade(ctx, tradeId)
	if err != nil {
		return nil, err
	}

	var result *models.SettlementResult
	var corrected *models.Trade
	err = s.ledger.WithUser(ctx, trade.UserId, func(scope *ledger.Scope) error {
		current, err := s.loadTrade(ctx, tradeId)
		if err != nil {
			return err
		}
		if !current.SettlementApplied {
			return fmt.Errorf("%w: trade %s is not settled", store.ErrInvalidState, tradeId)
		}

		if current.Status == outcome {
			if current.ForcedOutcome != outcome {
				current.ForcedOutcome = outcome
				current.UpdatedAt = s.now()
				if err := s.saveTrade(ctx, current); err != nil {
					return err
				}
			}
			result = resultOf(current, false)
			return nil
		}

		if result, err = s.correctLocked(ctx, scope, current, outcome); err != nil {
			return err
		}
		corrected = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("correct trade %s: %w", tradeId, err)
	}

	if corrected != nil {
		s.notifyCorrected(ctx, corrected)
	}
	return result, nil
}

// correctLocked reverses the booked delta of a settled trade and books the
// delta of target. Must run inside the user's scope. Ledger keys carry the
// correction number, so an interrupted correction resumes without applying
// either leg twice.
func (s *Service) correctLocked(ctx context.Context, scope *ledger.Scope, trade *models.Trade, target models.TradeStatus) (*models.SettlementResult, error) {
	n := strconv.Itoa(trade.Corrections + 1)

	prior := trade.ProfitAmount
	priorIncome := decimal.Zero
	if trade.Status == models.TradeWin {
		priorIncome = prior
	}

	reverse := ledger.Entry{
		Coin:        trade.Currency,
		Delta:       prior.Neg(),
		Type:        models.TxTypeTradeReversal,
		Key:         tradeKey(trade.Id, "correction", n, "reverse"),
		Reference:   trade.Id,
		IncomeDelta: priorIncome.Neg(),
	}
	apply := entryFor(trade, target)
	apply.Key = tradeKey(trade.Id, "correction", n, "apply")

	reverseDone, err := s.entryExists(ctx, reverse.Key)
	if err != nil {
		return nil, err
	}
	applyDone, err := s.entryExists(ctx, apply.Key)
	if err != nil {
		return nil, err
	}

	pending := decimal.Zero
	if !reverseDone {
		pending = pending.Add(reverse.Delta)
	}
	if !applyDone {
		pending = pending.Add(apply.Delta)
	}
	balance, err := scope.Balance(trade.Currency)
	if err != nil {
		return nil, err
	}
	if balance.Add(pending).IsNegative() {
		return nil, fmt.Errorf("%w: correcting trade %s to %s needs %s %s, balance is %s: %w",
			store.ErrOverrideConflict, trade.Id, target, pending.Neg().String(), trade.Currency, balance.String(),
			store.ErrInsufficientBalance)
	}

	for _, leg := range []struct {
		entry ledger.Entry
		done  bool
	}{{reverse, reverseDone}, {apply, applyDone}} {
		if leg.done {
			continue
		}
		if _, err := scope.Apply(leg.entry); err != nil && !errors.Is(err, store.ErrDuplicateTransaction) {
			return nil, fmt.Errorf("%w: %w", store.ErrOverrideConflict, err)
		}
	}

	zap.L().Warn("Trade outcome corrected", append(models.RequestFields(ctx),
		zap.String("trade_id", trade.Id),
		zap.String("user_id", trade.UserId),
		zap.String("from", string(trade.Status)),
		zap.String("to", string(target)),
		zap.String("reversed_delta", reverse.Delta.String()),
		zap.String("applied_delta", apply.Delta.String()),
		zap.String("currency", trade.Currency),
		zap.String("correction", n))...)

	trade.Status = target
	trade.ForcedOutcome = target
	trade.ProfitAmount = apply.Delta
	trade.Corrections++
	trade.UpdatedAt = s.now()
	if err := s.saveTrade(ctx, trade); err != nil {
		return nil, err
	}

	s.metrics.TradeCorrected()
	return resultOf(trade, true), nil
}

func (s *Service) entryExists(ctx context.Context, key string) (bool, error) {
	_, err := s.ledger.EntryByKey(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Service) notifyCorrected(ctx context.Context, trade *models.Trade) {
	notify.Emit(ctx, s.notifier, s.timeout, s.metrics, trade.UserId, "Trade corrected",
		fmt.Sprintf("Your trade %s was corrected to %s: %s %s",
			trade.Id, trade.Status, trade.ProfitAmount.String(), trade.Currency))
}
