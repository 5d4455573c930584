package settlement

import (
	"context"
	"errors"
	"fmt"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/notify"
	"settlement-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettleTrade moves a pending trade to its final outcome and applies the
// ledger delta once. Calling it again on a settled trade changes nothing
// unless an administrator forced a different outcome, in which case the
// correction path runs.
func (s *Service) SettleTrade(ctx context.Context, tradeId string, proposed models.TradeStatus) (*models.SettlementResult, error) {
	return s.settle(ctx, tradeId, proposed, nil)
}

func (s *Service) settle(ctx context.Context, tradeId string, proposed models.TradeStatus, exitPrice *decimal.Decimal) (*models.SettlementResult, error) {
	if proposed != "" && !proposed.IsTerminal() {
		return nil, fmt.Errorf("%w: invalid outcome %q", store.ErrInvalidArgument, proposed)
	}

	trade, err := s.loadTrade(ctx, tradeId)
	if err != nil {
		return nil, err
	}

	// Flag lookups go over the network, so read them before taking the lock
	var flagged models.TradeStatus
	if !trade.SettlementApplied {
		if flagged, err = s.forcedFlag(ctx, trade.UserId); err != nil {
			return nil, fmt.Errorf("settle trade %s: %w", tradeId, err)
		}
	}

	var result *models.SettlementResult
	var settled, corrected *models.Trade
	err = s.ledger.WithUser(ctx, trade.UserId, func(scope *ledger.Scope) error {
		current, err := s.loadTrade(ctx, tradeId)
		if err != nil {
			return err
		}

		if current.SettlementApplied {
			if current.ForcedOutcome != "" && current.ForcedOutcome != current.Status {
				if result, err = s.correctLocked(ctx, scope, current, current.ForcedOutcome); err != nil {
					return err
				}
				corrected = current
				return nil
			}
			result = resultOf(current, false)
			return nil
		}

		final := resolveOutcome(current.ForcedOutcome, flagged, proposed)
		if final == "" {
			return fmt.Errorf("%w: no outcome for trade %s", store.ErrInvalidArgument, tradeId)
		}
		if current.ForcedOutcome == "" && flagged != "" {
			current.ForcedOutcome = flagged
		}
		if exitPrice != nil {
			current.ExitPrice = exitPrice
		}

		if err := s.applyLocked(ctx, scope, current, final); err != nil {
			return err
		}
		settled = current
		result = resultOf(current, true)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("settle trade %s: %w", tradeId, err)
	}

	if corrected != nil {
		s.notifyCorrected(ctx, corrected)
	}
	if settled != nil {
		s.metrics.TradeSettled(string(settled.Status))
		zap.L().Info("Trade settled",
			zap.String("trade_id", settled.Id),
			zap.String("user_id", settled.UserId),
			zap.String("proposed", string(proposed)),
			zap.String("status", string(settled.Status)),
			zap.String("profit_or_loss", settled.ProfitAmount.String()),
			zap.String("currency", settled.Currency))

		notify.Emit(ctx, s.notifier, s.timeout, s.metrics, settled.UserId, "Trade settled",
			fmt.Sprintf("Your %s %s trade %s settled as %s: %s %s",
				settled.Coin, settled.Direction, settled.Id, settled.Status, settled.ProfitAmount.String(), settled.Currency))
	}
	return result, nil
}

// resolveOutcome picks the outcome that will be booked: a per-trade forced
// outcome beats the user's admin flag, which beats the proposed outcome.
func resolveOutcome(forced, flagged, proposed models.TradeStatus) models.TradeStatus {
	switch {
	case forced.IsTerminal():
		return forced
	case flagged.IsTerminal():
		return flagged
	case proposed.IsTerminal():
		return proposed
	}
	return ""
}

// entryFor computes the ledger entry an outcome produces for a trade: a win
// credits stake * ratio / 100 rounded to cents, a loss debits the stake.
func entryFor(trade *models.Trade, outcome models.TradeStatus) ledger.Entry {
	if outcome == models.TradeWin {
		profit := trade.Stake.Mul(trade.ProfitRatio).Div(decimal.NewFromInt(100)).Round(models.ProfitPlaces)
		return ledger.Entry{
			Coin:        trade.Currency,
			Delta:       profit,
			Type:        models.TxTypeTradeWin,
			Reference:   trade.Id,
			IncomeDelta: profit,
		}
	}
	return ledger.Entry{
		Coin:      trade.Currency,
		Delta:     trade.Stake.Neg(),
		Type:      models.TxTypeTradeLoss,
		Reference: trade.Id,
	}
}

// applyLocked books the outcome and latches the trade. Must run inside the
// user's scope. If an earlier attempt already wrote the ledger entry but
// crashed before saving the trade, that entry is adopted instead.
func (s *Service) applyLocked(ctx context.Context, scope *ledger.Scope, trade *models.Trade, final models.TradeStatus) error {
	entry := entryFor(trade, final)
	entry.Key = tradeKey(trade.Id, "settle")
	entry.Releases = trade.Stake

	amount := entry.Delta
	if _, err := scope.Apply(entry); err != nil {
		if !errors.Is(err, store.ErrDuplicateTransaction) {
			return err
		}
		existing, err := s.ledger.EntryByKey(ctx, entry.Key)
		if err != nil {
			return err
		}
		final = outcomeOf(existing.TransactionType)
		amount = existing.Amount
		zap.L().Warn("Adopting existing settlement entry",
			zap.String("trade_id", trade.Id),
			zap.String("entry_id", existing.Id),
			zap.String("status", string(final)))
	}

	now := s.now()
	trade.Status = final
	trade.SettlementApplied = true
	trade.ProfitAmount = amount
	trade.UpdatedAt = now
	trade.SettledAt = &now
	return s.saveTrade(ctx, trade)
}

func outcomeOf(txType string) models.TradeStatus {
	if txType == models.TxTypeTradeWin {
		return models.TradeWin
	}
	return models.TradeLoss
}

func resultOf(trade *models.Trade, applied bool) *models.SettlementResult {
	return &models.SettlementResult{
		TradeId:      trade.Id,
		Status:       trade.Status,
		ProfitOrLoss: trade.ProfitAmount,
		Applied:      applied,
	}
}
