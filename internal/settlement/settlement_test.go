package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"
	"settlement-ledger-go/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc      *Service
	ledger   *ledger.Ledger
	prices   *testutil.PriceFeed
	notifier *testutil.Notifier
	flags    *testutil.FlagStore
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestService(t)
	f := &fixture{
		ledger:   ledger.New(db, nil),
		prices:   testutil.NewPriceFeed(),
		notifier: &testutil.Notifier{},
		flags:    testutil.NewFlagStore(),
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.prices.Set("BTC", "50000")
	f.svc = NewService(Dependencies{
		Ledger:   f.ledger,
		Records:  db,
		Prices:   f.prices,
		Notifier: f.notifier,
		Flags:    f.flags,
	}, "USDT", time.Second)
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) fund(t *testing.T, userId, coin, amount string) {
	t.Helper()
	_, err := f.ledger.EnsureUser(context.Background(), userId, "")
	require.NoError(t, err)
	_, err = f.ledger.Adjust(context.Background(), userId, coin, d(amount), "test funding", "")
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userId, coin string) string {
	t.Helper()
	balance, err := f.ledger.GetBalance(context.Background(), userId, coin)
	require.NoError(t, err)
	return balance.String()
}

// place opens a 60s BTC "up" trade for U1 staking 1000 USDT at ratio 40.
func (f *fixture) place(t *testing.T) *models.Trade {
	t.Helper()
	trade, err := f.svc.PlaceTrade(context.Background(), PlaceTradeRequest{
		UserId:          "U1",
		Coin:            "BTC",
		Direction:       models.DirectionUp,
		Stake:           d("1000"),
		DurationSeconds: 60,
		ProfitRatio:     d("40"),
	})
	require.NoError(t, err)
	return trade
}

func TestPlaceTrade_RecordsInvestedWithoutDebit(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "U1", "USDT", "1000")

	trade := f.place(t)

	assert.Equal(t, models.TradePending, trade.Status)
	assert.Equal(t, "USDT", trade.Currency)
	assert.Equal(t, "50000", trade.EntryPrice.String())
	assert.Equal(t, f.now.Add(time.Minute), trade.ExpiresAt)
	assert.Equal(t, "1000", f.balance(t, "U1", "USDT"))

	user, err := f.ledger.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "1000", user.TotalInvested.String())
}

func TestPlaceTrade_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "10")

	_, err := f.svc.PlaceTrade(ctx, PlaceTradeRequest{UserId: "U1", Coin: "BTC", Direction: models.DirectionUp, Stake: d("11"), DurationSeconds: 60, ProfitRatio: d("40")})
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	_, err = f.svc.PlaceTrade(ctx, PlaceTradeRequest{UserId: "U1", Coin: "BTC", Direction: "sideways", Stake: d("1"), DurationSeconds: 60})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = f.svc.PlaceTrade(ctx, PlaceTradeRequest{UserId: "U1", Coin: "BTC", Direction: models.DirectionUp, Stake: d("0"), DurationSeconds: 60})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = f.svc.PlaceTrade(ctx, PlaceTradeRequest{UserId: "U1", Coin: "ETH", Direction: models.DirectionUp, Stake: d("1"), DurationSeconds: 60})
	assert.ErrorIs(t, err, store.ErrExternalUnavailable, "no ETH price configured")

	require.NoError(t, f.ledger.SetBanned(ctx, "U1", true))
	_, err = f.svc.PlaceTrade(ctx, PlaceTradeRequest{UserId: "U1", Coin: "BTC", Direction: models.DirectionUp, Stake: d("1"), DurationSeconds: 60})
	assert.ErrorIs(t, err, store.ErrUserBanned)

	trades, err := f.svc.ListTrades(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestSettleTrade_WinCreditsProfitOnly(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	result, err := f.svc.SettleTrade(context.Background(), trade.Id, models.TradeWin)
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, models.TradeWin, result.Status)
	assert.True(t, result.ProfitOrLoss.Equal(d("400.00")))
	assert.Equal(t, "1400", f.balance(t, "U1", "USDT"))

	user, err := f.ledger.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.True(t, user.TotalIncome.Equal(d("400.00")))

	require.Len(t, f.notifier.Sent(), 1)
	assert.Equal(t, "Trade settled", f.notifier.Sent()[0].Title)
}

func TestSettleTrade_LossDebitsStake(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	result, err := f.svc.SettleTrade(context.Background(), trade.Id, models.TradeLoss)
	require.NoError(t, err)

	assert.True(t, result.ProfitOrLoss.Equal(d("-1000.00")))
	assert.Equal(t, "0", f.balance(t, "U1", "USDT"))

	user, err := f.ledger.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.True(t, user.TotalIncome.IsZero())
}

func TestSettleTrade_ProfitRoundsHalfAwayFromZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "100")

	trade, err := f.svc.PlaceTrade(ctx, PlaceTradeRequest{
		UserId: "U1", Coin: "BTC", Direction: models.DirectionDown,
		Stake: d("10.125"), DurationSeconds: 30, ProfitRatio: d("100"),
	})
	require.NoError(t, err)

	result, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)
	assert.Equal(t, "10.13", result.ProfitOrLoss.String())
}

func TestSettleTrade_TwiceAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	_, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)
	second, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)

	assert.False(t, second.Applied)
	assert.Equal(t, models.TradeWin, second.Status)
	assert.Equal(t, "1400", f.balance(t, "U1", "USDT"))

	// A different late outcome does not flip a settled trade either
	third, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeLoss)
	require.NoError(t, err)
	assert.Equal(t, models.TradeWin, third.Status)
	assert.Equal(t, "1400", f.balance(t, "U1", "USDT"))
	assert.Len(t, f.notifier.Sent(), 1)
}

func TestSettleTrade_ConcurrentCallsApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
			if !assert.NoError(t, err) {
				return
			}
			if result.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, "1400", f.balance(t, "U1", "USDT"))
}

func TestSettleTrade_ForcedOutcomeWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	_, err := f.svc.SetForcedOutcome(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)

	result, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeLoss)
	require.NoError(t, err)
	assert.Equal(t, models.TradeWin, result.Status)
	assert.Equal(t, "1400", f.balance(t, "U1", "USDT"))
}

func TestSettleTrade_UserFlagOverridesProposed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	require.NoError(t, f.flags.SetFlag(ctx, "U1", store.FlagForceOutcome, "loss"))

	result, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)
	assert.Equal(t, models.TradeLoss, result.Status)
	assert.Equal(t, "0", f.balance(t, "U1", "USDT"))

	stored, err := f.svc.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TradeLoss, stored.ForcedOutcome)
}

func TestSettleTrade_PerTradeOverrideBeatsUserFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	require.NoError(t, f.flags.SetFlag(ctx, "U1", store.FlagForceOutcome, "loss"))
	_, err := f.svc.SetForcedOutcome(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)

	result, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeLoss)
	require.NoError(t, err)
	assert.Equal(t, models.TradeWin, result.Status)
}

func TestSettleTrade_FlagStoreDownDefers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	f.flags.Err = errors.New("redis: connection refused")
	_, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
	require.ErrorIs(t, err, store.ErrExternalUnavailable)

	stored, err := f.svc.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TradePending, stored.Status)
	assert.Equal(t, "1000", f.balance(t, "U1", "USDT"))
}

func TestSettleTrade_NotFoundAndInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SettleTrade(ctx, "missing", models.TradeWin)
	assert.ErrorIs(t, err, store.ErrNotFound)

	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)
	_, err = f.svc.SettleTrade(ctx, trade.Id, "draw")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = f.svc.SettleTrade(ctx, trade.Id, "")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestPendingStakes_CannotBeSpent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	first := f.place(t)

	// The whole balance backs the first stake
	_, err := f.svc.PlaceTrade(ctx, PlaceTradeRequest{UserId: "U1", Coin: "BTC", Direction: models.DirectionDown, Stake: d("1000"), DurationSeconds: 60, ProfitRatio: d("40")})
	require.ErrorIs(t, err, store.ErrInsufficientBalance)
	_, err = f.ledger.Adjust(ctx, "U1", "USDT", d("-600"), "spent elsewhere", "")
	require.ErrorIs(t, err, store.ErrInsufficientBalance)

	committed, err := f.svc.CommittedStake(ctx, "U1", "USDT")
	require.NoError(t, err)
	assert.Equal(t, "1000", committed.String())

	// Funds above the committed stakes stay spendable
	f.fund(t, "U1", "USDT", "500")
	second, err := f.svc.PlaceTrade(ctx, PlaceTradeRequest{UserId: "U1", Coin: "BTC", Direction: models.DirectionDown, Stake: d("300"), DurationSeconds: 60, ProfitRatio: d("40")})
	require.NoError(t, err)
	_, err = f.ledger.Adjust(ctx, "U1", "USDT", d("-200"), "withdrawn", "")
	require.NoError(t, err)
	assert.Equal(t, "1300", f.balance(t, "U1", "USDT"))

	// Every loss can still be booked
	_, err = f.svc.SettleTrade(ctx, first.Id, models.TradeLoss)
	require.NoError(t, err)
	_, err = f.svc.SettleTrade(ctx, second.Id, models.TradeLoss)
	require.NoError(t, err)
	assert.Equal(t, "0", f.balance(t, "U1", "USDT"))

	committed, err = f.svc.CommittedStake(ctx, "U1", "USDT")
	require.NoError(t, err)
	assert.True(t, committed.IsZero())
	require.NoError(t, f.ledger.Reconcile(ctx, "U1"))
}

func TestPendingStakes_ReleasedByWin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	_, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)

	newBalance, err := f.ledger.Adjust(ctx, "U1", "USDT", d("-1400"), "withdrawn", "")
	require.NoError(t, err)
	assert.True(t, newBalance.IsZero())
}

func TestSettleTrade_LossBeyondBalanceStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	// Only an administrative overwrite can take the balance below the stake
	_, err := f.ledger.SetBalance(ctx, "U1", "USDT", d("400"), "manual fix", "")
	require.NoError(t, err)

	_, err = f.svc.SettleTrade(ctx, trade.Id, models.TradeLoss)
	require.ErrorIs(t, err, store.ErrInsufficientBalance)

	stored, err := f.svc.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TradePending, stored.Status)
	assert.False(t, stored.SettlementApplied)
	assert.Equal(t, "400", f.balance(t, "U1", "USDT"))
}

func TestSettleTrade_AdoptsEntryFromInterruptedRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	// Ledger entry written, trade record never latched
	err := f.ledger.WithUser(ctx, "U1", func(scope *ledger.Scope) error {
		entry := entryFor(trade, models.TradeWin)
		entry.Key = tradeKey(trade.Id, "settle")
		_, err := scope.Apply(entry)
		return err
	})
	require.NoError(t, err)

	result, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeLoss)
	require.NoError(t, err)
	assert.Equal(t, models.TradeWin, result.Status)
	assert.Equal(t, "1400", f.balance(t, "U1", "USDT"))

	stored, err := f.svc.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	assert.True(t, stored.SettlementApplied)
}

func TestCorrectTradeOutcome_ReversesThenApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	_, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)
	require.Equal(t, "1400", f.balance(t, "U1", "USDT"))

	result, err := f.svc.CorrectTradeOutcome(ctx, trade.Id, models.TradeLoss)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.TradeLoss, result.Status)
	assert.Equal(t, "0", f.balance(t, "U1", "USDT"))

	reversal, err := f.ledger.EntryByKey(ctx, tradeKey(trade.Id, "correction", "1", "reverse"))
	require.NoError(t, err)
	assert.True(t, reversal.Amount.Equal(d("-400")))

	// Same correction again is a no-op
	again, err := f.svc.CorrectTradeOutcome(ctx, trade.Id, models.TradeLoss)
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, "0", f.balance(t, "U1", "USDT"))

	// Settling again does not flip it back
	_, err = f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)
	assert.Equal(t, "0", f.balance(t, "U1", "USDT"))

	user, err := f.ledger.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, user.TotalIncome.IsZero(), "income from the reversed win is taken back")
	require.NoError(t, f.ledger.Reconcile(ctx, "U1"))
}

func TestCorrectTradeOutcome_InsufficientBalanceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	_, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)
	_, err = f.ledger.Adjust(ctx, "U1", "USDT", d("-1000"), "withdrawn", "")
	require.NoError(t, err)

	_, err = f.svc.CorrectTradeOutcome(ctx, trade.Id, models.TradeLoss)
	require.ErrorIs(t, err, store.ErrOverrideConflict)
	require.ErrorIs(t, err, store.ErrInsufficientBalance)

	stored, err := f.svc.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TradeWin, stored.Status)
	assert.Equal(t, "400", f.balance(t, "U1", "USDT"))
}

func TestCorrectTradeOutcome_PendingTradeRejected(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	_, err := f.svc.CorrectTradeOutcome(context.Background(), trade.Id, models.TradeWin)
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestSetForcedOutcome_OnSettledTradeCorrects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	_, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeLoss)
	require.NoError(t, err)

	updated, err := f.svc.SetForcedOutcome(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)
	assert.Equal(t, models.TradeWin, updated.Status)
	assert.Equal(t, 1, updated.Corrections)
	assert.Equal(t, "1400", f.balance(t, "U1", "USDT"))
}

func TestPriceOutcome(t *testing.T) {
	entry := d("100")
	assert.Equal(t, models.TradeWin, PriceOutcome(models.DirectionUp, entry, d("101")))
	assert.Equal(t, models.TradeLoss, PriceOutcome(models.DirectionUp, entry, d("99")))
	assert.Equal(t, models.TradeWin, PriceOutcome(models.DirectionDown, entry, d("99")))
	assert.Equal(t, models.TradeLoss, PriceOutcome(models.DirectionDown, entry, d("101")))
	assert.Equal(t, models.TradeLoss, PriceOutcome(models.DirectionUp, entry, d("100")))
	assert.Equal(t, models.TradeLoss, PriceOutcome(models.DirectionDown, entry, d("100")))
}

func TestSettleExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "3000")

	winner := f.place(t)
	pinned := f.place(t)

	// Nothing is due before expiry
	settled, err := f.svc.SettleExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)

	f.now = f.now.Add(2 * time.Minute)

	// Price feed outage defers both
	f.prices.Fail(errors.New("timeout"))
	settled, err = f.svc.SettleExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)

	f.prices.Fail(nil)
	f.prices.Set("BTC", "51000")
	_, err = f.svc.SetForcedOutcome(ctx, pinned.Id, models.TradeLoss)
	require.NoError(t, err)

	settled, err = f.svc.SettleExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, settled)

	stored, err := f.svc.GetTrade(ctx, winner.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TradeWin, stored.Status)
	require.NotNil(t, stored.ExitPrice)
	assert.Equal(t, "51000", stored.ExitPrice.String())

	// 3000 + 400 win - 1000 forced loss
	assert.Equal(t, "2400", f.balance(t, "U1", "USDT"))

	settled, err = f.svc.SettleExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
}

func TestSettleExpired_ForcedOutcomeSurvivesPriceOutage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	_, err := f.svc.SetForcedOutcome(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	f.prices.Fail(errors.New("down"))

	settled, err := f.svc.SettleExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
	assert.Equal(t, "1400", f.balance(t, "U1", "USDT"))
}

func TestQueryTradeOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	outcome, err := f.svc.QueryTradeOutcome(ctx, trade.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TradePending, outcome.Status)
	assert.Nil(t, outcome.ProfitAmount)

	// Expired with an unchanged price: tie resolves as loss
	f.now = f.now.Add(61 * time.Second)
	outcome, err = f.svc.QueryTradeOutcome(ctx, trade.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TradeLoss, outcome.Status)
	require.NotNil(t, outcome.ProfitAmount)
	assert.True(t, outcome.ProfitAmount.Equal(d("-1000")))

	_, err = f.svc.QueryTradeOutcome(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQueryTradeOutcome_PriceOutageStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	f.now = f.now.Add(time.Hour)
	f.prices.Fail(errors.New("down"))

	outcome, err := f.svc.QueryTradeOutcome(ctx, trade.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TradePending, outcome.Status)
	assert.Nil(t, outcome.ProfitAmount)
}

func TestSettleTrade_NotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	trade := f.place(t)

	f.notifier.Err = errors.New("sink down")
	result, err := f.svc.SettleTrade(ctx, trade.Id, models.TradeWin)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, "1400", f.balance(t, "U1", "USDT"))
}
