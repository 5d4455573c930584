package funds

import (
	"context"
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

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc      *Service
	ledger   *ledger.Ledger
	prices   *testutil.PriceFeed
	notifier *testutil.Notifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestService(t)
	f := &fixture{
		ledger:   ledger.New(db, nil),
		prices:   testutil.NewPriceFeed(),
		notifier: &testutil.Notifier{},
		now:      time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC),
	}
	f.svc = NewService(Dependencies{Ledger: f.ledger, Records: db, Prices: f.prices, Notifier: f.notifier}, time.Second)
	f.svc.SetClock(func() time.Time { return f.now })

	f.prices.Set("USDT", "1")
	f.prices.Set("ETH", "3123.456")
	f.prices.Set("BTC", "81000")
	return f
}

func (f *fixture) balance(t *testing.T, userId, coin string) decimal.Decimal {
	t.Helper()
	balance, err := f.ledger.GetBalance(context.Background(), userId, coin)
	require.NoError(t, err)
	return balance
}

func TestTopup_ApproveCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	topup, err := f.svc.RequestTopup(ctx, "U1", "usdc", d("250"), "0xhash")
	require.NoError(t, err)
	assert.Equal(t, models.FundsPending, topup.Status)
	assert.Equal(t, "USDC", topup.Coin)
	assert.True(t, f.balance(t, "U1", "USDC").IsZero(), "pending topups are not credited")

	approved, err := f.svc.ApproveTopup(ctx, topup.Id)
	require.NoError(t, err)
	assert.Equal(t, models.FundsApproved, approved.Status)
	assert.True(t, f.balance(t, "U1", "USDC").Equal(d("250")))

	_, err = f.svc.ApproveTopup(ctx, topup.Id)
	require.NoError(t, err)
	assert.True(t, f.balance(t, "U1", "USDC").Equal(d("250")))
	assert.Len(t, f.notifier.Sent(), 1)

	_, err = f.svc.RejectTopup(ctx, topup.Id)
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestTopup_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	topup, err := f.svc.RequestTopup(ctx, "U1", "BTC", d("0.5"), "")
	require.NoError(t, err)

	rejected, err := f.svc.RejectTopup(ctx, topup.Id)
	require.NoError(t, err)
	assert.Equal(t, models.FundsRejected, rejected.Status)

	_, err = f.svc.ApproveTopup(ctx, topup.Id)
	assert.ErrorIs(t, err, store.ErrInvalidState)
	assert.True(t, f.balance(t, "U1", "BTC").IsZero())

	_, err = f.svc.ApproveTopup(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTopup_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestTopup(ctx, "U1", "DOGE", d("1"), "")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = f.svc.RequestTopup(ctx, "U1", "USDT", d("-1"), "")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = f.svc.RequestTopup(ctx, "", "USDT", d("1"), "")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestWithdrawal_DebitsOnRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	topup, err := f.svc.RequestTopup(ctx, "U1", "USDT", d("100"), "")
	require.NoError(t, err)
	_, err = f.svc.ApproveTopup(ctx, topup.Id)
	require.NoError(t, err)

	_, err = f.svc.RequestWithdrawal(ctx, "U1", "USDT", d("150"), "0xdest")
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	withdrawal, err := f.svc.RequestWithdrawal(ctx, "U1", "USDT", d("60"), "0xdest")
	require.NoError(t, err)
	assert.True(t, f.balance(t, "U1", "USDT").Equal(d("40")))

	completed, err := f.svc.CompleteWithdrawal(ctx, withdrawal.Id)
	require.NoError(t, err)
	assert.Equal(t, models.FundsCompleted, completed.Status)
	assert.True(t, f.balance(t, "U1", "USDT").Equal(d("40")))

	_, err = f.svc.RejectWithdrawal(ctx, withdrawal.Id, "too late")
	assert.ErrorIs(t, err, store.ErrInvalidState)

	withdrawals, err := f.svc.ListWithdrawals(ctx, "U1")
	require.NoError(t, err)
	assert.Len(t, withdrawals, 1)
}

func TestWithdrawal_RejectRefundsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	topup, err := f.svc.RequestTopup(ctx, "U1", "ETH", d("2"), "")
	require.NoError(t, err)
	_, err = f.svc.ApproveTopup(ctx, topup.Id)
	require.NoError(t, err)

	withdrawal, err := f.svc.RequestWithdrawal(ctx, "U1", "ETH", d("1.5"), "0xdest")
	require.NoError(t, err)
	assert.True(t, f.balance(t, "U1", "ETH").Equal(d("0.5")))

	rejected, err := f.svc.RejectWithdrawal(ctx, withdrawal.Id, "address flagged")
	require.NoError(t, err)
	assert.Equal(t, models.FundsRejected, rejected.Status)
	assert.Equal(t, "address flagged", rejected.Reason)
	assert.True(t, f.balance(t, "U1", "ETH").Equal(d("2")))

	_, err = f.svc.RejectWithdrawal(ctx, withdrawal.Id, "again")
	require.NoError(t, err)
	assert.True(t, f.balance(t, "U1", "ETH").Equal(d("2")))

	_, err = f.svc.CompleteWithdrawal(ctx, withdrawal.Id)
	assert.ErrorIs(t, err, store.ErrInvalidState)
	require.NoError(t, f.ledger.Reconcile(ctx, "U1"))
}

func TestWithdrawal_BannedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.EnsureUser(ctx, "U1", "")
	require.NoError(t, err)
	require.NoError(t, f.ledger.SetBanned(ctx, "U1", true))

	_, err = f.svc.RequestWithdrawal(ctx, "U1", "USDT", d("1"), "0xdest")
	assert.ErrorIs(t, err, store.ErrUserBanned)
}

func TestExchange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	topup, err := f.svc.RequestTopup(ctx, "U1", "ETH", d("2"), "")
	require.NoError(t, err)
	_, err = f.svc.ApproveTopup(ctx, topup.Id)
	require.NoError(t, err)

	result, err := f.svc.Exchange(ctx, "U1", "ETH", "USDT", d("1.5"))
	require.NoError(t, err)
	assert.Equal(t, "4685.18", result.ToAmount.String())
	assert.True(t, result.Rate.Equal(d("3123.456")))
	assert.True(t, result.FromBalance.Equal(d("0.5")))
	assert.True(t, result.ToBalance.Equal(d("4685.18")))

	back, err := f.svc.Exchange(ctx, "U1", "USDT", "BTC", d("1000"))
	require.NoError(t, err)
	assert.Equal(t, "0.01234568", back.ToAmount.String())

	_, err = f.svc.Exchange(ctx, "U1", "ETH", "USDT", d("1"))
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)
	assert.True(t, f.balance(t, "U1", "ETH").Equal(d("0.5")))

	_, err = f.svc.Exchange(ctx, "U1", "ETH", "ETH", d("0.1"))
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = f.svc.Exchange(ctx, "U1", "ETH", "USDT", d("0"))
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	require.NoError(t, f.ledger.Reconcile(ctx, "U1"))
}

func TestExchange_UsesMarketPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Adjust(ctx, "U1", "USDT", d("1"), "seed", "")
	require.NoError(t, err)

	result, err := f.svc.Exchange(ctx, "U1", "USDT", "BTC", d("1"))
	require.NoError(t, err)
	assert.Equal(t, "0.00001235", result.ToAmount.String())
	assert.True(t, f.balance(t, "U1", "USDT").IsZero())
	assert.True(t, f.balance(t, "U1", "BTC").Equal(d("0.00001235")))
}

func TestExchange_PriceOutage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Adjust(ctx, "U1", "USDT", d("100"), "seed", "")
	require.NoError(t, err)
	f.prices.Fail(store.ErrExternalUnavailable)

	_, err = f.svc.Exchange(ctx, "U1", "USDT", "BTC", d("50"))
	assert.ErrorIs(t, err, store.ErrExternalUnavailable)
	assert.True(t, f.balance(t, "U1", "USDT").Equal(d("100")))
	assert.True(t, f.balance(t, "U1", "BTC").IsZero())
}
