package accrual

import (
	"context"
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

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testProducts = []models.Product{
	{Id: "eth-miner", Name: "ETH Miner", Kind: models.KindMining, Coin: "eth", YieldRate: d("0.005"), MinAmount: d("1"), MaxAmount: d("100")},
	{Id: "usdt-arb", Name: "USDT Arbitrage", Kind: models.KindArbitrage, Coin: "USDT", YieldRate: d("0.012"), MinAmount: d("100")},
}

type fixture struct {
	svc      *Service
	ledger   *ledger.Ledger
	notifier *testutil.Notifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestService(t)
	f := &fixture{
		ledger:   ledger.New(db, nil),
		notifier: &testutil.Notifier{},
		now:      time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(Dependencies{
		Ledger:   f.ledger,
		Records:  db,
		Notifier: f.notifier,
	}, testProducts, DefaultWindow, time.Second)
	require.NoError(t, err)
	svc.SetClock(func() time.Time { return f.now })
	f.svc = svc
	return f
}

func (f *fixture) fund(t *testing.T, userId, coin, amount string) {
	t.Helper()
	_, err := f.ledger.EnsureUser(context.Background(), userId, "")
	require.NoError(t, err)
	_, err = f.ledger.Adjust(context.Background(), userId, coin, d(amount), "test funding", "")
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userId, coin string) decimal.Decimal {
	t.Helper()
	balance, err := f.ledger.GetBalance(context.Background(), userId, coin)
	require.NoError(t, err)
	return balance
}

func TestNewService_RejectsBadCatalog(t *testing.T) {
	_, err := NewService(Dependencies{}, []models.Product{{Id: "x", Kind: "staking", Coin: "ETH", YieldRate: d("0.1")}}, 0, 0)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = NewService(Dependencies{}, []models.Product{{Id: "x", Kind: models.KindMining, Coin: "DOGE", YieldRate: d("0.1")}}, 0, 0)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = NewService(Dependencies{}, append(testProducts, testProducts[0]), 0, 0)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestCreateSubscription_DebitsStake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "ETH", "25")

	sub, err := f.svc.CreateSubscription(ctx, "U1", "eth-miner", d("20"))
	require.NoError(t, err)

	assert.Equal(t, models.KindMining, sub.Kind)
	assert.Equal(t, "ETH", sub.Coin)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.True(t, f.balance(t, "U1", "ETH").Equal(d("5")))

	user, err := f.ledger.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, user.TotalInvested.Equal(d("20")))

	stored, err := f.svc.GetSubscription(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, sub.Id, stored.Id)
}

func TestCreateSubscription_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "ETH", "5")

	_, err := f.svc.CreateSubscription(ctx, "U1", "eth-miner", d("10"))
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	_, err = f.svc.CreateSubscription(ctx, "U1", "eth-miner", d("0.5"))
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = f.svc.CreateSubscription(ctx, "U1", "eth-miner", d("101"))
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = f.svc.CreateSubscription(ctx, "U1", "btc-miner", d("1"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.ledger.SetBanned(ctx, "U1", true))
	_, err = f.svc.CreateSubscription(ctx, "U1", "eth-miner", d("1"))
	assert.ErrorIs(t, err, store.ErrUserBanned)

	subs, err := f.svc.ListSubscriptions(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.True(t, f.balance(t, "U1", "ETH").Equal(d("5")))
}

func TestSweepDue_CreditsOncePerWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "ETH", "20")

	sub, err := f.svc.CreateSubscription(ctx, "U1", "eth-miner", d("20"))
	require.NoError(t, err)

	accrued, err := f.svc.SweepDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, accrued, "nothing is due before the first window closes")

	f.now = f.now.Add(24 * time.Hour)
	accrued, err = f.svc.SweepDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, accrued)

	accrued, err = f.svc.SweepDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, accrued)

	assert.Equal(t, "0.10000000", f.balance(t, "U1", "ETH").StringFixed(8))
	stored, err := f.svc.GetSubscription(ctx, sub.Id)
	require.NoError(t, err)
	assert.True(t, stored.TodayIncome.Equal(d("0.1")))
	assert.True(t, stored.TotalIncome.Equal(d("0.1")))
	require.NotNil(t, stored.LastIncomeAt)
	assert.True(t, stored.LastIncomeAt.Equal(f.now))

	user, err := f.ledger.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, user.TotalIncome.Equal(d("0.1")))

	f.now = f.now.Add(24 * time.Hour)
	accrued, err = f.svc.SweepDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, accrued)
	assert.True(t, f.balance(t, "U1", "ETH").Equal(d("0.2")))

	stored, err = f.svc.GetSubscription(ctx, sub.Id)
	require.NoError(t, err)
	assert.True(t, stored.TodayIncome.Equal(d("0.1")))
	assert.True(t, stored.TotalIncome.Equal(d("0.2")))
	assert.Len(t, f.notifier.Sent(), 2)
	require.NoError(t, f.ledger.Reconcile(ctx, "U1"))
}

func TestSweepDue_OverlappingSweepsCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	f.fund(t, "U2", "USDT", "500")

	_, err := f.svc.CreateSubscription(ctx, "U1", "usdt-arb", d("1000"))
	require.NoError(t, err)
	_, err = f.svc.CreateSubscription(ctx, "U2", "usdt-arb", d("500"))
	require.NoError(t, err)
	f.now = f.now.Add(25 * time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := f.svc.SweepDue(ctx)
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, total)
	assert.True(t, f.balance(t, "U1", "USDT").Equal(d("12")))
	assert.True(t, f.balance(t, "U2", "USDT").Equal(d("6")))
}

func TestRedeem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "ETH", "20")

	sub, err := f.svc.CreateSubscription(ctx, "U1", "eth-miner", d("20"))
	require.NoError(t, err)

	_, err = f.svc.CompleteRedeem(ctx, sub.Id)
	assert.ErrorIs(t, err, store.ErrInvalidState, "redemption must be requested first")

	requested, err := f.svc.RequestRedeem(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionRedeeming, requested.Status)

	// Redeeming subscriptions stop accruing
	f.now = f.now.Add(48 * time.Hour)
	accrued, err := f.svc.SweepDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, accrued)

	redeemed, err := f.svc.CompleteRedeem(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionRedeemed, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedAt)
	assert.True(t, f.balance(t, "U1", "ETH").Equal(d("20")))

	again, err := f.svc.CompleteRedeem(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionRedeemed, again.Status)
	assert.True(t, f.balance(t, "U1", "ETH").Equal(d("20")))

	_, err = f.svc.RequestRedeem(ctx, sub.Id)
	assert.ErrorIs(t, err, store.ErrInvalidState)

	_, err = f.svc.RequestRedeem(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReward_RoundsToEightPlaces(t *testing.T) {
	sub := &models.Subscription{Id: "s1", Coin: "BTC", Amount: d("0.123456789"), YieldRate: d("0.003")}
	entry := Reward(sub)
	assert.Equal(t, "0.00037037", entry.Delta.String())
	assert.True(t, entry.IncomeDelta.Equal(entry.Delta))
}

func TestListSubscriptions_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "U1", "USDT", "1000")
	f.fund(t, "U1", "ETH", "5")

	first, err := f.svc.CreateSubscription(ctx, "U1", "usdt-arb", d("100"))
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	second, err := f.svc.CreateSubscription(ctx, "U1", "eth-miner", d("2"))
	require.NoError(t, err)

	subs, err := f.svc.ListSubscriptions(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, second.Id, subs[0].Id)
	assert.Equal(t, first.Id, subs[1].Id)

	others, err := f.svc.ListSubscriptions(ctx, "U2")
	require.NoError(t, err)
	assert.Empty(t, others)
}
