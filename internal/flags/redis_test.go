package flags

import (
	"context"
	"testing"

	"settlement-ledger-go/internal/store"
	"settlement-ledger-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	flags, err := NewRedisStore(ctx, testutil.TestRedisAddr(), "", 0)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer flags.Close()

	userId := "flags-test-user"
	t.Cleanup(func() { _ = flags.SetFlag(ctx, userId, store.FlagForceOutcome, "") })

	value, err := flags.GetFlag(ctx, userId, store.FlagForceOutcome)
	require.NoError(t, err)
	assert.Equal(t, "", value)

	require.NoError(t, flags.SetFlag(ctx, userId, store.FlagForceOutcome, "win"))
	value, err = flags.GetFlag(ctx, userId, store.FlagForceOutcome)
	require.NoError(t, err)
	assert.Equal(t, "win", value)

	require.NoError(t, flags.SetFlag(ctx, userId, store.FlagForceOutcome, ""))
	value, err = flags.GetFlag(ctx, userId, store.FlagForceOutcome)
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
