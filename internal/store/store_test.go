package store

import (
	"errors"
	"fmt"
	"testing"
)

// Compile-time checks that the interfaces are importable and usable.
func TestStoreInterfacesExist(t *testing.T) {
	var _ RecordStore
	var _ LedgerStore
	var _ PriceFeed
	var _ Notifier
	var _ FlagStore
	_ = TransactionParams{}
}

func TestSentinelErrorsWrap(t *testing.T) {
	wrapped := fmt.Errorf("settle trade t1: %w", ErrInsufficientBalance)
	if !errors.Is(wrapped, ErrInsufficientBalance) {
		t.Errorf("expected wrapped error to match ErrInsufficientBalance")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Errorf("wrapped error must not match ErrNotFound")
	}

	both := fmt.Errorf("%w: %w", ErrOverrideConflict, ErrInsufficientBalance)
	if !errors.Is(both, ErrOverrideConflict) || !errors.Is(both, ErrInsufficientBalance) {
		t.Errorf("expected joined error to match both sentinels")
	}
}
