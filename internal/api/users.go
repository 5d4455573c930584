package api

import (
	"context"
	"fmt"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"
)

// ConnectWallet creates the account on first wallet connect and returns it.
func (s *LedgerService) ConnectWallet(ctx context.Context, userId, walletAddress string) (*models.User, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id is required", store.ErrInvalidArgument)
	}
	return s.ledger.EnsureUser(ctx, userId, walletAddress)
}

func (s *LedgerService) GetUser(ctx context.Context, userId string) (*models.User, error) {
	return s.ledger.GetUser(ctx, userId)
}

func (s *LedgerService) SetUserBanned(ctx context.Context, userId string, banned bool) error {
	return s.ledger.SetBanned(ctx, userId, banned)
}

// SetUserFlag writes an admin flag such as force_outcome. An empty value
// clears it.
func (s *LedgerService) SetUserFlag(ctx context.Context, userId, key, value string) error {
	if userId == "" || key == "" {
		return fmt.Errorf("%w: user_id and key are required", store.ErrInvalidArgument)
	}
	if key == store.FlagForceOutcome && value != "" {
		if _, err := models.ParseOutcome(value); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
		}
	}
	return s.flags.SetFlag(ctx, userId, key, value)
}

func (s *LedgerService) GetUserFlag(ctx context.Context, userId, key string) (string, error) {
	return s.flags.GetFlag(ctx, userId, key)
}
