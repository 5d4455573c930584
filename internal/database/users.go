/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying users")

	rows, err := s.db.QueryContext(ctx, queryGetUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, storageError("unable to query users", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			zap.L().Error("Failed to scan user row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}

		users = append(users, *user)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, storageError("error iterating user rows", err)
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	zap.L().Debug("Querying user by ID", zap.String("user_id", userId))

	user, err := scanUser(s.db.QueryRowContext(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, userId)
		}
		zap.L().Error("Failed to query user by ID", zap.String("user_id", userId), zap.Error(err))
		return nil, storageError("unable to query user by ID", err)
	}

	return user, nil
}

func (s *Service) GetUserByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	wallet := models.NormalizeWallet(walletAddress)
	zap.L().Debug("Querying user by wallet", zap.String("wallet", wallet))

	user, err := scanUser(s.db.QueryRowContext(ctx, queryGetUserByWallet, wallet))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet %s", store.ErrNotFound, wallet)
		}
		zap.L().Error("Failed to query user by wallet", zap.String("wallet", wallet), zap.Error(err))
		return nil, storageError("unable to query user by wallet", err)
	}

	return user, nil
}

// EnsureUser creates the user if missing, binds the wallet when one is given
// and the user has none yet, and seeds a zero balance row for every
// supported coin. Calling it again for an existing user is a no-op.
func (s *Service) EnsureUser(ctx context.Context, userId, walletAddress string) (*models.User, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id cannot be empty", store.ErrInvalidArgument)
	}
	wallet := models.NormalizeWallet(walletAddress)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, queryInsertUser, userId)
	if err != nil {
		return nil, storageError("unable to insert user", err)
	}
	created, err := result.RowsAffected()
	if err != nil {
		return nil, storageError("unable to get rows affected", err)
	}

	if wallet != "" {
		if _, err := tx.ExecContext(ctx, querySetUserWallet, wallet, userId); err != nil {
			if isConstraintError(err) {
				return nil, fmt.Errorf("%w: wallet %s already belongs to another user", store.ErrInvalidArgument, wallet)
			}
			return nil, storageError("unable to bind wallet", err)
		}
	}

	for _, coin := range models.SupportedCoins {
		if _, err := tx.ExecContext(ctx, queryInsertAccountBalance, uuid.New().String(), userId, coin); err != nil {
			return nil, storageError("unable to create balance row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("failed to commit transaction", err)
	}

	if created > 0 {
		zap.L().Info("User created", zap.String("user_id", userId), zap.String("wallet", wallet))
	}
	return s.GetUserById(ctx, userId)
}

func (s *Service) SetUserBanned(ctx context.Context, userId string, banned bool) error {
	result, err := s.db.ExecContext(ctx, querySetUserBanned, banned, userId)
	if err != nil {
		return storageError("unable to update user", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageError("unable to get rows affected", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, userId)
	}

	zap.L().Info("User ban flag updated", zap.String("user_id", userId), zap.Bool("banned", banned))
	return nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var investedStr, incomeStr string
	err := row.Scan(&user.Id, &user.WalletAddress, &user.Banned, &investedStr, &incomeStr, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if user.TotalInvested, err = decimal.NewFromString(investedStr); err != nil {
		return nil, fmt.Errorf("failed to parse total_invested '%s': %w", investedStr, err)
	}
	if user.TotalIncome, err = decimal.NewFromString(incomeStr); err != nil {
		return nil, fmt.Errorf("failed to parse total_income '%s': %w", incomeStr, err)
	}
	return &user, nil
}

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
