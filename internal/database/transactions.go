package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProcessTransaction atomically checks the idempotency key, updates the
// balance, records the ledger entry and adjusts the user's running totals.
// A debit that would leave the balance negative, or below params.Floor,
// fails before any write.
func (s *SubledgerService) ProcessTransaction(ctx context.Context, params store.TransactionParams) (*models.Transaction, error) {

	zap.L().Info("Processing transaction",
		zap.String("user_id", params.UserId),
		zap.String("asset", params.Asset),
		zap.String("type", params.TransactionType),
		zap.String("amount", params.Amount.String()),
		zap.String("idempotency_key", params.IdempotencyKey))

	// Start database transaction for atomicity (BEGIN IMMEDIATE via DSN)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	// Check for duplicate idempotency key while holding the write lock
	if params.IdempotencyKey != "" {
		var existingTxId string
		err := tx.QueryRowContext(ctx, queryCheckDuplicateTransaction, params.IdempotencyKey).Scan(&existingTxId)
		if err == nil {
			zap.L().Warn("Duplicate idempotency key detected, skipping",
				zap.String("idempotency_key", params.IdempotencyKey),
				zap.String("existing_internal_tx_id", existingTxId))
			return nil, fmt.Errorf("%w: idempotency key %s already applied", store.ErrDuplicateTransaction, params.IdempotencyKey)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, storageError("failed to check for duplicate transaction", err)
		}
	}

	if _, err := tx.ExecContext(ctx, queryInsertAccountBalance, uuid.New().String(), params.UserId, params.Asset); err != nil {
		return nil, storageError("failed to create account balance", err)
	}

	var currentBalanceStr string
	var accountId string
	var version int64
	if err := tx.QueryRowContext(ctx, queryGetAccountBalance, params.UserId, params.Asset).Scan(&accountId, &currentBalanceStr, &version); err != nil {
		return nil, storageError("failed to get current balance", err)
	}
	currentBalance, err := decimal.NewFromString(currentBalanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse current balance '%s': %w", currentBalanceStr, err)
	}

	// Calculate new balance
	amount := params.Amount
	if params.Target != nil {
		amount = params.Target.Sub(currentBalance)
	}
	newBalance := currentBalance.Add(amount)
	if params.Target == nil && newBalance.IsNegative() {
		zap.L().Warn("Rejecting debit below zero",
			zap.String("user_id", params.UserId),
			zap.String("asset", params.Asset),
			zap.String("balance", currentBalance.String()),
			zap.String("amount", amount.String()))
		return nil, fmt.Errorf("%w: %s balance %s cannot cover %s", store.ErrInsufficientBalance,
			params.Asset, currentBalance.String(), amount.Neg().String())
	}
	if params.Target == nil && amount.IsNegative() && newBalance.LessThan(params.Floor) {
		zap.L().Warn("Rejecting debit into committed funds",
			zap.String("user_id", params.UserId),
			zap.String("asset", params.Asset),
			zap.String("balance", currentBalance.String()),
			zap.String("committed", params.Floor.String()),
			zap.String("amount", amount.String()))
		return nil, fmt.Errorf("%w: %s balance %s with %s committed cannot cover %s", store.ErrInsufficientBalance,
			params.Asset, currentBalance.String(), params.Floor.String(), amount.Neg().String())
	}

	transaction := &models.Transaction{
		Id:              uuid.New().String(),
		UserId:          params.UserId,
		Asset:           params.Asset,
		TransactionType: params.TransactionType,
		Amount:          amount,
		BalanceBefore:   currentBalance,
		BalanceAfter:    newBalance,
		IdempotencyKey:  params.IdempotencyKey,
		Reference:       params.Reference,
		Status:          "confirmed",
		CreatedAt:       time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, queryInsertTransaction,
		transaction.Id, transaction.UserId, transaction.Asset, transaction.TransactionType,
		amount.String(), currentBalance.String(), newBalance.String(),
		nullableKey(params.IdempotencyKey), params.Reference, transaction.Status, transaction.CreatedAt)
	if err != nil {
		return nil, storageError("failed to insert transaction", err)
	}

	// Update account balance (with optimistic locking)
	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance, newBalance.String(), transaction.Id, params.UserId, params.Asset, version)
	if err != nil {
		return nil, storageError("failed to update balance", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, storageError("failed to check rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if !params.InvestedDelta.IsZero() || !params.IncomeDelta.IsZero() {
		if err := s.updateUserTotals(ctx, tx, params); err != nil {
			return nil, err
		}
	}

	if err := s.addJournalEntries(ctx, tx, transaction); err != nil {
		return nil, storageError("failed to add journal entries", err)
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return nil, storageError("failed to commit transaction", err)
	}

	zap.L().Info("Transaction processed successfully",
		zap.String("transaction_id", transaction.Id),
		zap.String("user_id", params.UserId),
		zap.String("asset", params.Asset),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))

	return transaction, nil
}

func (s *SubledgerService) updateUserTotals(ctx context.Context, tx *sql.Tx, params store.TransactionParams) error {
	var investedStr, incomeStr string
	err := tx.QueryRowContext(ctx, queryGetUserTotals, params.UserId).Scan(&investedStr, &incomeStr)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, params.UserId)
	}
	if err != nil {
		return storageError("failed to read user totals", err)
	}

	invested, err := decimal.NewFromString(investedStr)
	if err != nil {
		return fmt.Errorf("failed to parse total_invested '%s': %w", investedStr, err)
	}
	income, err := decimal.NewFromString(incomeStr)
	if err != nil {
		return fmt.Errorf("failed to parse total_income '%s': %w", incomeStr, err)
	}

	invested = invested.Add(params.InvestedDelta)
	income = income.Add(params.IncomeDelta)
	if _, err := tx.ExecContext(ctx, queryUpdateUserTotals, invested.String(), income.String(), params.UserId); err != nil {
		return storageError("failed to update user totals", err)
	}
	return nil
}

type journalEntry struct {
	accountType  string
	accountId    string
	debitAmount  decimal.Decimal
	creditAmount decimal.Decimal
}

// addJournalEntries creates double-entry bookkeeping entries. A credit to the
// user increases the platform's liability to that user; a debit reduces it.
func (s *SubledgerService) addJournalEntries(ctx context.Context, tx *sql.Tx, transaction *models.Transaction) error {
	if transaction.Amount.IsZero() {
		return nil
	}

	userAccount := fmt.Sprintf("%s_%s", transaction.UserId, transaction.Asset)
	liabilityAccount := fmt.Sprintf("%s_%s", transaction.TransactionType, transaction.Asset)

	var entries []journalEntry
	if transaction.Amount.IsPositive() {
		entries = []journalEntry{
			{"user_asset", userAccount, transaction.Amount, decimal.Zero},
			{"platform_liability", liabilityAccount, decimal.Zero, transaction.Amount},
		}
	} else {
		amount := transaction.Amount.Neg()
		entries = []journalEntry{
			{"user_asset", userAccount, decimal.Zero, amount},
			{"platform_liability", liabilityAccount, amount, decimal.Zero},
		}
	}

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), transaction.Id, entry.accountType, entry.accountId, entry.debitAmount.String(), entry.creditAmount.String())
		if err != nil {
			return err
		}
	}

	return nil
}

// GetTransactionByKey returns the ledger entry written under an idempotency key.
func (s *SubledgerService) GetTransactionByKey(ctx context.Context, idempotencyKey string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, queryGetTransactionByKey, idempotencyKey)
	transaction, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction with key %s", store.ErrNotFound, idempotencyKey)
	}
	if err != nil {
		return nil, storageError("failed to get transaction", err)
	}
	return transaction, nil
}

// GetTransactionHistory returns paginated transaction history for a user
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, userId, asset string, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("user_id", userId),
		zap.String("asset", asset),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, userId, asset, limit, offset)
	if err != nil {
		return nil, storageError("failed to get transaction history", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *transaction)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, storageError("error iterating transaction rows", err)
	}

	return transactions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var amountStr, balanceBeforeStr, balanceAfterStr string
	err := row.Scan(&tx.Id, &tx.UserId, &tx.Asset, &tx.TransactionType,
		&amountStr, &balanceBeforeStr, &balanceAfterStr,
		&tx.IdempotencyKey, &tx.Reference, &tx.Status, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}

	if tx.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	if tx.BalanceBefore, err = decimal.NewFromString(balanceBeforeStr); err != nil {
		return nil, fmt.Errorf("failed to parse balance before '%s': %w", balanceBeforeStr, err)
	}
	if tx.BalanceAfter, err = decimal.NewFromString(balanceAfterStr); err != nil {
		return nil, fmt.Errorf("failed to parse balance after '%s': %w", balanceAfterStr, err)
	}
	return &tx, nil
}

func nullableKey(key string) sql.NullString {
	return sql.NullString{String: key, Valid: key != ""}
}

func storageError(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, store.ErrStorage, err)
}
