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

const (
	// User queries
	queryGetUsers = `
		SELECT id, COALESCE(wallet_address, ''), banned, total_invested, total_income, created_at, updated_at
		FROM users
		ORDER BY created_at, id`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id) VALUES (?)`

	queryGetUserById = `
		SELECT id, COALESCE(wallet_address, ''), banned, total_invested, total_income, created_at, updated_at
		FROM users
		WHERE id = ?`

	queryGetUserByWallet = `
		SELECT id, COALESCE(wallet_address, ''), banned, total_invested, total_income, created_at, updated_at
		FROM users
		WHERE wallet_address = ?`

	querySetUserWallet = `
		UPDATE users SET wallet_address = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND wallet_address IS NULL`

	querySetUserBanned = `
		UPDATE users SET banned = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryGetUserTotals = `
		SELECT total_invested, total_income FROM users WHERE id = ?`

	queryUpdateUserTotals = `
		UPDATE users SET total_invested = ?, total_income = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM account_balances
		WHERE user_id = ? AND asset = ?`

	queryGetAllUserBalances = `
		SELECT id, user_id, asset, balance, COALESCE(last_transaction_id, ''), version, updated_at
		FROM account_balances
		WHERE user_id = ?
		ORDER BY asset`

	queryReconcileBalance = `
		SELECT amount
		FROM transactions
		WHERE user_id = ? AND asset = ? AND status = 'confirmed'`

	// Transaction queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM transactions WHERE idempotency_key = ? LIMIT 1`

	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM account_balances
		WHERE user_id = ? AND asset = ?`

	queryInsertAccountBalance = `
		INSERT OR IGNORE INTO account_balances (id, user_id, asset, balance, version)
		VALUES (?, ?, ?, '0', 1)`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, user_id, asset, transaction_type, amount, balance_before, balance_after,
			idempotency_key, reference, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND asset = ? AND version = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetTransactionByKey = `
		SELECT id, user_id, asset, transaction_type, amount, balance_before, balance_after,
		       COALESCE(idempotency_key, ''), reference, status, created_at
		FROM transactions
		WHERE idempotency_key = ?`

	queryGetTransactionHistory = `
		SELECT id, user_id, asset, transaction_type, amount, balance_before, balance_after,
		       COALESCE(idempotency_key, ''), reference, status, created_at
		FROM transactions
		WHERE user_id = ? AND asset = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	// Record queries
	queryLoadRecords = `
		SELECT id, body, updated_at FROM records WHERE collection = ? ORDER BY id`

	queryGetRecord = `
		SELECT id, body, updated_at FROM records WHERE collection = ? AND id = ?`

	queryUpsertRecord = `
		INSERT INTO records (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`

	queryDeleteCollection = `
		DELETE FROM records WHERE collection = ?`

	// Flag queries
	queryGetFlag = `
		SELECT flag_value FROM admin_flags WHERE user_id = ? AND flag_key = ?`

	queryUpsertFlag = `
		INSERT INTO admin_flags (user_id, flag_key, flag_value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, flag_key) DO UPDATE SET flag_value = excluded.flag_value, updated_at = CURRENT_TIMESTAMP`

	queryDeleteFlag = `
		DELETE FROM admin_flags WHERE user_id = ? AND flag_key = ?`
)
