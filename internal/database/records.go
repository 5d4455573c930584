package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"settlement-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Load returns every record in a collection ordered by id. A collection that
// was never written is empty, not an error.
func (s *Service) Load(ctx context.Context, collection string) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, queryLoadRecords, collection)
	if err != nil {
		return nil, storageError("failed to load records", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	records := []store.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("error iterating record rows", err)
	}

	zap.L().Debug("Loaded records", zap.String("collection", collection), zap.Int("count", len(records)))
	return records, nil
}

// Save replaces the whole collection atomically.
func (s *Service) Save(ctx context.Context, collection string, records []store.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryDeleteCollection, collection); err != nil {
		return storageError("failed to clear collection", err)
	}

	now := time.Now().UTC()
	for _, record := range records {
		if err := validRecord(record); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queryUpsertRecord, collection, record.Id, string(record.Body), now); err != nil {
			return storageError("failed to write record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageError("failed to commit transaction", err)
	}

	zap.L().Debug("Saved collection", zap.String("collection", collection), zap.Int("count", len(records)))
	return nil
}

// Get returns one record or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, collection, id string) (*store.Record, error) {
	record, err := scanRecord(s.db.QueryRowContext(ctx, queryGetRecord, collection, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, storageError("failed to get record", err)
	}
	return record, nil
}

// Put inserts or overwrites a single record.
func (s *Service) Put(ctx context.Context, collection string, record store.Record) error {
	if err := validRecord(record); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, queryUpsertRecord, collection, record.Id, string(record.Body), time.Now().UTC()); err != nil {
		return storageError("failed to put record", err)
	}
	return nil
}

func validRecord(record store.Record) error {
	if record.Id == "" {
		return fmt.Errorf("%w: record id cannot be empty", store.ErrInvalidArgument)
	}
	if !json.Valid(record.Body) {
		return fmt.Errorf("%w: record %s body is not valid JSON", store.ErrInvalidArgument, record.Id)
	}
	return nil
}

func scanRecord(row rowScanner) (*store.Record, error) {
	var record store.Record
	var body string
	if err := row.Scan(&record.Id, &body, &record.UpdatedAt); err != nil {
		return nil, err
	}
	record.Body = json.RawMessage(body)
	return &record, nil
}
