package database

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
)

// GetFlag returns an administrative flag, or "" when it is not set.
func (s *Service) GetFlag(ctx context.Context, userId, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, queryGetFlag, userId, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageError("failed to get flag", err)
	}
	return value, nil
}

// SetFlag stores a flag; an empty value clears it.
func (s *Service) SetFlag(ctx context.Context, userId, key, value string) error {
	var err error
	if value == "" {
		_, err = s.db.ExecContext(ctx, queryDeleteFlag, userId, key)
	} else {
		_, err = s.db.ExecContext(ctx, queryUpsertFlag, userId, key, value)
	}
	if err != nil {
		return storageError("failed to set flag", err)
	}

	zap.L().Info("Admin flag updated", zap.String("user_id", userId), zap.String("key", key), zap.String("value", value))
	return nil
}
