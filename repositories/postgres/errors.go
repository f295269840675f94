package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/upb/card-control-plane/repositories"
)

const uniqueViolation = pq.ErrorCode("23505")

// translate maps driver errors onto repository sentinels.
func translate(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repositories.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, repositories.ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// requireAffected reports ErrNotFound when an update touched no rows.
func requireAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, repositories.ErrNotFound)
	}
	return nil
}
