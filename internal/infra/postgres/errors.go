package postgres

import (
	"errors"
	"fmt"

	"formbuilder-service/internal/domain"
	"github.com/jackc/pgx/v4"
)

// storeErr maps a driver error onto the domain: missing rows become notFound,
// everything else is a retryable persistence failure.
func storeErr(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}
