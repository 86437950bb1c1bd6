package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/arena/internal/arena"
)

var domainErrors = []error{
	arena.ErrAlreadyClaimed,
	arena.ErrRoundNotActive,
	arena.ErrDuplicateAnswer,
	arena.ErrPreconditionFailed,
	arena.ErrStoreUnavailable,
	arena.ErrNotFound,
}

// classify maps driver errors onto the arena taxonomy. Domain errors returned
// from inside a transaction pass through untouched; constraint violations
// stay as they are; anything else (network, timeouts, serialization and
// deadlock aborts) is reported as ErrStoreUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", arena.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "53300":
			return fmt.Errorf("%w: %v", arena.ErrStoreUnavailable, err)
		case "23503":
			return fmt.Errorf("%w: %s", arena.ErrNotFound, pgErr.Detail)
		}
		return err
	}
	return fmt.Errorf("%w: %v", arena.ErrStoreUnavailable, err)
}

// retryable reports whether a failed statement never reached the server.
func retryable(err error) bool {
	return pgconn.SafeToRetry(err)
}
