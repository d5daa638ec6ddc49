package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"

	"github.com/sells-group/contract-review/internal/apperr"
)

// Postgres SQLSTATEs that mean a concurrent writer won.
var pgConflictCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// classify tags a driver error with its apperr kind. Errors that already
// carry a kind pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.Code(err) != "internal" {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgConflictCodes[pgErr.Code] {
		return apperr.Conflict(op, err)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// Primary result codes live in the low byte: 5 BUSY, 6 LOCKED.
		switch liteErr.Code() & 0xff {
		case 5, 6:
			return apperr.Conflict(op, err)
		}
	}
	return apperr.Storage(op, err)
}
