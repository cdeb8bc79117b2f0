package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToConnect           = errors.New("pg: failed to open connection")
	ErrFailedToParseConfig       = errors.New("pg: failed to parse connection config")
	ErrHealthcheckFailed         = errors.New("pg: healthcheck failed")
	ErrFailedToMigrate           = errors.New("pg: failed to apply migrations")
	ErrMigrationsDirNotFound     = errors.New("pg: migrations directory not found")
	ErrMigrationsPathNotProvided = errors.New("pg: migrations path not provided")
)

// IsNotFoundError detects pgx.ErrNoRows for consistent "not found" handling.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError detects unique constraint violations (SQLSTATE 23505).
// The acknowledgement tracker relies on this for its get-or-create path.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
