// Package pg bootstraps the PostgreSQL layer backing digest entries,
// broadcast messages and acknowledgements: env-driven Config, pooled Connect
// with startup retries, goose migrations, and error helpers used by the
// storage implementations.
package pg
