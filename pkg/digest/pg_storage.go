package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStorage stores digest entries in Postgres. The claim and mark-sent
// queries rely on the digest_entries migration shipped with this module.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage wraps a connection pool as digest storage.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

func (s *PGStorage) Add(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO digest_entries (id, user_id, tenant_id, group_key, payload, scheduled_for, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.UserID, e.TenantID, e.GroupKey, e.Payload, e.ScheduledFor, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: add entry: %v", ErrStorage, err)
	}
	return nil
}

// ClaimDue marks due unsent entries in-flight and returns them in flush
// order. The UPDATE..RETURNING runs as one statement, so two concurrent
// flushes claim disjoint sets.
func (s *PGStorage) ClaimDue(ctx context.Context, now time.Time, claimFor time.Duration) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE digest_entries
		SET claimed_until = $2
		WHERE id IN (
			SELECT id FROM digest_entries
			WHERE sent = false
			  AND scheduled_for <= $1
			  AND (claimed_until IS NULL OR claimed_until < $1)
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, tenant_id, group_key, payload, scheduled_for, sent, created_at`,
		now, now.Add(claimFor),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: claim due: %v", ErrStorage, err)
	}
	defer rows.Close()

	var due []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TenantID, &e.GroupKey, &e.Payload, &e.ScheduledFor, &e.Sent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", ErrStorage, err)
		}
		due = append(due, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: claim due: %v", ErrStorage, err)
	}

	// RETURNING order is unspecified; flush order is scheduled_for then
	// created_at.
	sortEntries(due)
	return due, nil
}

func (s *PGStorage) MarkSent(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE digest_entries SET sent = true, claimed_until = NULL
		WHERE id = ANY($1) AND sent = false`, ids)
	if err != nil {
		return 0, fmt.Errorf("%w: mark sent: %v", ErrStorage, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStorage) Release(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE digest_entries SET claimed_until = NULL
		WHERE id = ANY($1) AND sent = false`, ids)
	if err != nil {
		return fmt.Errorf("%w: release: %v", ErrStorage, err)
	}
	return nil
}

func (s *PGStorage) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM digest_entries WHERE sent = true AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", ErrStorage, err)
	}
	return tag.RowsAffected(), nil
}
