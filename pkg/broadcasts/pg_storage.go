package broadcasts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStorage stores broadcasts and acknowledgements in Postgres. Relies on
// the broadcast_messages / broadcast_acks migration shipped with this
// module.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage wraps a connection pool as broadcast storage.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

const messageColumns = `id, tenant_id, title, body, event, target_roles, show_to_all,
	blocking, pinned, scheduled_for, expires_at, channels, active, created_at`

func (s *PGStorage) CreateMessage(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO broadcast_messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		msg.ID, msg.TenantID, msg.Title, msg.Body, msg.Event, msg.TargetRoles, msg.ShowToAll,
		msg.Blocking, msg.Pinned, msg.ScheduledFor, msg.ExpiresAt, msg.Channels, msg.Active, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: create message: %v", ErrStorage, err)
	}
	return nil
}

func (s *PGStorage) GetMessage(ctx context.Context, tenantID, id string) (Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM broadcast_messages
		WHERE id = $1 AND tenant_id = $2`, id, tenantID)

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("%w: get message: %v", ErrStorage, err)
	}
	return msg, nil
}

func (s *PGStorage) ListActive(ctx context.Context, tenantID string, now time.Time) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM broadcast_messages
		WHERE tenant_id = $1
		  AND active = true
		  AND scheduled_for <= $2
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY scheduled_for ASC`, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: list active: %v", ErrStorage, err)
	}
	defer rows.Close()

	var active []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan message: %v", ErrStorage, err)
		}
		active = append(active, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list active: %v", ErrStorage, err)
	}
	return active, nil
}

func (s *PGStorage) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE broadcast_messages SET active = false
		WHERE active = true AND expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: deactivate expired: %v", ErrStorage, err)
	}
	return tag.RowsAffected(), nil
}

// CreateAck inserts the acknowledgement or, when one already exists for the
// same (user, broadcast, tenant), returns the original untouched. One
// round-trip; the DO NOTHING plus re-select keeps the first AckedAt stable.
func (s *PGStorage) CreateAck(ctx context.Context, ack Acknowledgement) (Acknowledgement, error) {
	row := s.pool.QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO broadcast_acks (user_id, broadcast_id, tenant_id, acked_at, channel)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, broadcast_id, tenant_id) DO NOTHING
			RETURNING user_id, broadcast_id, tenant_id, acked_at, channel
		)
		SELECT user_id, broadcast_id, tenant_id, acked_at, channel FROM ins
		UNION ALL
		SELECT user_id, broadcast_id, tenant_id, acked_at, channel FROM broadcast_acks
		WHERE user_id = $1 AND broadcast_id = $2 AND tenant_id = $3
		LIMIT 1`,
		ack.UserID, ack.BroadcastID, ack.TenantID, ack.AckedAt, ack.Channel,
	)

	var stored Acknowledgement
	if err := row.Scan(&stored.UserID, &stored.BroadcastID, &stored.TenantID, &stored.AckedAt, &stored.Channel); err != nil {
		return Acknowledgement{}, fmt.Errorf("%w: create ack: %v", ErrStorage, err)
	}
	return stored, nil
}

func (s *PGStorage) AckedIDs(ctx context.Context, tenantID, userID string, broadcastIDs []string) (map[string]bool, error) {
	acked := make(map[string]bool, len(broadcastIDs))
	if len(broadcastIDs) == 0 {
		return acked, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT broadcast_id FROM broadcast_acks
		WHERE tenant_id = $1 AND user_id = $2 AND broadcast_id = ANY($3)`,
		tenantID, userID, broadcastIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: acked ids: %v", ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan ack: %v", ErrStorage, err)
		}
		acked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: acked ids: %v", ErrStorage, err)
	}
	return acked, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.ID, &msg.TenantID, &msg.Title, &msg.Body, &msg.Event, &msg.TargetRoles, &msg.ShowToAll,
		&msg.Blocking, &msg.Pinned, &msg.ScheduledFor, &msg.ExpiresAt, &msg.Channels, &msg.Active, &msg.CreatedAt,
	)
	return msg, err
}
