package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Migration creates the registration_data table. It is safe to execute multiple times.
const Migration = `
CREATE TABLE IF NOT EXISTS registration_data (
    temporary_uuid TEXT PRIMARY KEY,
    assigned_uuid  TEXT NOT NULL,
    submission_id  TEXT NOT NULL DEFAULT '',
    created_time   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// pgConn is satisfied by *pgxpool.Pool
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db pgConn
}

var _ Store = &PostgresStore{}

func NewPostgresStore(db pgConn) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Migration); err != nil {
		return fmt.Errorf("migrate registration_data: %w", err)
	}
	return nil
}

func (p *PostgresStore) Lookup(ctx context.Context, temporaryUuid string) (*Record, error) {
	const query = `SELECT temporary_uuid, assigned_uuid, submission_id, created_time
FROM registration_data WHERE temporary_uuid = $1`

	record := &Record{}
	err := p.db.QueryRow(ctx, query, temporaryUuid).
		Scan(&record.TemporaryUuid, &record.AssignedUuid, &record.SubmissionId, &record.CreatedTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("select registration_data: %w", err)
	}
	return record, nil
}

func (p *PostgresStore) Record(ctx context.Context, record Record) (*Record, bool, error) {
	const query = `INSERT INTO registration_data (temporary_uuid, assigned_uuid, submission_id, created_time)
VALUES ($1, $2, $3, $4)
ON CONFLICT (temporary_uuid) DO NOTHING`

	tag, err := p.db.Exec(ctx, query, record.TemporaryUuid, record.AssignedUuid, record.SubmissionId, record.CreatedTime)
	if err != nil {
		return nil, false, fmt.Errorf("insert registration_data: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return &record, true, nil
	}

	existing, err := p.Lookup(ctx, record.TemporaryUuid)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (p *PostgresStore) Release(ctx context.Context, temporaryUuid, assignedUuid string) error {
	const query = `DELETE FROM registration_data WHERE temporary_uuid = $1 AND assigned_uuid = $2`

	if _, err := p.db.Exec(ctx, query, temporaryUuid, assignedUuid); err != nil {
		return fmt.Errorf("delete registration_data: %w", err)
	}
	return nil
}
