package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-host/internal/domain"
)

// PostgresArchive stores records as JSONB rows; see the migrations package
// for the schema.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

func NewPostgresArchive(pool *pgxpool.Pool) *PostgresArchive {
	return &PostgresArchive{pool: pool}
}

func (a *PostgresArchive) Save(ctx context.Context, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO session_results (id, session_id, data)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (session_id) DO UPDATE SET data = EXCLUDED.data`,
		record.ID, record.SessionID, data)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (a *PostgresArchive) Load(ctx context.Context, sessionID string) (Record, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx,
		`SELECT data FROM session_results WHERE session_id = $1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, domain.ErrResultsNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return record, nil
}
