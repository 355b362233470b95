package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultScope/internal/model"
)

// Store provides Postgres persistence for distribution records, the indexer
// cursor, and the project registry reads the reconciler needs.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InsertDistributionIfAbsent inserts a record, returning false when a row
// with the same (tx_hash, log_index) already exists.
func (s *Store) InsertDistributionIfAbsent(ctx context.Context, rec model.DistributionRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO fee_distributions (
			tx_hash, log_index, block_number, block_timestamp, event_type,
			pool_id, dev_address, token_address, recipient_address,
			dev_amount, protocol_amount, amount, project_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`,
		rec.TxHash,
		int64(rec.LogIndex),
		int64(rec.BlockNumber),
		int64(rec.BlockTimestamp),
		string(rec.EventType),
		rec.PoolID,
		rec.DevAddress,
		rec.TokenAddress,
		rec.RecipientAddress,
		rec.DevAmount,
		rec.ProtocolAmount,
		rec.Amount,
		rec.ProjectID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetCursor returns the last fully indexed block for a name.
func (s *Store) GetCursor(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("cursor name required")
	}
	var block uint64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM indexer_cursor WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return block, true, nil
}

// SetCursor upserts the last fully indexed block for a name.
func (s *Store) SetCursor(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("cursor name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_cursor (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, name, int64(block))
	return err
}

// ListPoolProjects returns every (poolId, projectId) pair with a resolved pool.
func (s *Store) ListPoolProjects(ctx context.Context) ([]model.PoolProject, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, id FROM projects
		WHERE pool_id IS NOT NULL AND pool_id <> ''
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PoolProject
	for rows.Next() {
		var pp model.PoolProject
		if err := rows.Scan(&pp.PoolID, &pp.ProjectID); err != nil {
			return nil, err
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}

// ListProjectsWithPoolAndOwner returns projects with both a resolved pool and
// a verified owner address.
func (s *Store) ListProjectsWithPoolAndOwner(ctx context.Context) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pool_id, dev_address, token_address FROM projects
		WHERE pool_id IS NOT NULL AND pool_id <> ''
		  AND dev_address IS NOT NULL AND dev_address <> ''
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.PoolID, &p.DevAddress, &p.TokenAddress); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProjectIDForPoolID backfills projectId on rows stored before the
// mapping was known. Rows with a projectId already set are left alone.
func (s *Store) UpdateProjectIDForPoolID(ctx context.Context, poolID, projectID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE fee_distributions SET project_id = $2
		WHERE pool_id = $1 AND project_id IS NULL
	`, poolID, projectID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
