package enrich

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DBStore is a PostgreSQL-backed Store. It carries attributes across
// restarts; the write path is the same keyed upsert as the in-memory store,
// so concurrent fan-outs racing on one ID are harmless.
type DBStore struct {
	pool *pgxpool.Pool
}

// NewDBStore creates a DBStore on an existing connection pool.
func NewDBStore(pool *pgxpool.Pool) *DBStore {
	return &DBStore{pool: pool}
}

// Schema is the table DDL the store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS track_attributes (
    track_id TEXT PRIMARY KEY,
    tempo    DOUBLE PRECISION,
    energy   DOUBLE PRECISION,
    fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate creates the backing table if it does not exist.
func (s *DBStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("creating track_attributes table: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *DBStore) Get(ctx context.Context, ids []string) (map[string]Attributes, error) {
	result := make(map[string]Attributes, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT track_id, tempo, energy
		FROM track_attributes
		WHERE track_id = ANY($1)
	`
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying track attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var attrs Attributes
		if err := rows.Scan(&id, &attrs.Tempo, &attrs.Energy); err != nil {
			return nil, fmt.Errorf("scanning track attributes: %w", err)
		}
		result[id] = attrs
	}
	return result, rows.Err()
}

// Put implements Store.
func (s *DBStore) Put(ctx context.Context, attrs map[string]Attributes) error {
	if len(attrs) == 0 {
		return nil
	}

	query := `
		INSERT INTO track_attributes (track_id, tempo, energy)
		SELECT * FROM unnest($1::text[], $2::float8[], $3::float8[])
		ON CONFLICT (track_id) DO UPDATE SET
			tempo = EXCLUDED.tempo,
			energy = EXCLUDED.energy,
			fetched_at = now()
	`

	ids := make([]string, 0, len(attrs))
	tempos := make([]*float64, 0, len(attrs))
	energies := make([]*float64, 0, len(attrs))
	for id, a := range attrs {
		ids = append(ids, id)
		tempos = append(tempos, a.Tempo)
		energies = append(energies, a.Energy)
	}

	if _, err := s.pool.Exec(ctx, query, ids, tempos, energies); err != nil {
		return fmt.Errorf("batch upserting track attributes: %w", err)
	}
	return nil
}

var _ Store = (*DBStore)(nil)
