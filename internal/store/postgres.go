package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the builds table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const buildColumns = `build_id, mode, objective,
	driver_uri, driver_name, body_uri, body_name,
	tire_uri, tire_name, glider_uri, glider_name,
	totals, score, track_uri, grip, created_at`

func (s *PostgresStore) CreateBuild(ctx context.Context, b *BuildRecord) error {
	totalsJSON, err := json.Marshal(b.Totals)
	if err != nil {
		return fmt.Errorf("marshal totals: %w", err)
	}

	return s.pool.QueryRow(ctx, `
		INSERT INTO kart_builds (mode, objective,
			driver_uri, driver_name, body_uri, body_name,
			tire_uri, tire_name, glider_uri, glider_name,
			totals, score, track_uri, grip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING build_id, created_at`,
		b.Mode, b.Objective,
		b.Driver.URI, b.Driver.Name, b.Body.URI, b.Body.Name,
		b.Tire.URI, b.Tire.Name, b.Glider.URI, b.Glider.Name,
		totalsJSON, b.Score, b.TrackURI, b.Grip,
	).Scan(&b.ID, &b.CreatedAt)
}

func (s *PostgresStore) GetBuild(ctx context.Context, id uuid.UUID) (*BuildRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+buildColumns+` FROM kart_builds WHERE build_id = $1`, id)
	b, err := scanBuild(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *PostgresStore) ListBuilds(ctx context.Context, filter BuildFilter) ([]*BuildRecord, error) {
	query := `SELECT ` + buildColumns + ` FROM kart_builds WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Mode != nil {
		n++
		query += fmt.Sprintf(" AND mode = $%d", n)
		args = append(args, string(*filter.Mode))
	}
	if filter.Objective != "" {
		n++
		query += fmt.Sprintf(" AND objective = $%d", n)
		args = append(args, filter.Objective)
	}

	query += " ORDER BY created_at DESC"

	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, filter.PageSize())

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []*BuildRecord
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

func (s *PostgresStore) GetBuildStats(ctx context.Context) (*BuildStats, error) {
	stats := &BuildStats{ByMode: make(map[string]int)}

	rows, err := s.pool.Query(ctx, `SELECT mode, COUNT(*) FROM kart_builds GROUP BY mode`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, err
		}
		stats.ByMode[mode] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, `SELECT MAX(created_at) FROM kart_builds`).Scan(&stats.LastBuilt)
	return stats, err
}

func scanBuild(row pgx.Row) (*BuildRecord, error) {
	b := &BuildRecord{}
	var totalsJSON []byte
	if err := row.Scan(
		&b.ID, &b.Mode, &b.Objective,
		&b.Driver.URI, &b.Driver.Name, &b.Body.URI, &b.Body.Name,
		&b.Tire.URI, &b.Tire.Name, &b.Glider.URI, &b.Glider.Name,
		&totalsJSON, &b.Score, &b.TrackURI, &b.Grip, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	if totalsJSON != nil {
		_ = json.Unmarshal(totalsJSON, &b.Totals)
	}
	return b, nil
}
