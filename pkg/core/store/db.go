package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"balance_sheet_analyzer/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore serves one group out of a shared Postgres database.
// Users and companies carry a group_name column; financial data is scoped through its company.
type PostgresStore struct {
	pool  *pgxpool.Pool
	group string
}

var _ Storage = (*PostgresStore)(nil)

// NewPostgresStore connects to dbURL for group.
func NewPostgresStore(ctx context.Context, dbURL, group string) (*PostgresStore, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresStore{pool: pool, group: group}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	group_name    TEXT NOT NULL,
	username      TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	UNIQUE (group_name, username)
);
CREATE TABLE IF NOT EXISTS companies (
	id         BIGSERIAL PRIMARY KEY,
	group_name TEXT NOT NULL,
	name       TEXT NOT NULL,
	UNIQUE (group_name, name)
);
CREATE TABLE IF NOT EXISTS user_company_access (
	user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, company_id)
);
CREATE TABLE IF NOT EXISTS financial_data (
	id              BIGSERIAL PRIMARY KEY,
	company_id      BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	year            INTEGER NOT NULL,
	metric_name     TEXT NOT NULL,
	value           DOUBLE PRECISION NOT NULL,
	source_document TEXT,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (company_id, year, metric_name)
);`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMetricSet(ctx context.Context, companyID int64) ([]models.FinancialRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.year, f.metric_name, f.value, COALESCE(f.source_document, ''), f.updated_at
		FROM financial_data f
		JOIN companies c ON c.id = f.company_id
		WHERE f.company_id = $1 AND c.group_name = $2
		ORDER BY f.year, f.metric_name`, companyID, s.group)
	if err != nil {
		return nil, fmt.Errorf("failed to query financial data: %w", err)
	}
	defer rows.Close()

	var out []models.FinancialRecord
	for rows.Next() {
		r := models.FinancialRecord{CompanyID: companyID}
		if err := rows.Scan(&r.Year, &r.Metric, &r.Value, &r.Source, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan financial data: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertMetrics(ctx context.Context, companyID int64, year int, set models.MetricSet, source string) (int, error) {
	rows := upsertRows(set)
	if len(rows) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO financial_data (company_id, year, metric_name, value, source_document, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, year, metric_name)
		DO UPDATE SET
			value = EXCLUDED.value,
			source_document = EXCLUDED.source_document,
			updated_at = EXCLUDED.updated_at`

	now := time.Now()
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, companyID, year, r.metric, r.value, source, now)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for _, r := range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("failed to upsert %s/%d: %w", r.metric, year, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("failed to close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return len(rows), nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]models.Company, error) {
	return s.queryCompanies(ctx, `SELECT id, name FROM companies WHERE group_name = $1 ORDER BY name`, s.group)
}

func (s *PostgresStore) ListAccessibleCompanies(ctx context.Context, userID int64, role models.Role) ([]models.Company, error) {
	return accessible(ctx, s, role, func() ([]models.Company, error) {
		return s.queryCompanies(ctx, `
			SELECT c.id, c.name FROM companies c
			JOIN user_company_access a ON a.company_id = c.id
			WHERE a.user_id = $1 AND c.group_name = $2
			ORDER BY c.name`, userID, s.group)
	})
}

func (s *PostgresStore) queryCompanies(ctx context.Context, query string, args ...interface{}) ([]models.Company, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	out := []models.Company{}
	for rows.Next() {
		c := models.Company{Group: s.group}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetCompany(ctx context.Context, companyID int64) (*models.Company, error) {
	c := &models.Company{ID: companyID, Group: s.group}
	err := s.pool.QueryRow(ctx,
		`SELECT name FROM companies WHERE id = $1 AND group_name = $2`, companyID, s.group,
	).Scan(&c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("company %d: %w", companyID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) EnsureCompany(ctx context.Context, name string) (*models.Company, error) {
	c := &models.Company{Name: name, Group: s.group}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO companies (group_name, name) VALUES ($1, $2)
		ON CONFLICT (group_name, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, s.group, name,
	).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to save company %q: %w", name, err)
	}
	return c, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{Username: username}
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT id, password_hash, role FROM users WHERE group_name = $1 AND username = $2`, s.group, username,
	).Scan(&u.ID, &u.PasswordHash, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	u.Role = models.Role(role)
	return u, nil
}

// Seed inserts the given users, companies and grants. Existing rows are left alone.
func (s *PostgresStore) Seed(ctx context.Context, seed Seed) error {
	for _, u := range seed.Users {
		if _, err := s.GetUser(ctx, u.Username); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		hash, err := HashPassword(u.Password)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO users (group_name, username, password_hash, role) VALUES ($1, $2, $3, $4)
			ON CONFLICT (group_name, username) DO NOTHING`,
			s.group, u.Username, hash, u.Role); err != nil {
			return fmt.Errorf("failed to seed user %q: %w", u.Username, err)
		}
	}

	for _, name := range seed.Companies {
		if _, err := s.EnsureCompany(ctx, name); err != nil {
			return err
		}
	}

	for username, companies := range seed.Access {
		for _, name := range companies {
			if _, err := s.pool.Exec(ctx, `
				INSERT INTO user_company_access (user_id, company_id)
				SELECT u.id, c.id FROM users u, companies c
				WHERE u.group_name = $1 AND u.username = $2 AND c.group_name = $1 AND c.name = $3
				ON CONFLICT DO NOTHING`, s.group, username, name); err != nil {
				return fmt.Errorf("failed to grant %s -> %s: %w", username, name, err)
			}
		}
	}
	return nil
}
