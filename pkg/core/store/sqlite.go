package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"balance_sheet_analyzer/pkg/models"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one group's data in a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Storage = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
// Pass ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS companies (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS user_company_access (
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	company_id INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, company_id)
);
CREATE TABLE IF NOT EXISTS financial_data (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id      INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	year            INTEGER NOT NULL,
	metric_name     TEXT NOT NULL,
	value           REAL NOT NULL,
	source_document TEXT,
	updated_at      TEXT NOT NULL,
	UNIQUE (company_id, year, metric_name)
);`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMetricSet(ctx context.Context, companyID int64) ([]models.FinancialRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, metric_name, value, COALESCE(source_document, ''), updated_at
		FROM financial_data
		WHERE company_id = ?
		ORDER BY year, metric_name`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query financial data: %w", err)
	}
	defer rows.Close()

	var out []models.FinancialRecord
	for rows.Next() {
		r := models.FinancialRecord{CompanyID: companyID}
		var updated string
		if err := rows.Scan(&r.Year, &r.Metric, &r.Value, &r.Source, &updated); err != nil {
			return nil, fmt.Errorf("scan financial data: %w", err)
		}
		r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertMetrics(ctx context.Context, companyID int64, year int, set models.MetricSet, source string) (int, error) {
	rows := upsertRows(set)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO financial_data (company_id, year, metric_name, value, source_document, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, year, metric_name) DO UPDATE SET
			value = excluded.value,
			source_document = excluded.source_document,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, companyID, year, r.metric, r.value, source, now); err != nil {
			return 0, fmt.Errorf("upsert %s/%d: %w", r.metric, year, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]models.Company, error) {
	return s.queryCompanies(ctx, `SELECT id, name FROM companies ORDER BY name`)
}

func (s *SQLiteStore) ListAccessibleCompanies(ctx context.Context, userID int64, role models.Role) ([]models.Company, error) {
	return accessible(ctx, s, role, func() ([]models.Company, error) {
		return s.queryCompanies(ctx, `
			SELECT c.id, c.name FROM companies c
			JOIN user_company_access a ON a.company_id = c.id
			WHERE a.user_id = ?
			ORDER BY c.name`, userID)
	})
}

func (s *SQLiteStore) queryCompanies(ctx context.Context, query string, args ...interface{}) ([]models.Company, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	out := []models.Company{}
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetCompany(ctx context.Context, companyID int64) (*models.Company, error) {
	c := &models.Company{ID: companyID}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM companies WHERE id = ?`, companyID).Scan(&c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %d: %w", companyID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) EnsureCompany(ctx context.Context, name string) (*models.Company, error) {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO companies (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return nil, fmt.Errorf("insert company: %w", err)
	}
	c := &models.Company{Name: name}
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM companies WHERE name = ?`, name).Scan(&c.ID); err != nil {
		return nil, fmt.Errorf("load company %q: %w", name, err)
	}
	return c, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{Username: username}
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash, role FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.PasswordHash, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	u.Role = models.Role(role)
	return u, nil
}

// Seed inserts the given users, companies and grants. Existing rows are left alone.
func (s *SQLiteStore) Seed(ctx context.Context, seed Seed) error {
	for _, u := range seed.Users {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, u.Username).Scan(&exists); err != nil {
			return fmt.Errorf("check user %q: %w", u.Username, err)
		}
		if exists {
			continue
		}
		hash, err := HashPassword(u.Password)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
			u.Username, hash, u.Role); err != nil {
			return fmt.Errorf("insert user %q: %w", u.Username, err)
		}
	}

	for _, name := range seed.Companies {
		if _, err := s.EnsureCompany(ctx, name); err != nil {
			return err
		}
	}

	for username, companies := range seed.Access {
		for _, name := range companies {
			if _, err := s.db.ExecContext(ctx, `
				INSERT INTO user_company_access (user_id, company_id)
				SELECT u.id, c.id FROM users u, companies c
				WHERE u.username = ? AND c.name = ?
				ON CONFLICT DO NOTHING`, username, name); err != nil {
				return fmt.Errorf("grant %s -> %s: %w", username, name, err)
			}
		}
	}
	return nil
}
