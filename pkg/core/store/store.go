// Package store persists users, companies, access grants and extracted
// financial data for one parent group.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"balance_sheet_analyzer/pkg/core/metrics"
	"balance_sheet_analyzer/pkg/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Storage is implemented by every backend. Each instance serves a single group.
type Storage interface {
	// GetMetricSet returns all records of a company ordered by year, then metric.
	GetMetricSet(ctx context.Context, companyID int64) ([]models.FinancialRecord, error)
	// UpsertMetrics writes the non-null values of set and returns how many rows were written.
	// A second write for the same (company, year, metric) overwrites value and source.
	UpsertMetrics(ctx context.Context, companyID int64, year int, set models.MetricSet, source string) (int, error)

	ListCompanies(ctx context.Context) ([]models.Company, error)
	ListAccessibleCompanies(ctx context.Context, userID int64, role models.Role) ([]models.Company, error)
	GetCompany(ctx context.Context, companyID int64) (*models.Company, error)
	EnsureCompany(ctx context.Context, name string) (*models.Company, error)

	GetUser(ctx context.Context, username string) (*models.User, error)

	Migrate(ctx context.Context) error
	Seed(ctx context.Context, seed Seed) error
	Close() error
}

// ErrNotFound is returned when a user or company does not exist in the group.
var ErrNotFound = errors.New("not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver  string
	URL     string
	DataDir string
}

var groupName = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Open returns the migrated store of group.
// SQLite keeps one database file per group under DataDir; Postgres scopes rows by group name.
func Open(ctx context.Context, opts Options, group string) (Storage, error) {
	if !groupName.MatchString(group) {
		return nil, fmt.Errorf("invalid group name %q", group)
	}

	var (
		s   Storage
		err error
	)
	switch opts.Driver {
	case DriverPostgres:
		s, err = NewPostgresStore(ctx, opts.URL, group)
	case DriverSQLite, "":
		dir := opts.DataDir
		if dir == "" {
			dir = "data"
		}
		s, err = NewSQLiteStore(filepath.Join(dir, group+".db"))
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate %s: %w", group, err)
	}
	return s, nil
}

// SeedUser is a login account created on first start.
type SeedUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Seed is the initial content of a group's store.
// Access maps a username to the company names it is granted.
type Seed struct {
	Users     []SeedUser          `yaml:"users"`
	Companies []string            `yaml:"companies"`
	Access    map[string][]string `yaml:"access"`
}

// HashPassword returns the bcrypt hash stored for a user.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

type metricRow struct {
	metric string
	value  float64
}

// upsertRows flattens set into writable rows in a stable order. Canonical
// nulls are skipped; extras are kept only when they normalise to a number.
func upsertRows(set models.MetricSet) []metricRow {
	rows := make([]metricRow, 0, len(set.Values)+len(set.Extra))
	for _, k := range models.CanonicalMetrics {
		if v, ok := set.Get(k); ok {
			rows = append(rows, metricRow{metric: k, value: v})
		}
	}

	extras := make([]string, 0, len(set.Extra))
	for k := range set.Extra {
		extras = append(extras, k)
	}
	sort.Strings(extras)
	for _, k := range extras {
		raw := set.Extra[k]
		if raw == nil {
			continue
		}
		v, ok := metrics.Normalize(raw)
		if !ok {
			zap.L().Warn("skipping non-numeric metric", zap.String("metric", k), zap.Any("value", raw))
			continue
		}
		rows = append(rows, metricRow{metric: k, value: v})
	}
	return rows
}

// accessible applies the role visibility rule on top of a backend's queries.
func accessible(ctx context.Context, s Storage, role models.Role, granted func() ([]models.Company, error)) ([]models.Company, error) {
	switch {
	case role.SeesAllCompanies():
		return s.ListCompanies(ctx)
	case role == models.RoleCEO:
		return granted()
	default:
		return []models.Company{}, nil
	}
}
