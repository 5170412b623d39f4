// Package pipeline runs an upload end to end: source document to text,
// text to metric set, metric set to storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"balance_sheet_analyzer/pkg/core/auth"
	"balance_sheet_analyzer/pkg/core/ingest"
	"balance_sheet_analyzer/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MinYear = 1950
	MaxYear = 2050
)

var ErrInvalidYear = fmt.Errorf("year must be between %d and %d", MinYear, MaxYear)

// Extractor turns report text into a metric set. *extraction.Engine implements it.
type Extractor interface {
	Extract(ctx context.Context, text string, year int) (models.MetricSet, error)
	ExtractPages(ctx context.Context, pages []string, year int) (models.MetricSet, error)
}

// ContentFetcher retrieves the visible text of a web page. *ingest.Fetcher implements it.
type ContentFetcher interface {
	FetchAndCleanText(ctx context.Context, url string) (string, error)
}

// Repository is the part of store.Storage an upload writes to.
type Repository interface {
	GetCompany(ctx context.Context, companyID int64) (*models.Company, error)
	UpsertMetrics(ctx context.Context, companyID int64, year int, set models.MetricSet, source string) (int, error)
}

// Result describes a completed upload.
type Result struct {
	Company models.Company   `json:"company"`
	Year    int              `json:"year"`
	Source  string           `json:"source_document"`
	Metrics models.MetricSet `json:"metrics"`
	Written int              `json:"written"`
}

// Uploader manages the flow of one upload. Nothing is persisted unless extraction succeeds.
type Uploader struct {
	extractor Extractor
	fetcher   ContentFetcher
	readPages func(path string) ([]string, error)
	tempDir   string
}

// NewUploader creates an uploader that reads PDFs with ingest.ExtractPages.
func NewUploader(extractor Extractor, fetcher ContentFetcher) *Uploader {
	return &Uploader{
		extractor: extractor,
		fetcher:   fetcher,
		readPages: ingest.ExtractPages,
		tempDir:   os.TempDir(),
	}
}

// SetPageReader replaces the PDF reader (e.g., for testing).
func (u *Uploader) SetPageReader(fn func(path string) ([]string, error)) {
	u.readPages = fn
}

// SetTempDir sets where uploaded files are staged while they are read.
func (u *Uploader) SetTempDir(dir string) {
	u.tempDir = dir
}

// UploadPDF stages the uploaded file, extracts its pages and stores the metrics
// with the file name as source.
func (u *Uploader) UploadPDF(ctx context.Context, user *models.User, repo Repository, companyID int64, year int, fileName string, body io.Reader) (*Result, error) {
	company, err := u.prepare(ctx, user, repo, companyID, year)
	if err != nil {
		return nil, err
	}

	path, err := u.stage(body)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	pages, err := u.readPages(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}

	start := time.Now()
	set, err := u.extractor.ExtractPages(ctx, pages, year)
	if err != nil {
		return nil, err
	}
	zap.L().Info("pdf extracted",
		zap.String("company", company.Name),
		zap.Int("year", year),
		zap.Int("pages", len(pages)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return u.save(ctx, repo, company, year, set, filepath.Base(fileName))
}

// UploadURL fetches a web page and stores the metrics it yields.
func (u *Uploader) UploadURL(ctx context.Context, user *models.User, repo Repository, companyID int64, year int, url string) (*Result, error) {
	company, err := u.prepare(ctx, user, repo, companyID, year)
	if err != nil {
		return nil, err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("url is required")
	}

	text, err := u.fetcher.FetchAndCleanText(ctx, url)
	if err != nil {
		return nil, err
	}

	set, err := u.extractor.Extract(ctx, text, year)
	if err != nil {
		return nil, err
	}
	return u.save(ctx, repo, company, year, set, fmt.Sprintf("web source of %s", company.Name))
}

// prepare runs every check that must pass before any side effect.
func (u *Uploader) prepare(ctx context.Context, user *models.User, repo Repository, companyID int64, year int) (*models.Company, error) {
	if err := auth.RequireRole(user, models.RoleAnalyst); err != nil {
		return nil, err
	}
	if year < MinYear || year > MaxYear {
		return nil, ErrInvalidYear
	}
	return repo.GetCompany(ctx, companyID)
}

func (u *Uploader) stage(body io.Reader) (string, error) {
	path := filepath.Join(u.tempDir, "upload-"+uuid.NewString()+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return path, nil
}

func (u *Uploader) save(ctx context.Context, repo Repository, company *models.Company, year int, set models.MetricSet, source string) (*Result, error) {
	n, err := repo.UpsertMetrics(ctx, company.ID, year, set, source)
	if err != nil {
		return nil, fmt.Errorf("save metrics: %w", err)
	}
	zap.L().Info("metrics saved",
		zap.String("company", company.Name),
		zap.Int("year", year),
		zap.String("source", source),
		zap.Int("written", n),
	)
	return &Result{Company: *company, Year: year, Source: source, Metrics: set, Written: n}, nil
}
