package analysis

import (
	"context"
	"errors"

	"balance_sheet_analyzer/pkg/core/plot"
	"balance_sheet_analyzer/pkg/models"
)

var (
	// ErrNoFinancialData means the selected company has no stored records yet.
	ErrNoFinancialData = errors.New("no financial data for company")
	// ErrNoCompany means Ask was called before a company was selected.
	ErrNoCompany = errors.New("no company selected")
)

// RecordSource is the part of store.Storage the conversation reads.
type RecordSource interface {
	GetMetricSet(ctx context.Context, companyID int64) ([]models.FinancialRecord, error)
}

// Turn is the outcome of one question: the assistant's text, and optionally a
// chart or a notice explaining why the requested chart could not be drawn.
type Turn struct {
	Reply     string          `json:"message"`
	Directive *plot.Directive `json:"plot_request,omitempty"`
	Chart     *plot.Chart     `json:"chart,omitempty"`
	Notice    string          `json:"notice,omitempty"`
	Err       error           `json:"-"`
}
