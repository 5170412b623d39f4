package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// Canonical metric names. These exact strings are the JSON keys requested from the
// extraction backend and the metric column in storage.
const (
	MetricRevenueFromOperations  = "Revenue from Operations"
	MetricOtherIncome            = "Other Income"
	MetricTotalIncome            = "Total Income"
	MetricProfitBeforeTax        = "Profit Before Tax"
	MetricNetProfit              = "Net Profit"
	MetricTotalEquity            = "Total Equity"
	MetricTotalAssets            = "Total Assets"
	MetricTotalLiabilities       = "Total Liabilities"
	MetricNonCurrentAssets       = "Non-current assets"
	MetricCurrentAssets          = "Current assets"
	MetricNonCurrentLiabilities  = "Non-current liabilities"
	MetricCurrentLiabilities     = "Current liabilities"
	MetricCashAndCashEquivalents = "Cash and cash equivalents"
	MetricEarningsPerShareBasic  = "Earnings Per Share (Basic)"
)

// CanonicalMetrics lists the 14 metrics every MetricSet carries, in prompt order.
var CanonicalMetrics = []string{
	MetricRevenueFromOperations,
	MetricOtherIncome,
	MetricTotalIncome,
	MetricProfitBeforeTax,
	MetricNetProfit,
	MetricTotalEquity,
	MetricTotalAssets,
	MetricTotalLiabilities,
	MetricNonCurrentAssets,
	MetricCurrentAssets,
	MetricNonCurrentLiabilities,
	MetricCurrentLiabilities,
	MetricCashAndCashEquivalents,
	MetricEarningsPerShareBasic,
}

// MetricSet is the extracted metric mapping for one (company, year) pair.
// Values always holds every canonical key; a nil value is an explicit null.
// Extra holds non-canonical keys exactly as the backend returned them.
type MetricSet struct {
	Values map[string]*float64
	Extra  map[string]interface{}
}

// Get returns the value of a metric and whether it is non-null.
func (m MetricSet) Get(name string) (float64, bool) {
	v, ok := m.Values[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Nulls returns the canonical metrics that resolved to null, in canonical order.
func (m MetricSet) Nulls() []string {
	var out []string
	for _, k := range CanonicalMetrics {
		if v, ok := m.Values[k]; !ok || v == nil {
			out = append(out, k)
		}
	}
	return out
}

// MarshalJSON flattens the set into one object: canonical keys first, then extras sorted.
func (m MetricSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(k string, v interface{}) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return nil
	}

	for _, k := range CanonicalMetrics {
		if err := write(k, m.Values[k]); err != nil {
			return nil, err
		}
	}

	extraKeys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if err := write(k, m.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FinancialRecord is one persisted (year, metric, value) triple of a company.
type FinancialRecord struct {
	CompanyID int64     `json:"company_id"`
	Year      int       `json:"year"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Source    string    `json:"source_document,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Company belongs to a parent group (tenant).
type Company struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}
