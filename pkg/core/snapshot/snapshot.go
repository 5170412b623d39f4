// Package snapshot pivots a company's stored records into a year x metric table.
package snapshot

import (
	"bytes"
	"fmt"
	"sort"
	"text/tabwriter"

	"balance_sheet_analyzer/pkg/models"
)

// Snapshot is an immutable year x metric view of one company's data.
// Years ascend and metrics are sorted by name.
type Snapshot struct {
	years   []int
	metrics []string
	cells   map[string]map[int]float64
}

// Build pivots records. Later records for the same (year, metric) win.
func Build(records []models.FinancialRecord) *Snapshot {
	s := &Snapshot{cells: make(map[string]map[int]float64)}
	seenYear := make(map[int]bool)

	for _, r := range records {
		row, ok := s.cells[r.Metric]
		if !ok {
			row = make(map[int]float64)
			s.cells[r.Metric] = row
			s.metrics = append(s.metrics, r.Metric)
		}
		row[r.Year] = r.Value
		if !seenYear[r.Year] {
			seenYear[r.Year] = true
			s.years = append(s.years, r.Year)
		}
	}

	sort.Ints(s.years)
	sort.Strings(s.metrics)
	return s
}

// Years returns the years in ascending order.
func (s *Snapshot) Years() []int {
	return append([]int(nil), s.years...)
}

// Metrics returns the metric names in sorted order.
func (s *Snapshot) Metrics() []string {
	return append([]string(nil), s.metrics...)
}

// Empty reports whether the snapshot holds no data.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.metrics) == 0
}

// Has reports whether metric has a row.
func (s *Snapshot) Has(metric string) bool {
	if s == nil {
		return false
	}
	_, ok := s.cells[metric]
	return ok
}

// Value returns the cell for (metric, year).
func (s *Snapshot) Value(metric string, year int) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.cells[metric][year]
	return v, ok
}

// Cell is one entry of a metric row. Missing cells have OK false.
type Cell struct {
	Year  int
	Value float64
	OK    bool
}

// Row returns metric over every snapshot year, or nil when the metric has no row.
func (s *Snapshot) Row(metric string) []Cell {
	if !s.Has(metric) {
		return nil
	}
	row := make([]Cell, 0, len(s.years))
	for _, y := range s.years {
		v, ok := s.cells[metric][y]
		row = append(row, Cell{Year: y, Value: v, OK: ok})
	}
	return row
}

// String renders the table that is handed to the chat backend as context.
func (s *Snapshot) String() string {
	if s.Empty() {
		return ""
	}
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprint(w, "Metric")
	for _, y := range s.years {
		fmt.Fprintf(w, "\t%d", y)
	}
	fmt.Fprintln(w)

	for _, m := range s.metrics {
		fmt.Fprint(w, m)
		for _, y := range s.years {
			if v, ok := s.cells[m][y]; ok {
				fmt.Fprintf(w, "\t%.2f", v)
			} else {
				fmt.Fprint(w, "\t-")
			}
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	return buf.String()
}

// Table is the JSON form of a snapshot for the web client.
type Table struct {
	Years []int                 `json:"years"`
	Rows  map[string][]*float64 `json:"rows"`
}

// Table returns the snapshot with missing cells as nulls.
func (s *Snapshot) Table() Table {
	t := Table{Years: s.Years(), Rows: make(map[string][]*float64)}
	if s.Empty() {
		return t
	}
	for _, m := range s.metrics {
		vals := make([]*float64, len(s.years))
		for i, y := range s.years {
			if v, ok := s.cells[m][y]; ok {
				v := v
				vals[i] = &v
			}
		}
		t.Rows[m] = vals
	}
	return t
}
