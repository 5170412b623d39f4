// Package plot turns a plot directive from the assistant into chart data
// drawn from the current snapshot.
package plot

import (
	"balance_sheet_analyzer/pkg/core/snapshot"
	"balance_sheet_analyzer/pkg/models"
)

// Type names a chart kind the assistant may request.
type Type string

const (
	Line                     Type = "line"
	Bar                      Type = "bar"
	AssetLiabilityComparison Type = "asset_liability_comparison"
	Growth                   Type = "growth"
)

// Directive is the plot_request object of an assistant reply.
type Directive struct {
	Type   Type   `json:"type"`
	Metric string `json:"metric"`
	Title  string `json:"title"`
}

// Point is one (year, value) sample.
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Series is one named line or bar group.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Chart is renderer-independent chart data.
type Chart struct {
	Kind   Type     `json:"kind"`
	Title  string   `json:"title"`
	XLabel string   `json:"x_label"`
	YLabel string   `json:"y_label"`
	Series []Series `json:"series"`
}

// Resolve maps d onto s. It returns nil when the directive cannot be drawn:
// unknown type, a missing metric row, or no points to plot.
func Resolve(d Directive, s *snapshot.Snapshot) *Chart {
	if s.Empty() {
		return nil
	}

	switch d.Type {
	case Line, Bar:
		pts := points(s, d.Metric)
		if len(pts) == 0 {
			return nil
		}
		return &Chart{
			Kind:   d.Type,
			Title:  d.Title,
			XLabel: "Year",
			YLabel: d.Metric,
			Series: []Series{{Name: d.Metric, Points: pts}},
		}

	case AssetLiabilityComparison:
		assets := points(s, models.MetricTotalAssets)
		liabilities := points(s, models.MetricTotalLiabilities)
		if assets == nil || liabilities == nil {
			return nil
		}
		return &Chart{
			Kind:   Bar,
			Title:  d.Title,
			XLabel: "Year",
			YLabel: "Amount",
			Series: []Series{
				{Name: models.MetricTotalAssets, Points: assets},
				{Name: models.MetricTotalLiabilities, Points: liabilities},
			},
		}

	case Growth:
		pts := GrowthRates(s.Row(d.Metric))
		if len(pts) == 0 {
			return nil
		}
		return &Chart{
			Kind:   Bar,
			Title:  d.Title,
			XLabel: "Year",
			YLabel: "Growth (%)",
			Series: []Series{{Name: d.Metric, Points: pts}},
		}
	}
	return nil
}

func points(s *snapshot.Snapshot, metric string) []Point {
	row := s.Row(metric)
	if row == nil {
		return nil
	}
	pts := make([]Point, 0, len(row))
	for _, c := range row {
		if c.OK {
			pts = append(pts, Point{Year: c.Year, Value: c.Value})
		}
	}
	return pts
}

// GrowthRates returns the year-over-year percentage change of row.
// The first year has no predecessor and is skipped, as is any year whose
// previous value is missing or zero.
func GrowthRates(row []snapshot.Cell) []Point {
	var out []Point
	for i := 1; i < len(row); i++ {
		prev, cur := row[i-1], row[i]
		if !prev.OK || !cur.OK || prev.Value == 0 {
			continue
		}
		out = append(out, Point{
			Year:  cur.Year,
			Value: (cur.Value - prev.Value) / prev.Value * 100,
		})
	}
	return out
}
