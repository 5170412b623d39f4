package plot

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"balance_sheet_analyzer/pkg/core/snapshot"
	"balance_sheet_analyzer/pkg/models"
)

func snap(rows map[string][]float64, years ...int) *snapshot.Snapshot {
	var recs []models.FinancialRecord
	for metric, vals := range rows {
		for i, v := range vals {
			recs = append(recs, models.FinancialRecord{Year: years[i], Metric: metric, Value: v})
		}
	}
	return snapshot.Build(recs)
}

func TestGrowth(t *testing.T) {
	s := snap(map[string][]float64{"Net Profit": {100, 150, 120}}, 2021, 2022, 2023)

	c := Resolve(Directive{Type: Growth, Metric: "Net Profit", Title: "Profit growth"}, s)
	if c == nil {
		t.Fatal("growth chart is nil")
	}
	pts := c.Series[0].Points
	if len(pts) != 2 {
		t.Fatalf("got %d points, want 2", len(pts))
	}
	want := []Point{{2022, 50}, {2023, -20}}
	for i, p := range pts {
		if p.Year != want[i].Year || math.Abs(p.Value-want[i].Value) > 1e-9 {
			t.Errorf("point %d = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestGrowthSkipsZeroAndMissing(t *testing.T) {
	row := []snapshot.Cell{
		{Year: 2020, Value: 0, OK: true},
		{Year: 2021, Value: 10, OK: true},
		{Year: 2022, OK: false},
		{Year: 2023, Value: 30, OK: true},
		{Year: 2024, Value: 60, OK: true},
	}
	pts := GrowthRates(row)
	if len(pts) != 1 || pts[0].Year != 2024 || pts[0].Value != 100 {
		t.Errorf("GrowthRates = %+v", pts)
	}
}

func TestAssetLiabilityComparison(t *testing.T) {
	both := snap(map[string][]float64{
		"Total Assets":      {10, 20},
		"Total Liabilities": {5, 8},
	}, 2022, 2023)

	c := Resolve(Directive{Type: AssetLiabilityComparison, Metric: "ignored"}, both)
	if c == nil || len(c.Series) != 2 {
		t.Fatalf("chart = %+v", c)
	}
	if c.Series[0].Name != "Total Assets" || c.Series[1].Name != "Total Liabilities" {
		t.Errorf("series = %s, %s", c.Series[0].Name, c.Series[1].Name)
	}

	assetsOnly := snap(map[string][]float64{"Total Assets": {10, 20}}, 2022, 2023)
	if Resolve(Directive{Type: AssetLiabilityComparison}, assetsOnly) != nil {
		t.Error("comparison without liabilities should be nil")
	}
}

func TestLineAndBar(t *testing.T) {
	s := snap(map[string][]float64{"Total Income": {1, 2, 3}}, 2021, 2022, 2023)

	for _, typ := range []Type{Line, Bar} {
		c := Resolve(Directive{Type: typ, Metric: "Total Income", Title: "Income"}, s)
		if c == nil || c.Kind != typ || len(c.Series[0].Points) != 3 {
			t.Errorf("%s chart = %+v", typ, c)
		}
		if Resolve(Directive{Type: typ, Metric: "Total Equity"}, s) != nil {
			t.Errorf("%s with absent metric should be nil", typ)
		}
	}
}

func TestUnknownTypeAndEmptySnapshot(t *testing.T) {
	s := snap(map[string][]float64{"Total Income": {1}}, 2021)
	if Resolve(Directive{Type: "pie", Metric: "Total Income"}, s) != nil {
		t.Error("unknown type should be nil")
	}
	if Resolve(Directive{Type: Line, Metric: "Total Income"}, snapshot.Build(nil)) != nil {
		t.Error("empty snapshot should be nil")
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	c := &Chart{Kind: Line, Title: "T", Series: []Series{{Name: "m", Points: []Point{{2021, 1}}}}}
	if err := (JSONRenderer{}).Render(&buf, c); err != nil {
		t.Fatal(err)
	}
	var back Chart
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatal(err)
	}
	if back.Kind != Line || back.Series[0].Points[0].Year != 2021 {
		t.Errorf("decoded = %+v", back)
	}
}
