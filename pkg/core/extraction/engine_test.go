package extraction

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"balance_sheet_analyzer/pkg/core/llm"
	"balance_sheet_analyzer/pkg/models"
)

// MockProvider returns a fixed reply and records the last prompt it saw.
type MockProvider struct {
	Reply      string
	Err        error
	Delay      time.Duration
	LastPrompt string
	LastOpts   map[string]interface{}
	Calls      int
}

func (m *MockProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	m.Calls++
	m.LastPrompt = prompt
	m.LastOpts = options
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.Reply, m.Err
}

func (m *MockProvider) AdaptInstructions(raw string) string { return raw }

const sampleReply = `{
  "Revenue from Operations": 1000.5,
  "Total Assets": "(1,234.50)",
  "Total Liabilities": null,
  "Net Profit": 88
}`

func TestExtractFillsSchema(t *testing.T) {
	mock := &MockProvider{Reply: sampleReply}
	engine := NewEngine(mock, Options{})

	set, err := engine.Extract(context.Background(), "BALANCE SHEET as at 31 March 2023", 2023)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(set.Values) != len(models.CanonicalMetrics) {
		t.Fatalf("got %d metrics, want %d", len(set.Values), len(models.CanonicalMetrics))
	}
	if v, ok := set.Get("Total Assets"); !ok || v != -1234.50 {
		t.Errorf("Total Assets = %v %v, want -1234.50", v, ok)
	}
	if _, ok := set.Get("Total Liabilities"); ok {
		t.Error("Total Liabilities should be null")
	}
	if _, ok := set.Get("Other Income"); ok {
		t.Error("missing key should be null")
	}

	if !strings.Contains(mock.LastPrompt, "for the year 2023") {
		t.Error("prompt does not name the reporting year")
	}
	if mock.LastOpts["temperature"] != 0.0 {
		t.Errorf("temperature = %v, want 0", mock.LastOpts["temperature"])
	}
}

func TestExtractShapeIndependentOfText(t *testing.T) {
	engine := NewEngine(&MockProvider{Reply: sampleReply}, Options{})

	a, err := engine.Extract(context.Background(), "first report", 2022)
	if err != nil {
		t.Fatal(err)
	}
	b, err := engine.Extract(context.Background(), strings.Repeat("entirely different ", 50), 2022)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Nulls(), b.Nulls()) || len(a.Values) != len(b.Values) {
		t.Errorf("shape differs: %v vs %v", a.Nulls(), b.Nulls())
	}
}

func TestExtractParseFailureCarriesRaw(t *testing.T) {
	engine := NewEngine(&MockProvider{Reply: "Sorry, I cannot find a balance sheet."}, Options{})

	_, err := engine.Extract(context.Background(), "text", 2023)
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v, want *Failure", err)
	}
	if failure.Kind != FailureParse {
		t.Errorf("kind = %s, want parse", failure.Kind)
	}
	if failure.Details() != "Sorry, I cannot find a balance sheet." {
		t.Errorf("Details() = %q", failure.Details())
	}
}

func TestExtractRejectsNonObject(t *testing.T) {
	for _, reply := range []string{`[1,2]`, `null`, `{"a":1} {"b":2}`, `{"a":`} {
		engine := NewEngine(&MockProvider{Reply: reply}, Options{})
		if _, err := engine.Extract(context.Background(), "text", 2023); err == nil {
			t.Errorf("reply %q should fail", reply)
		}
	}
}

func TestExtractCodeFenceAccepted(t *testing.T) {
	engine := NewEngine(&MockProvider{Reply: "```json\n{\"Net Profit\": 5}\n```"}, Options{})
	set, err := engine.Extract(context.Background(), "text", 2023)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if v, _ := set.Get("Net Profit"); v != 5 {
		t.Errorf("Net Profit = %v", v)
	}
}

func TestExtractLenientJSON(t *testing.T) {
	reply := `{'Net Profit': 12, 'Total Assets': 40,}`

	strict := NewEngine(&MockProvider{Reply: reply}, Options{})
	if _, err := strict.Extract(context.Background(), "text", 2023); err == nil {
		t.Fatal("strict engine accepted malformed JSON")
	}

	lenient := NewEngine(&MockProvider{Reply: reply}, Options{LenientJSON: true})
	set, err := lenient.Extract(context.Background(), "text", 2023)
	if err != nil {
		t.Fatalf("lenient Extract: %v", err)
	}
	if v, _ := set.Get("Total Assets"); v != 40 {
		t.Errorf("Total Assets = %v", v)
	}
}

func TestExtractTransportFailure(t *testing.T) {
	engine := NewEngine(&MockProvider{Err: errors.New("connection refused")}, Options{})
	_, err := engine.Extract(context.Background(), "text", 2023)
	var failure *Failure
	if !errors.As(err, &failure) || failure.Kind != FailureTransport {
		t.Fatalf("err = %v, want transport failure", err)
	}
}

func TestExtractTimeout(t *testing.T) {
	engine := NewEngine(&MockProvider{Reply: "{}", Delay: time.Second}, Options{Timeout: 10 * time.Millisecond})
	_, err := engine.Extract(context.Background(), "text", 2023)
	if !errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	var failure *Failure
	if errors.As(err, &failure) && failure.Kind != FailureTimeout {
		t.Errorf("kind = %s, want timeout", failure.Kind)
	}
}

func TestExtractEmptyTextIsHardStop(t *testing.T) {
	mock := &MockProvider{Reply: "{}"}
	engine := NewEngine(mock, Options{})

	if _, err := engine.Extract(context.Background(), "  \n ", 2023); !errors.Is(err, ErrNoText) {
		t.Errorf("err = %v, want ErrNoText", err)
	}
	if _, err := engine.ExtractPages(context.Background(), nil, 2023); !errors.Is(err, ErrNoText) {
		t.Errorf("err = %v, want ErrNoText", err)
	}
	if mock.Calls != 0 {
		t.Errorf("backend called %d times for empty input", mock.Calls)
	}
}

func TestExtractPagesJoinsAndTruncates(t *testing.T) {
	mock := &MockProvider{Reply: "{}"}
	engine := NewEngine(mock, Options{MaxInputChars: 40})

	_, err := engine.ExtractPages(context.Background(), []string{"page one", "page two", strings.Repeat("x", 100)}, 2021)
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	if !strings.Contains(mock.LastPrompt, "page one"+PageBreak+"page two") {
		t.Error("pages not joined with page break marker")
	}
	if strings.Contains(mock.LastPrompt, strings.Repeat("x", 30)) {
		t.Error("corpus was not truncated")
	}
}

func TestTruncateRunes(t *testing.T) {
	got, cut := Truncate("₹₹₹₹", 2)
	if got != "₹₹" || !cut {
		t.Errorf("Truncate = %q, %v", got, cut)
	}
	got, cut = Truncate("abc", 5)
	if got != "abc" || cut {
		t.Errorf("Truncate = %q, %v", got, cut)
	}
	// Byte length exceeds the limit but rune count does not.
	got, cut = Truncate("₹₹", 2)
	if got != "₹₹" || cut {
		t.Errorf("Truncate = %q, %v", got, cut)
	}
}
