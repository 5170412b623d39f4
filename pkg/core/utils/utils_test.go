package utils

import (
	"strings"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"```{\"a\":1}```":         `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"not json":                "not json",
	}
	for in, want := range tests {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSmartParse(t *testing.T) {
	var out map[string]interface{}
	if _, err := SmartParse("{'Net Profit': 12.5, 'Total Assets': null,}", &out); err != nil {
		t.Fatalf("SmartParse: %v", err)
	}
	if out["Net Profit"] != 12.5 {
		t.Errorf("Net Profit = %v", out["Net Profit"])
	}
}

func TestParseHJSON(t *testing.T) {
	out, err := ParseHJSON("{\n  # comment\n  Revenue: 10\n}")
	if err != nil {
		t.Fatalf("ParseHJSON: %v", err)
	}
	if out != `{"Revenue":10}` {
		t.Errorf("ParseHJSON = %s", out)
	}
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("**Revenue** grew <script>x</script>")
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if !strings.Contains(html, "<strong>Revenue</strong>") {
		t.Errorf("html = %q", html)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("raw html passed through: %q", html)
	}
}
