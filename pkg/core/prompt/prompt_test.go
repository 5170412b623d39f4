package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	r := Get()
	for _, id := range []string{ExtractionBalanceSheet, AnalysisAnalyst} {
		pt, err := r.GetPrompt(id)
		if err != nil {
			t.Fatalf("GetPrompt(%s): %v", id, err)
		}
		if pt.SystemPrompt == "" {
			t.Errorf("%s has empty system prompt", id)
		}
	}
	pt, _ := r.GetPrompt(ExtractionBalanceSheet)
	if pt.Category != "extraction" {
		t.Errorf("category = %q, want extraction", pt.Category)
	}
}

func TestRenderExtractionPrompt(t *testing.T) {
	pt, err := Get().GetPrompt(ExtractionBalanceSheet)
	if err != nil {
		t.Fatal(err)
	}
	out, err := RenderUserPrompt(pt, map[string]interface{}{
		"Year": 2023,
		"Keys": []string{"Total Assets", "Net Profit"},
		"Text": "BALANCE SHEET",
	})
	if err != nil {
		t.Fatalf("RenderUserPrompt: %v", err)
	}
	for _, want := range []string{"for the year 2023", "Total Assets, Net Profit", "BALANCE SHEET"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q", want)
		}
	}

	if _, err := RenderUserPrompt(pt, map[string]interface{}{"Year": 2023}); err == nil {
		t.Error("expected error for missing required variables")
	}
}

func TestLoadFromDirectoryOverrides(t *testing.T) {
	dir := t.TempDir()
	analysisDir := filepath.Join(dir, "prompts", "analysis")
	if err := os.MkdirAll(analysisDir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{"id": "analysis.terse", "system_prompt": "Be terse."}`
	if err := os.WriteFile(filepath.Join(analysisDir, "terse.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory: %v", err)
	}
	sys, err := Get().GetSystemPrompt("analysis.terse")
	if err != nil || sys != "Be terse." {
		t.Errorf("GetSystemPrompt = %q, %v", sys, err)
	}

	if err := LoadFromDirectory(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}
