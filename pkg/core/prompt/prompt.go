// Package prompt provides the prompt library for extraction and analysis calls.
// Prompts are JSON files; built-in defaults are embedded and a resources directory
// can override them at startup without code changes.
package prompt

// PromptTemplate represents a reusable prompt with metadata
type PromptTemplate struct {
	ID             string           `json:"id"`                   // e.g. "extraction.balance_sheet"
	Name           string           `json:"name"`                 // Human-readable name
	Category       string           `json:"category"`             // extraction, analysis
	Description    string           `json:"description"`          // Description of prompt purpose
	SystemPrompt   string           `json:"system_prompt"`        // The system prompt content
	UserPromptTmpl string           `json:"user_prompt_template"` // Go template for user prompt
	Variables      []PromptVariable `json:"variables"`            // Variables used in template
	Version        string           `json:"version"`
}

// PromptVariable defines a variable used in a prompt template
type PromptVariable struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, int, array
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// IDs of the prompts this application uses.
const (
	ExtractionBalanceSheet = "extraction.balance_sheet"
	AnalysisAnalyst        = "analysis.analyst"
)
