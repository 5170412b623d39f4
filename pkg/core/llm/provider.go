package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the interface for single-shot LLM providers.
//
// Recognised options:
//   - "model": string, overrides the provider default model
//   - "temperature": float64
//   - "response_format": map[string]interface{}{"type": "json_object"} requests JSON output
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// Message is one turn of an OpenAI-style conversation.
type Message struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrTimeout is returned when a backend call exceeds its deadline.
var ErrTimeout = errors.New("llm backend call timed out")

// ErrMissingAPIKey is returned by providers constructed without a credential.
var ErrMissingAPIKey = errors.New("llm api key missing")

// CallError classifies an error returned by a backend call made under ctx.
// Deadline expiry becomes ErrTimeout so callers can tell a hung backend from a failing one.
func CallError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func wantsJSON(options map[string]interface{}) bool {
	if val, ok := options["response_format"].(map[string]interface{}); ok {
		return val["type"] == "json_object"
	}
	return false
}

func optString(options map[string]interface{}, key, fallback string) string {
	if val, ok := options[key].(string); ok && val != "" {
		return val
	}
	return fallback
}

func optFloat(options map[string]interface{}, key string, fallback float64) float64 {
	switch val := options[key].(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	}
	return fallback
}

// JSONOptions returns the options used for schema-bound calls.
func JSONOptions(model string, temperature float64) map[string]interface{} {
	opts := map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
		"temperature":     temperature,
	}
	if model != "" {
		opts["model"] = model
	}
	return opts
}
