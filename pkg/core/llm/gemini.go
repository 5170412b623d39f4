package llm

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// DefaultGeminiModel serves both the single-shot and the chat transport when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash-latest"

// GeminiProvider runs single-shot generateContent calls with the GenAI SDK.
// The client is created on first use and reused afterwards.
type GeminiProvider struct {
	APIKey string
	Model  string

	mu     sync.Mutex
	client *genai.Client
}

var _ Provider = (*GeminiProvider)(nil)

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{APIKey: apiKey, Model: model}
}

func (p *GeminiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	client, err := p.getClient(ctx)
	if err != nil {
		return "", err
	}

	model := optString(options, "model", p.Model)
	if model == "" {
		model = DefaultGeminiModel
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), geminiConfig(systemPrompt, options))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	return result.Text(), nil
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	p.client = client
	return client, nil
}

// geminiConfig maps provider options onto a generation config.
func geminiConfig(systemPrompt string, options map[string]interface{}) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(optFloat(options, "temperature", 0.1))),
	}
	if wantsJSON(options) {
		config.ResponseMIMEType = "application/json"
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	return config
}

// AdaptInstructions is the identity: Gemini takes the system prompt as-is.
func (p *GeminiProvider) AdaptInstructions(raw string) string {
	return raw
}
