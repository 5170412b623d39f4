package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const qwenURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

// QwenProvider talks to the native DashScope generation API.
type QwenProvider struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

var (
	_ Provider         = (*QwenProvider)(nil)
	_ MessageCompleter = (*QwenProvider)(nil)
)

// NewQwenProvider creates a provider bound to an API key.
func NewQwenProvider(apiKey string) *QwenProvider {
	return &QwenProvider{APIKey: apiKey}
}

func (p *QwenProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	var messages []Message
	if systemPrompt != "" {
		messages = append(messages, Message{Content: systemPrompt, Role: RoleSystem})
	}
	messages = append(messages, Message{Content: prompt, Role: RoleUser})
	return p.Complete(ctx, messages, options)
}

// Complete sends a full message list to DashScope.
func (p *QwenProvider) Complete(ctx context.Context, messages []Message, options map[string]interface{}) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("QWEN_API_KEY_MISSING: %w", ErrMissingAPIKey)
	}

	parameters := map[string]interface{}{
		"result_format": "message",
		"temperature":   optFloat(options, "temperature", 0.7),
	}
	if wantsJSON(options) {
		parameters["response_format"] = map[string]string{"type": "json_object"}
	}

	// See: https://help.aliyun.com/document_detail/2712532.html
	reqBody := map[string]interface{}{
		"model":      optString(options, "model", "qwen-max"),
		"input":      map[string]interface{}{"messages": messages},
		"parameters": parameters,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal qwen request: %w", err)
	}

	url := p.BaseURL
	if url == "" {
		url = qwenURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("qwen api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("qwen api returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result struct {
		Output struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			// Some DashScope endpoints return 'text' directly in output
			Text string `json:"text"`
		} `json:"output"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode qwen response: %w", err)
	}

	if result.Code != "" {
		return "", fmt.Errorf("qwen api error: %s - %s", result.Code, result.Message)
	}

	if len(result.Output.Choices) > 0 {
		return result.Output.Choices[0].Message.Content, nil
	}
	if result.Output.Text != "" {
		return result.Output.Text, nil
	}

	return "", fmt.Errorf("empty response from qwen api")
}

func (p *QwenProvider) AdaptInstructions(raw string) string {
	return raw
}
