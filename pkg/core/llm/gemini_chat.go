package llm

import (
	"context"
	"fmt"
	"strings"

	genaichat "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiChatProvider opens stateful Gemini chat sessions with the generative-ai-go SDK,
// whose ChatSession keeps the transcript client-side and replays it on each turn.
type GeminiChatProvider struct {
	client *genaichat.Client
	model  string
}

var _ ChatStarter = (*GeminiChatProvider)(nil)

// NewGeminiChatProvider creates the SDK client once; it is safe for concurrent use.
func NewGeminiChatProvider(ctx context.Context, apiKey, model string) (*GeminiChatProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini chat: %w", ErrMissingAPIKey)
	}
	client, err := genaichat.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiChatProvider{client: client, model: model}, nil
}

// Close releases the underlying client.
func (p *GeminiChatProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiChatProvider) StartChat(ctx context.Context, systemPrompt string, history []Message, options map[string]interface{}) (ChatSession, error) {
	model := p.client.GenerativeModel(optString(options, "model", p.model))
	if systemPrompt != "" {
		model.SystemInstruction = &genaichat.Content{
			Parts: []genaichat.Part{genaichat.Text(systemPrompt)},
		}
	}
	if wantsJSON(options) {
		model.ResponseMIMEType = "application/json"
	}
	if _, ok := options["temperature"]; ok {
		model.SetTemperature(float32(optFloat(options, "temperature", 1.0)))
	}

	cs := model.StartChat()
	cs.History = GeminiHistory(history)
	return &geminiChat{cs: cs}, nil
}

// GeminiHistory converts transcript roles to Gemini's "user"/"model" labels.
func GeminiHistory(history []Message) []*genaichat.Content {
	out := make([]*genaichat.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role != RoleUser {
			role = "model"
		}
		out = append(out, &genaichat.Content{
			Role:  role,
			Parts: []genaichat.Part{genaichat.Text(m.Content)},
		})
	}
	return out
}

type geminiChat struct {
	cs *genaichat.ChatSession
}

func (c *geminiChat) SendMessage(ctx context.Context, text string) (string, error) {
	resp, err := c.cs.SendMessage(ctx, genaichat.Text(text))
	if err != nil {
		return "", fmt.Errorf("gemini chat failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini chat returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genaichat.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}
