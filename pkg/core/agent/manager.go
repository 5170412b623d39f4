package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"balance_sheet_analyzer/pkg/core/llm"

	"go.uber.org/zap"
)

// Agent types routed by the manager.
const (
	Extraction = "extraction"
	Analyst    = "analyst"
)

type Config struct {
	ActiveProvider string                 `yaml:"active_provider"`
	Agents         map[string]AgentConfig `yaml:"agents"`
}

type AgentConfig struct {
	Provider    string `yaml:"provider"` // Optional override
	Model       string `yaml:"model"`
	Description string `yaml:"description"`
}

// ProviderName resolves which provider serves an agent type under this config.
func (c Config) ProviderName(agentType string) string {
	if ac, ok := c.Agents[agentType]; ok && ac.Provider != "" {
		return ac.Provider
	}
	return c.ActiveProvider
}

// Model returns the per-agent model override, if any.
func (c Config) Model(agentType string) string {
	return c.Agents[agentType].Model
}

type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
	starters  map[string]llm.ChatStarter
}

func NewManager(config Config) *Manager {
	return &Manager{
		config:    config,
		providers: make(map[string]llm.Provider),
		starters:  make(map[string]llm.ChatStarter),
	}
}

// Register adds a provider under a name such as "gemini" or "deepseek".
// starter may be nil for providers without a chat transport.
func (m *Manager) Register(name string, provider llm.Provider, starter llm.ChatStarter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if provider != nil {
		m.providers[name] = provider
	}
	if starter != nil {
		m.starters[name] = starter
	}
}

func (m *Manager) GetProvider(agentType string) (llm.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := m.config.ProviderName(agentType)
	if p, ok := m.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no provider %q registered for agent %q", name, agentType)
}

// GetChatStarter returns the chat transport for an agent type.
func (m *Manager) GetChatStarter(agentType string) (llm.ChatStarter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := m.config.ProviderName(agentType)
	if s, ok := m.starters[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no chat transport %q registered for agent %q", name, agentType)
}

// Model returns the configured model for an agent type ("" means provider default).
func (m *Manager) Model(agentType string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Model(agentType)
}

// ExecutePrompt handles instruction adaptation before sending to the model
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	provider, err := m.GetProvider(agentType)
	if err != nil {
		return "", err
	}

	zap.L().Debug("execute prompt",
		zap.String("agent", agentType),
		zap.String("provider", fmt.Sprintf("%T", provider)),
	)

	adaptedSystemPrompt := provider.AdaptInstructions(rawSystemPrompt)
	return provider.GenerateResponse(ctx, rawPrompt, adaptedSystemPrompt, options)
}

// Bind returns a Provider that always routes through ExecutePrompt for agentType,
// so a later SetGlobalProvider takes effect without rebuilding callers.
func (m *Manager) Bind(agentType string) llm.Provider {
	return &boundProvider{mgr: m, agentType: agentType}
}

// BindChat is Bind for chat transports: the provider is resolved each time a
// session is started.
func (m *Manager) BindChat(agentType string) llm.ChatStarter {
	return &boundStarter{mgr: m, agentType: agentType}
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	zap.L().Info("global provider switched", zap.String("provider", newProvider))
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Available lists registered provider names.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type boundProvider struct {
	mgr       *Manager
	agentType string
}

func (b *boundProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	return b.mgr.ExecutePrompt(ctx, b.agentType, prompt, systemPrompt, b.mgr.withModel(b.agentType, options))
}

// AdaptInstructions is applied inside ExecutePrompt by the resolved provider.
func (b *boundProvider) AdaptInstructions(raw string) string {
	return raw
}

type boundStarter struct {
	mgr       *Manager
	agentType string
}

func (b *boundStarter) StartChat(ctx context.Context, systemPrompt string, history []llm.Message, options map[string]interface{}) (llm.ChatSession, error) {
	starter, err := b.mgr.GetChatStarter(b.agentType)
	if err != nil {
		return nil, err
	}
	return starter.StartChat(ctx, systemPrompt, history, b.mgr.withModel(b.agentType, options))
}

// withModel fills in the agent's configured model unless the caller chose one.
func (m *Manager) withModel(agentType string, options map[string]interface{}) map[string]interface{} {
	model := m.Model(agentType)
	if model == "" {
		return options
	}
	if _, ok := options["model"]; ok {
		return options
	}
	out := make(map[string]interface{}, len(options)+1)
	for k, v := range options {
		out[k] = v
	}
	out["model"] = model
	return out
}
