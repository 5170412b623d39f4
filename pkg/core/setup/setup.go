// Package setup builds the long-lived objects shared by the server and the CLI
// from a loaded configuration.
package setup

import (
	"context"
	"fmt"

	"balance_sheet_analyzer/pkg/core/agent"
	"balance_sheet_analyzer/pkg/core/analysis"
	"balance_sheet_analyzer/pkg/core/chat"
	"balance_sheet_analyzer/pkg/core/config"
	"balance_sheet_analyzer/pkg/core/extraction"
	"balance_sheet_analyzer/pkg/core/llm"
	"balance_sheet_analyzer/pkg/core/prompt"
	"balance_sheet_analyzer/pkg/core/store"

	"go.uber.org/zap"
)

// Cleanup releases what a constructor in this package opened.
type Cleanup func()

// NewAgentManager registers every provider that has a key.
func NewAgentManager(ctx context.Context, cfg *config.Config) (*agent.Manager, Cleanup, error) {
	mgr := agent.NewManager(cfg.LLM)
	var closers []func() error

	if key := cfg.Credentials.Key("gemini"); key != "" {
		starter, err := llm.NewGeminiChatProvider(ctx, key, "")
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, starter.Close)
		mgr.Register("gemini", llm.NewGeminiProvider(key, ""), starter)
	}
	if key := cfg.Credentials.Key("deepseek"); key != "" {
		p := llm.NewDeepSeekProvider(key)
		mgr.Register("deepseek", p, &llm.ReplayChatStarter{Completer: p})
	}
	if key := cfg.Credentials.Key("qwen"); key != "" {
		p := llm.NewQwenProvider(key)
		mgr.Register("qwen", p, &llm.ReplayChatStarter{Completer: p})
	}

	if len(mgr.Available()) == 0 {
		return nil, nil, fmt.Errorf("%w: no LLM provider has an API key", config.ErrMissingCredential)
	}
	zap.L().Info("llm providers registered",
		zap.Strings("available", mgr.Available()),
		zap.String("active", mgr.GetActiveProvider()),
	)

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				zap.L().Warn("closing llm client", zap.Error(err))
			}
		}
	}
	return mgr, cleanup, nil
}

// OpenStores opens, migrates and seeds one store per configured group.
func OpenStores(ctx context.Context, cfg *config.Config) (map[string]store.Storage, Cleanup, error) {
	stores := make(map[string]store.Storage, len(cfg.Groups))
	cleanup := func() {
		for g, s := range stores {
			if err := s.Close(); err != nil {
				zap.L().Warn("closing store", zap.String("group", g), zap.Error(err))
			}
		}
	}

	for _, g := range cfg.Groups {
		s, err := OpenStore(ctx, cfg, g)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		stores[g] = s
	}
	return stores, cleanup, nil
}

// OpenStore opens the store for one group and applies its seed data.
func OpenStore(ctx context.Context, cfg *config.Config, group string) (store.Storage, error) {
	s, err := store.Open(ctx, cfg.StoreOptions(), group)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", group, err)
	}
	if seed, ok := cfg.Seed[group]; ok {
		if err := s.Seed(ctx, seed); err != nil {
			s.Close()
			return nil, fmt.Errorf("seed store %s: %w", group, err)
		}
	}
	zap.L().Info("store ready", zap.String("group", group), zap.String("driver", cfg.Database.Driver))
	return s, nil
}

// NewExtractionEngine binds the extraction agent to an engine.
func NewExtractionEngine(cfg *config.Config, mgr *agent.Manager) *extraction.Engine {
	return extraction.NewEngine(mgr.Bind(agent.Extraction), extraction.Options{
		MaxInputChars: cfg.Extraction.MaxInputChars,
		Timeout:       cfg.ExtractionTimeout(),
		LenientJSON:   cfg.Extraction.LenientJSON,
	})
}

// ConversationFactory returns a constructor for per-login analysis conversations.
func ConversationFactory(cfg *config.Config, mgr *agent.Manager) (func() *analysis.Conversation, error) {
	system, err := prompt.Get().GetSystemPrompt(prompt.AnalysisAnalyst)
	if err != nil {
		return nil, err
	}
	starter := mgr.BindChat(agent.Analyst)
	opts := chat.Options{
		SystemPrompt: system,
		Timeout:      cfg.ChatTimeout(),
		Temperature:  cfg.Chat.Temperature,
	}
	return func() *analysis.Conversation {
		return analysis.NewConversation(chat.NewSession(starter, opts))
	}, nil
}
