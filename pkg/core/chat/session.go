// Package chat runs the analyst conversation with the chat backend: history
// replay, one turn per request, and strict decoding of the reply envelope.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"balance_sheet_analyzer/pkg/core/llm"
	"balance_sheet_analyzer/pkg/core/plot"

	"go.uber.org/zap"
)

const DefaultTimeout = 2 * time.Minute

// Reply is the result of one turn. On failure Message holds a diagnostic for
// the user, Plot is nil and Err carries the cause.
type Reply struct {
	Message string
	Plot    *plot.Directive
	Err     error
}

// Options configures a Session.
type Options struct {
	SystemPrompt string
	Timeout      time.Duration
	Model        string
	// Temperature is sent only when set.
	Temperature  *float64
}

// Session is one user's conversation. It is safe for concurrent use; turns
// are serialised.
type Session struct {
	mu        sync.Mutex
	starter   llm.ChatStarter
	opts      Options
	history   []Message
	transport llm.ChatSession
}

// NewSession creates a session that opens transports through starter.
func NewSession(starter llm.ChatStarter, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Session{starter: starter, opts: opts}
}

// Start replaces the history and opens a fresh transport seeded with it.
// Only the text of each message is replayed.
func (s *Session) Start(ctx context.Context, history []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]Message(nil), history...)
	s.transport = nil
	return s.open(ctx)
}

// Reset discards history and transport and starts over with a single greeting.
func (s *Session) Reset(ctx context.Context, greeting string) error {
	return s.Start(ctx, []Message{AssistantMessage(Envelope{Message: greeting})})
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.history...)
}

func (s *Session) open(ctx context.Context) error {
	replay := make([]llm.Message, 0, len(s.history))
	for _, m := range s.history {
		role := llm.RoleAssistant
		if m.Role == RoleUser {
			role = llm.RoleUser
		}
		replay = append(replay, llm.Message{Role: role, Content: m.Text})
	}

	opts := llm.JSONOptions(s.opts.Model, 0)
	delete(opts, "temperature")
	if s.opts.Temperature != nil {
		opts["temperature"] = *s.opts.Temperature
	}
	cs, err := s.starter.StartChat(ctx, s.opts.SystemPrompt, replay, opts)
	if err != nil {
		return fmt.Errorf("start chat: %w", err)
	}
	s.transport = cs
	return nil
}

// Send issues one turn. dataContext, when non-empty, is prepended to the
// transport turn; the history keeps the user's text only. Send never panics
// and never returns an error: failures come back as a diagnostic Reply.
func (s *Session) Send(ctx context.Context, userText, dataContext string) (reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			reply = failed(fmt.Errorf("chat backend panicked: %v", r))
			s.transport = nil
			zap.L().Error("chat turn panicked", zap.Any("panic", r))
		}
	}()

	if s.transport == nil {
		if err := s.open(ctx); err != nil {
			zap.L().Error("chat transport unavailable", zap.Error(err))
			return failed(err)
		}
	}

	turn := userText
	if dataContext != "" {
		turn = fmt.Sprintf("CONTEXTUAL FINANCIAL DATA:\n%s\n\nUSER PROMPT: %s", dataContext, userText)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	raw, err := s.transport.SendMessage(callCtx, turn)
	if err != nil {
		err = llm.CallError(callCtx, err)
		zap.L().Error("chat turn failed", zap.Error(err))
		return failed(err)
	}

	env, err := ParseEnvelope(raw)
	if err != nil {
		zap.L().Warn("chat reply rejected", zap.Int("reply_bytes", len(raw)), zap.Error(err))
		// the transport already holds the rejected turn; reopen from history next time
		s.transport = nil
		return failed(err)
	}

	s.history = append(s.history, UserMessage(userText), AssistantMessage(env))
	return Reply{Message: env.Message, Plot: env.PlotRequest}
}

func failed(err error) Reply {
	return Reply{
		Message: fmt.Sprintf("I apologize, but I encountered an issue. (Error: %v)", err),
		Err:     err,
	}
}
