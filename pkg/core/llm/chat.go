package llm

import (
	"context"
	"sync"
)

// ChatSession is one transport-level conversation.
// SendMessage issues exactly one turn and blocks for one reply.
type ChatSession interface {
	SendMessage(ctx context.Context, text string) (string, error)
}

// ChatStarter opens chat sessions seeded with prior turns.
// history roles are RoleUser or RoleAssistant; implementations map them to their own labels.
type ChatStarter interface {
	StartChat(ctx context.Context, systemPrompt string, history []Message, options map[string]interface{}) (ChatSession, error)
}

// MessageCompleter is implemented by providers that accept a full message list.
type MessageCompleter interface {
	Complete(ctx context.Context, messages []Message, options map[string]interface{}) (string, error)
}

// ReplayChatStarter turns a stateless MessageCompleter into a ChatStarter by
// resending the accumulated history on every turn.
type ReplayChatStarter struct {
	Completer MessageCompleter
}

var _ ChatStarter = (*ReplayChatStarter)(nil)

func (s *ReplayChatStarter) StartChat(ctx context.Context, systemPrompt string, history []Message, options map[string]interface{}) (ChatSession, error) {
	msgs := make([]Message, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, history...)
	return &replayChat{completer: s.Completer, messages: msgs, options: options}, nil
}

type replayChat struct {
	mu        sync.Mutex
	completer MessageCompleter
	messages  []Message
	options   map[string]interface{}
}

// SendMessage appends the turn to the transcript only when the backend answered.
func (c *replayChat) SendMessage(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	turn := append(append([]Message(nil), c.messages...), Message{Role: RoleUser, Content: text})
	reply, err := c.completer.Complete(ctx, turn, c.options)
	if err != nil {
		return "", err
	}
	c.messages = append(turn, Message{Role: RoleAssistant, Content: reply})
	return reply, nil
}
