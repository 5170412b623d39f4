package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"balance_sheet_analyzer/pkg/core/plot"
	"balance_sheet_analyzer/pkg/core/utils"
)

// Role is who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Envelope is the structured reply the assistant is instructed to produce.
type Envelope struct {
	Message     string          `json:"message,omitempty"`
	PlotRequest *plot.Directive `json:"plot_request,omitempty"`
}

// Message is one history entry. Text is what gets replayed to the backend;
// Envelope keeps the parsed reply, including any plot directive, for display.
type Message struct {
	Role     Role      `json:"role"`
	Text     string    `json:"text"`
	Envelope *Envelope `json:"envelope,omitempty"`
}

// UserMessage builds a history entry for text typed by the user.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// AssistantMessage builds a history entry for an assistant reply.
func AssistantMessage(env Envelope) Message {
	return Message{Role: RoleAssistant, Text: env.Message, Envelope: &env}
}

// ErrMalformedReply wraps every envelope decoding failure.
var ErrMalformedReply = errors.New("assistant reply is not a valid envelope")

// ParseEnvelope decodes raw strictly: one JSON object, only the known fields.
// Both fields are optional, so {} is an empty reply. A code fence around the
// object is tolerated.
func ParseEnvelope(raw string) (Envelope, error) {
	s := utils.StripCodeFence(raw)
	if !strings.HasPrefix(s, "{") {
		return Envelope{}, fmt.Errorf("%w: not a JSON object", ErrMalformedReply)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Envelope{}, fmt.Errorf("%w: trailing data", ErrMalformedReply)
	}
	return env, nil
}
