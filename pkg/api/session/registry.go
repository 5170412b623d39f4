// Package session tracks logged-in users. Each session is bound to one group
// store and owns that user's analysis conversation.
package session

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"balance_sheet_analyzer/pkg/core/analysis"
	"balance_sheet_analyzer/pkg/core/store"
	"balance_sheet_analyzer/pkg/models"

	"github.com/google/uuid"
)

// ErrNoSession is returned for a missing, unknown or expired token.
var ErrNoSession = errors.New("not logged in")

// Session is one login.
type Session struct {
	Token        string
	Group        string
	User         *models.User
	Store        store.Storage
	Conversation *analysis.Conversation

	expires time.Time
}

// Registry maps tokens to sessions. It is safe for concurrent use.
type Registry struct {
	mu              sync.Mutex
	ttl             time.Duration
	sessions        map[string]*Session
	newConversation func() *analysis.Conversation
	now             func() time.Time
}

// NewRegistry creates a registry whose sessions expire after ttl of inactivity.
// newConversation builds the per-user conversation at login.
func NewRegistry(ttl time.Duration, newConversation func() *analysis.Conversation) *Registry {
	return &Registry{
		ttl:             ttl,
		sessions:        make(map[string]*Session),
		newConversation: newConversation,
		now:             time.Now,
	}
}

// Create starts a session for user in group.
func (r *Registry) Create(group string, st store.Storage, user *models.User) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweep()

	s := &Session{
		Token:        uuid.NewString(),
		Group:        group,
		User:         user,
		Store:        st,
		Conversation: r.newConversation(),
		expires:      r.now().Add(r.ttl),
	}
	r.sessions[s.Token] = s
	return s
}

// Lookup returns the session of the request's bearer token and extends it.
func (r *Registry) Lookup(req *http.Request) (*Session, error) {
	token := TokenFromRequest(req)
	if token == "" {
		return nil, ErrNoSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, ErrNoSession
	}
	if r.now().After(s.expires) {
		delete(r.sessions, token)
		return nil, ErrNoSession
	}
	s.expires = r.now().Add(r.ttl)
	return s, nil
}

// Delete ends a session.
func (r *Registry) Delete(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweep()
	return len(r.sessions)
}

func (r *Registry) sweep() {
	now := r.now()
	for token, s := range r.sessions {
		if now.After(s.expires) {
			delete(r.sessions, token)
		}
	}
}

// TokenFromRequest reads "Authorization: Bearer <token>".
func TokenFromRequest(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
