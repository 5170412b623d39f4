// Package analysis drives an executive's conversation about one company:
// it keeps the company's snapshot, feeds it to the chat session as context
// and turns plot directives into charts.
package analysis

import (
	"context"
	"fmt"
	"sync"

	"balance_sheet_analyzer/pkg/core/chat"
	"balance_sheet_analyzer/pkg/core/plot"
	"balance_sheet_analyzer/pkg/core/snapshot"
	"balance_sheet_analyzer/pkg/models"

	"go.uber.org/zap"
)

// Greeting is the first assistant message after a company is selected.
func Greeting(company string) string {
	return fmt.Sprintf("Hi! How can I help you analyze the financial performance of %s?", company)
}

// PlotNotice is shown when a plot directive cannot be resolved against the snapshot.
func PlotNotice(metric string) string {
	return fmt.Sprintf("Could not generate plot for metric: '%s'. Please ensure it's in the data table.", metric)
}

// Conversation is one user's analysis state. Selecting a different company
// starts a fresh chat session.
type Conversation struct {
	// turn serialises Select and Ask so a question is answered and recorded
	// against the company it was asked about.
	turn sync.Mutex

	mu      sync.Mutex
	session *chat.Session
	company *models.Company
	snap    *snapshot.Snapshot
}

// NewConversation wraps session; the caller owns one Conversation per user.
func NewConversation(session *chat.Session) *Conversation {
	return &Conversation{session: session}
}

// Select loads company's records and rebuilds the snapshot. When the company
// changes the chat is reset to the greeting. A company without data is not selected.
func (c *Conversation) Select(ctx context.Context, records RecordSource, company models.Company) (*snapshot.Snapshot, error) {
	c.turn.Lock()
	defer c.turn.Unlock()

	recs, err := records.GetMetricSet(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", company.Name, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFinancialData, company.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := c.company == nil || c.company.ID != company.ID
	c.snap = snapshot.Build(recs)
	selected := company
	c.company = &selected

	if changed {
		if err := c.session.Reset(ctx, Greeting(company.Name)); err != nil {
			// the next Send opens the transport again
			zap.L().Warn("chat transport not started", zap.String("company", company.Name), zap.Error(err))
		}
	}
	return c.snap, nil
}

// Ask sends question with the current snapshot as context.
func (c *Conversation) Ask(ctx context.Context, question string) (*Turn, error) {
	c.turn.Lock()
	defer c.turn.Unlock()

	c.mu.Lock()
	snap := c.snap
	company := c.company
	c.mu.Unlock()

	if company == nil {
		return nil, ErrNoCompany
	}

	reply := c.session.Send(ctx, question, snap.String())
	turn := &Turn{Reply: reply.Message, Directive: reply.Plot, Err: reply.Err}
	if reply.Plot == nil {
		return turn, nil
	}

	turn.Chart = plot.Resolve(*reply.Plot, snap)
	if turn.Chart == nil {
		turn.Notice = PlotNotice(reply.Plot.Metric)
		zap.L().Info("plot directive not resolvable",
			zap.String("company", company.Name),
			zap.String("type", string(reply.Plot.Type)),
			zap.String("metric", reply.Plot.Metric),
		)
	}
	return turn, nil
}

// Company returns the selected company, if any.
func (c *Conversation) Company() *models.Company {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.company
}

// Snapshot returns the snapshot of the selected company.
func (c *Conversation) Snapshot() *snapshot.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// History returns the chat so far.
func (c *Conversation) History() []chat.Message {
	return c.session.History()
}
