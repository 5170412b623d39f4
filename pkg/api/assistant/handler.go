package assistant

import (
	"encoding/json"
	"net/http"
	"strings"

	"balance_sheet_analyzer/pkg/api/apiutil"
	"balance_sheet_analyzer/pkg/api/companies"
	"balance_sheet_analyzer/pkg/api/session"
	"balance_sheet_analyzer/pkg/core/analysis"
	"balance_sheet_analyzer/pkg/core/chat"
	"balance_sheet_analyzer/pkg/core/plot"
	"balance_sheet_analyzer/pkg/core/utils"

	"go.uber.org/zap"
)

// Handler provides the analysis chat endpoint.
type Handler struct {
	Sessions *session.Registry
}

// NewHandler creates a new assistant handler
func NewHandler(sessions *session.Registry) *Handler {
	return &Handler{Sessions: sessions}
}

// ChatRequest is one question about a company.
type ChatRequest struct {
	CompanyID int64  `json:"company_id"`
	Message   string `json:"message"`
}

// ChatResponse carries the assistant's answer, rendered for the browser, plus
// the chart data when a plot was requested and could be drawn.
type ChatResponse struct {
	Message     string          `json:"message"`
	MessageHTML string          `json:"message_html"`
	PlotRequest *plot.Directive `json:"plot_request,omitempty"`
	Chart       *plot.Chart     `json:"chart,omitempty"`
	Notice      string          `json:"notice,omitempty"`
}

// HandleChat answers one question. Selecting another company than the
// conversation's current one starts a new chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if apiutil.CORS(w, r) {
		return
	}
	s, err := h.Sessions.Lookup(r)
	if err != nil {
		apiutil.Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiutil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		apiutil.Error(w, http.StatusBadRequest, "Message is required")
		return
	}

	company, status, err := companies.Authorize(r, s, req.CompanyID)
	if err != nil {
		apiutil.Error(w, status, err.Error())
		return
	}

	conv := s.Conversation
	if cur := conv.Company(); cur == nil || cur.ID != company.ID {
		if _, err := conv.Select(r.Context(), s.Store, *company); err != nil {
			apiutil.Error(w, http.StatusNotFound, err.Error())
			return
		}
	}

	turn, err := conv.Ask(r.Context(), req.Message)
	if err != nil {
		apiutil.Error(w, http.StatusConflict, err.Error())
		return
	}
	if turn.Err != nil {
		zap.L().Warn("chat turn degraded",
			zap.String("user", s.User.Username),
			zap.Int64("company_id", company.ID),
			zap.Error(turn.Err),
		)
	}

	apiutil.JSON(w, http.StatusOK, render(turn))
}

// HandleHistory returns the current conversation.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if apiutil.CORS(w, r) {
		return
	}
	s, err := h.Sessions.Lookup(r)
	if err != nil {
		apiutil.Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	msgs := s.Conversation.History()
	if msgs == nil {
		msgs = []chat.Message{}
	}
	apiutil.JSON(w, http.StatusOK, msgs)
}

func render(turn *analysis.Turn) ChatResponse {
	resp := ChatResponse{
		Message:     turn.Reply,
		PlotRequest: turn.Directive,
		Chart:       turn.Chart,
		Notice:      turn.Notice,
	}
	html, err := utils.RenderMarkdown(turn.Reply)
	if err != nil {
		zap.L().Warn("markdown render failed", zap.Error(err))
		return resp
	}
	resp.MessageHTML = html
	return resp
}
