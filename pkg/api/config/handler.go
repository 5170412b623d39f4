package config

import (
	"encoding/json"
	"net/http"

	"balance_sheet_analyzer/pkg/api/apiutil"
	"balance_sheet_analyzer/pkg/api/session"
	"balance_sheet_analyzer/pkg/core/agent"
	"balance_sheet_analyzer/pkg/core/auth"
	"balance_sheet_analyzer/pkg/models"
)

type Response struct {
	ActiveProvider string   `json:"active_provider"`
	Available      []string `json:"available"`
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	AgentMgr *agent.Manager
	Sessions *session.Registry
}

// NewHandler creates a new config handler
func NewHandler(agentMgr *agent.Manager, sessions *session.Registry) *Handler {
	return &Handler{
		AgentMgr: agentMgr,
		Sessions: sessions,
	}
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if apiutil.CORS(w, r) {
		return
	}
	apiutil.JSON(w, http.StatusOK, Response{
		ActiveProvider: h.AgentMgr.GetActiveProvider(),
		Available:      h.AgentMgr.Available(),
	})
}

// HandleSwitch changes the provider used by both extraction and chat. Analysts only.
func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	if apiutil.CORS(w, r) {
		return
	}
	s, err := h.Sessions.Lookup(r)
	if err != nil {
		apiutil.Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := auth.RequireRole(s.User, models.RoleAnalyst); err != nil {
		apiutil.Error(w, http.StatusForbidden, err.Error())
		return
	}

	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiutil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.AgentMgr.SetGlobalProvider(req.Provider); err != nil {
		apiutil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	apiutil.JSON(w, http.StatusOK, Response{
		ActiveProvider: h.AgentMgr.GetActiveProvider(),
		Available:      h.AgentMgr.Available(),
	})
}
