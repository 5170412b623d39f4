// Package account serves login and logout.
package account

import (
	"encoding/json"
	"errors"
	"net/http"

	"balance_sheet_analyzer/pkg/api/apiutil"
	"balance_sheet_analyzer/pkg/api/session"
	"balance_sheet_analyzer/pkg/core/auth"
	"balance_sheet_analyzer/pkg/core/store"
	"balance_sheet_analyzer/pkg/models"

	"go.uber.org/zap"
)

type LoginRequest struct {
	Group    string `json:"group"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	Group string       `json:"group"`
	User  *models.User `json:"user"`
}

// Handler holds dependencies for account endpoints.
type Handler struct {
	Stores   map[string]store.Storage
	Sessions *session.Registry
}

func NewHandler(stores map[string]store.Storage, sessions *session.Registry) *Handler {
	return &Handler{Stores: stores, Sessions: sessions}
}

// HandleLogin checks credentials against the group's store and opens a session.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if apiutil.CORS(w, r) {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiutil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st, ok := h.Stores[req.Group]
	if !ok {
		apiutil.Error(w, http.StatusBadRequest, "Unknown group")
		return
	}

	user, err := auth.Login(r.Context(), st, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		zap.L().Info("login failed", zap.String("group", req.Group), zap.String("username", req.Username))
		apiutil.Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		apiutil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	s := h.Sessions.Create(req.Group, st, user)
	zap.L().Info("login", zap.String("group", req.Group), zap.String("username", user.Username), zap.String("role", string(user.Role)))
	apiutil.JSON(w, http.StatusOK, LoginResponse{Token: s.Token, Group: req.Group, User: user})
}

// HandleLogout ends the caller's session.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if apiutil.CORS(w, r) {
		return
	}
	if token := session.TokenFromRequest(r); token != "" {
		h.Sessions.Delete(token)
	}
	w.WriteHeader(http.StatusNoContent)
}
