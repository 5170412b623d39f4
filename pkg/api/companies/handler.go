// Package companies lists the companies a user may see and serves their data tables.
package companies

import (
	"errors"
	"net/http"
	"strconv"

	"balance_sheet_analyzer/pkg/api/apiutil"
	"balance_sheet_analyzer/pkg/api/session"
	"balance_sheet_analyzer/pkg/core/analysis"
	"balance_sheet_analyzer/pkg/core/auth"
	"balance_sheet_analyzer/pkg/core/chat"
	"balance_sheet_analyzer/pkg/core/snapshot"
	"balance_sheet_analyzer/pkg/models"
)

type Handler struct {
	Sessions *session.Registry
}

func NewHandler(sessions *session.Registry) *Handler {
	return &Handler{Sessions: sessions}
}

// HandleList returns the caller's accessible companies.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if apiutil.CORS(w, r) {
		return
	}
	s, err := h.Sessions.Lookup(r)
	if err != nil {
		apiutil.Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	list, err := s.Store.ListAccessibleCompanies(r.Context(), s.User.ID, s.User.Role)
	if err != nil {
		apiutil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	apiutil.JSON(w, http.StatusOK, list)
}

type SnapshotResponse struct {
	Company  models.Company `json:"company"`
	Table    snapshot.Table `json:"table"`
	Text     string         `json:"text"`
	Messages []chat.Message `json:"messages"`
}

// HandleSnapshot selects a company for the caller's conversation and returns its table.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if apiutil.CORS(w, r) {
		return
	}
	s, err := h.Sessions.Lookup(r)
	if err != nil {
		apiutil.Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apiutil.Error(w, http.StatusBadRequest, "Invalid company id")
		return
	}

	company, status, err := Authorize(r, s, id)
	if err != nil {
		apiutil.Error(w, status, err.Error())
		return
	}

	snap, err := s.Conversation.Select(r.Context(), s.Store, *company)
	if errors.Is(err, analysis.ErrNoFinancialData) {
		apiutil.JSON(w, http.StatusNotFound, apiutil.ErrorResponse{
			Error:   "No financial data found for " + company.Name + ".",
			Details: "Please ask an analyst to upload the data.",
		})
		return
	}
	if err != nil {
		apiutil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	apiutil.JSON(w, http.StatusOK, SnapshotResponse{
		Company:  *company,
		Table:    snap.Table(),
		Text:     snap.String(),
		Messages: s.Conversation.History(),
	})
}

// Authorize resolves companyID within the session's group and checks the
// user may see it. The returned status is meant for the HTTP reply.
func Authorize(r *http.Request, s *session.Session, companyID int64) (*models.Company, int, error) {
	visible, err := s.Store.ListAccessibleCompanies(r.Context(), s.User.ID, s.User.Role)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if !auth.CanView(visible, companyID) {
		return nil, http.StatusForbidden, auth.ErrAccessDenied
	}
	company, err := s.Store.GetCompany(r.Context(), companyID)
	if err != nil {
		return nil, http.StatusNotFound, err
	}
	return company, http.StatusOK, nil
}
