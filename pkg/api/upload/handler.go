// Package upload accepts balance sheet documents from analysts.
package upload

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"balance_sheet_analyzer/pkg/api/apiutil"
	"balance_sheet_analyzer/pkg/api/session"
	"balance_sheet_analyzer/pkg/core/auth"
	"balance_sheet_analyzer/pkg/core/extraction"
	"balance_sheet_analyzer/pkg/core/ingest"
	"balance_sheet_analyzer/pkg/core/pipeline"
	"balance_sheet_analyzer/pkg/core/store"
	"balance_sheet_analyzer/pkg/models"

	"go.uber.org/zap"
)

const maxUploadBytes = 64 << 20

// URLRequest is the JSON body for a web page upload.
type URLRequest struct {
	CompanyID int64  `json:"company_id"`
	Year      int    `json:"year"`
	URL       string `json:"url"`
}

type Handler struct {
	Sessions *session.Registry
	Uploader *pipeline.Uploader
}

func NewHandler(sessions *session.Registry, uploader *pipeline.Uploader) *Handler {
	return &Handler{Sessions: sessions, Uploader: uploader}
}

// HandleUpload takes either a multipart form (company_id, year, file) or a
// JSON URLRequest.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if apiutil.CORS(w, r) {
		return
	}
	s, err := h.Sessions.Lookup(r)
	if err != nil {
		apiutil.Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	// checked here too so a denied caller never streams a file to disk
	if err := auth.RequireRole(s.User, models.RoleAnalyst); err != nil {
		apiutil.Error(w, http.StatusForbidden, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var result *pipeline.Result
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		result, err = h.uploadFile(r, s)
	} else {
		var req URLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apiutil.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		result, err = h.Uploader.UploadURL(r.Context(), s.User, s.Store, req.CompanyID, req.Year, req.URL)
	}
	if err != nil {
		writeUploadError(w, err)
		return
	}
	apiutil.JSON(w, http.StatusOK, result)
}

func (h *Handler) uploadFile(r *http.Request, s *session.Session) (*pipeline.Result, error) {
	companyID, err := strconv.ParseInt(r.FormValue("company_id"), 10, 64)
	if err != nil {
		return nil, errBadRequest("Invalid company_id")
	}
	year, err := strconv.Atoi(r.FormValue("year"))
	if err != nil {
		return nil, errBadRequest("Invalid year")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errBadRequest("Missing file")
	}
	defer file.Close()

	return h.Uploader.UploadPDF(r.Context(), s.User, s.Store, companyID, year, header.Filename, file)
}

type badRequest string

func (e badRequest) Error() string { return string(e) }

func errBadRequest(msg string) error { return badRequest(msg) }

func writeUploadError(w http.ResponseWriter, err error) {
	var (
		bad     badRequest
		failure *extraction.Failure
	)
	switch {
	case errors.As(err, &bad), errors.Is(err, pipeline.ErrInvalidYear):
		apiutil.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAccessDenied):
		apiutil.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		apiutil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, extraction.ErrNoText), errors.Is(err, ingest.ErrEmptyBody):
		apiutil.Error(w, http.StatusUnprocessableEntity, "Could not extract any text from the source.")
	case errors.As(err, &failure):
		zap.L().Warn("upload extraction failed", zap.String("kind", string(failure.Kind)), zap.Error(err))
		apiutil.JSON(w, http.StatusBadGateway, apiutil.ErrorResponse{
			Error:   "Failed to extract financial data.",
			Details: failure.Details(),
		})
	case errors.Is(err, ingest.ErrFetch), errors.Is(err, ingest.ErrStatus):
		apiutil.Error(w, http.StatusBadGateway, err.Error())
	default:
		zap.L().Error("upload failed", zap.Error(err))
		apiutil.Error(w, http.StatusInternalServerError, err.Error())
	}
}
