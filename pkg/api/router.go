// Package api wires the HTTP handlers onto a mux.
package api

import (
	"net/http"

	"balance_sheet_analyzer/pkg/api/account"
	"balance_sheet_analyzer/pkg/api/apiutil"
	"balance_sheet_analyzer/pkg/api/assistant"
	"balance_sheet_analyzer/pkg/api/companies"
	"balance_sheet_analyzer/pkg/api/config"
	"balance_sheet_analyzer/pkg/api/session"
	"balance_sheet_analyzer/pkg/api/upload"
	"balance_sheet_analyzer/pkg/core/agent"
	"balance_sheet_analyzer/pkg/core/pipeline"
	"balance_sheet_analyzer/pkg/core/store"
)

// Deps are the long-lived objects the handlers share.
type Deps struct {
	Stores   map[string]store.Storage
	Sessions *session.Registry
	Uploader *pipeline.Uploader
	AgentMgr *agent.Manager
}

// Routes lists every endpoint, for the startup log.
var Routes = []string{
	"POST /api/login",
	"POST /api/logout",
	"GET  /api/companies",
	"GET  /api/companies/{id}/snapshot",
	"POST /api/upload",
	"POST /api/chat",
	"GET  /api/chat/history",
	"GET  /api/config",
	"POST /api/config/switch",
}

// NewRouter registers all endpoints.
func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	accountHandler := account.NewHandler(d.Stores, d.Sessions)
	mux.HandleFunc("POST /api/login", accountHandler.HandleLogin)
	mux.HandleFunc("POST /api/logout", accountHandler.HandleLogout)

	companiesHandler := companies.NewHandler(d.Sessions)
	mux.HandleFunc("GET /api/companies", companiesHandler.HandleList)
	mux.HandleFunc("GET /api/companies/{id}/snapshot", companiesHandler.HandleSnapshot)

	uploadHandler := upload.NewHandler(d.Sessions, d.Uploader)
	mux.HandleFunc("POST /api/upload", uploadHandler.HandleUpload)

	assistantHandler := assistant.NewHandler(d.Sessions)
	mux.HandleFunc("POST /api/chat", assistantHandler.HandleChat)
	mux.HandleFunc("GET /api/chat/history", assistantHandler.HandleHistory)

	configHandler := config.NewHandler(d.AgentMgr, d.Sessions)
	mux.HandleFunc("GET /api/config", configHandler.HandleConfig)
	mux.HandleFunc("POST /api/config/switch", configHandler.HandleSwitch)

	mux.HandleFunc("OPTIONS /api/", func(w http.ResponseWriter, r *http.Request) {
		apiutil.CORS(w, r)
	})
	return mux
}
