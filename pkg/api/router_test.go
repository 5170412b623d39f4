package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"balance_sheet_analyzer/pkg/api/session"
	"balance_sheet_analyzer/pkg/core/agent"
	"balance_sheet_analyzer/pkg/core/analysis"
	"balance_sheet_analyzer/pkg/core/chat"
	"balance_sheet_analyzer/pkg/core/extraction"
	"balance_sheet_analyzer/pkg/core/ingest"
	"balance_sheet_analyzer/pkg/core/llm"
	"balance_sheet_analyzer/pkg/core/pipeline"
	"balance_sheet_analyzer/pkg/core/store"
)

// MockProvider answers every extraction with the same metric object.
type MockProvider struct{}

func (MockProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	if strings.Contains(prompt, "2022") {
		return `{"Total Assets": 800, "Total Liabilities": 300, "Net Profit": 100}`, nil
	}
	return `{"Total Assets": "1,000", "Total Liabilities": 400, "Net Profit": 150}`, nil
}

func (MockProvider) AdaptInstructions(raw string) string { return raw }

// MockStarter replies with a growth plot request on every turn.
type MockStarter struct{}

func (MockStarter) StartChat(ctx context.Context, systemPrompt string, history []llm.Message, options map[string]interface{}) (llm.ChatSession, error) {
	return MockStarter{}, nil
}

func (MockStarter) SendMessage(ctx context.Context, text string) (string, error) {
	return `{"message":"**Net profit** grew 50%.","plot_request":{"type":"growth","metric":"Net Profit","title":"Net Profit growth"}}`, nil
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	err = st.Seed(ctx, store.Seed{
		Users: []store.SeedUser{
			{Username: "analyst", Password: "pw", Role: "analyst"},
			{Username: "ceo", Password: "pw", Role: "ceo"},
		},
		Companies: []string{"Jio Platforms", "Reliance Retail"},
		Access:    map[string][]string{"ceo": {"Jio Platforms"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	mgr := agent.NewManager(agent.Config{ActiveProvider: "mock"})
	mgr.Register("mock", MockProvider{}, MockStarter{})

	sessions := session.NewRegistry(time.Hour, func() *analysis.Conversation {
		return analysis.NewConversation(chat.NewSession(mgr.BindChat(agent.Analyst), chat.Options{}))
	})
	engine := extraction.NewEngine(mgr.Bind(agent.Extraction), extraction.Options{})
	uploader := pipeline.NewUploader(engine, ingest.NewFetcher())
	uploader.SetTempDir(t.TempDir())
	uploader.SetPageReader(func(path string) ([]string, error) { return []string{"report for 2022"}, nil })

	return &testServer{t: t, handler: NewRouter(Deps{
		Stores:   map[string]store.Storage{"reliance": st},
		Sessions: sessions,
		Uploader: uploader,
		AgentMgr: mgr,
	})}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(username string) string {
	rec := s.do("POST", "/api/login", "", map[string]string{"group": "reliance", "username": username, "password": "pw"})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("login %s: %d %s", username, rec.Code, rec.Body)
	}
	var resp struct{ Token string }
	json.Unmarshal(rec.Body.Bytes(), &resp)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do("POST", "/api/login", "", map[string]string{"group": "reliance", "username": "analyst", "password": "nope"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: %d", rec.Code)
	}
	if rec := s.do("POST", "/api/login", "", map[string]string{"group": "tata", "username": "analyst", "password": "pw"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown group: %d", rec.Code)
	}
	if rec := s.do("GET", "/api/companies", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous list: %d", rec.Code)
	}
}

func TestUploadSnapshotAndChat(t *testing.T) {
	s := newTestServer(t)
	token := s.login("analyst")

	var companies []struct {
		ID   int64
		Name string
	}
	decode(t, s.do("GET", "/api/companies", token, nil), &companies)
	if len(companies) != 2 {
		t.Fatalf("analyst sees %d companies", len(companies))
	}
	jio := companies[0].ID

	// 2022 from a PDF
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("company_id", fmt.Sprint(jio))
	mw.WriteField("year", "2022")
	fw, _ := mw.CreateFormFile("file", "AR_2022.pdf")
	fw.Write([]byte("%PDF-1.4 fake"))
	mw.Close()
	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf upload: %d %s", rec.Code, rec.Body)
	}

	// 2023 from a web page
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>Balance sheet 2023</p></body></html>"))
	}))
	defer page.Close()
	rec = s.do("POST", "/api/upload", token, map[string]interface{}{"company_id": jio, "year": 2023, "url": page.URL})
	if rec.Code != http.StatusOK {
		t.Fatalf("url upload: %d %s", rec.Code, rec.Body)
	}
	var uploaded struct {
		Source  string `json:"source_document"`
		Written int
		Metrics map[string]*float64
	}
	decode(t, rec, &uploaded)
	if uploaded.Source != "web source of Jio Platforms" || uploaded.Written != 3 {
		t.Errorf("upload result = %+v", uploaded)
	}
	if v := uploaded.Metrics["Total Assets"]; v == nil || *v != 1000 {
		t.Errorf("Total Assets = %v", v)
	}
	if _, ok := uploaded.Metrics["Other Income"]; !ok {
		t.Error("null canonical metric missing from response")
	}

	rec = s.do("GET", fmt.Sprintf("/api/companies/%d/snapshot", jio), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot: %d %s", rec.Code, rec.Body)
	}
	var snap struct {
		Table struct {
			Years []int
			Rows  map[string][]*float64
		}
		Messages []chat.Message
	}
	decode(t, rec, &snap)
	if len(snap.Table.Years) != 2 || len(snap.Table.Rows) != 3 {
		t.Errorf("table = %+v", snap.Table)
	}
	if len(snap.Messages) != 1 || !strings.Contains(snap.Messages[0].Text, "Jio Platforms") {
		t.Errorf("messages = %+v", snap.Messages)
	}

	rec = s.do("POST", "/api/chat", token, map[string]interface{}{"company_id": jio, "message": "How did profit grow?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", rec.Code, rec.Body)
	}
	var reply struct {
		Message     string
		MessageHTML string `json:"message_html"`
		Chart       *struct {
			Series []struct {
				Points []struct {
					Year  int
					Value float64
				}
			}
		}
	}
	decode(t, rec, &reply)
	if !strings.Contains(reply.MessageHTML, "<strong>Net profit</strong>") {
		t.Errorf("message_html = %q", reply.MessageHTML)
	}
	if reply.Chart == nil || len(reply.Chart.Series[0].Points) != 1 || reply.Chart.Series[0].Points[0].Value != 50 {
		t.Errorf("chart = %+v", reply.Chart)
	}
}

func TestCEOAccess(t *testing.T) {
	s := newTestServer(t)
	token := s.login("ceo")

	var companies []struct {
		ID   int64
		Name string
	}
	decode(t, s.do("GET", "/api/companies", token, nil), &companies)
	if len(companies) != 1 || companies[0].Name != "Jio Platforms" {
		t.Fatalf("ceo sees %+v", companies)
	}

	rec := s.do("POST", "/api/upload", token, map[string]interface{}{"company_id": companies[0].ID, "year": 2023, "url": "http://example.invalid"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("ceo upload: %d", rec.Code)
	}

	analystToken := s.login("analyst")
	var all []struct {
		ID   int64
		Name string
	}
	decode(t, s.do("GET", "/api/companies", analystToken, nil), &all)
	for _, c := range all {
		if c.Name == "Reliance Retail" {
			rec := s.do("GET", fmt.Sprintf("/api/companies/%d/snapshot", c.ID), token, nil)
			if rec.Code != http.StatusForbidden {
				t.Errorf("ceo snapshot of ungranted company: %d", rec.Code)
			}
		}
	}

	rec = s.do("POST", "/api/config/switch", token, map[string]string{"provider": "mock"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("ceo provider switch: %d", rec.Code)
	}
}

func TestSnapshotWithoutData(t *testing.T) {
	s := newTestServer(t)
	token := s.login("analyst")
	var companies []struct{ ID int64 }
	decode(t, s.do("GET", "/api/companies", token, nil), &companies)

	rec := s.do("GET", fmt.Sprintf("/api/companies/%d/snapshot", companies[0].ID), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("snapshot without data: %d", rec.Code)
	}
}
