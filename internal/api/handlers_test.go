package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"chatarchive/internal/config"
	"chatarchive/internal/importer"
	"chatarchive/internal/models"
	"chatarchive/internal/runlog"
	"chatarchive/internal/service/archive"
	"chatarchive/internal/storage"
)

func TestArchiveEndpoints(t *testing.T) {
	router, svc, _ := newTestServer(t)
	seedArchive(t, svc)

	healthResp := doJSONRequest(t, router, http.MethodGet, "/api/health", nil, nil)
	assertStatus(t, healthResp, http.StatusOK)
	if got := healthResp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected permissive CORS header, got %q", got)
	}

	statsResp := doJSONRequest(t, router, http.MethodGet, "/api/stats", nil, nil)
	assertStatus(t, statsResp, http.StatusOK)
	var statsBody struct {
		Projects           int64   `json:"projects"`
		Conversations      int64   `json:"conversations"`
		Messages           int64   `json:"messages"`
		AssignedPercentage float64 `json:"assigned_percentage"`
		GPTIDPercentage    float64 `json:"gpt_id_percentage"`
		TopProjects        []struct {
			Name              string `json:"name"`
			ConversationCount int64  `json:"conversation_count"`
		} `json:"top_projects"`
	}
	decodeJSON(t, statsResp.Body.Bytes(), &statsBody)
	if statsBody.Projects != 2 || statsBody.Conversations != 3 || statsBody.Messages != 2 {
		t.Fatalf("unexpected stats %+v", statsBody)
	}
	if statsBody.AssignedPercentage != 66.7 || statsBody.GPTIDPercentage != 50 {
		t.Fatalf("unexpected percentages %+v", statsBody)
	}
	if len(statsBody.TopProjects) != 2 || statsBody.TopProjects[0].Name != "VS Code Github" {
		t.Fatalf("unexpected top projects %+v", statsBody.TopProjects)
	}

	projectsResp := doJSONRequest(t, router, http.MethodGet, "/api/projects", nil, nil)
	assertStatus(t, projectsResp, http.StatusOK)
	var projectsBody struct {
		Total    int `json:"total_projects"`
		Projects []struct {
			ID                int64  `json:"id"`
			Name              string `json:"name"`
			ConversationCount int64  `json:"conversation_count"`
			MessageCount      int64  `json:"message_count"`
		} `json:"projects"`
	}
	decodeJSON(t, projectsResp.Body.Bytes(), &projectsBody)
	if projectsBody.Total != 2 || projectsBody.Projects[0].ConversationCount != 2 || projectsBody.Projects[0].MessageCount != 2 {
		t.Fatalf("unexpected projects %+v", projectsBody)
	}

	listResp := doJSONRequest(t, router, http.MethodGet, "/api/conversations?q=github&limit=10", nil, nil)
	assertStatus(t, listResp, http.StatusOK)
	var listBody struct {
		Count         int                   `json:"count"`
		Conversations []models.Conversation `json:"conversations"`
	}
	decodeJSON(t, listResp.Body.Bytes(), &listBody)
	if listBody.Count != 1 || listBody.Conversations[0].ID != "a" {
		t.Fatalf("unexpected search result %+v", listBody)
	}

	byProject := doJSONRequest(t, router, http.MethodGet, fmt.Sprintf("/api/conversations?project_id=%d", 1), nil, nil)
	assertStatus(t, byProject, http.StatusOK)
	decodeJSON(t, byProject.Body.Bytes(), &listBody)
	if listBody.Count != 2 {
		t.Fatalf("expected 2 conversations in project 1, got %d", listBody.Count)
	}

	msgResp := doJSONRequest(t, router, http.MethodGet, "/api/conversations/a/messages", nil, nil)
	assertStatus(t, msgResp, http.StatusOK)
	var msgBody struct {
		Conversation models.Conversation `json:"conversation"`
		Messages     []models.Message    `json:"messages"`
	}
	decodeJSON(t, msgResp.Body.Bytes(), &msgBody)
	if msgBody.Conversation.Title != "GitHub setup" || len(msgBody.Messages) != 2 {
		t.Fatalf("unexpected messages body %+v", msgBody)
	}
	if msgBody.Messages[0].Role != models.RoleUser || msgBody.Messages[1].Content != "use ssh-keygen" {
		t.Fatalf("messages out of order: %+v", msgBody.Messages)
	}

	emptyResp := doJSONRequest(t, router, http.MethodGet, "/api/conversations/c/messages", nil, nil)
	assertStatus(t, emptyResp, http.StatusOK)
	var emptyBody map[string]json.RawMessage
	decodeJSON(t, emptyResp.Body.Bytes(), &emptyBody)
	if string(emptyBody["messages"]) != "[]" {
		t.Fatalf("expected empty message list, got %s", emptyBody["messages"])
	}
}

func TestConversationEndpointErrors(t *testing.T) {
	router, _, _ := newTestServer(t)

	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/conversations/missing", nil, nil), http.StatusNotFound)
	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/conversations/missing/messages", nil, nil), http.StatusNotFound)
	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/conversations?project_id=abc", nil, nil), http.StatusBadRequest)
	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/conversations?limit=-1", nil, nil), http.StatusBadRequest)

	statsResp := doJSONRequest(t, router, http.MethodGet, "/api/stats", nil, nil)
	assertStatus(t, statsResp, http.StatusOK)
	var body map[string]json.RawMessage
	decodeJSON(t, statsResp.Body.Bytes(), &body)
	if string(body["top_projects"]) != "[]" || string(body["assigned_percentage"]) != "0" {
		t.Fatalf("unexpected empty stats %s", statsResp.Body.String())
	}
}

func TestImportRunEndpoints(t *testing.T) {
	router, _, handler := newTestServer(t)

	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/import/last-run", nil, nil), http.StatusNotFound)

	runs := &memoryRunLog{}
	handler.runs = runs
	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/import/last-run", nil, nil), http.StatusNotFound)

	runs.results = []importer.Result{
		{RunID: "second", Archive: "b.zip", FinishedAt: time.Unix(200, 0).UTC(), Stats: importer.RunStats{Processed: 4}},
		{RunID: "first", Archive: "a.zip", FinishedAt: time.Unix(100, 0).UTC()},
	}
	lastResp := doJSONRequest(t, router, http.MethodGet, "/api/import/last-run", nil, nil)
	assertStatus(t, lastResp, http.StatusOK)
	var last importer.Result
	decodeJSON(t, lastResp.Body.Bytes(), &last)
	if last.RunID != "second" || last.Stats.Processed != 4 {
		t.Fatalf("unexpected last run %+v", last)
	}

	recentResp := doJSONRequest(t, router, http.MethodGet, "/api/import/runs?limit=1", nil, nil)
	assertStatus(t, recentResp, http.StatusOK)
	var recent struct {
		Runs []importer.Result `json:"runs"`
	}
	decodeJSON(t, recentResp.Body.Bytes(), &recent)
	if len(recent.Runs) != 1 || recent.Runs[0].RunID != "second" {
		t.Fatalf("unexpected recent runs %+v", recent.Runs)
	}
}

type memoryRunLog struct {
	results []importer.Result
}

func (m *memoryRunLog) Last(context.Context) (*importer.Result, error) {
	if len(m.results) == 0 {
		return nil, runlog.ErrNoRun
	}
	res := m.results[0]
	return &res, nil
}

func (m *memoryRunLog) Recent(_ context.Context, n int) ([]importer.Result, error) {
	if n > len(m.results) {
		n = len(m.results)
	}
	return m.results[:n], nil
}

func seedArchive(t *testing.T, svc *archive.Service) {
	t.Helper()
	ctx := context.Background()
	gizmo := "g-vscode"
	if _, err := svc.CreateProject(ctx, &models.Project{Name: "VS Code Github", ChatGPTProjectID: &gizmo}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := svc.CreateProject(ctx, &models.Project{Name: "Recetas"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	one := int64(1)
	created := 1700000000.0
	for _, c := range []models.Conversation{
		{ID: "a", Title: "GitHub setup", CreateTime: &created, ProjectID: &one},
		{ID: "b", Title: "Random chat", ProjectID: &one},
		{ID: "c", Title: "Loose"},
	} {
		c := c
		if err := svc.InsertConversation(ctx, &c); err != nil {
			t.Fatalf("insert conversation: %v", err)
		}
	}
	t1 := time.Unix(1700000001, 0).UTC()
	t2 := time.Unix(1700000002, 0).UTC()
	for _, m := range []models.Message{
		{ID: "m2", ConversationID: "a", ContentType: "text", Content: "use ssh-keygen", Role: models.RoleAssistant, CreateTime: &t2, Status: models.DefaultStatus, Weight: 1, Recipient: models.DefaultRecipient},
		{ID: "m1", ConversationID: "a", ContentType: "text", Content: "how do I set up ssh keys", Role: models.RoleUser, CreateTime: &t1, Status: models.DefaultStatus, Weight: 1, Recipient: models.DefaultRecipient},
	} {
		m := m
		if err := svc.InsertMessage(ctx, &m); err != nil {
			t.Fatalf("insert message: %v", err)
		}
	}
}

func newTestServer(t *testing.T) (*gin.Engine, *archive.Service, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{"sqlite3": {DSN: ":memory:"}}}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3", storage.DefaultColumns); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	svc := archive.NewService(db, storage.DefaultColumns)
	handler := NewHandler(svc, nil)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, svc, handler
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}
