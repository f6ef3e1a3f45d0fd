package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filotex/ordermind/pkg/agent"
	"github.com/filotex/ordermind/pkg/auth"
	"github.com/filotex/ordermind/pkg/chat"
	"github.com/filotex/ordermind/pkg/database"
	"github.com/filotex/ordermind/pkg/draft"
	"github.com/filotex/ordermind/pkg/erp"
	"github.com/filotex/ordermind/pkg/planner"
)

type cannedPlanner struct {
	responses []*planner.Response
}

func (c *cannedPlanner) Chat(ctx context.Context, msgs []planner.Message, tools []planner.ToolDefinition, _ *planner.SamplingOptions) (*planner.Response, error) {
	if len(c.responses) == 0 {
		return &planner.Response{Content: "ok"}, nil
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	return enc(map[string]any{"alg": "none", "typ": "JWT"}) + "." + enc(claims) + "."
}

type fixture struct {
	handler http.Handler
	planner *cannedPlanner
	erpSrv  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	token := unsignedJWT(t, map[string]any{
		"sub": "u-1", "username": "mario", "full_name": "Mario Rossi",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	erpMux := http.NewServeMux()
	erpMux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": token})
	})
	erpMux.HandleFunc("/iam/warehouse", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]erp.Warehouse{{ID: "w1", Name: "Main"}})
	})
	erpSrv := httptest.NewServer(erpMux)
	t.Cleanup(erpSrv.Close)

	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	chats, err := chat.NewStore(db)
	require.NoError(t, err)
	drafts, err := draft.NewStore(db)
	require.NoError(t, err)
	audit, err := agent.NewAudit(db)
	require.NoError(t, err)
	registry, err := agent.NewRegistry()
	require.NoError(t, err)

	erpClient := erp.NewClient(erpSrv.URL, "svc-token", 5*time.Second, slog.Default())
	toolset := agent.NewToolset(erpClient, drafts, slog.Default())
	canned := &cannedPlanner{}
	runner := agent.NewRunner(registry, toolset, chats, drafts, audit,
		func(model string) planner.Client { return canned }, slog.Default())

	srv := NewServer(registry, runner, chats, drafts, erpClient,
		auth.NewSessionStore(), auth.NewRateLimiter(100, 100), slog.Default())
	return &fixture{handler: srv.Handler(), planner: canned, erpSrv: erpSrv}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestLoginSetsSessionCookie(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/login", map[string]string{"username": "mario", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "mario", resp.Username)
	assert.Equal(t, "Mario Rossi", resp.FullName)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginBadCredentials(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/login", map[string]string{"username": "mario", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), problem.TraceID)
}

func TestERPStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/erp/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reachable":true,"authorized":true}`, rec.Body.String())
}

func TestListAgents(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var agents []agent.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Len(t, agents, 2)
	assert.Equal(t, "sales-order", agents[0].ID)
}

func TestConversationLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/conversations", map[string]string{"agent_id": "sales-order", "title": "Bruno order"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created conversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Len(t, created.Messages, 1)
	assert.Equal(t, chat.RoleAssistant, created.Messages[0].Role)

	rec = f.do(t, "GET", "/api/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*chat.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = f.do(t, "PATCH", "/api/conversations/"+created.ID, map[string]string{"title": "Renamed"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "GET", "/api/conversations/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got conversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Renamed", got.Title)

	rec = f.do(t, "DELETE", "/api/conversations/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "GET", "/api/conversations/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateConversationUnknownAgent(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/conversations", map[string]string{"agent_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageStreamsEvents(t *testing.T) {
	f := newFixture(t)
	f.planner.responses = []*planner.Response{{Content: "Which customer is it for?"}}

	rec := f.do(t, "POST", "/api/conversations", map[string]string{"agent_id": "sales-order"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created conversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.do(t, "POST", "/api/conversations/"+created.ID+"/messages", map[string]string{"content": "new order"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var types []string
	var content string
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e agent.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
		types = append(types, e.Type)
		if e.Type == agent.EventContent {
			content += e.Content
		}
	}
	assert.Equal(t, agent.EventDone, types[len(types)-1])
	assert.Equal(t, "Which customer is it for?", content)
}

func TestSendMessageMissingConversation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/conversations/missing/messages", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraftEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/conversations", map[string]string{"agent_id": "sales-order"})
	var created conversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.do(t, "GET", "/api/conversations/"+created.ID+"/draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ready   bool     `json:"ready"`
		Missing []string `json:"missing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Contains(t, body.Missing, "customer")
}
