package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/filotex/ordermind/pkg/agent"
	"github.com/filotex/ordermind/pkg/auth"
	"github.com/filotex/ordermind/pkg/chat"
	"github.com/filotex/ordermind/pkg/draft"
	"github.com/filotex/ordermind/pkg/erp"
)

// Server wires the HTTP surface together. All state lives in the injected
// stores; the server itself is stateless apart from the session table.
type Server struct {
	registry *agent.Registry
	runner   *agent.Runner
	chats    *chat.Store
	drafts   *draft.Store
	erp      *erp.Client
	sessions *auth.SessionStore
	limiter  *auth.RateLimiter
	logger   *slog.Logger
}

func NewServer(registry *agent.Registry, runner *agent.Runner, chats *chat.Store, drafts *draft.Store, erpClient *erp.Client, sessions *auth.SessionStore, limiter *auth.RateLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: registry,
		runner:   runner,
		chats:    chats,
		drafts:   drafts,
		erp:      erpClient,
		sessions: sessions,
		limiter:  limiter,
		logger:   logger,
	}
}

// Handler builds the full route table with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/erp/status", s.handleERPStatus)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)

	mux.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", s.handleRenameConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)
	mux.HandleFunc("GET /api/conversations/{id}/draft", s.handleGetDraft)
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.handleSendMessage)

	var h http.Handler = mux
	h = auth.SessionTokens(s.sessions)(h)
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	h = auth.RequestID(h)
	return h
}
