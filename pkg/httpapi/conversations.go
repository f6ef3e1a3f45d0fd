package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/filotex/ordermind/pkg/agent"
	"github.com/filotex/ordermind/pkg/chat"
)

type createConversationRequest struct {
	AgentID string `json:"agent_id"`
	Title   string `json:"title"`
}

type conversationResponse struct {
	*chat.Conversation
	Messages []*chat.Message `json:"messages,omitempty"`
}

// handleCreateConversation starts a conversation with the chosen agent and
// seeds it with the agent's welcome message.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}
	if req.AgentID == "" {
		req.AgentID = "sales-order"
	}
	agentDef, ok := s.registry.Agent(req.AgentID)
	if !ok {
		WriteBadRequest(w, "unknown agent "+req.AgentID)
		return
	}
	if req.Title == "" {
		req.Title = "New conversation"
	}

	conv, err := s.chats.CreateConversation(r.Context(), req.Title, agentDef.ID)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	welcome, err := s.chats.AppendMessage(r.Context(), conv.ID, chat.RoleAssistant, agentDef.WelcomeMessage)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversationResponse{
		Conversation: conv,
		Messages:     []*chat.Message{welcome},
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.chats.ListConversations(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := s.chats.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			WriteNotFound(w, "no conversation "+id)
			return
		}
		WriteInternal(w, err)
		return
	}
	msgs, err := s.chats.Messages(r.Context(), id)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{Conversation: conv, Messages: msgs})
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		WriteBadRequest(w, "title is required")
		return
	}
	id := r.PathValue("id")
	if err := s.chats.RenameConversation(r.Context(), id, req.Title); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			WriteNotFound(w, "no conversation "+id)
			return
		}
		WriteInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteConversation removes the conversation, its messages and its
// order draft together.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.chats.DeleteConversation(r.Context(), id); err != nil {
		WriteInternal(w, err)
		return
	}
	if err := s.drafts.Clear(r.Context(), id); err != nil {
		WriteInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := s.drafts.GetOrCreate(r.Context(), id)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	ready, missing := d.Readiness()
	writeJSON(w, http.StatusOK, map[string]any{
		"draft":   d,
		"total":   d.Total(),
		"ready":   ready,
		"missing": missing,
		"summary": d.Summary(),
		"context": d.ContextSummary(),
	})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// handleSendMessage runs one turn and streams its events. The transcript is
// durable before the final done event, so a dropped stream loses nothing.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		WriteBadRequest(w, "content is required")
		return
	}
	id := r.PathValue("id")
	if _, err := s.chats.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			WriteNotFound(w, "no conversation "+id)
			return
		}
		WriteInternal(w, err)
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	if err := s.runner.RunTurn(r.Context(), id, req.Content, func(e agent.Event) {
		stream.send(e)
	}); err != nil {
		// The runner guarantees a terminal error event on every failure;
		// headers are committed, so only log here.
		s.logger.Error("turn.failed", "conversation_id", id, "error", err)
	}
}
