// Package server exposes the chat persistence API and the completion
// proxy. The streaming orchestration itself runs client-side; the server
// stores chats and forwards completion requests to OpenRouter with the
// server-held credential.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/docpal/docpal/internal/assistant"
	"github.com/docpal/docpal/internal/chat"
	"github.com/docpal/docpal/internal/store"
)

const (
	// maxRequestBody caps request bodies to keep parsing bounded.
	maxRequestBody = 1 << 20
	// maxMessageCount caps the number of messages per request.
	maxMessageCount = 200
	// adminKeyHeader carries the admin credential for list/delete.
	adminKeyHeader = "X-Admin-Key"
)

// validRoles whitelists message roles accepted by the completion proxy.
var validRoles = map[string]bool{
	"system":    true,
	"user":      true,
	"assistant": true,
	"tool":      true,
}

// Server wires the HTTP API together.
type Server struct {
	// Store persists chats.
	Store *store.Store
	// Assistants maps app ids to configured assistant profiles.
	Assistants map[string]*assistant.Assistant
	// UpstreamBaseURL is the OpenRouter API root to proxy to.
	UpstreamBaseURL string
	// UpstreamAPIKey is the server-held OpenRouter credential.
	UpstreamAPIKey string
	// AdminKey authorizes list and delete; empty disables them.
	AdminKey string
	// RatePerMinute is the per-IP request budget.
	RatePerMinute int
	// Logger reports request handling.
	Logger zerolog.Logger

	// proxyClient forwards completion requests. No overall timeout:
	// streamed responses are bounded by the upstream connection lifecycle.
	proxyClient *http.Client
	limiter     *ipRateLimiter
}

// Handler builds the routed, middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	if s.proxyClient == nil {
		s.proxyClient = &http.Client{}
	}
	if s.limiter == nil {
		s.limiter = newIPRateLimiter(s.RatePerMinute)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/chats", s.handleCreateChat)
	mux.HandleFunc("GET /api/chats", s.handleListChats)
	mux.HandleFunc("GET /api/chats/{id}", s.handleGetChat)
	mux.HandleFunc("PUT /api/chats/{id}", s.handleUpdateChat)
	mux.HandleFunc("DELETE /api/chats/{id}", s.handleDeleteChat)
	mux.HandleFunc("POST /api/completion", s.handleCompletion)

	handler := http.Handler(mux)
	handler = s.rateLimit(handler)
	handler = corsMiddleware(handler)
	handler = s.logRequests(handler)
	handler = s.recoverPanics(handler)
	return handler
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chatPayload is the request body for creating or updating a chat.
type chatPayload struct {
	// AppID identifies the assistant configuration.
	AppID string `json:"app_id"`
	// Model is the selected completion model.
	Model string `json:"model"`
	// Messages is the full message list.
	Messages []chat.Message `json:"messages"`
	// Usage carries accumulated usage totals.
	Usage *struct {
		PromptTokens     int     `json:"prompt_tokens"`
		CompletionTokens int     `json:"completion_tokens"`
		EstimatedCost    float64 `json:"estimated_cost"`
	} `json:"usage"`
}

// handleCreateChat stores a new chat.
func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var payload chatPayload
	if !s.readJSON(w, r, &payload) {
		return
	}
	profile, ok := s.Assistants[payload.AppID]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown app_id %q", payload.AppID))
		return
	}
	if len(payload.Messages) == 0 || len(payload.Messages) > maxMessageCount {
		writeError(w, http.StatusBadRequest, "messages must contain between 1 and 200 entries")
		return
	}

	model := payload.Model
	if model == "" {
		model = profile.Model
	}
	now := time.Now().UTC()
	conversation := &chat.Chat{
		ID:        newChatID(),
		AppID:     payload.AppID,
		Model:     model,
		Messages:  payload.Messages,
		CreatedAt: now,
		UpdatedAt: now,
	}
	payload.applyUsage(conversation)
	if err := conversation.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.Create(r.Context(), conversation); err != nil {
		s.Logger.Error().Err(err).Msg("create chat")
		writeError(w, http.StatusInternalServerError, "failed to store chat")
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}

// handleGetChat loads one chat.
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	conversation, err := s.Store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		s.Logger.Error().Err(err).Msg("get chat")
		writeError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

// handleUpdateChat replaces a chat's messages and usage after a round.
func (s *Server) handleUpdateChat(w http.ResponseWriter, r *http.Request) {
	conversation, err := s.Store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		s.Logger.Error().Err(err).Msg("load chat for update")
		writeError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}

	var payload chatPayload
	if !s.readJSON(w, r, &payload) {
		return
	}
	if len(payload.Messages) == 0 || len(payload.Messages) > maxMessageCount {
		writeError(w, http.StatusBadRequest, "messages must contain between 1 and 200 entries")
		return
	}
	if payload.Model != "" {
		conversation.Model = payload.Model
	}
	conversation.Messages = payload.Messages
	conversation.UpdatedAt = time.Now().UTC()
	payload.applyUsage(conversation)
	if err := conversation.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.Update(r.Context(), conversation); err != nil {
		s.Logger.Error().Err(err).Msg("update chat")
		writeError(w, http.StatusInternalServerError, "failed to store chat")
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

// handleListChats returns chats for an app. Admin only.
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(w, r) {
		return
	}
	appID := r.URL.Query().Get("app_id")
	if appID == "" {
		writeError(w, http.StatusBadRequest, "app_id query parameter is required")
		return
	}
	chats, err := s.Store.List(r.Context(), appID, 100)
	if err != nil {
		s.Logger.Error().Err(err).Msg("list chats")
		writeError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	if chats == nil {
		chats = []*chat.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

// handleDeleteChat removes a chat. Admin only.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(w, r) {
		return
	}
	err := s.Store.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		s.Logger.Error().Err(err).Msg("delete chat")
		writeError(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyUsage copies optional usage totals onto the chat.
func (p *chatPayload) applyUsage(conversation *chat.Chat) {
	if p.Usage == nil {
		return
	}
	conversation.Usage.PromptTokens = p.Usage.PromptTokens
	conversation.Usage.CompletionTokens = p.Usage.CompletionTokens
	conversation.Usage.EstimatedCost = p.Usage.EstimatedCost
}

// readJSON decodes a size-capped JSON body, reporting a 400 on failure.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// drainBody fully consumes a response body so connections can be reused.
func drainBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
