package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpal/docpal/internal/assistant"
	"github.com/docpal/docpal/internal/chat"
	"github.com/docpal/docpal/internal/store"
)

const testAdminKey = "admin-secret"

// newTestServer builds a server over a temp database, pointed at the
// given upstream URL.
func newTestServer(t *testing.T, upstreamURL string) (*Server, http.Handler) {
	t.Helper()
	chatStore, err := store.Open(filepath.Join(t.TempDir(), "chats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { chatStore.Close() })

	s := &Server{
		Store: chatStore,
		Assistants: map[string]*assistant.Assistant{
			"support-bot": {
				ID:     "support-bot",
				Name:   "Support Bot",
				Model:  "openai/gpt-4o-mini",
				Prompt: "You answer questions about the product documentation.",
				Tools:  assistant.NewRegistry(nil),
			},
		},
		UpstreamBaseURL: upstreamURL,
		UpstreamAPIKey:  "upstream-key",
		AdminKey:        testAdminKey,
		RatePerMinute:   6000,
		Logger:          zerolog.Nop(),
	}
	return s, s.Handler()
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, payload any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	request := httptest.NewRequest(method, path, body)
	request.RemoteAddr = "203.0.113.7:1234"
	for key, values := range header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func chatBody(messages []chat.Message) map[string]any {
	return map[string]any{
		"app_id":   "support-bot",
		"model":    "openai/gpt-4o-mini",
		"messages": messages,
	}
}

func TestHealth(t *testing.T) {
	_, handler := newTestServer(t, "http://unused.invalid")
	recorder := doJSON(t, handler, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestChatCRUD(t *testing.T) {
	_, handler := newTestServer(t, "http://unused.invalid")

	// Create.
	created := doJSON(t, handler, http.MethodPost, "/api/chats", chatBody([]chat.Message{
		chat.TextMessage(chat.RoleUser, "How do I install?"),
	}), nil)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	var conversation chat.Chat
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &conversation))
	require.NotEmpty(t, conversation.ID)

	// Get.
	fetched := doJSON(t, handler, http.MethodGet, "/api/chats/"+conversation.ID, nil, nil)
	assert.Equal(t, http.StatusOK, fetched.Code)

	// Update with a grown history and usage totals.
	update := chatBody([]chat.Message{
		chat.TextMessage(chat.RoleUser, "How do I install?"),
		chat.TextMessage(chat.RoleAssistant, "Run the installer."),
	})
	update["usage"] = map[string]any{"prompt_tokens": 100, "completion_tokens": 20, "estimated_cost": 0.001}
	updated := doJSON(t, handler, http.MethodPut, "/api/chats/"+conversation.ID, update, nil)
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())

	var afterUpdate chat.Chat
	require.NoError(t, json.Unmarshal(updated.Body.Bytes(), &afterUpdate))
	assert.Len(t, afterUpdate.Messages, 2)
	assert.Equal(t, 100, afterUpdate.Usage.PromptTokens)

	// List requires the admin key.
	adminHeader := http.Header{adminKeyHeader: []string{testAdminKey}}
	listed := doJSON(t, handler, http.MethodGet, "/api/chats?app_id=support-bot", nil, adminHeader)
	require.Equal(t, http.StatusOK, listed.Code)
	var chats []chat.Chat
	require.NoError(t, json.Unmarshal(listed.Body.Bytes(), &chats))
	assert.Len(t, chats, 1)

	// Delete, then the chat is gone.
	deleted := doJSON(t, handler, http.MethodDelete, "/api/chats/"+conversation.ID, nil, adminHeader)
	assert.Equal(t, http.StatusNoContent, deleted.Code)
	missing := doJSON(t, handler, http.MethodGet, "/api/chats/"+conversation.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestCreateChatRejectsInvalidHistory(t *testing.T) {
	_, handler := newTestServer(t, "http://unused.invalid")

	// A tool message with no matching assistant call violates the
	// history invariant and must be rejected before storage.
	recorder := doJSON(t, handler, http.MethodPost, "/api/chats", chatBody([]chat.Message{
		chat.TextMessage(chat.RoleUser, "hi"),
		chat.ToolMessage("call_orphan", "fetch_documentation", "result"),
	}), nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "call_orphan")
}

func TestCreateChatRejectsUnknownApp(t *testing.T) {
	_, handler := newTestServer(t, "http://unused.invalid")

	body := chatBody([]chat.Message{chat.TextMessage(chat.RoleUser, "hi")})
	body["app_id"] = "nonexistent"
	recorder := doJSON(t, handler, http.MethodPost, "/api/chats", body, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "nonexistent")
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	_, handler := newTestServer(t, "http://unused.invalid")

	noKey := doJSON(t, handler, http.MethodGet, "/api/chats?app_id=support-bot", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, noKey.Code)

	wrongKey := doJSON(t, handler, http.MethodGet, "/api/chats?app_id=support-bot", nil,
		http.Header{adminKeyHeader: []string{"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, wrongKey.Code)
}

func TestAdminEndpointsDisabledWithoutKey(t *testing.T) {
	s, _ := newTestServer(t, "http://unused.invalid")
	s.AdminKey = ""
	handler := s.Handler()

	recorder := doJSON(t, handler, http.MethodGet, "/api/chats?app_id=support-bot", nil,
		http.Header{adminKeyHeader: []string{"anything"}})
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestCompletionRequiresGuardPhrases(t *testing.T) {
	_, handler := newTestServer(t, "http://unused.invalid")

	body := map[string]any{
		"model": "openai/gpt-4o-mini",
		"messages": []map[string]any{
			{"role": "system", "content": "You are a general-purpose assistant."},
			{"role": "user", "content": "hi"},
		},
	}
	recorder := doJSON(t, handler, http.MethodPost, "/api/completion", body, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "scope directives")
}

func TestCompletionRejectsInvalidRole(t *testing.T) {
	_, handler := newTestServer(t, "http://unused.invalid")

	body := map[string]any{
		"model": "openai/gpt-4o-mini",
		"messages": []map[string]any{
			{"role": "wizard", "content": "hi"},
		},
	}
	recorder := doJSON(t, handler, http.MethodPost, "/api/completion", body, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "wizard")
}

func TestCompletionProxiesStream(t *testing.T) {
	var sawAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer upstream.Close()

	_, handler := newTestServer(t, upstream.URL)

	guarded := "You answer questions.\n" +
		assistant.GuardScope + "\n" + assistant.GuardDecline
	body := map[string]any{
		"model": "openai/gpt-4o-mini",
		"messages": []map[string]any{
			{"role": "system", "content": guarded},
			{"role": "user", "content": "hi"},
		},
		"stream": true,
	}
	recorder := doJSON(t, handler, http.MethodPost, "/api/completion", body, nil)

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "Bearer upstream-key", sawAuth, "server credential injected")
	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	assert.Contains(t, recorder.Body.String(), "data: [DONE]")
}

func TestCompletionPassesUpstreamErrorThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad model"}}`, http.StatusBadRequest)
	}))
	defer upstream.Close()

	_, handler := newTestServer(t, upstream.URL)

	guarded := assistant.GuardScope + "\n" + assistant.GuardDecline
	body := map[string]any{
		"model": "bad/model",
		"messages": []map[string]any{
			{"role": "system", "content": guarded},
			{"role": "user", "content": "hi"},
		},
	}
	recorder := doJSON(t, handler, http.MethodPost, "/api/completion", body, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "bad model")
}

func TestCORSPreflight(t *testing.T) {
	_, handler := newTestServer(t, "http://unused.invalid")

	request := httptest.NewRequest(http.MethodOptions, "/api/chats", nil)
	request.RemoteAddr = "203.0.113.7:1234"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Headers"), adminKeyHeader)
}

func TestRateLimitRejectsBursts(t *testing.T) {
	s, _ := newTestServer(t, "http://unused.invalid")
	s.RatePerMinute = 1 // burst floor of 5 applies
	s.limiter = nil
	handler := s.Handler()

	var tooMany bool
	for i := 0; i < 10; i++ {
		recorder := doJSON(t, handler, http.MethodGet, "/health", nil, nil)
		if recorder.Code == http.StatusTooManyRequests {
			tooMany = true
			break
		}
	}
	assert.True(t, tooMany, "burst beyond the bucket must be rejected")
}

func TestRecoverPanics(t *testing.T) {
	s, _ := newTestServer(t, "http://unused.invalid")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})
	handler := s.recoverPanics(mux)

	request := httptest.NewRequest(http.MethodGet, "/boom", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}
