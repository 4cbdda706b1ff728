package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/docpal/docpal/internal/assistant"
	"github.com/docpal/docpal/internal/llm/openrouter"
)

// newChatID mints a chat identifier.
func newChatID() string {
	return uuid.NewString()
}

// handleCompletion validates a completion request and proxies it to
// OpenRouter with the server-held API key, streaming the SSE body back
// to the caller unmodified.
func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body too large or unreadable")
		return
	}

	var request openrouter.ChatRequest
	if err := json.Unmarshal(body, &request); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if request.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	if len(request.Messages) == 0 || len(request.Messages) > maxMessageCount {
		writeError(w, http.StatusBadRequest, "messages must contain between 1 and 200 entries")
		return
	}
	for i, message := range request.Messages {
		if !validRoles[message.Role] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid role %q at message %d", message.Role, i))
			return
		}
	}

	// The system message must carry the guard phrases verbatim. This is a
	// crude but deliberate content-level contract: requests assembled by
	// anything other than the orchestrator are rejected here.
	if !systemMessageGuarded(request.Messages) {
		writeError(w, http.StatusBadRequest, "system message is missing required scope directives")
		return
	}

	upstream, err := http.NewRequestWithContext(
		r.Context(),
		http.MethodPost,
		strings.TrimRight(s.UpstreamBaseURL, "/")+"/chat/completions",
		bytes.NewReader(body),
	)
	if err != nil {
		s.Logger.Error().Err(err).Msg("build upstream request")
		writeError(w, http.StatusInternalServerError, "failed to reach completion provider")
		return
	}
	upstream.Header.Set("Content-Type", "application/json")
	upstream.Header.Set("Authorization", "Bearer "+s.UpstreamAPIKey)

	response, err := s.proxyClient.Do(upstream)
	if err != nil {
		s.Logger.Error().Err(err).Msg("upstream completion request failed")
		writeError(w, http.StatusBadGateway, "completion provider unreachable")
		return
	}
	defer drainBody(response.Body)

	// Pass upstream status and content type through so clients see the
	// same SSE framing (or error JSON) the provider produced.
	if contentType := response.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(response.StatusCode)

	flusher, canFlush := w.(http.Flusher)
	buffer := make([]byte, 4096)
	for {
		n, readErr := response.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := w.Write(buffer[:n]); writeErr != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if readErr != nil {
			return
		}
	}
}

// systemMessageGuarded reports whether the first system message carries
// every required guard phrase.
func systemMessageGuarded(messages []openrouter.Message) bool {
	for _, message := range messages {
		if message.Role != "system" {
			continue
		}
		return assistant.ContainsGuardPhrases(openrouter.TextContent(message.Content))
	}
	return false
}
