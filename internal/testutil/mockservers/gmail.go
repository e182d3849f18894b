// Package mockservers provides mock servers for external mail APIs.
package mockservers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// GmailMockServer provides a mock Gmail API server for testing.
type GmailMockServer struct {
	Server   *httptest.Server
	Handlers map[string]http.HandlerFunc

	mu   sync.Mutex
	sent []string
}

// NewGmailMockServer creates a new mock Gmail API server.
func NewGmailMockServer(t *testing.T) *GmailMockServer {
	t.Helper()

	mock := &GmailMockServer{
		Handlers: make(map[string]http.HandlerFunc),
	}

	mock.SetupDefaults()

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		mock.mu.Lock()
		handlers := make(map[string]http.HandlerFunc, len(mock.Handlers))
		for k, v := range mock.Handlers {
			handlers[k] = v
		}
		mock.mu.Unlock()

		for pattern, handler := range handlers {
			if strings.Contains(r.URL.Path, pattern) {
				handler(w, r)
				return
			}
		}

		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":    404,
				"message": "Not Found",
			},
		})
	}))

	t.Cleanup(func() {
		mock.Server.Close()
	})

	return mock
}

// SetupDefaults sets up default response handlers.
func (m *GmailMockServer) SetupDefaults() {
	m.Handlers["/users/me/messages/send"] = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Raw string `json:"raw"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		raw, err := base64.URLEncoding.DecodeString(body.Raw)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		m.sent = append(m.sent, string(raw))
		m.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "msg-new-001",
			"threadId": "thread-new-001",
			"labelIds": []string{"SENT"},
		})
	}
}

// URL returns the mock server URL.
func (m *GmailMockServer) URL() string {
	return m.Server.URL
}

// Sent returns the decoded raw messages received so far.
func (m *GmailMockServer) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// SetErrorResponse sets an error response for a path pattern.
func (m *GmailMockServer) SetErrorResponse(pattern string, code int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[pattern] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":    code,
				"message": message,
			},
		})
	}
}
