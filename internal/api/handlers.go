package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/logging"
)

// voiceRequest is the JSON body of /voice and of JSON WebSocket frames
type voiceRequest struct {
	Command   string `json:"command"`
	Details   string `json:"details"`
	Mode      string `json:"mode"`
	Gmail     string `json:"gmail"`
	GmailPass string `json:"gmail_pass"`
}

func (v voiceRequest) toRequest() core.Request {
	return core.Request{
		Command: strings.ToLower(strings.TrimSpace(v.Command)),
		Details: v.Details,
		Mode:    core.Mode(strings.TrimSpace(v.Mode)),
		Credentials: core.Credentials{
			Username: strings.TrimSpace(v.Gmail),
			Password: v.GmailPass,
		},
	}
}

// handleVoice accepts a JSON command and answers {"response": "..."}
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	var input voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp := s.intents.Handle(r.Context(), input.toRequest())
	s.respondJSON(w, http.StatusOK, map[string]string{"response": resp.Text})
}

// handleCommand accepts form fields and answers in plain text
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(r.PostForm.Get("command")) == "" {
		http.Error(w, "command is required", http.StatusBadRequest)
		return
	}

	input := voiceRequest{
		Command:   r.PostForm.Get("command"),
		Details:   r.PostForm.Get("details"),
		Mode:      r.PostForm.Get("mode"),
		Gmail:     r.PostForm.Get("gmail"),
		GmailPass: r.PostForm.Get("gmail_pass"),
	}
	resp := s.intents.Handle(r.Context(), input.toRequest())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(resp.Text))
}

func (s *Server) handleGetTasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.tasks.List(r.Context())
	if err != nil {
		logging.Error("list tasks: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	if list == nil {
		list = []core.Task{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks":      list,
		"delay_unit": s.tasks.Unit(),
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.memory.Entries(r.Context())
	if err != nil {
		logging.Error("load memory log: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load memory log")
		return
	}
	if entries == nil {
		entries = []core.MemoryEntry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
	})
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"mode":  s.state.Mode(),
		"known": core.KnownModes(),
	})
}

// handleSetMode accepts any non-empty name, like the mode command
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	mode := core.Mode(strings.ToLower(strings.TrimSpace(input.Mode)))
	if mode == "" {
		s.respondError(w, http.StatusBadRequest, "mode is required")
		return
	}

	prev := s.state.Set(mode)
	logging.WithFields(map[string]interface{}{
		"previous": string(prev),
		"mode":     string(mode),
	}).Info("mode changed via API")

	s.Broadcast("mode", map[string]string{"mode": string(mode), "previous": string(prev)})
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"mode":     mode,
		"previous": prev,
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	taskList, err := s.tasks.List(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	entries, err := s.memory.Entries(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load memory log")
		return
	}

	byPriority := make(map[string]int)
	for _, t := range taskList {
		byPriority[string(t.Priority)]++
	}

	stats := map[string]interface{}{
		"mode":              s.state.Mode(),
		"total_tasks":       len(taskList),
		"tasks_by_priority": byPriority,
		"memory_entries":    len(entries),
		"intents":           s.intents.Stats(),
		"ws_clients":        s.wsHub.ClientCount(),
		"uptime":            time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.sched != nil {
		stats["scheduler"] = s.sched.GetStats()
	}

	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
