package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mosesmc52/journal-bot/internal/models"
)

// defaultMessagesLimit caps GET /messages when no limit is given.
const defaultMessagesLimit = 50

// reminderRequest is the POST /reminders payload.
type reminderRequest struct {
	SessionID string `json:"session_id"`
	Hour      int    `json:"hour"`
	Minute    int    `json:"minute"`
	Timezone  string `json:"timezone,omitempty"`
}

// remindersHandler schedules a daily reminder (POST) or lists the persisted
// ones (GET).
func (s *Server) remindersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodPost:
		s.createReminder(w, r)
	case http.MethodGet:
		s.listReminders(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) createReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createReminder: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SessionID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("session_id is required"))
		return
	}

	if err := s.reminders.ScheduleDaily(r.Context(), req.SessionID, req.Hour, req.Minute, req.Timezone); err != nil {
		slog.Warn("Server.createReminder: scheduling failed", "error", err, "sessionID", req.SessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	slog.Info("Server.createReminder: reminder scheduled", "sessionID", req.SessionID, "hour", req.Hour, "minute", req.Minute)
	writeJSONResponse(w, http.StatusCreated, models.ScheduledWithMessage("Reminder scheduled"))
}

func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.ListReminderPrefs()
	if err != nil {
		slog.Error("Server.listReminders: store query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list reminders"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(prefs))
}

// reminderDeleteHandler cancels the reminder named by the path suffix.
func (s *Server) reminderDeleteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", http.MethodDelete)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := strings.TrimPrefix(r.URL.Path, "/reminders/")
	if sessionID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("session id is required"))
		return
	}

	existed, err := s.reminders.Cancel(r.Context(), sessionID)
	if err != nil {
		slog.Error("Server.reminderDeleteHandler: cancel failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to cancel reminder"))
		return
	}
	if !existed {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No reminder found for session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Reminder cancelled", nil))
}

// messagesHandler lists recent journal entries, newest first.
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := defaultMessagesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	msgs, err := s.store.RecentMessages(limit)
	if err != nil {
		slog.Error("Server.messagesHandler: store query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list messages"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(msgs))
}

// latestMessageHandler returns the newest journal entry.
func (s *Server) latestMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	msg, err := s.store.LatestMessage()
	if err != nil {
		slog.Error("Server.latestMessageHandler: store query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read latest message"))
		return
	}
	if msg == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No messages recorded yet"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(msg))
}

// statsHandler reports entry counts per category.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats := make(map[string]int, len(models.Categories()))
	for _, category := range models.Categories() {
		count, err := s.store.CountMessages(category, "")
		if err != nil {
			slog.Error("Server.statsHandler: count failed", "error", err, "category", category)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
			return
		}
		stats[string(category)] = count
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// jobsHandler lists the active scheduler jobs.
func (s *Server) jobsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.sched.ListJobs()))
}
