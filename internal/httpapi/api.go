// ABOUTME: Operational HTTP API: health, session inspection, task intake
// ABOUTME: chi-routed JSON handlers over the store; no auth, bind it privately

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/loomhq/loom/internal/store"
)

// API serves the operational endpoints.
type API struct {
	store  store.Store
	logger *slog.Logger
}

// New creates the API over the given store.
func New(st store.Store, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{store: st, logger: logger.With("component", "httpapi")}
}

// Router builds the chi router with all routes mounted.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", a.handleListSessions)
		r.Delete("/sessions/{conversationID}", a.handleDeleteSession)

		r.Post("/tasks", a.handleCreateTask)
		r.Get("/cards", a.handleListCards)
		r.Post("/cards/{cardID}/move", a.handleMoveCard)

		r.Get("/corrections", a.handleListCorrections)
		r.Post("/corrections", a.handleCreateCorrection)
		r.Delete("/corrections/{correctionID}", a.handleDeleteCorrection)

		r.Post("/reminders", a.handleCreateReminder)
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.store.ListSessions(r.Context())
	if err != nil {
		a.fail(w, "listing sessions", err)
		return
	}

	type sessionView struct {
		ConversationID      string    `json:"conversation_id"`
		AgentSessionID      string    `json:"agent_session_id,omitempty"`
		WorkingContext      string    `json:"working_context,omitempty"`
		LastActiveAt        time.Time `json:"last_active_at"`
		ContextUsagePercent float64   `json:"context_usage_percent"`
	}
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			ConversationID:      s.ConversationID,
			AgentSessionID:      s.AgentSessionID,
			WorkingContext:      s.WorkingContext,
			LastActiveAt:        s.LastActiveAt,
			ContextUsagePercent: s.ContextUsagePercent,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// handleDeleteSession resets a conversation out-of-band. Deleting an absent
// session succeeds: the endpoint is idempotent like the store beneath it.
func (a *API) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if err := a.store.DeleteSession(r.Context(), conversationID); err != nil {
		a.fail(w, "deleting session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	now := time.Now()
	card := &store.Card{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Body:      req.Body,
		Column:    "backlog",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateCard(r.Context(), card); err != nil {
		a.fail(w, "creating card", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": card.ID})
}

func (a *API) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := a.store.ListCards(r.Context(), r.URL.Query().Get("column"))
	if err != nil {
		a.fail(w, "listing cards", err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (a *API) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Column   string `json:"column"`
		Position int    `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := a.store.MoveCard(r.Context(), chi.URLParam(r, "cardID"), req.Column, req.Position)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such card")
		return
	}
	if err != nil {
		a.fail(w, "moving card", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	corrections, err := a.store.ListCorrections(r.Context())
	if err != nil {
		a.fail(w, "listing corrections", err)
		return
	}
	writeJSON(w, http.StatusOK, corrections)
}

func (a *API) handleCreateCorrection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pattern  string `json:"pattern"`
		Guidance string `json:"guidance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Pattern == "" || req.Guidance == "" {
		writeError(w, http.StatusBadRequest, "pattern and guidance are required")
		return
	}

	c := &store.Correction{
		ID:        uuid.New().String(),
		Pattern:   req.Pattern,
		Guidance:  req.Guidance,
		CreatedAt: time.Now(),
	}
	if err := a.store.CreateCorrection(r.Context(), c); err != nil {
		a.fail(w, "creating correction", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": c.ID})
}

func (a *API) handleDeleteCorrection(w http.ResponseWriter, r *http.Request) {
	err := a.store.DeleteCorrection(r.Context(), chi.URLParam(r, "correctionID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such correction")
		return
	}
	if err != nil {
		a.fail(w, "deleting correction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string    `json:"conversation_id"`
		Text           string    `json:"text"`
		DueAt          time.Time `json:"due_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ConversationID == "" || req.Text == "" || req.DueAt.IsZero() {
		writeError(w, http.StatusBadRequest, "conversation_id, text, and due_at are required")
		return
	}

	rem := &store.Reminder{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		Text:           req.Text,
		DueAt:          req.DueAt,
	}
	if err := a.store.CreateReminder(r.Context(), rem); err != nil {
		a.fail(w, "creating reminder", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": rem.ID})
}

func (a *API) fail(w http.ResponseWriter, action string, err error) {
	a.logger.Error(action+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
