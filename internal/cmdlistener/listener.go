// ABOUTME: Websocket command listener for remote operational commands
// ABOUTME: Shared-token auth; status and reset executed against the store

package cmdlistener

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/loomhq/loom/internal/store"
)

// CommandFrame is one inbound command.
type CommandFrame struct {
	Command        string `json:"command"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// SessionStatus is the per-session slice of a status response.
type SessionStatus struct {
	ConversationID      string    `json:"conversation_id"`
	AgentSessionID      string    `json:"agent_session_id,omitempty"`
	ContextUsagePercent float64   `json:"context_usage_percent"`
	LastActiveAt        time.Time `json:"last_active_at"`
	PendingContinuation bool      `json:"pending_continuation"`
}

// ResponseFrame answers one CommandFrame.
type ResponseFrame struct {
	OK       bool            `json:"ok"`
	Error    string          `json:"error,omitempty"`
	Sessions []SessionStatus `json:"sessions,omitempty"`
}

// PendingReporter exposes continuation-pending membership for status frames.
type PendingReporter interface {
	Contains(conversationID string) bool
}

// Listener serves the command websocket.
type Listener struct {
	store   store.SessionStore
	pending PendingReporter
	token   string
	logger  *slog.Logger
}

// New creates a listener. The token must be non-empty; the constructor does
// not enforce it because config validation already does.
func New(sessions store.SessionStore, pending PendingReporter, token string, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		store:   sessions,
		pending: pending,
		token:   token,
		logger:  logger.With("component", "cmdlistener"),
	}
}

// ServeHTTP upgrades to a websocket and serves command frames until the
// client disconnects.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !l.authorized(r) {
		l.logger.Warn("unauthorized command connection", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		l.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "bye")

	l.logger.Info("command connection opened", "remote", r.RemoteAddr)
	l.serve(r.Context(), ws)
}

func (l *Listener) serve(ctx context.Context, ws *websocket.Conn) {
	for {
		var frame CommandFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				l.logger.Warn("command read failed", "error", err)
			}
			return
		}

		resp := l.execute(ctx, frame)
		if err := wsjson.Write(ctx, ws, resp); err != nil {
			l.logger.Warn("command response write failed", "error", err)
			return
		}
	}
}

// execute dispatches one command frame.
func (l *Listener) execute(ctx context.Context, frame CommandFrame) ResponseFrame {
	switch frame.Command {
	case "status":
		return l.status(ctx, frame.ConversationID)
	case "reset":
		return l.reset(ctx, frame.ConversationID)
	default:
		return ResponseFrame{Error: "unknown command: " + frame.Command}
	}
}

func (l *Listener) status(ctx context.Context, conversationID string) ResponseFrame {
	var sessions []*store.ConversationSession

	if conversationID != "" {
		sess, err := l.store.GetSession(ctx, conversationID)
		if errors.Is(err, store.ErrNotFound) {
			return ResponseFrame{Error: "no session for " + conversationID}
		}
		if err != nil {
			l.logger.Error("status lookup failed", "conversation", conversationID, "error", err)
			return ResponseFrame{Error: "internal error"}
		}
		sessions = []*store.ConversationSession{sess}
	} else {
		all, err := l.store.ListSessions(ctx)
		if err != nil {
			l.logger.Error("session listing failed", "error", err)
			return ResponseFrame{Error: "internal error"}
		}
		sessions = all
	}

	resp := ResponseFrame{OK: true, Sessions: make([]SessionStatus, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, SessionStatus{
			ConversationID:      s.ConversationID,
			AgentSessionID:      s.AgentSessionID,
			ContextUsagePercent: s.ContextUsagePercent,
			LastActiveAt:        s.LastActiveAt,
			PendingContinuation: l.pending != nil && l.pending.Contains(s.ConversationID),
		})
	}
	return resp
}

func (l *Listener) reset(ctx context.Context, conversationID string) ResponseFrame {
	if conversationID == "" {
		return ResponseFrame{Error: "reset requires conversation_id"}
	}
	if err := l.store.DeleteSession(ctx, conversationID); err != nil {
		l.logger.Error("remote reset failed", "conversation", conversationID, "error", err)
		return ResponseFrame{Error: "internal error"}
	}
	l.logger.Info("session reset remotely", "conversation", conversationID)
	return ResponseFrame{OK: true}
}

// authorized checks the shared token, accepted as a bearer header or a
// query parameter for clients that cannot set headers.
func (l *Listener) authorized(r *http.Request) bool {
	if l.token == "" {
		return false
	}

	presented := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		presented = strings.TrimPrefix(auth, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(l.token)) == 1
}
