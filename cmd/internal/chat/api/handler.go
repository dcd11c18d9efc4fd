// Package chatapi exposes the thread and message HTTP endpoints.
//
// Every route requires a valid session. Thread reads are participant-only:
// a non-participant gets the same 404 as a missing thread, so thread ids
// cannot be probed for existence.
package chatapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chord/cmd/internal/auth/session"
	"chord/cmd/internal/realtime"
)

const (
	defaultMaxBodyBytes = 16 << 10

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Config holds chat handler knobs.
type Config struct {
	// MaxBodyBytes bounds request bodies. Zero means the default.
	MaxBodyBytes int64
}

// Handler serves thread creation, message history and read receipts.
type Handler struct {
	log *slog.Logger
	cfg Config

	store    realtime.Store
	sessions session.Resolver
}

// NewHandler constructs a chat Handler.
func NewHandler(log *slog.Logger, cfg Config, store realtime.Store, sessions session.Resolver) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{log: log, cfg: cfg, store: store, sessions: sessions}
}

// Register wires chat routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/threads", h.handleCreateThread)
	mux.HandleFunc("GET /api/threads/{id}/messages", h.handleListMessages)
	mux.HandleFunc("POST /api/threads/{id}/read", h.handleMarkRead)
}

// ---- handlers ----

func (h *Handler) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.require(w, r)
	if !ok {
		return
	}

	var req createThreadRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	peerID := strings.TrimSpace(req.PeerID)
	if peerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "peer_id is required")
		return
	}
	if peerID == ident.UserID {
		writeError(w, http.StatusBadRequest, "self_thread", "cannot open a thread with yourself")
		return
	}

	thread, err := h.store.FindOrCreateThread(r.Context(), ident.UserID, peerID)
	if errors.Is(err, realtime.ErrSelfThread) {
		writeError(w, http.StatusBadRequest, "self_thread", "cannot open a thread with yourself")
		return
	}
	if err != nil {
		h.log.Error("chat.thread.create.fail", "err", err, "user_id", ident.UserID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toThreadResponse(thread))
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.require(w, r)
	if !ok {
		return
	}

	thread, ok := h.lookupThread(w, r, ident.UserID)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	msgs, err := h.store.ListMessages(r.Context(), thread.ID, limit)
	if err != nil {
		h.log.Error("chat.messages.list.fail", "err", err, "thread_id", thread.ID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}

	writeJSON(w, http.StatusOK, messagesResponse{ThreadID: thread.ID, Messages: out})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.require(w, r)
	if !ok {
		return
	}

	thread, ok := h.lookupThread(w, r, ident.UserID)
	if !ok {
		return
	}

	updated, err := h.store.MarkRead(r.Context(), thread.ID, ident.UserID)
	if err != nil {
		h.log.Error("chat.messages.read.fail", "err", err, "thread_id", thread.ID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, markReadResponse{ThreadID: thread.ID, Updated: updated})
}

// ---- auth / lookup helpers ----

func (h *Handler) require(w http.ResponseWriter, r *http.Request) (session.Identity, bool) {
	ident, err := h.sessions.Resolve(r.Context(), tokenFromRequest(r), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "valid session required")
		return session.Identity{}, false
	}
	return ident, true
}

// lookupThread resolves {id} and enforces participation. Missing thread and
// non-participant produce the identical 404.
func (h *Handler) lookupThread(w http.ResponseWriter, r *http.Request, userID string) (realtime.Thread, bool) {
	threadID := strings.TrimSpace(r.PathValue("id"))
	if threadID == "" {
		writeError(w, http.StatusNotFound, "not_found", "thread not found")
		return realtime.Thread{}, false
	}

	thread, err := h.store.FindThreadByID(r.Context(), threadID)
	if errors.Is(err, realtime.ErrThreadNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "thread not found")
		return realtime.Thread{}, false
	}
	if err != nil {
		h.log.Error("chat.thread.lookup.fail", "err", err, "thread_id", threadID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return realtime.Thread{}, false
	}
	if !thread.HasParticipant(userID) {
		writeError(w, http.StatusNotFound, "not_found", "thread not found")
		return realtime.Thread{}, false
	}

	return thread, true
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie("chord_session"); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	hv := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(hv) > 7 && strings.EqualFold(hv[:7], "Bearer ") {
		return strings.TrimSpace(hv[7:])
	}
	return ""
}
