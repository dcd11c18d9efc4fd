package authapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chord/cmd/identity"
	"chord/cmd/internal/auth/session"
)

const (
	// SessionCookie carries the opaque session token for browser clients.
	SessionCookie = "chord_session"

	defaultMaxBodyBytes = 16 << 10
)

// Config holds auth handler knobs.
type Config struct {
	// MaxBodyBytes bounds request bodies. Zero means the default.
	MaxBodyBytes int64

	// CookieSecure sets the Secure attribute on session cookies.
	// Leave false only for plain-HTTP dev setups.
	CookieSecure bool
}

// Handler wires HTTP auth endpoints to identity/session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.UserStore
	sessions *session.Service

	// Dummy hash for timing-resistant login checks.
	dummyHash string
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.UserStore, sessions *session.Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
	}

	if hash, err := identity.HashPassword("dummy-password-for-timing-only", identity.DefaultArgon2idParams()); err == nil {
		h.dummyHash = hash
	}

	return h
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	username := identity.NormalizeUsername(req.Username)
	if !identity.ValidUsername(username) {
		writeError(w, http.StatusBadRequest, "invalid_username", "username must be 3-32 chars: a-z 0-9 _ . -")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = username
	}

	hash, err := identity.HashPassword(req.Password, identity.DefaultArgon2idParams())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_password", "password must be 8-256 chars")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	user, err := h.users.Create(ctx, now, username, name, hash)
	if err == identity.ErrUsernameTaken {
		writeError(w, http.StatusConflict, "username_taken", "username already in use")
		return
	}
	if err != nil {
		h.log.Error("auth.register.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	issued, err := h.sessions.Issue(ctx, now, user.ID)
	if err != nil {
		h.log.Error("auth.register.issue_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.setSessionCookie(w, issued.Token, issued.ExpiresAt)
	h.log.Info("auth.register.ok", "user_id", user.ID, "username", user.Username)

	writeJSON(w, http.StatusCreated, authResponse{
		User:    toUserResponse(user),
		Session: sessionResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt},
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	username := identity.NormalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		// Timing resistance: perform a dummy verify when user is missing.
		if h.dummyHash != "" {
			_, _ = identity.VerifyPassword(req.Password, h.dummyHash)
		}
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	okPw, err := identity.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !okPw {
		h.log.Info("auth.login.bad_password", "user_id", user.ID)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	issued, err := h.sessions.Issue(ctx, now, user.ID)
	if err != nil {
		h.log.Error("auth.login.issue_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.setSessionCookie(w, issued.Token, issued.ExpiresAt)
	h.log.Info("auth.login.ok", "user_id", user.ID, "session_id", issued.SessionID)

	writeJSON(w, http.StatusOK, authResponse{
		User:    toUserResponse(user),
		Session: sessionResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	token := TokenFromRequest(r)
	if token != "" {
		if ident, err := h.sessions.Resolve(ctx, token, now); err == nil {
			if err := h.sessions.Revoke(ctx, now, ident.SessionID); err != nil {
				h.log.Error("auth.logout.revoke.fail", "err", err, "session_id", ident.SessionID)
			}
		}
	}

	// Logout is idempotent: the cookie is cleared whether or not the token
	// still resolved.
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	ident, err := h.sessions.Resolve(ctx, TokenFromRequest(r), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "valid session required")
		return
	}

	user, err := h.users.GetByID(ctx, ident.UserID)
	if err != nil {
		h.log.Error("auth.me.lookup.fail", "err", err, "user_id", ident.UserID)
		writeError(w, http.StatusUnauthorized, "unauthorized", "valid session required")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(user)})
}

// ---- cookie / token plumbing ----

// TokenFromRequest extracts the session token from the chord_session cookie
// or an Authorization bearer header. Cookie wins when both are present.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
