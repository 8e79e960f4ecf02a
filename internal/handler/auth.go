package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/auth"
)

// SessionHandler lets the shell hand over the bearer token it obtained at
// sign-in, inspect it and sign out.
type SessionHandler struct {
	session *auth.Session
	lg      *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s *auth.Session, lg *zap.Logger) *SessionHandler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &SessionHandler{session: s, lg: lg}
}

// RegisterRoutes registers session endpoints on the given Chi router.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Put("/session", h.Set)
	r.Get("/session", h.Get)
	r.Delete("/session", h.Clear)
}

type setSessionRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	Role           string     `json:"role"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

func newSessionResponse(c *auth.Claims) sessionResponse {
	resp := sessionResponse{
		UserID:         c.UserID(),
		OrganizationID: c.OrganizationID,
		Role:           c.Role,
	}
	if c.ExpiresAt != nil {
		exp := c.ExpiresAt.Time
		resp.ExpiresAt = &exp
	}
	return resp
}

// Set handles PUT /session.
func (h *SessionHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	claims, err := auth.ParseClaims(req.Token)
	if err != nil {
		writeBadRequest(w, "invalid token")
		return
	}
	h.session.Set(req.Token)
	h.lg.Info("Session started", zap.String("user_id", claims.UserID()))
	writeJSON(w, http.StatusOK, newSessionResponse(claims))
}

// Get handles GET /session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, err := h.session.Claims()
	if err != nil {
		writeError(w, h.lg, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(claims))
}

// Clear handles DELETE /session.
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.session.Set("")
	w.WriteHeader(http.StatusNoContent)
}
