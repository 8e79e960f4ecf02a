package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/backend"
)

// ConnectivityHandler receives the device's network state from the shell.
// While offline every backend call fails with network_unavailable before
// anything is sent.
type ConnectivityHandler struct {
	reach *backend.Reachability
	lg    *zap.Logger
}

// NewConnectivityHandler creates a new ConnectivityHandler.
func NewConnectivityHandler(r *backend.Reachability, lg *zap.Logger) *ConnectivityHandler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &ConnectivityHandler{reach: r, lg: lg}
}

// RegisterRoutes registers connectivity endpoints on the given Chi router.
func (h *ConnectivityHandler) RegisterRoutes(r chi.Router) {
	r.Put("/connectivity", h.Set)
	r.Get("/connectivity", h.Get)
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

type connectivityResponse struct {
	Online bool `json:"online"`
}

// Set handles PUT /connectivity.
func (h *ConnectivityHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Online == nil {
		writeBadRequest(w, "online is required")
		return
	}
	if h.reach.SetOnline(*req.Online) {
		h.lg.Info("Connectivity changed", zap.Bool("online", *req.Online))
	}
	writeJSON(w, http.StatusOK, connectivityResponse{Online: h.reach.Online()})
}

// Get handles GET /connectivity.
func (h *ConnectivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, connectivityResponse{Online: h.reach.Online()})
}
