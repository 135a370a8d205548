package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jamesprial/mcp-oauth-tools/internal/transport/transportcore"
	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

type healthResponse struct {
	Status string `json:"status"`
	Server string `json:"server,omitempty"`
}

type healthHandler struct {
	serverName string
	responder  transportcore.ErrorResponder
}

// NewHealthHandler serves an unauthenticated liveness probe.
func NewHealthHandler(serverName string, responder transportcore.ErrorResponder) http.Handler {
	if responder == nil {
		panic("responder cannot be nil")
	}

	return &healthHandler{
		serverName: serverName,
		responder:  responder,
	}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.responder.MethodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}

	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok", Server: h.serverName}); err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}
