package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jamesprial/mcp-oauth-tools/internal/mcpserver"
	"github.com/jamesprial/mcp-oauth-tools/internal/oauth"
	"github.com/jamesprial/mcp-oauth-tools/internal/transport/transportcore"
	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

// MaxRequestBytes caps the size of one JSON-RPC message.
const MaxRequestBytes = 4 << 20

// SessionStore tracks MCP sessions per token subject.
type SessionStore interface {
	Create(subject string) string
	Touch(id, subject string) error
	Delete(id, subject string) error
}

// mcpHandler serves the MCP streamable HTTP endpoint in JSON response mode.
type mcpHandler struct {
	handler   mcpserver.Handler
	sessions  SessionStore
	responder transportcore.ErrorResponder
}

// NewMCPHandler creates the handler for the MCP endpoint. POST carries one
// JSON-RPC message, DELETE ends the caller's session. A successful
// initialize opens a session returned in the Mcp-Session-Id header.
func NewMCPHandler(handler mcpserver.Handler, sessions SessionStore, responder transportcore.ErrorResponder) http.Handler {
	if handler == nil {
		panic("handler cannot be nil")
	}
	if sessions == nil {
		panic("session store cannot be nil")
	}
	if responder == nil {
		panic("responder cannot be nil")
	}

	return &mcpHandler{
		handler:   handler,
		sessions:  sessions,
		responder: responder,
	}
}

func (h *mcpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		h.responder.MethodNotAllowed(w, http.MethodPost, http.MethodDelete)
	}
}

func (h *mcpHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		h.responder.BadRequest(w, err)
		return
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		h.writeError(w, nil, mcpserver.CodeInvalidRequest, "Batch requests are not supported")
		return
	}

	var req mcpserver.Request
	if err := json.Unmarshal(body, &req); err != nil {
		slog.Debug("failed to parse JSON-RPC message", "error", err)
		h.writeError(w, nil, mcpserver.CodeParseError, "Parse error")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, req.ID, mcpserver.CodeInvalidRequest, "Invalid request")
		return
	}

	subject := subjectOf(r)
	if req.Method != "initialize" {
		if sessionID := r.Header.Get(pkgoauth.HeaderMCPSessionID); sessionID != "" {
			if err := h.sessions.Touch(sessionID, subject); err != nil {
				h.responder.NotFound(w, err)
				return
			}
		}
	}

	resp, err := h.handler.HandleRequest(r.Context(), &req)
	if err != nil {
		slog.Error("mcp handler failed",
			"error", err,
			"method", req.Method,
			"request_id", transportcore.RequestIDFromContext(r.Context()),
		)
		h.writeError(w, req.ID, mcpserver.CodeInternalError, "Internal error")
		return
	}

	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if req.Method == "initialize" && !resp.IsError() {
		w.Header().Set(pkgoauth.HeaderMCPSessionID, h.sessions.Create(subject))
	}

	h.writeResponse(w, resp)
}

func (h *mcpHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(pkgoauth.HeaderMCPSessionID)
	if sessionID == "" {
		h.responder.BadRequest(w, transportcore.ErrMissingSession)
		return
	}

	if err := h.sessions.Delete(sessionID, subjectOf(r)); err != nil {
		if !errors.Is(err, transportcore.ErrSessionNotFound) {
			h.responder.InternalError(w, err)
			return
		}
		h.responder.NotFound(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func subjectOf(r *http.Request) string {
	if identity, ok := oauth.IdentityFromContext(r.Context()); ok {
		return identity.Subject
	}
	return ""
}

func (h *mcpHandler) writeResponse(w http.ResponseWriter, resp *mcpserver.Response) {
	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode JSON-RPC response", "error", err)
	}
}

// writeError sends a JSON-RPC error. Protocol errors still travel with 200.
func (h *mcpHandler) writeError(w http.ResponseWriter, id any, code int, message string) {
	h.writeResponse(w, &mcpserver.Response{
		JSONRPC: mcpserver.JSONRPCVersion,
		ID:      id,
		Error:   mcpserver.NewError(code, message, nil),
	})
}
