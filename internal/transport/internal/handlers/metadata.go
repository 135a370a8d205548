// Package handlers provides the HTTP handlers of the tool server.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jamesprial/mcp-oauth-tools/internal/oauth"
	"github.com/jamesprial/mcp-oauth-tools/internal/transport/transportcore"
	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

const metadataCacheControl = "public, max-age=3600"

// NewMetadataHandler serves the RFC 9728 document. It sits outside the auth
// gate: a client holding no token reads it to find the identity provider.
// Browser-hosted clients read it cross-origin, so any origin is allowed.
func NewMetadataHandler(service oauth.MetadataService, responder transportcore.ErrorResponder) http.Handler {
	if service == nil {
		panic("service cannot be nil")
	}
	if responder == nil {
		panic("responder cannot be nil")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			responder.MethodNotAllowed(w, http.MethodGet)
			return
		}

		doc, err := service.GetMetadata(r.Context())
		if err == nil && doc == nil {
			err = transportcore.ErrNoMetadata
		}
		var body []byte
		if err == nil {
			body, err = json.Marshal(doc)
		}
		if err != nil {
			responder.InternalError(w, err)
			return
		}

		h := w.Header()
		h.Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
		h.Set("Content-Length", strconv.Itoa(len(body)))
		h.Set("Cache-Control", metadataCacheControl)
		h.Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
}
