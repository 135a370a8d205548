// # Layout
//
//	internal/transport/
//	├── transport.go          aliases and the SessionStore contract
//	├── wire.go               constructors and route assembly
//	├── transportcore/        interfaces shared with the internal packages
//	└── internal/
//	    ├── http/             server, chi router, JSON error responder
//	    ├── middleware/       bearer gate, request logging, panic recovery
//	    ├── handlers/         metadata, MCP endpoint, health
//	    └── session/          Mcp-Session-Id bookkeeping
//
// # Bearer gate
//
// Tokens are read from the Authorization header only. A request with no
// token gets a bare challenge:
//
//	HTTP/1.1 401 Unauthorized
//	WWW-Authenticate: Bearer resource_metadata="https://tools.example.com/.well-known/oauth-protected-resource"
//
// A token that fails validation adds error="invalid_token". A token missing
// a configured scope gets 403 with error="insufficient_scope" and the scope
// list. If the provider's signing keys cannot be fetched the token is never
// judged and the request fails with 500.
//
// # MCP endpoint
//
// POST /mcp takes one JSON-RPC message and answers with application/json.
// Notifications are acknowledged with 202 and no body. A successful
// initialize returns an Mcp-Session-Id bound to the token's subject; a
// request carrying an unknown, expired or foreign session id gets 404.
// DELETE /mcp ends the session. Batches and GET streams are not offered.
//
// # Usage
//
//	svc, err := transport.NewTransportServices(&transport.Config{
//		ServerConfig: cfg,
//		OAuth:        oauthServices,
//		MCPHandler:   handler,
//		Logger:       logger,
//	})
//	if err != nil {
//		return err
//	}
//	go svc.Sessions.Run(ctx, time.Minute)
//	return svc.Server.Start()
package transport
