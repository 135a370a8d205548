package clientauth

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// CallbackPath is the loopback redirect path.
const CallbackPath = "/callback"

// DefaultCallbackTimeout bounds how long the user has to authorize.
const DefaultCallbackTimeout = 5 * time.Minute

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body><h1>{{.Title}}</h1><p>{{.Message}}</p></body></html>
`))

// CallbackResult is the query of the authorization redirect.
type CallbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// IsError reports whether the authorization server returned an error.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackServer receives exactly one authorization redirect on 127.0.0.1.
type CallbackServer struct {
	server   *http.Server
	listener net.Listener
	resultCh chan *CallbackResult
	errCh    chan error
	once     sync.Once
	stopOnce sync.Once
}

// StartCallbackServer listens on 127.0.0.1:port (0 picks a free port) and
// serves CallbackPath until Stop or ctx is done.
func StartCallbackServer(ctx context.Context, port int) (*CallbackServer, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s := &CallbackServer{
		listener: listener,
		resultCh: make(chan *CallbackResult, 1),
		errCh:    make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+CallbackPath, s.handleCallback)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s, nil
}

// RedirectURI is the URI to register and send as redirect_uri.
func (s *CallbackServer) RedirectURI() string {
	return "http://" + s.listener.Addr().String() + CallbackPath
}

// Wait blocks until the redirect arrives, the server fails or ctx is done.
func (s *CallbackServer) Wait(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errCh:
		return nil, err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrCallbackTimeout
		}
		return nil, ctx.Err()
	}
}

// Stop shuts the server down. It is safe to call more than once.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	})
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	handled := false
	s.once.Do(func() {
		handled = true

		query := r.URL.Query()
		result := &CallbackResult{
			Code:             query.Get("code"),
			State:            query.Get("state"),
			Error:            query.Get("error"),
			ErrorDescription: query.Get("error_description"),
		}

		page := map[string]string{
			"Title":   "Authorization complete",
			"Message": "You can close this window and return to the terminal.",
		}
		if result.IsError() {
			page["Title"] = "Authorization failed"
			page["Message"] = result.Error + " " + result.ErrorDescription
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Referrer-Policy", "no-referrer")
		_ = callbackPage.Execute(w, page)

		s.resultCh <- result
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}
