package loopback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/auth"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
)

// completePath receives the fragment forwarded by the callback page.
const completePath = "/complete"

// callbackPage forwards the URL fragment, which browsers never send to the
// server, to completePath.
const callbackPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Signing in</title></head>
<body><p id="status">Completing sign-in&hellip;</p>
<script>
fetch(%q, {method: "POST", body: location.hash.slice(1) || location.search.slice(1)})
  .then(function () { document.getElementById("status").textContent = "Signed in. You can close this window."; })
  .catch(function () { document.getElementById("status").textContent = "Sign-in failed. Return to the app and try again."; });
</script></body></html>`

// Session receives an OAuth redirect on a local HTTP listener. It lets
// desktop and CLI hosts run the browser OAuth flow.
type Session struct {
	cfg    Config
	open   Opener
	logger *slog.Logger

	mu     sync.Mutex
	active bool
	bound  string
}

var _ auth.BrowserSession = (*Session)(nil)

// Option configures a Session.
type Option func(*Session)

// WithOpener replaces SystemBrowser.
func WithOpener(o Opener) Option {
	return func(s *Session) {
		if o != nil {
			s.open = o
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Session listening on cfg.Addr while a flow is open.
func New(cfg Config, opts ...Option) *Session {
	s := &Session{
		cfg:    cfg.withDefaults(),
		open:   SystemBrowser,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("loopback"))
	return s
}

// RedirectURL is the URL the auth service must redirect to. While a flow
// is open it reflects the bound listener address.
func (s *Session) RedirectURL() string {
	s.mu.Lock()
	addr := s.bound
	s.mu.Unlock()
	if addr == "" {
		addr = s.cfg.Addr
	}
	return "http://" + addr + s.cfg.CallbackPath
}

// Open implements auth.BrowserSession. It serves the callback endpoint,
// opens authURL and returns the redirect URL including the forwarded
// fragment. redirectURL is ignored; the listener address decides it.
func (s *Session) Open(ctx context.Context, authURL, _ string) (string, error) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.active = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = false
		s.bound = ""
		s.mu.Unlock()
	}()

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return "", fmt.Errorf("loopback: failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.bound = ln.Addr().String()
	s.mu.Unlock()
	redirect := s.RedirectURL()

	result := make(chan string, 1)
	srv := &http.Server{
		Handler:           s.router(redirect, result),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := s.open(authURL); err != nil {
		return "", fmt.Errorf("loopback: failed to open browser: %w", err)
	}
	s.logger.InfoContext(ctx, "waiting for oauth redirect", slog.String("redirect_url", redirect))

	timer := time.NewTimer(s.cfg.Timeout)
	defer timer.Stop()

	select {
	case u := <-result:
		return u, nil
	case err := <-serveErr:
		return "", fmt.Errorf("loopback: server failed: %w", err)
	case <-timer.C:
		return "", fmt.Errorf("loopback: no redirect within %s: %w", s.cfg.Timeout, context.DeadlineExceeded)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", auth.ErrCanceled
		}
		return "", ctx.Err()
	}
}

func (s *Session) router(redirect string, result chan<- string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get(s.cfg.CallbackPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, callbackPage, completePath)
	})

	r.Post(completePath, func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, 16<<10))
		payload := strings.TrimSpace(string(body))
		if err != nil || payload == "" {
			http.Error(w, ErrEmptyPayload.Error(), http.StatusBadRequest)
			return
		}

		select {
		case result <- redirect + "#" + payload:
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "callback already received", http.StatusConflict)
		}
	})

	return r
}
