package deeplink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
)

// Source delivers URLs from the host platform.
type Source interface {
	// InitialURL returns the URL the app was launched with, or "" if none.
	InitialURL(ctx context.Context) (string, error)

	// Listen registers fn for every subsequently delivered URL and returns a
	// function that releases the registration.
	Listen(fn func(url string)) (unregister func())
}

// RecoveryHandler establishes a session from a password recovery link.
type RecoveryHandler interface {
	EstablishRecoverySession(ctx context.Context, tokens RecoveryTokens) error
}

// Router receives every delivered deep link and dispatches it to exactly one
// consumer: the recovery handler, or the OAuth flow currently awaiting a
// callback.
type Router struct {
	source   Source
	recovery RecoveryHandler
	parser   *Parser
	logger   *slog.Logger

	mu         sync.Mutex
	running    bool
	unregister func()
	cancel     context.CancelFunc
	ctx        context.Context

	waitMu  sync.Mutex
	waiter  chan Link
	waiters uint64
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger used for dropped links and handler failures.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithParser replaces the default link parser.
func WithParser(p *Parser) RouterOption {
	return func(r *Router) {
		if p != nil {
			r.parser = p
		}
	}
}

// NewRouter creates a stopped Router.
func NewRouter(source Source, recovery RecoveryHandler, opts ...RouterOption) *Router {
	r := &Router{
		source:   source,
		recovery: recovery,
		parser:   defaultParser,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start feeds the launch URL through the router once and registers for
// subsequent deliveries. Calling Start on a running router is a no-op.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.running = true
	runCtx := r.ctx
	r.mu.Unlock()

	initial, err := r.source.InitialURL(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to read initial url",
			logger.Error(err),
			logger.Component("deeplink"),
		)
	} else if initial != "" {
		r.Handle(runCtx, initial)
	}

	unregister := r.source.Listen(func(url string) {
		r.mu.Lock()
		c := r.ctx
		active := r.running
		r.mu.Unlock()
		if !active {
			return
		}
		r.Handle(c, url)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		// Stop raced with Start; release the registration we just made.
		if unregister != nil {
			unregister()
		}
		return nil
	}
	r.unregister = unregister
	return nil
}

// Stop releases the platform listener. It is safe to call more than once.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false
	if r.cancel != nil {
		r.cancel()
	}
	if r.unregister != nil {
		r.unregister()
		r.unregister = nil
	}
}

// Running reports whether the router holds a platform listener.
func (r *Router) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Handle routes a single URL. It never returns an error: failures of the
// recovery handler are reported by the handler itself and logged here.
func (r *Router) Handle(ctx context.Context, raw string) {
	link := r.parser.Parse(raw)

	switch link.Kind {
	case KindRecovery:
		if r.recovery == nil {
			return
		}
		if err := r.recovery.EstablishRecoverySession(ctx, link.Recovery); err != nil {
			r.logger.WarnContext(ctx, "recovery session not established",
				logger.Error(err),
				logger.Component("deeplink"),
			)
		}
	case KindOAuthCallback:
		if !r.deliverCallback(link) {
			r.logger.DebugContext(ctx, "oauth callback without an active flow dropped",
				logger.Component("deeplink"),
			)
		}
	default:
		r.logger.DebugContext(ctx, "unrecognised deep link ignored",
			logger.Component("deeplink"),
		)
	}
}

// ExpectCallback registers the caller as the single consumer of the next
// OAuth callback link. A newer registration replaces an older one. The
// returned release function must be called once the caller stops waiting.
func (r *Router) ExpectCallback() (<-chan Link, func()) {
	ch := make(chan Link, 1)

	r.waitMu.Lock()
	r.waiters++
	id := r.waiters
	r.waiter = ch
	r.waitMu.Unlock()

	release := func() {
		r.waitMu.Lock()
		defer r.waitMu.Unlock()
		if r.waiters == id && r.waiter == ch {
			r.waiter = nil
		}
	}
	return ch, release
}

func (r *Router) deliverCallback(link Link) bool {
	r.waitMu.Lock()
	defer r.waitMu.Unlock()

	if r.waiter == nil {
		return false
	}
	r.waiter <- link
	r.waiter = nil
	return true
}
