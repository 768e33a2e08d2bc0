package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/broadcast"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/deeplink"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/profile"
)

// ProfileGate decides and completes the profile gate for a user.
// *profile.Checker implements it.
type ProfileGate interface {
	Check(ctx context.Context, userID uuid.UUID) bool
	Complete(ctx context.Context, userID uuid.UUID, fields profile.Fields) error
	Ensure(ctx context.Context, userID uuid.UUID, seed profile.Seed) error
}

var (
	_ ProfileGate              = (*profile.Checker)(nil)
	_ deeplink.RecoveryHandler = (*Store)(nil)
)

// Store owns the current session and the derived auth state. Operations may
// run concurrently; each commits its result atomically and the last one to
// complete wins.
type Store struct {
	backend   Backend
	profiles  ProfileGate
	providers map[string]ExternalSignIn
	cfg       Config
	logger    *slog.Logger
	metrics   Metrics
	states    *broadcast.Latest[State]

	mu           sync.Mutex
	phase        Phase
	session      *Session
	authErr      *Error
	needsProfile bool
	recovery     bool
	inflight     int
	commits      uint64
	closed       bool

	startOnce   sync.Once
	closeOnce   sync.Once
	unsubscribe func()
	background  sync.WaitGroup
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the operation metrics sink.
func WithMetrics(m Metrics) StoreOption {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithConfig overrides redirect URLs and provider names. Empty fields keep
// their defaults.
func WithConfig(cfg Config) StoreOption {
	return func(s *Store) {
		s.cfg = cfg.withDefaults()
	}
}

// WithProvider registers an external sign-in flow under its Provider name.
func WithProvider(p ExternalSignIn) StoreOption {
	return func(s *Store) {
		if p != nil {
			s.providers[p.Provider()] = p
		}
	}
}

// NewStore creates a Store in the initializing phase with Loading set.
// Loading drops once Start has restored the persisted session.
func NewStore(backend Backend, profiles ProfileGate, opts ...StoreOption) *Store {
	s := &Store{
		backend:   backend,
		profiles:  profiles,
		providers: make(map[string]ExternalSignIn),
		cfg:       DefaultConfig(),
		logger:    logger.Discard(),
		metrics:   noopMetrics{},
		states:    broadcast.NewLatest[State](),
		phase:     PhaseInitializing,
		inflight:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("auth"))
	s.states.Publish(s.snapshotLocked())
	return s
}

// Start restores the persisted session and subscribes to backend session
// changes. Only the first call has an effect. A failed restore leaves the
// store unauthenticated and is returned for logging.
func (s *Store) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		unsubscribe := s.backend.OnSessionChange(s.handleSessionChange)
		s.mu.Lock()
		s.unsubscribe = unsubscribe
		s.mu.Unlock()
		err = s.restore(ctx)
	})
	return err
}

// Close releases the backend subscription and closes every state
// subscriber. It is safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		unsubscribe := s.unsubscribe
		s.unsubscribe = nil
		s.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		s.background.Wait()
		_ = s.states.Close()
	})
	return nil
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe streams state snapshots, starting with the current one, until
// ctx is done or the subscriber is closed.
func (s *Store) Subscribe(ctx context.Context) broadcast.Subscriber[State] {
	return s.states.Subscribe(ctx)
}

// restore resolves the persisted session. Its result is dropped when another
// commit (a recovery link, an operation) happened while it was running; the
// loading raised by NewStore is released either way.
func (s *Store) restore(ctx context.Context) error {
	s.mu.Lock()
	seq := s.commits
	s.mu.Unlock()

	sess, err := s.backend.GetSession(ctx)

	var complete bool
	if err == nil && sess != nil {
		complete = s.profiles.Check(ctx, sess.User.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--

	if s.commits != seq {
		s.logger.DebugContext(ctx, "restored session superseded", logger.Error(err))
		s.publishLocked()
		return nil
	}
	// A recovery link without tokens may have arrived meanwhile; it stays pending.
	pending := s.recovery
	if err != nil || sess == nil {
		s.clearLocked(ctx, evNoSession)
		if pending {
			s.recovery = true
			s.publishLocked()
		}
		if err != nil {
			s.logger.WarnContext(ctx, "session restore failed", logger.Error(err))
			return classify(err, "")
		}
		return nil
	}
	s.commitLocked(ctx, sess, complete, pending)
	return nil
}

// run applies the operation discipline: clear the error and raise loading,
// run fn, then record a non-cancel failure and lower loading. Loading is
// lowered on every exit path, including a panic in fn.
func (s *Store) run(ctx context.Context, op, provider string, fn func(ctx context.Context) error) error {
	ctx = logger.WithOperationID(ctx, uuid.NewString())
	start := time.Now()

	s.mu.Lock()
	s.authErr = nil
	s.inflight++
	s.publishLocked()
	s.mu.Unlock()

	var failure *Error
	defer func() {
		s.mu.Lock()
		s.inflight--
		if failure != nil && failure.Kind != KindCanceled {
			s.authErr = failure
		}
		s.publishLocked()
		s.mu.Unlock()

		s.metrics.ObserveOperation(op, outcomeOf(failure), time.Since(start))
	}()

	err := fn(ctx)
	if err == nil {
		s.logger.DebugContext(ctx, "operation succeeded",
			logger.Operation(op),
			logger.Duration(time.Since(start)),
		)
		return nil
	}

	failure = classify(err, provider)
	level := slog.LevelWarn
	if failure.Kind == KindCanceled {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "operation failed",
		logger.Operation(op),
		logger.Provider(provider),
		slog.String("kind", string(failure.Kind)),
		logger.Error(err),
	)
	return failure
}

// establish checks profile completeness for sess and commits it as the
// current session.
func (s *Store) establish(ctx context.Context, sess *Session, recovery bool) error {
	if sess == nil {
		return ErrSessionMissing
	}
	complete := s.profiles.Check(ctx, sess.User.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked(ctx, sess, complete, recovery)
	return nil
}

// seed creates the profile row for a freshly signed-in user. Failures are
// logged; the completeness check that follows decides what the user sees.
func (s *Store) seed(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}
	err := s.profiles.Ensure(ctx, sess.User.ID, profile.Seed{
		FullName: sess.User.DisplayName(),
		Email:    sess.User.Email,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "profile seeding failed",
			logger.UserID(sess.User.ID),
			logger.Error(err),
		)
	}
}

func (s *Store) current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Store) commitLocked(ctx context.Context, sess *Session, complete, recovery bool) {
	s.fireLocked(ctx, evSessionEstablished, complete)
	s.commits++
	s.session = sess
	s.needsProfile = !complete
	s.recovery = recovery
	s.publishLocked()
}

// clearLocked drops the session. The phase always ends unauthenticated,
// also when event has no transition from the current phase.
func (s *Store) clearLocked(ctx context.Context, event phaseEvent) {
	if !s.fireLocked(ctx, event, false) {
		s.phase = PhaseUnauthenticated
	}
	s.commits++
	s.session = nil
	s.needsProfile = false
	s.recovery = false
	s.publishLocked()
}

func (s *Store) fireLocked(ctx context.Context, event phaseEvent, complete bool) bool {
	next, err := nextPhase(s.phase, event, complete)
	if err != nil {
		s.logger.WarnContext(ctx, "phase transition rejected",
			logger.Phase(string(s.phase)),
			logger.Event(string(event)),
			logger.Error(err),
		)
		return false
	}
	if next != s.phase {
		s.logger.DebugContext(ctx, "phase changed",
			slog.String("from", string(s.phase)),
			slog.String("to", string(next)),
		)
	}
	s.phase = next
	return true
}

func (s *Store) publishLocked() {
	s.states.Publish(s.snapshotLocked())
}

func (s *Store) snapshotLocked() State {
	st := State{
		Phase:           s.phase,
		Session:         s.session,
		Loading:         s.inflight > 0,
		Error:           s.authErr,
		RecoveryPending: s.recovery,
	}
	if s.session != nil {
		u := s.session.User
		st.User = &u
		st.NeedsProfileCompletion = s.needsProfile
	}
	return st
}

// handleSessionChange applies a backend session event. Events for the
// current user replace the session; a sign-in for a different user is only
// adopted when no operation is in flight, since a running operation commits
// its own result.
func (s *Store) handleSessionChange(ev SessionEvent) {
	ctx := context.Background()

	switch ev.Type {
	case EventSignedOut:
		s.mu.Lock()
		if s.session != nil {
			s.clearLocked(ctx, evSignedOut)
		}
		s.mu.Unlock()

	case EventTokenRefreshed, EventUserUpdated:
		if ev.Session == nil {
			return
		}
		s.mu.Lock()
		if s.session != nil && s.session.User.ID == ev.Session.User.ID {
			s.session = ev.Session
			s.publishLocked()
		}
		s.mu.Unlock()

	case EventSignedIn, EventInitialSession, EventPasswordRecovery:
		if ev.Session == nil {
			return
		}
		s.mu.Lock()
		if s.session != nil && s.session.User.ID == ev.Session.User.ID {
			s.session = ev.Session
			if ev.Type == EventPasswordRecovery {
				s.recovery = true
			}
			s.publishLocked()
			s.mu.Unlock()
			return
		}
		if s.inflight > 0 || s.closed {
			s.mu.Unlock()
			return
		}
		s.background.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.background.Done()
			complete := s.profiles.Check(ctx, ev.Session.User.ID)

			s.mu.Lock()
			defer s.mu.Unlock()
			if s.inflight > 0 {
				return
			}
			s.commitLocked(ctx, ev.Session, complete, ev.Type == EventPasswordRecovery)
		}()

	default:
		s.logger.Debug("session event ignored", logger.Event(string(ev.Type)))
	}
}
