package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/deeplink"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/profile"
)

func newTestStore(t *testing.T, opts ...StoreOption) (*Store, *MockBackend, *MockProfileGate) {
	t.Helper()

	backend := &MockBackend{}
	gate := &MockProfileGate{}
	s := NewStore(backend, gate, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, backend, gate
}

func startEmpty(t *testing.T, s *Store, backend *MockBackend) {
	t.Helper()
	backend.On("GetSession", mock.Anything).Return(nil, nil).Once()
	require.NoError(t, s.Start(context.Background()))
}

func TestStoreStart(t *testing.T) {
	t.Parallel()

	t.Run("initial state", func(t *testing.T) {
		t.Parallel()

		s, _, _ := newTestStore(t)
		st := s.State()

		assert.Equal(t, PhaseInitializing, st.Phase)
		assert.Nil(t, st.Session)
		assert.True(t, st.Loading, "navigation waits until the restore finishes")
		assert.Nil(t, st.Error)
	})

	t.Run("no persisted session", func(t *testing.T) {
		t.Parallel()

		s, backend, _ := newTestStore(t)
		startEmpty(t, s, backend)

		st := s.State()
		assert.Equal(t, PhaseUnauthenticated, st.Phase)
		assert.False(t, st.Loading)
		assert.False(t, st.NeedsProfileCompletion)
	})

	t.Run("restores persisted session with complete profile", func(t *testing.T) {
		t.Parallel()

		s, backend, gate := newTestStore(t)
		id := uuid.New()
		sess := testSession(id, "restored")

		backend.On("GetSession", mock.Anything).Return(sess, nil).Once()
		gate.On("Check", mock.Anything, id).Return(true).Once()

		require.NoError(t, s.Start(context.Background()))

		st := s.State()
		assert.Equal(t, PhaseAuthenticatedComplete, st.Phase)
		assert.Same(t, sess, st.Session)
		require.NotNil(t, st.User)
		assert.Equal(t, id, st.User.ID)
		assert.False(t, st.NeedsProfileCompletion)
	})

	t.Run("restores persisted session with incomplete profile", func(t *testing.T) {
		t.Parallel()

		s, backend, gate := newTestStore(t)
		id := uuid.New()

		backend.On("GetSession", mock.Anything).Return(testSession(id, "restored"), nil).Once()
		gate.On("Check", mock.Anything, id).Return(false).Once()

		require.NoError(t, s.Start(context.Background()))

		st := s.State()
		assert.Equal(t, PhaseAuthenticatedIncomplete, st.Phase)
		assert.True(t, st.NeedsProfileCompletion)
	})

	t.Run("restore failure leaves store unauthenticated", func(t *testing.T) {
		t.Parallel()

		s, backend, _ := newTestStore(t)
		backend.On("GetSession", mock.Anything).Return(nil, errors.New("keychain locked")).Once()

		err := s.Start(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNetwork)

		st := s.State()
		assert.Equal(t, PhaseUnauthenticated, st.Phase)
		assert.False(t, st.Loading)
		assert.Nil(t, st.Error)
	})

	t.Run("start runs once", func(t *testing.T) {
		t.Parallel()

		s, backend, _ := newTestStore(t)
		startEmpty(t, s, backend)
		require.NoError(t, s.Start(context.Background()))

		backend.AssertNumberOfCalls(t, "GetSession", 1)
		assert.Equal(t, 1, backend.listenerCount())
	})

	t.Run("close releases the subscription once", func(t *testing.T) {
		t.Parallel()

		s, backend, _ := newTestStore(t)
		startEmpty(t, s, backend)

		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
		assert.Zero(t, backend.listenerCount())
	})
}

func TestStoreSubscribe(t *testing.T) {
	t.Parallel()

	s, backend, gate := newTestStore(t)
	startEmpty(t, s, backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := s.Subscribe(ctx)
	first := <-sub.Receive()
	assert.Equal(t, PhaseUnauthenticated, first.Phase)

	id := uuid.New()
	backend.On("SignInWithPassword", mock.Anything, "a@b.co", "pw").Return(testSession(id, "t"), nil).Once()
	gate.On("Check", mock.Anything, id).Return(true).Once()

	require.NoError(t, s.SignIn(context.Background(), "a@b.co", "pw"))

	require.Eventually(t, func() bool {
		select {
		case st := <-sub.Receive():
			return st.Phase == PhaseAuthenticatedComplete && !st.Loading
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	_, open := <-sub.Receive()
	assert.False(t, open)
}

func TestStoreSessionEvents(t *testing.T) {
	t.Parallel()

	signedIn := func(t *testing.T) (*Store, *MockBackend, *MockProfileGate, uuid.UUID) {
		t.Helper()
		s, backend, gate := newTestStore(t)
		id := uuid.New()
		backend.On("GetSession", mock.Anything).Return(testSession(id, "first"), nil).Once()
		gate.On("Check", mock.Anything, id).Return(true).Once()
		require.NoError(t, s.Start(context.Background()))
		return s, backend, gate, id
	}

	t.Run("signed out clears the session", func(t *testing.T) {
		t.Parallel()

		s, backend, _, _ := signedIn(t)
		backend.emit(SessionEvent{Type: EventSignedOut})

		st := s.State()
		assert.Equal(t, PhaseUnauthenticated, st.Phase)
		assert.Nil(t, st.Session)
		assert.Nil(t, st.User)
	})

	t.Run("token refresh replaces the session wholesale", func(t *testing.T) {
		t.Parallel()

		s, backend, _, id := signedIn(t)
		refreshed := testSession(id, "second")
		backend.emit(SessionEvent{Type: EventTokenRefreshed, Session: refreshed})

		st := s.State()
		assert.Same(t, refreshed, st.Session)
		assert.Equal(t, PhaseAuthenticatedComplete, st.Phase)
	})

	t.Run("refresh for another user is ignored", func(t *testing.T) {
		t.Parallel()

		s, backend, _, _ := signedIn(t)
		before := s.State().Session
		backend.emit(SessionEvent{Type: EventTokenRefreshed, Session: testSession(uuid.New(), "other")})

		assert.Same(t, before, s.State().Session)
	})

	t.Run("sign in from another device establishes the session", func(t *testing.T) {
		t.Parallel()

		s, backend, gate := newTestStore(t)
		startEmpty(t, s, backend)

		id := uuid.New()
		gate.On("Check", mock.Anything, id).Return(false).Once()
		backend.emit(SessionEvent{Type: EventSignedIn, Session: testSession(id, "external")})

		require.Eventually(t, func() bool {
			return s.State().Phase == PhaseAuthenticatedIncomplete
		}, time.Second, 5*time.Millisecond)
		assert.True(t, s.State().NeedsProfileCompletion)
	})

	t.Run("events after close are not observed", func(t *testing.T) {
		t.Parallel()

		s, backend, _, _ := signedIn(t)
		require.NoError(t, s.Close())
		backend.emit(SessionEvent{Type: EventSignedOut})

		assert.NotNil(t, s.State().Session)
	})
}

func TestStoreConcurrency(t *testing.T) {
	t.Parallel()

	t.Run("loading stays raised while any operation runs", func(t *testing.T) {
		t.Parallel()

		s, backend, _ := newTestStore(t)
		startEmpty(t, s, backend)

		releaseSlow := make(chan struct{})
		slowStarted := make(chan struct{})
		backend.On("SignInWithPassword", mock.Anything, "slow@x.co", "pw").
			Run(func(mock.Arguments) {
				close(slowStarted)
				<-releaseSlow
			}).
			Return(nil, ErrInvalidCredentials).Once()
		backend.On("SignInWithPassword", mock.Anything, "fast@x.co", "pw").
			Return(nil, ErrInvalidCredentials).Once()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.SignIn(context.Background(), "slow@x.co", "pw")
		}()
		<-slowStarted

		_ = s.SignIn(context.Background(), "fast@x.co", "pw")
		assert.True(t, s.State().Loading)

		close(releaseSlow)
		wg.Wait()
		assert.False(t, s.State().Loading)
	})

	t.Run("last completion wins", func(t *testing.T) {
		t.Parallel()

		s, backend, gate := newTestStore(t)
		startEmpty(t, s, backend)

		first, second := uuid.New(), uuid.New()
		releaseFirst := make(chan struct{})
		firstStarted := make(chan struct{})

		backend.On("SignInWithPassword", mock.Anything, "first@x.co", "pw").
			Run(func(mock.Arguments) {
				close(firstStarted)
				<-releaseFirst
			}).
			Return(testSession(first, "a"), nil).Once()
		backend.On("SignInWithPassword", mock.Anything, "second@x.co", "pw").
			Return(testSession(second, "b"), nil).Once()
		gate.On("Check", mock.Anything, mock.Anything).Return(true)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.SignIn(context.Background(), "first@x.co", "pw"))
		}()
		<-firstStarted

		require.NoError(t, s.SignIn(context.Background(), "second@x.co", "pw"))
		assert.Equal(t, second, s.State().User.ID)

		close(releaseFirst)
		wg.Wait()
		assert.Equal(t, first, s.State().User.ID)
	})
}

func TestStoreRestoreRaces(t *testing.T) {
	t.Parallel()

	// blockedRestore starts the store with GetSession parked until release
	// is called; the restore then resolves to (sess, err).
	blockedRestore := func(t *testing.T, s *Store, backend *MockBackend, sess *Session, err error) (release func(), done <-chan error) {
		t.Helper()

		entered := make(chan struct{})
		unblock := make(chan struct{})
		backend.On("GetSession", mock.Anything).
			Run(func(mock.Arguments) {
				close(entered)
				<-unblock
			}).
			Return(sess, err).
			Once()

		errc := make(chan error, 1)
		go func() { errc <- s.Start(context.Background()) }()
		<-entered

		return func() { close(unblock) }, errc
	}

	t.Run("recovery link during restore survives an empty restore", func(t *testing.T) {
		t.Parallel()

		s, backend, gate := newTestStore(t)
		release, done := blockedRestore(t, s, backend, nil, nil)

		id := uuid.New()
		backend.On("SetSession", mock.Anything, "AAA", "BBB").Return(testSession(id, "AAA"), nil).Once()
		gate.On("Check", mock.Anything, id).Return(true).Once()

		require.NoError(t, s.EstablishRecoverySession(context.Background(), deeplink.RecoveryTokens{AccessToken: "AAA", RefreshToken: "BBB", Type: "recovery"}))
		require.Equal(t, PhaseAuthenticatedComplete, s.State().Phase)
		assert.True(t, s.State().Loading, "restore still running")

		release()
		require.NoError(t, <-done)

		st := s.State()
		assert.Equal(t, PhaseAuthenticatedComplete, st.Phase)
		require.NotNil(t, st.Session)
		require.NotNil(t, st.User)
		assert.Equal(t, id, st.User.ID)
		assert.True(t, st.RecoveryPending)
		assert.False(t, st.Loading)
	})

	t.Run("recovery link during restore wins over a restored session", func(t *testing.T) {
		t.Parallel()

		recovered, stale := uuid.New(), uuid.New()
		s, backend, gate := newTestStore(t)
		release, done := blockedRestore(t, s, backend, testSession(stale, "old"), nil)

		backend.On("SetSession", mock.Anything, "AAA", "BBB").Return(testSession(recovered, "AAA"), nil).Once()
		gate.On("Check", mock.Anything, recovered).Return(false).Once()
		gate.On("Check", mock.Anything, stale).Return(true).Maybe()

		require.NoError(t, s.EstablishRecoverySession(context.Background(), deeplink.RecoveryTokens{AccessToken: "AAA", RefreshToken: "BBB"}))

		release()
		require.NoError(t, <-done)

		st := s.State()
		assert.Equal(t, PhaseAuthenticatedIncomplete, st.Phase)
		require.NotNil(t, st.User)
		assert.Equal(t, recovered, st.User.ID)
		assert.True(t, st.RecoveryPending)
	})

	t.Run("failed restore after a recovery link keeps the recovery session", func(t *testing.T) {
		t.Parallel()

		s, backend, gate := newTestStore(t)
		release, done := blockedRestore(t, s, backend, nil, errors.New("storage unavailable"))

		id := uuid.New()
		backend.On("SetSession", mock.Anything, "AAA", "").Return(testSession(id, "AAA"), nil).Once()
		gate.On("Check", mock.Anything, id).Return(true).Once()

		require.NoError(t, s.EstablishRecoverySession(context.Background(), deeplink.RecoveryTokens{AccessToken: "AAA"}))

		release()
		require.NoError(t, <-done)

		st := s.State()
		assert.Equal(t, PhaseAuthenticatedComplete, st.Phase)
		assert.NotNil(t, st.Session)
		assert.Nil(t, st.Error)
	})

	t.Run("recovery link without tokens stays pending after restore", func(t *testing.T) {
		t.Parallel()

		s, backend, _ := newTestStore(t)
		release, done := blockedRestore(t, s, backend, nil, nil)

		require.NoError(t, s.EstablishRecoverySession(context.Background(), deeplink.RecoveryTokens{}))

		release()
		require.NoError(t, <-done)

		st := s.State()
		assert.Equal(t, PhaseUnauthenticated, st.Phase)
		assert.Nil(t, st.Session)
		assert.True(t, st.RecoveryPending)
		assert.False(t, st.Loading)
	})

	t.Run("session events racing close", func(t *testing.T) {
		t.Parallel()

		s, backend, gate := newTestStore(t)
		startEmpty(t, s, backend)
		gate.On("Check", mock.Anything, mock.Anything).Return(true).Maybe()

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 20 {
					s.handleSessionChange(SessionEvent{Type: EventSignedIn, Session: testSession(uuid.New(), "t")})
				}
			}()
		}
		require.NoError(t, s.Close())
		wg.Wait()

		before := s.State().Session
		s.handleSessionChange(SessionEvent{Type: EventSignedIn, Session: testSession(uuid.New(), "late")})
		assert.Never(t, func() bool { return s.State().Session != before }, 50*time.Millisecond, 5*time.Millisecond)
	})
}

func TestClearNeverLeavesAnAuthenticatedPhase(t *testing.T) {
	t.Parallel()

	for _, from := range []Phase{PhaseInitializing, PhaseUnauthenticated, PhaseAuthenticatedIncomplete, PhaseAuthenticatedComplete} {
		for _, event := range []phaseEvent{evNoSession, evSignedOut} {
			s, _, _ := newTestStore(t)
			s.mu.Lock()
			s.phase = from
			s.session = testSession(uuid.New(), "t")
			s.clearLocked(context.Background(), event)
			phase, sess := s.phase, s.session
			s.mu.Unlock()

			assert.Equal(t, PhaseUnauthenticated, phase, "%s on %s", from, event)
			assert.Nil(t, sess)
		}
	}
}

func TestStoreContext(t *testing.T) {
	t.Parallel()

	s, backend, _ := newTestStore(t)
	startEmpty(t, s, backend)

	_, ok := StateFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, StoreFromContext(context.Background()))

	ctx := WithStore(context.Background(), s)
	assert.Same(t, s, StoreFromContext(ctx))

	st, ok := StateFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, PhaseUnauthenticated, st.Phase)
}

// Ensure the store satisfies the router's handler contract end to end.
func TestStoreAsRecoveryHandler(t *testing.T) {
	t.Parallel()

	s, backend, gate := newTestStore(t)
	startEmpty(t, s, backend)

	id := uuid.New()
	backend.On("SetSession", mock.Anything, "AAA", "BBB").Return(testSession(id, "AAA"), nil).Once()
	gate.On("Check", mock.Anything, id).Return(true).Once()

	src := deeplink.NewChannelSource("cuidador://auth/reset#access_token=AAA&refresh_token=BBB&type=recovery")
	router := deeplink.NewRouter(src, s)
	require.NoError(t, router.Start(context.Background()))
	defer router.Stop()

	st := s.State()
	assert.True(t, st.RecoveryPending)
	assert.Equal(t, PhaseAuthenticatedComplete, st.Phase)
	assert.Equal(t, id, st.User.ID)
}

func TestProfileGateCompatibility(t *testing.T) {
	t.Parallel()

	store := profile.NewMemoryStore()
	checker := profile.NewChecker(store)
	s, backend, _ := newTestStore(t)
	s.profiles = checker

	id := uuid.New()
	sess := testSession(id, "t")
	sess.User.Metadata = map[string]any{"full_name": "Ana Pérez"}
	backend.On("SignUp", mock.Anything, SignUpParams{Email: "ana@example.com", Password: "pw"}).Return(sess, nil).Once()

	require.NoError(t, s.SignUp(context.Background(), SignUpParams{Email: " ana@example.com ", Password: "pw"}))

	st := s.State()
	assert.Equal(t, PhaseAuthenticatedIncomplete, st.Phase)
	rec, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", rec.FullName)
	assert.Equal(t, "user@example.com", rec.Email)
}
