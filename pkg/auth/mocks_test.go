package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/deeplink"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/profile"
)

// MockBackend is a mock implementation of Backend. Session change listeners
// are kept for real so tests can emit events.
type MockBackend struct {
	mock.Mock

	mu        sync.Mutex
	listeners map[int]func(SessionEvent)
	next      int
}

func (m *MockBackend) GetSession(ctx context.Context) (*Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockBackend) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockBackend) SignUp(ctx context.Context, params SignUpParams) (*Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockBackend) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBackend) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	args := m.Called(ctx, email, redirectURL)
	return args.Error(0)
}

func (m *MockBackend) UpdatePassword(ctx context.Context, newPassword string) error {
	args := m.Called(ctx, newPassword)
	return args.Error(0)
}

func (m *MockBackend) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	args := m.Called(ctx, accessToken, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockBackend) SignInWithIDToken(ctx context.Context, params IDTokenParams) (*Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockBackend) OAuthURL(ctx context.Context, provider, redirectURL string) (string, error) {
	args := m.Called(ctx, provider, redirectURL)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) UpdateUser(ctx context.Context, update UserUpdate) (*User, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockBackend) OnSessionChange(fn func(SessionEvent)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listeners == nil {
		m.listeners = make(map[int]func(SessionEvent))
	}
	m.next++
	id := m.next
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *MockBackend) emit(ev SessionEvent) {
	m.mu.Lock()
	fns := make([]func(SessionEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (m *MockBackend) listenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// MockProfileGate is a mock implementation of ProfileGate.
type MockProfileGate struct {
	mock.Mock
}

func (m *MockProfileGate) Check(ctx context.Context, userID uuid.UUID) bool {
	args := m.Called(ctx, userID)
	return args.Bool(0)
}

func (m *MockProfileGate) Complete(ctx context.Context, userID uuid.UUID, fields profile.Fields) error {
	args := m.Called(ctx, userID, fields)
	return args.Error(0)
}

func (m *MockProfileGate) Ensure(ctx context.Context, userID uuid.UUID, seed profile.Seed) error {
	args := m.Called(ctx, userID, seed)
	return args.Error(0)
}

// MockBrowserSession is a mock implementation of BrowserSession.
type MockBrowserSession struct {
	mock.Mock
}

func (m *MockBrowserSession) Open(ctx context.Context, authURL, redirectURL string) (string, error) {
	args := m.Called(ctx, authURL, redirectURL)
	return args.String(0), args.Error(1)
}

// MockAttestor is a mock implementation of IdentityAttestor.
type MockAttestor struct {
	mock.Mock
}

func (m *MockAttestor) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockAttestor) Request(ctx context.Context, nonceDigest string) (*IdentityCredential, error) {
	args := m.Called(ctx, nonceDigest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*IdentityCredential), args.Error(1)
}

// MockExternalSignIn is a mock implementation of ExternalSignIn.
type MockExternalSignIn struct {
	mock.Mock
	name string
}

func (m *MockExternalSignIn) Provider() string { return m.name }

func (m *MockExternalSignIn) SignIn(ctx context.Context) (*Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

// stubWaiter hands out a fixed channel as the next callback.
type stubWaiter struct {
	ch       chan deeplink.Link
	released bool
	mu       sync.Mutex
}

func newStubWaiter() *stubWaiter {
	return &stubWaiter{ch: make(chan deeplink.Link, 1)}
}

func (w *stubWaiter) ExpectCallback() (<-chan deeplink.Link, func()) {
	return w.ch, func() {
		w.mu.Lock()
		w.released = true
		w.mu.Unlock()
	}
}

func (w *stubWaiter) wasReleased() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.released
}

func testSession(id uuid.UUID, token string) *Session {
	return &Session{
		AccessToken:  token,
		RefreshToken: "refresh-" + token,
		User: User{
			ID:    id,
			Email: "user@example.com",
		},
	}
}
