package deeplink_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/deeplink"
)

type MockRecoveryHandler struct {
	mock.Mock
}

func (m *MockRecoveryHandler) EstablishRecoverySession(ctx context.Context, tokens deeplink.RecoveryTokens) error {
	args := m.Called(ctx, tokens)
	return args.Error(0)
}

type failingSource struct {
	*deeplink.ChannelSource
}

func (failingSource) InitialURL(context.Context) (string, error) {
	return "", errors.New("platform unavailable")
}

const recoveryURL = "cuidador://auth/reset#access_token=AAA&refresh_token=BBB&type=recovery"

func TestRouterStartStop(t *testing.T) {
	t.Parallel()

	t.Run("start registers a single listener", func(t *testing.T) {
		t.Parallel()

		src := deeplink.NewChannelSource("")
		r := deeplink.NewRouter(src, nil)

		require.NoError(t, r.Start(context.Background()))
		require.NoError(t, r.Start(context.Background()))

		assert.True(t, r.Running())
		assert.Equal(t, 1, src.Listeners())
	})

	t.Run("stop releases the listener and is idempotent", func(t *testing.T) {
		t.Parallel()

		src := deeplink.NewChannelSource("")
		r := deeplink.NewRouter(src, nil)

		require.NoError(t, r.Start(context.Background()))
		r.Stop()
		r.Stop()

		assert.False(t, r.Running())
		assert.Zero(t, src.Listeners())
	})

	t.Run("restart after stop", func(t *testing.T) {
		t.Parallel()

		src := deeplink.NewChannelSource("")
		r := deeplink.NewRouter(src, nil)

		require.NoError(t, r.Start(context.Background()))
		r.Stop()
		require.NoError(t, r.Start(context.Background()))

		assert.True(t, r.Running())
		assert.Equal(t, 1, src.Listeners())
	})

	t.Run("stop without start", func(t *testing.T) {
		t.Parallel()

		r := deeplink.NewRouter(deeplink.NewChannelSource(""), nil)
		assert.NotPanics(t, r.Stop)
		assert.False(t, r.Running())
	})
}

func TestRouterRecovery(t *testing.T) {
	t.Parallel()

	tokens := deeplink.RecoveryTokens{AccessToken: "AAA", RefreshToken: "BBB", Type: "recovery"}

	t.Run("initial url is routed on start", func(t *testing.T) {
		t.Parallel()

		handler := &MockRecoveryHandler{}
		handler.On("EstablishRecoverySession", mock.Anything, tokens).Return(nil).Once()

		r := deeplink.NewRouter(deeplink.NewChannelSource(recoveryURL), handler)
		require.NoError(t, r.Start(context.Background()))
		defer r.Stop()

		handler.AssertExpectations(t)
	})

	t.Run("delivered url is routed while running", func(t *testing.T) {
		t.Parallel()

		handler := &MockRecoveryHandler{}
		handler.On("EstablishRecoverySession", mock.Anything, tokens).Return(nil).Once()

		src := deeplink.NewChannelSource("")
		r := deeplink.NewRouter(src, handler)
		require.NoError(t, r.Start(context.Background()))

		src.Deliver(recoveryURL)
		r.Stop()
		src.Deliver(recoveryURL)

		handler.AssertExpectations(t)
	})

	t.Run("handler failure does not propagate", func(t *testing.T) {
		t.Parallel()

		handler := &MockRecoveryHandler{}
		handler.On("EstablishRecoverySession", mock.Anything, tokens).Return(errors.New("expired link")).Twice()

		src := deeplink.NewChannelSource(recoveryURL)
		r := deeplink.NewRouter(src, handler)

		require.NoError(t, r.Start(context.Background()))
		assert.NotPanics(t, func() { src.Deliver(recoveryURL) })
		r.Stop()

		handler.AssertExpectations(t)
	})

	t.Run("empty tokens still reach the handler", func(t *testing.T) {
		t.Parallel()

		handler := &MockRecoveryHandler{}
		handler.On("EstablishRecoverySession", mock.Anything, deeplink.RecoveryTokens{}).Return(nil).Once()

		r := deeplink.NewRouter(deeplink.NewChannelSource(""), handler)
		r.Handle(context.Background(), "cuidador://auth/reset")

		handler.AssertExpectations(t)
	})

	t.Run("start tolerates initial url failure", func(t *testing.T) {
		t.Parallel()

		handler := &MockRecoveryHandler{}
		src := failingSource{deeplink.NewChannelSource("")}
		r := deeplink.NewRouter(src, handler)

		require.NoError(t, r.Start(context.Background()))
		assert.True(t, r.Running())
		handler.AssertNotCalled(t, "EstablishRecoverySession", mock.Anything, mock.Anything)
	})

	t.Run("handler context survives start context cancellation", func(t *testing.T) {
		t.Parallel()

		var (
			mu      sync.Mutex
			lastErr error
		)
		handler := &MockRecoveryHandler{}
		handler.On("EstablishRecoverySession", mock.Anything, tokens).
			Run(func(args mock.Arguments) {
				mu.Lock()
				lastErr = args.Get(0).(context.Context).Err()
				mu.Unlock()
			}).
			Return(nil)

		src := deeplink.NewChannelSource("")
		r := deeplink.NewRouter(src, handler)

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, r.Start(ctx))
		cancel()
		src.Deliver(recoveryURL)
		r.Stop()

		mu.Lock()
		defer mu.Unlock()
		assert.NoError(t, lastErr)
	})
}

func TestRouterCallbacks(t *testing.T) {
	t.Parallel()

	const callbackURL = "cuidador://auth/callback#access_token=tok&refresh_token=ref"

	t.Run("callback reaches the waiting flow", func(t *testing.T) {
		t.Parallel()

		handler := &MockRecoveryHandler{}
		src := deeplink.NewChannelSource("")
		r := deeplink.NewRouter(src, handler)
		require.NoError(t, r.Start(context.Background()))
		defer r.Stop()

		ch, release := r.ExpectCallback()
		defer release()

		src.Deliver(callbackURL)

		select {
		case link := <-ch:
			assert.Equal(t, deeplink.KindOAuthCallback, link.Kind)
			assert.Equal(t, "tok", link.OAuth.AccessToken)
			assert.Equal(t, "ref", link.OAuth.RefreshToken)
		case <-time.After(time.Second):
			t.Fatal("callback not delivered")
		}
		handler.AssertNotCalled(t, "EstablishRecoverySession", mock.Anything, mock.Anything)
	})

	t.Run("callback without a waiter is dropped", func(t *testing.T) {
		t.Parallel()

		handler := &MockRecoveryHandler{}
		r := deeplink.NewRouter(deeplink.NewChannelSource(""), handler)

		assert.NotPanics(t, func() { r.Handle(context.Background(), callbackURL) })
		handler.AssertNotCalled(t, "EstablishRecoverySession", mock.Anything, mock.Anything)
	})

	t.Run("released waiter receives nothing", func(t *testing.T) {
		t.Parallel()

		r := deeplink.NewRouter(deeplink.NewChannelSource(""), nil)

		ch, release := r.ExpectCallback()
		release()
		r.Handle(context.Background(), callbackURL)

		select {
		case <-ch:
			t.Fatal("released waiter received a link")
		default:
		}
	})

	t.Run("newer waiter replaces older", func(t *testing.T) {
		t.Parallel()

		r := deeplink.NewRouter(deeplink.NewChannelSource(""), nil)

		older, releaseOlder := r.ExpectCallback()
		newer, releaseNewer := r.ExpectCallback()
		defer releaseNewer()

		// Releasing the older registration must not drop the newer one.
		releaseOlder()
		r.Handle(context.Background(), callbackURL)

		select {
		case link := <-newer:
			assert.Equal(t, "tok", link.OAuth.AccessToken)
		default:
			t.Fatal("newer waiter did not receive the link")
		}
		select {
		case <-older:
			t.Fatal("older waiter received the link")
		default:
		}
	})

	t.Run("waiter is consumed by one delivery", func(t *testing.T) {
		t.Parallel()

		r := deeplink.NewRouter(deeplink.NewChannelSource(""), nil)

		ch, release := r.ExpectCallback()
		defer release()

		r.Handle(context.Background(), callbackURL)
		assert.NotPanics(t, func() { r.Handle(context.Background(), callbackURL) })
		assert.Len(t, ch, 1)
	})
}
