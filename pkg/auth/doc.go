// Package auth manages the authentication and session lifecycle of the
// mobile client.
//
// A Store owns the single current session and publishes immutable State
// snapshots to the navigation layer. Operations (password sign-in and
// sign-up, sign-out, password recovery, external providers and profile
// completion) share one discipline: the previous error is cleared, the
// loading gate is raised, remote calls run without holding any lock, and the
// result is committed atomically before loading is lowered. Concurrent
// operations are allowed; the last one to complete wins.
//
// # Phases
//
// The store moves between four phases:
//
//	initializing -> unauthenticated
//	             -> authenticated:profile-incomplete
//	             -> authenticated:complete
//
// An authenticated phase is chosen by the profile completeness check run for
// every newly established session (see package profile).
//
// # External providers
//
// BrowserOAuthAdapter runs a browser redirect flow and accepts the callback
// either as the browser's return value or as a deep link routed by
// deeplink.Router. NativeIdentityAdapter exchanges a platform identity token
// bound to a SHA-256 nonce and backfills the name and email the platform
// shares only on first authorization.
//
// # Errors
//
// Every operation returns an *Error whose Kind drives the message shown to
// the user. Cancellation is returned but never published as State.Error.
//
//	if errors.Is(err, auth.ErrInvalidCredentials) {
//		// wrong email or password
//	}
//
// # Usage
//
//	store := auth.NewStore(backend, profile.NewChecker(profiles),
//		auth.WithLogger(log),
//		auth.WithProvider(auth.NewBrowserOAuthAdapter(backend, browser, "google", cfg.OAuthRedirectURL)),
//	)
//	if err := store.Start(ctx); err != nil {
//		log.Warn("restore failed", logger.Error(err))
//	}
//	defer store.Close()
//
//	sub := store.Subscribe(ctx)
//	for st := range sub.Receive() {
//		render(st.Phase)
//	}
package auth
