// Package authapi is an HTTP client for a GoTrue-compatible auth service.
//
// Client implements auth.Backend: password and identity-token grants,
// sign-up, sign-out, password recovery, user updates and installing tokens
// received through deep links. The current session is cached in memory and
// every change is reported to listeners registered with OnSessionChange.
// WithPersistence adds a SessionStore that restores the session on first use
// and receives every later change.
//
// Error responses are mapped onto the auth error kinds where they carry one
// (invalid credentials, missing session, disabled provider); anything else is
// returned as an *APIError.
//
//	client, err := authapi.New(authapi.Config{
//		URL:     "https://project.example.com/auth/v1",
//		AnonKey: anonKey,
//	}, authapi.WithLogger(log))
package authapi
