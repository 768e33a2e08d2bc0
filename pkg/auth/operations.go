package auth

import (
	"context"
	"strings"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/deeplink"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/profile"
)

// Operation names used in logs and metrics.
const (
	OpSignIn          = "sign_in"
	OpSignUp          = "sign_up"
	OpSignOut         = "sign_out"
	OpPasswordReset   = "password_reset"
	OpUpdatePassword  = "update_password"
	OpExternalSignIn  = "external_sign_in"
	OpCompleteProfile = "complete_profile"
	OpRecoverySession = "recovery_session"
)

// SignIn authenticates with email and password. The email is trimmed; the
// password is passed through untouched.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	return s.run(ctx, OpSignIn, "", func(ctx context.Context) error {
		sess, err := s.backend.SignInWithPassword(ctx, strings.TrimSpace(email), password)
		if err != nil {
			return err
		}
		return s.establish(ctx, sess, false)
	})
}

// SignUp registers an account. When the backend signs the user in right
// away the profile row is seeded and the session established; when it
// requires email confirmation the store stays unauthenticated.
func (s *Store) SignUp(ctx context.Context, params SignUpParams) error {
	params.Email = strings.TrimSpace(params.Email)

	return s.run(ctx, OpSignUp, "", func(ctx context.Context) error {
		sess, err := s.backend.SignUp(ctx, params)
		if err != nil {
			return err
		}
		if sess == nil {
			s.logger.InfoContext(ctx, "sign-up awaiting email confirmation")
			return nil
		}
		s.seed(ctx, sess)
		return s.establish(ctx, sess, false)
	})
}

// SignOut ends the session on the backend and clears it locally.
func (s *Store) SignOut(ctx context.Context) error {
	return s.run(ctx, OpSignOut, "", func(ctx context.Context) error {
		if err := s.backend.SignOut(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		s.clearLocked(ctx, evSignedOut)
		s.mu.Unlock()
		return nil
	})
}

// SendPasswordResetEmail invalidates any active session and asks the backend
// to email a recovery link that redirects to the configured recovery URL.
func (s *Store) SendPasswordResetEmail(ctx context.Context, email string) error {
	return s.run(ctx, OpPasswordReset, "", func(ctx context.Context) error {
		if err := s.backend.SignOut(ctx); err != nil {
			s.logger.WarnContext(ctx, "sign-out before password reset failed", logger.Error(err))
		}
		s.mu.Lock()
		s.clearLocked(ctx, evSignedOut)
		s.mu.Unlock()

		return s.backend.ResetPasswordForEmail(ctx, strings.TrimSpace(email), s.cfg.RecoveryRedirectURL)
	})
}

// UpdatePassword changes the password of the current session, typically the
// one established from a recovery link. The session is re-read afterwards so
// the store holds whatever the backend issued.
func (s *Store) UpdatePassword(ctx context.Context, newPassword string) error {
	return s.run(ctx, OpUpdatePassword, "", func(ctx context.Context) error {
		if s.current() == nil {
			return &Error{
				Kind:    KindSessionMissing,
				Message: "no active session: open the recovery link again or request a new one",
			}
		}
		if err := s.backend.UpdatePassword(ctx, newPassword); err != nil {
			return err
		}

		sess, err := s.backend.GetSession(ctx)
		if err != nil || sess == nil {
			s.logger.WarnContext(ctx, "session re-read after password update failed", logger.Error(err))
			s.mu.Lock()
			s.recovery = false
			s.publishLocked()
			s.mu.Unlock()
			return nil
		}

		s.mu.Lock()
		same := s.session != nil && s.session.User.ID == sess.User.ID
		if same {
			s.session = sess
			s.recovery = false
			s.publishLocked()
		}
		s.mu.Unlock()
		if same {
			return nil
		}
		return s.establish(ctx, sess, false)
	})
}

// SignInWithGoogle runs the provider registered under Config.GoogleProvider.
func (s *Store) SignInWithGoogle(ctx context.Context) error {
	return s.signInWithProvider(ctx, s.cfg.GoogleProvider)
}

// SignInWithApple runs the provider registered under Config.AppleProvider.
func (s *Store) SignInWithApple(ctx context.Context) error {
	return s.signInWithProvider(ctx, s.cfg.AppleProvider)
}

func (s *Store) signInWithProvider(ctx context.Context, name string) error {
	p, ok := s.providers[name]
	if !ok {
		return s.run(ctx, OpExternalSignIn, name, func(context.Context) error {
			return &Error{
				Kind:    KindProviderUnavailable,
				Message: "sign-in with " + name + " is not configured",
			}
		})
	}
	return s.SignInWith(ctx, p)
}

// SignInWith runs an external provider flow, seeds the profile row of the
// resulting user and establishes the session.
func (s *Store) SignInWith(ctx context.Context, p ExternalSignIn) error {
	if p == nil {
		return s.run(ctx, OpExternalSignIn, "", func(context.Context) error {
			return ErrProviderUnavailable
		})
	}

	return s.run(ctx, OpExternalSignIn, p.Provider(), func(ctx context.Context) error {
		sess, err := p.SignIn(ctx)
		if err != nil {
			return err
		}
		if sess == nil {
			return ErrSessionMissing
		}
		s.seed(ctx, sess)
		return s.establish(ctx, sess, false)
	})
}

// CompleteProfile writes the required profile fields for the current user
// and lifts the profile gate. Validation and write failures are returned.
func (s *Store) CompleteProfile(ctx context.Context, fields profile.Fields) error {
	return s.run(ctx, OpCompleteProfile, "", func(ctx context.Context) error {
		sess := s.current()
		if sess == nil {
			return ErrSessionMissing
		}
		if err := s.profiles.Complete(ctx, sess.User.ID, fields); err != nil {
			return newError(KindProfileWriteFailed, err.Error(), err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.session != nil && s.session.User.ID == sess.User.ID {
			s.fireLocked(ctx, evProfileCompleted, true)
			s.needsProfile = false
			s.publishLocked()
		}
		return nil
	})
}

// EstablishRecoverySession installs the session carried by a recovery link.
// A link without an access token only marks recovery as pending so the
// reset screen can ask for a new link.
func (s *Store) EstablishRecoverySession(ctx context.Context, tokens deeplink.RecoveryTokens) error {
	if tokens.Empty() {
		s.logger.InfoContext(ctx, "recovery link carried no access token")
		s.mu.Lock()
		s.recovery = true
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}

	return s.run(ctx, OpRecoverySession, "", func(ctx context.Context) error {
		sess, err := s.backend.SetSession(ctx, tokens.AccessToken, tokens.RefreshToken)
		if err != nil {
			return err
		}
		return s.establish(ctx, sess, true)
	})
}
