package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/auth"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
)

const defaultEntry = "session"

// SessionVault persists one auth.Session sealed in a Store.
type SessionVault struct {
	store  Store
	sealer *Sealer
	name   string
	logger *slog.Logger
}

// SessionOption configures a SessionVault.
type SessionOption func(*SessionVault)

// WithEntryName stores the session under name instead of "session".
func WithEntryName(name string) SessionOption {
	return func(v *SessionVault) {
		if name != "" {
			v.name = name
		}
	}
}

// WithLogger sets the logger used when an unreadable entry is discarded.
func WithLogger(l *slog.Logger) SessionOption {
	return func(v *SessionVault) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewSessionVault creates a SessionVault.
func NewSessionVault(store Store, sealer *Sealer, opts ...SessionOption) *SessionVault {
	v := &SessionVault{
		store:  store,
		sealer: sealer,
		name:   defaultEntry,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type sessionRecord struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at,omitzero"`
	UserID       uuid.UUID      `json:"user_id"`
	Email        string         `json:"email,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// LoadSession returns the stored session, or nil when none is stored. An
// entry that cannot be opened or decoded is deleted and reported as
// ErrUnreadable.
func (v *SessionVault) LoadSession(ctx context.Context) (*auth.Session, error) {
	sealed, err := v.store.Load(ctx, v.name)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec sessionRecord
	data, err := v.sealer.Open(sealed)
	if err == nil {
		err = json.Unmarshal(data, &rec)
	}
	if err == nil && rec.AccessToken == "" {
		err = errors.New("entry without access token")
	}
	if err != nil {
		v.logger.WarnContext(ctx, "discarding unreadable session",
			logger.Error(err),
			logger.Component("vault"),
		)
		if derr := v.store.Delete(ctx, v.name); derr != nil {
			err = errors.Join(err, derr)
		}
		return nil, errors.Join(ErrUnreadable, err)
	}

	return &auth.Session{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    rec.ExpiresAt,
		User: auth.User{
			ID:       rec.UserID,
			Email:    rec.Email,
			Metadata: rec.Metadata,
		},
	}, nil
}

// SaveSession stores sess. A nil session deletes the entry.
func (v *SessionVault) SaveSession(ctx context.Context, sess *auth.Session) error {
	if sess == nil {
		return v.store.Delete(ctx, v.name)
	}

	data, err := json.Marshal(sessionRecord{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
		UserID:       sess.User.ID,
		Email:        sess.User.Email,
		Metadata:     sess.User.Metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	sealed, err := v.sealer.Seal(data)
	if err != nil {
		return err
	}
	return v.store.Save(ctx, v.name, sealed)
}
