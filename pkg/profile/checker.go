package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
)

// ReadFailurePolicy decides how a failed profile read resolves. It returns
// true when the profile should be treated as complete.
type ReadFailurePolicy func(err error) bool

// FailOpen treats every read failure as a complete profile. A user is never
// locked out of the app because the profile store could not be read; the
// cost is that an incomplete profile may slip through during an outage.
func FailOpen(error) bool { return true }

// FailOpenOnNotFound treats a missing row as complete and any other failure
// (network, timeout, server error) as incomplete, sending the user to the
// completion screen where the data is re-read.
func FailOpenOnNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Checker evaluates and completes the profile gate for a user.
type Checker struct {
	store  Store
	policy ReadFailurePolicy
	logger *slog.Logger
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithReadFailurePolicy replaces the default FailOpen policy.
func WithReadFailurePolicy(p ReadFailurePolicy) CheckerOption {
	return func(c *Checker) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithLogger sets the logger used to report read and seeding failures.
func WithLogger(l *slog.Logger) CheckerOption {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChecker creates a Checker over store.
func NewChecker(store Store, opts ...CheckerOption) *Checker {
	c := &Checker{
		store:  store,
		policy: FailOpen,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check reports whether the profile of userID has every required field.
// Read failures are resolved by the configured ReadFailurePolicy.
func (c *Checker) Check(ctx context.Context, userID uuid.UUID) bool {
	rec, err := c.store.Get(ctx, userID)
	if err != nil {
		complete := c.policy(err)
		c.logger.WarnContext(ctx, "profile read failed",
			logger.UserID(userID),
			logger.Error(err),
			logger.Component("profile"),
			slog.Bool("treated_as_complete", complete),
		)
		return complete
	}
	return rec.Fields().Complete()
}

// Complete normalises fields and writes them for userID. Nothing is written
// unless every field is present after normalisation.
func (c *Checker) Complete(ctx context.Context, userID uuid.UUID, fields Fields) error {
	fields = Normalize(fields)
	if missing := fields.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrFieldRequired, strings.Join(missing, ", "))
	}

	if err := c.store.Upsert(ctx, userID, fields); err != nil {
		return errors.Join(ErrWriteFailed, err)
	}
	return nil
}

// Ensure creates the profile row for userID unless it already exists.
// A concurrent creation reported as ErrAlreadyExists counts as success.
func (c *Checker) Ensure(ctx context.Context, userID uuid.UUID, seed Seed) error {
	seed.FullName = strings.TrimSpace(seed.FullName)
	seed.Email = strings.TrimSpace(seed.Email)

	err := c.store.CreateIfAbsent(ctx, userID, seed)
	if err == nil || errors.Is(err, ErrAlreadyExists) {
		return nil
	}
	return fmt.Errorf("failed to seed profile: %w", err)
}
