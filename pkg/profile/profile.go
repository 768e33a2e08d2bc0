package profile

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Record is a user's row in the profile store. ID equals the auth user id.
type Record struct {
	ID                 uuid.UUID
	FullName           string
	Email              string
	Phone              string
	Birthdate          string
	Country            string
	RelationshipToBaby string
}

// Fields are the four values a profile needs before the main app is reachable.
type Fields struct {
	Phone              string
	Birthdate          string
	Country            string
	RelationshipToBaby string
}

// Fields extracts the required fields from r.
func (r *Record) Fields() Fields {
	if r == nil {
		return Fields{}
	}
	return Fields{
		Phone:              r.Phone,
		Birthdate:          r.Birthdate,
		Country:            r.Country,
		RelationshipToBaby: r.RelationshipToBaby,
	}
}

// Complete reports whether every required field holds a non-blank value.
func (f Fields) Complete() bool {
	return strings.TrimSpace(f.Phone) != "" &&
		strings.TrimSpace(f.Birthdate) != "" &&
		strings.TrimSpace(f.Country) != "" &&
		strings.TrimSpace(f.RelationshipToBaby) != ""
}

// Missing lists the names of blank required fields.
func (f Fields) Missing() []string {
	var missing []string
	if strings.TrimSpace(f.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(f.Birthdate) == "" {
		missing = append(missing, "birthdate")
	}
	if strings.TrimSpace(f.Country) == "" {
		missing = append(missing, "country")
	}
	if strings.TrimSpace(f.RelationshipToBaby) == "" {
		missing = append(missing, "relationship_to_baby")
	}
	return missing
}

// Seed holds the values a new row is created with on first external sign-in.
type Seed struct {
	FullName string
	Email    string
}

// Store is the remote profile record store.
type Store interface {
	// Get returns ErrNotFound when no row exists for userID.
	Get(ctx context.Context, userID uuid.UUID) (*Record, error)

	// Upsert writes the required fields, creating the row if needed.
	Upsert(ctx context.Context, userID uuid.UUID, fields Fields) error

	// CreateIfAbsent inserts a row seeded from seed unless one exists. An
	// existing row is left untouched; implementations may report that case
	// as nil or as ErrAlreadyExists.
	CreateIfAbsent(ctx context.Context, userID uuid.UUID, seed Seed) error
}
