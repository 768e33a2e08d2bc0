package profile

import (
	"context"
	"embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/pg"
)

// Migrations holds the goose migrations for the profiles table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations passed to pg.Migrate.
const MigrationsDir = "migrations"

// DB is the subset of *pgxpool.Pool used by PGStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store on the profiles table.
type PGStore struct {
	db DB
}

// NewPGStore creates a store over db, typically a *pgxpool.Pool from pg.Connect.
func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

const selectProfile = `
SELECT id, full_name, email, phone, birthdate, country, relationship_to_baby
FROM profiles
WHERE id = $1`

// Get implements Store.
func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	var rec Record
	err := s.db.QueryRow(ctx, selectProfile, userID).Scan(
		&rec.ID,
		&rec.FullName,
		&rec.Email,
		&rec.Phone,
		&rec.Birthdate,
		&rec.Country,
		&rec.RelationshipToBaby,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return &rec, nil
}

const upsertProfile = `
INSERT INTO profiles (id, phone, birthdate, country, relationship_to_baby)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    phone = EXCLUDED.phone,
    birthdate = EXCLUDED.birthdate,
    country = EXCLUDED.country,
    relationship_to_baby = EXCLUDED.relationship_to_baby,
    updated_at = now()`

// Upsert implements Store.
func (s *PGStore) Upsert(ctx context.Context, userID uuid.UUID, fields Fields) error {
	if _, err := s.db.Exec(ctx, upsertProfile,
		userID,
		fields.Phone,
		fields.Birthdate,
		fields.Country,
		fields.RelationshipToBaby,
	); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

const insertSeed = `
INSERT INTO profiles (id, full_name, email)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING`

// CreateIfAbsent implements Store. A row that already exists, including one
// created by a concurrent sign-in, is reported as ErrAlreadyExists.
func (s *PGStore) CreateIfAbsent(ctx context.Context, userID uuid.UUID, seed Seed) error {
	tag, err := s.db.Exec(ctx, insertSeed, userID, seed.FullName, seed.Email)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

var _ Store = (*PGStore)(nil)
