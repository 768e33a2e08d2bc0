// Package profile implements the profile completeness gate.
//
// A signed-in user must have four profile fields (phone, birthdate, country
// and relationship to the baby) before the main application is reachable.
// Checker reads the profile record for a user and reports whether it is
// complete, writes the fields when the user completes the form, and seeds an
// empty row on first external sign-in.
//
// Read failures resolve through a named ReadFailurePolicy. The default,
// FailOpen, treats any failure as complete so an outage of the profile store
// never locks a user out; FailOpenOnNotFound is stricter for transient
// errors.
//
// Stores: MemoryStore for tests and local hosts, PGStore for the Postgres
// profiles table (schema in Migrations, applied with pg.Migrate).
package profile
