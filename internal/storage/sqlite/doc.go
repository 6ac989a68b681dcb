// Package sqlite persists finalised rPPG sessions and their per-tick
// samples in a SQLite database.
//
// Responsibilities: opening the database with the standard pragmas,
// applying the embedded golang-migrate migrations, and CRUD for session
// summaries and samples.
// Key types: SessionStore, SessionRecord.
//
// Dependency rule: storage depends on the session export type only; the
// engine never imports this package.
package sqlite
