// Package database provides SQLite connectivity for Hearth's firing
// history.
//
// It manages the connection (WAL mode, busy timeout, single writer),
// embedded schema migrations, and health checks. All queries use
// parameterised statements, and the database file is created with
// owner-only permissions.
package database
