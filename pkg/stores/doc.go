// Package stores persists transition history in SQLite. The schema is
// managed by embedded migrations.
package stores
