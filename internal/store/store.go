package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Stores run against either, so multi-entity operations can be grouped
// into a single transaction with Transact.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Transact runs fn inside a transaction. The transaction is rolled back
// if fn returns an error or panics, committed otherwise.
func Transact(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure, used to turn racing duplicate inserts into Conflict results.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
