package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicateKey is returned by add when the primary key already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned by mutations that need an existing record.
	ErrNotFound = errors.New("record not found")
)

// SchemaError reports that a collection the store relies on does not exist
// in the database file. The store answers it by recreating the database.
type SchemaError struct {
	Collection string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("offline store: collection %q does not exist", e.Collection)
}

// TransactionError wraps a failed or aborted read/write transaction.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("offline store %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// classify maps a driver error raised while touching collection into the
// store's error taxonomy.
func classify(collection, op string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return &SchemaError{Collection: collection}
	}
	return &TransactionError{Op: collection + "." + op, Err: err}
}

// missingTable returns the table named by a "no such table" driver error.
func missingTable(err error) (string, bool) {
	const marker = "no such table: "
	msg := err.Error()
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", false
	}
	name := msg[i+len(marker):]
	if j := strings.IndexAny(name, " \t\n"); j >= 0 {
		name = name[:j]
	}
	if k := strings.LastIndexByte(name, '.'); k >= 0 {
		name = name[k+1:]
	}
	return name, true
}

func isDuplicate(err error) bool {
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
