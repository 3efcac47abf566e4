package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/codepad/internal/errors"
)

// Store is an append-only list of project records.
type Store interface {
	// Append adds r to the end of the list. A failed append leaves the list
	// as it was.
	Append(ctx context.Context, r Record) error
	// Last returns the most recently appended record, or an error matching
	// errors.ErrNoProjects.
	Last(ctx context.Context) (Record, error)
	// List returns every record, oldest first.
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// OpenStore opens the store named by driver at path.
func OpenStore(driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverFile:
		return NewFileStore(path), nil
	case DriverSQLite:
		return OpenSQLStore(path)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown storage driver %q", driver))
	}
}

func storageError(op string, err error) *errors.CodepadError {
	return errors.NewPersistenceError(errors.ErrCodeStorage, op, err)
}
