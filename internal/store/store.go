package store

// Store defines the interface for fit result persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a result doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveResult atomically saves the record of a finished fit. An existing
	// record with the same ID is overwritten.
	SaveResult(id string, record *FitRecord) error

	// LoadResult retrieves the record for the given fit.
	// Returns ErrNotFound if no record exists for this ID.
	LoadResult(id string) (*FitRecord, error)

	// ListResults returns metadata for all stored fits, oldest first.
	ListResults() ([]FitInfo, error)

	// DeleteResult removes the record and its directory.
	// Returns ErrNotFound if no record exists for this ID.
	DeleteResult(id string) error
}

// ErrNotFound is returned when a requested fit result does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing fit result.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "fit result not found: " + e.ID
	}
	return "fit result not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
