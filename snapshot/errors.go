package snapshot

import (
	"github.com/pkg/errors"

	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

var (
	// ErrEngineUnavailable is returned when the engine cannot hand out a new
	// snapshot, typically because the database is closing.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrSnapshotClosed is returned for reads against a snapshot that is
	// releasing or released.
	ErrSnapshotClosed = errors.New("snapshot closed")

	// ErrKeyNotFound is the normal outcome of reading an absent key.
	ErrKeyNotFound = driver.ErrNotFound

	errRegistryClosed   = errors.New("snapshot registry closed")
	errDispatcherClosed = errors.New("read dispatcher closed")
)

// EngineError carries an underlying storage fault verbatim.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return "engine error: " + e.Op + ": " + e.Err.Error()
}

func (e *EngineError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause reach the engine error.
func (e *EngineError) Cause() error { return e.Err }

func IsEngineError(err error) bool {
	var e *EngineError
	return errors.As(err, &e)
}

type unavailableError struct {
	cause error
}

func engineUnavailable(cause error) error {
	return &unavailableError{cause: cause}
}

func (e *unavailableError) Error() string {
	return ErrEngineUnavailable.Error() + ": " + e.cause.Error()
}

func (e *unavailableError) Is(target error) bool { return target == ErrEngineUnavailable }

func (e *unavailableError) Unwrap() error { return e.cause }

// readError maps an engine read result onto the snapshot error taxonomy.
func readError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, driver.ErrNotFound):
		return ErrKeyNotFound
	default:
		return &EngineError{Op: op, Err: err}
	}
}
