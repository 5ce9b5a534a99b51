package media

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned by Remove for an index outside the pending set.
	ErrIndexOutOfRange = errors.New("media: attachment index out of range")
	// ErrClosed is returned once the owning form has been torn down.
	ErrClosed = errors.New("media: preview manager closed")
	// ErrSaveInFlight rejects a save while another save on the same form is running.
	ErrSaveInFlight = errors.New("media: save already in progress")
	// ErrMissingParentID indicates the backend accepted a create but returned no identifier.
	ErrMissingParentID = errors.New("media: parent created without identifier")
	// ErrFileUnavailable indicates the raw bytes behind a handle are gone.
	ErrFileUnavailable = errors.New("media: file content unavailable")
)

// ParentSaveError wraps a phase 1 failure.
type ParentSaveError struct {
	Op  string
	Err error
}

func (e *ParentSaveError) Error() string {
	return fmt.Sprintf("media: %s parent: %v", e.Op, e.Err)
}

func (e *ParentSaveError) Unwrap() error { return e.Err }

// UploadError records one failed attachment upload.
type UploadError struct {
	Position int
	Name     string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("media: upload #%d (%s): %v", e.Position, e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
