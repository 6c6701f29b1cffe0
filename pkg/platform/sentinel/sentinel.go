package sentinel

import "errors"

// Stores return these (optionally wrapped) to describe facts about a profile
// document; the student service decides what each one means to a caller.
//
//   - ErrNotFound: no document for the uid
//   - ErrConflict: a document for the uid already exists (lost a create race)
//   - ErrUnavailable: the backing store or cache could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
