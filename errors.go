package platelog

import "errors"

// Errors reported by the capture session and the daily ledger.
//
// They are always wrapped with context, test them with errors.Is.
var (
	// ErrInvalidState reports an operation attempted in a session state that does not allow it.
	ErrInvalidState = errors.New("invalid state")
	// ErrAnalysis reports a failed or malformed food analysis. The user may retry.
	ErrAnalysis = errors.New("analysis failed")
	// ErrStaleAnalysis reports an analysis response that arrived after its session moved on.
	ErrStaleAnalysis = errors.New("stale analysis response")
	// ErrValidation reports a non-positive portion or a candidate missing required fields.
	ErrValidation = errors.New("validation failed")
	// ErrLoad reports a store failure while loading a day.
	ErrLoad = errors.New("load failed")
	// ErrCommit reports a store failure while saving a meal.
	ErrCommit = errors.New("commit failed")
	// ErrDelete reports a store failure while deleting a meal.
	ErrDelete = errors.New("delete failed")
	// ErrNotFound reports a meal id unknown to the ledger or the store.
	ErrNotFound = errors.New("meal not found")
)
