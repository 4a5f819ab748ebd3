package models

import (
	"fmt"
	"time"
)

// DataFetchError is a failed or non-success call to the remote store.
// Callers treat the table as unavailable instead of aborting the process.
type DataFetchError struct {
	Op         string // fetch, create, update
	Table      string
	StatusCode int // 0 for transport failures
	Body       string
	Err        error
}

func (e *DataFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Op, e.Table, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

// InsufficientDataError means there was nothing to train on.
type InsufficientDataError struct {
	What   string
	Cutoff time.Time
}

func (e *InsufficientDataError) Error() string {
	if e.Cutoff.IsZero() {
		return fmt.Sprintf("insufficient data: no %s to train on", e.What)
	}
	return fmt.Sprintf("insufficient data: no %s before %s", e.What, e.Cutoff.Format("2006-01-02"))
}

// UnresolvableReferenceError is a link to a record absent from the joined lookup.
// It degrades to a sentinel value and is surfaced as a Warning.
type UnresolvableReferenceError struct {
	Table    string
	RecordID string
	Ref      string
}

func (e *UnresolvableReferenceError) Error() string {
	return fmt.Sprintf("record %s references %q which is not present in %s", e.RecordID, e.Ref, e.Table)
}

// Warning converts the error to its non-fatal diagnostic form.
func (e *UnresolvableReferenceError) Warning(field string) Warning {
	return Warning{
		Kind:     WarningUnresolvedReference,
		RecordID: e.RecordID,
		Field:    field,
		Message:  e.Error(),
	}
}

// WriteBackError is a single failed status update.
type WriteBackError struct {
	RecordID string
	Status   OrderStatus
	Err      error
}

func (e *WriteBackError) Error() string {
	return fmt.Sprintf("write-back of %s=%s failed: %v", e.RecordID, e.Status, e.Err)
}

func (e *WriteBackError) Unwrap() error { return e.Err }
