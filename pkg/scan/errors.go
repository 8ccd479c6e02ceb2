// Package scan orchestrates the detection pipeline: request validation,
// content-addressed caching, parallel detector fan-out, queued background
// processing and drift monitoring.
package scan

import (
	"errors"
	"fmt"
)

// ValidationError rejects a request before any detector runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// DetectorError wraps a failure inside a single detector; the pipeline
// degrades rather than failing the whole scan.
type DetectorError struct {
	Detector string
	Err      error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector %s: %v", e.Detector, e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }

// OrchestrationError covers failures outside the detectors themselves, such
// as the result store being unreachable at a point where the scan cannot
// proceed.
type OrchestrationError struct {
	Stage string
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestration: %s: %v", e.Stage, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// QueueProcessingError marks a queued job failure and carries the retry count
// at the time it became terminal.
type QueueProcessingError struct {
	JobID   string
	Retries int
	Err     error
}

func (e *QueueProcessingError) Error() string {
	return fmt.Sprintf("queue job %s failed after %d retries: %v", e.JobID, e.Retries, e.Err)
}

func (e *QueueProcessingError) Unwrap() error { return e.Err }

// ErrNotFound is returned by store lookups that miss.
var ErrNotFound = errors.New("not found")
