package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures observed by the worker.
type Kind string

const (
	// KindConfiguration marks missing or invalid runtime configuration. The process idles and retries.
	KindConfiguration Kind = "configuration"
	// KindTransient marks store or network failures that abort a job for the current tick only.
	KindTransient Kind = "transient"
	// KindRow marks a failure confined to a single row inside a batch.
	KindRow Kind = "row"
	// KindPush marks a push delivery failure. Never fatal.
	KindPush Kind = "push"
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = "unknown"
)

// JobError attaches a Kind and operation name to an underlying error.
type JobError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *JobError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the wrapped error for errors.Is / errors.As.
func (e *JobError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Common sentinel errors.
var (
	ErrStoreNotConfigured = errors.New("store endpoint or credential not configured")
	ErrStoreUnreachable   = errors.New("store unreachable")
)

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &JobError{Kind: kind, Op: op, Err: err}
}

// Configuration wraps err as a configuration failure.
func Configuration(op string, err error) error { return Wrap(KindConfiguration, op, err) }

// Transient wraps err as a transient store or network failure.
func Transient(op string, err error) error { return Wrap(KindTransient, op, err) }

// Row wraps err as a single-row failure.
func Row(op string, err error) error { return Wrap(KindRow, op, err) }

// Push wraps err as a push delivery failure.
func Push(op string, err error) error { return Wrap(KindPush, op, err) }

// KindOf returns the outermost classification found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var jobErr *JobError
	if errors.As(err, &jobErr) && jobErr != nil {
		return jobErr.Kind
	}
	if errors.Is(err, ErrStoreNotConfigured) {
		return KindConfiguration
	}
	if errors.Is(err, ErrStoreUnreachable) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

// Is reports whether err carries the supplied kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
