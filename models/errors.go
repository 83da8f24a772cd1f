package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a stage failure
type ErrorKind string

const (
	KindResolution ErrorKind = "RESOLUTION_ERROR"
	KindSchema     ErrorKind = "SCHEMA_ERROR"
	KindCoercion   ErrorKind = "COERCION_ERROR"
	KindPublish    ErrorKind = "PUBLISH_ERROR"
	KindConfig     ErrorKind = "CONFIG_ERROR"
	KindUnknown    ErrorKind = "UNKNOWN_ERROR"
)

var (
	// ErrMissingColumn is returned when a required column is absent from the header
	ErrMissingColumn = errors.New("missing required column")

	// ErrArtifactNotFound is returned by registries when a reference does not resolve
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrDigestMismatch is returned when a downloaded file does not match its registered digest
	ErrDigestMismatch = errors.New("artifact digest mismatch")
)

// StageError is a classified, fatal stage failure
type StageError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewStageError wraps err with a kind and the operation that failed
func NewStageError(kind ErrorKind, op string, err error) *StageError {
	return &StageError{Kind: kind, Op: op, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first StageError in err's chain
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// CoercionError reports a cell that could not be converted to its column type
type CoercionError struct {
	Column string
	Line   int
	Value  string
	Err    error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("column %q line %d: cannot convert %q: %v", e.Column, e.Line, e.Value, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}
