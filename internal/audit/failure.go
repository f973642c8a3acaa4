package audit

import (
	"errors"
	"fmt"
)

// FailureClass enumerates the ways an audit can fail. Every class renders
// the same five-section shape.
type FailureClass int

const (
	FailureProcessing FailureClass = iota
	FailureConfiguration
	FailureInvalidInput
	FailureUnsupportedType
	FailureTooLarge
	FailureTooManyPages
	FailureJavaScript
	FailureEmbeddedFiles
	FailureExtraction
)

// String returns the caller-facing failure label
func (c FailureClass) String() string {
	switch c {
	case FailureConfiguration:
		return "configuration error"
	case FailureInvalidInput:
		return "invalid input"
	case FailureUnsupportedType:
		return "unsupported file type"
	case FailureTooLarge:
		return "file too large"
	case FailureTooManyPages:
		return "too many pages"
	case FailureJavaScript:
		return "PDF contains JavaScript"
	case FailureEmbeddedFiles:
		return "PDF contains embedded files"
	case FailureExtraction:
		return "text extraction unavailable"
	default:
		return "processing error"
	}
}

// RuleID returns the rule identifier attached to the failure finding
func (c FailureClass) RuleID() string {
	switch c {
	case FailureConfiguration:
		return "ERR-CONFIG"
	case FailureInvalidInput, FailureUnsupportedType, FailureTooLarge, FailureTooManyPages:
		return "ERR-INPUT"
	case FailureJavaScript, FailureEmbeddedFiles:
		return "ERR-CONTENT"
	case FailureExtraction:
		return "ERR-EXTRACT"
	default:
		return "ERR-PROCESS"
	}
}

// Category groups classes into the four failure families.
func (c FailureClass) Category() string {
	switch c {
	case FailureConfiguration:
		return "configuration"
	case FailureInvalidInput, FailureUnsupportedType, FailureTooLarge, FailureTooManyPages,
		FailureJavaScript, FailureEmbeddedFiles:
		return "input"
	case FailureExtraction:
		return "extraction"
	default:
		return "processing"
	}
}

// Failure is the typed error the orchestrator maps to the error report. The
// wrapped error is logged and never rendered.
type Failure struct {
	Class FailureClass
	Err   error
}

// NewFailure wraps err under class.
func NewFailure(class FailureClass, err error) *Failure {
	return &Failure{Class: class, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("audit failed: %s", f.Class)
	}
	return fmt.Sprintf("audit failed: %s: %v", f.Class, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Finding is the single CRITICAL flag rendered for this failure.
func (f *Failure) Finding() Finding {
	return Finding{
		Severity: Critical,
		Issue:    "Audit failed: " + f.Class.String(),
		RuleID:   f.Class.RuleID(),
	}
}

// AsFailure extracts a Failure from err, classifying anything else as a
// processing error.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return NewFailure(FailureProcessing, err)
}
