// Package faults defines the error taxonomy of the build pipeline.
// Every stage returns a *Fault so the caller can map it to a result without string matching.
package faults

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// Validation marks missing or invalid request fields.
	Validation Kind = "validation"

	// Archive marks an undecodable, unopenable, empty or manifest-less action archive.
	Archive Kind = "archive"

	// Filesystem marks directory creation and file read or write failures.
	Filesystem Kind = "filesystem"

	// DependencyInstall marks a failed environment creation or package installation.
	DependencyInstall Kind = "dependency_install"

	// Publish marks a failed or rejected publish request.
	Publish Kind = "publish"

	// Config marks missing or malformed configuration.
	Config Kind = "config"
)

// Fault is a pipeline error with a user facing message.
type Fault struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// New creates a fault without a cause.
func New(kind Kind, message string) *Fault {
	return &Fault{Kind: kind, Message: message}
}

// Newf creates a fault with a formatted message and without a cause.
func Newf(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a fault around the given cause.
func Wrap(kind Kind, err error, message string) *Fault {
	return &Fault{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first fault in the chain of err, or the empty kind.
func KindOf(err error) Kind {
	var fault *Fault
	if errors.As(err, &fault) {
		return fault.Kind
	}
	return ""
}

// Is reports whether err carries a fault of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user facing message of err. Causes are only included for
// faults that do not have a fixed wording.
func Message(err error) string {
	var fault *Fault
	if !errors.As(err, &fault) {
		return err.Error()
	}
	switch fault.Kind {
	case Validation, Archive:
		return fault.Message
	default:
		return fault.Error()
	}
}
