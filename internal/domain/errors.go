package domain

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindDumpFailed     Kind = "DumpFailed"
	KindRestoreFailed  Kind = "RestoreFailed"
	KindUploadFailed   Kind = "UploadFailed"
	KindDownloadFailed Kind = "DownloadFailed"
	KindNoBackupFound  Kind = "NoBackupFound"
	KindTimedOut       Kind = "TimedOut"
	KindConfigInvalid  Kind = "ConfigInvalid"
)

var (
	ErrDumpFailed     = &Error{Kind: KindDumpFailed}
	ErrRestoreFailed  = &Error{Kind: KindRestoreFailed}
	ErrUploadFailed   = &Error{Kind: KindUploadFailed}
	ErrDownloadFailed = &Error{Kind: KindDownloadFailed}
	ErrNoBackupFound  = &Error{Kind: KindNoBackupFound}
	ErrTimedOut       = &Error{Kind: KindTimedOut}
	ErrConfigInvalid  = &Error{Kind: KindConfigInvalid}

	ErrAlreadyRunning = errors.New("operation already running for this database")
	ErrNotConfirmed   = errors.New("restore requires explicit confirmation of the database name")
)

// Error is a classified failure. Path and Diagnostics let an operator re-run the
// failed step by hand.
type Error struct {
	Kind        Kind
	Op          string
	Path        string
	Diagnostics string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (path: %s)", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if d := strings.TrimSpace(e.Diagnostics); d != "" {
		b.WriteString(", output: ")
		b.WriteString(d)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrDumpFailed) works
// regardless of path or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
