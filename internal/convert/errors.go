package convert

import (
	"context"
	"errors"
	"strings"

	"tscnusd/internal/ir"
	"tscnusd/internal/scene"
	"tscnusd/internal/tscn"
	"tscnusd/internal/usd"
)

// Kind classifies a conversion failure.
type Kind string

const (
	SourceNotFound     Kind = "SourceNotFound"
	StoreOpenFailed    Kind = "StoreOpenFailed"
	StoreSaveFailed    Kind = "StoreSaveFailed"
	MissingParent      Kind = "MissingParentError"
	InvalidName        Kind = "InvalidName"
	DuplicatePath      Kind = "DuplicatePath"
	ConfigurationError Kind = "ConfigurationError"
	DecodeError        Kind = "DecodeError"
	Canceled           Kind = "Canceled"
	Internal           Kind = "Internal"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrSourceNotFound  = &Error{Kind: SourceNotFound}
	ErrStoreOpenFailed = &Error{Kind: StoreOpenFailed}
	ErrStoreSaveFailed = &Error{Kind: StoreSaveFailed}
	ErrMissingParent   = &Error{Kind: MissingParent}
	ErrInvalidName     = &Error{Kind: InvalidName}
	ErrDuplicatePath   = &Error{Kind: DuplicatePath}
	ErrConfiguration   = &Error{Kind: ConfigurationError}
	ErrDecode          = &Error{Kind: DecodeError}
	ErrCanceled        = &Error{Kind: Canceled}
	ErrInternal        = &Error{Kind: Internal}
)

// Error is the single failure value returned by the conversion entry points.
type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "usd_to_tscn".
	Op string
	// Path is the file the failure is about.
	Path string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind when target is a bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Path != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err, or "" when err is not a conversion error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// classify maps errors from the lower layers onto a Kind. fallback is used
// when nothing more specific applies.
func classify(err error, fallback Kind) Kind {
	var (
		missing   *scene.MissingParentError
		invalid   *scene.InvalidNameError
		duplicate *scene.DuplicatePathError
		parse     *usd.ParseError
		tscnParse *tscn.ParseError
		convErr   *Error
	)
	switch {
	case errors.As(err, &convErr):
		return convErr.Kind
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Canceled
	case errors.As(err, &missing):
		return MissingParent
	case errors.As(err, &invalid):
		return InvalidName
	case errors.As(err, &duplicate):
		return DuplicatePath
	case errors.As(err, &parse), errors.Is(err, usd.ErrUnsupportedFormat), errors.Is(err, usd.ErrLayerExists):
		return StoreOpenFailed
	case errors.As(err, &tscnParse), errors.Is(err, ir.ErrInvalidDocument):
		return DecodeError
	}
	return fallback
}

func wrap(op, path string, err error, fallback Kind) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: classify(err, fallback), Op: op, Path: path, Err: err}
}
