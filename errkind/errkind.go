// Package errkind defines the error taxonomy shared by the embedding
// components and the user-facing surfaces that report their failures.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers and for the orchestrator's policy.
type Kind string

const (
	// Validation is a bad size or bounds; the user adjusts the placement.
	Validation Kind = "ValidationError"
	// Protected is a password protected or encrypted source. Never retried.
	Protected Kind = "ProtectedDocumentError"
	// UnsupportedEncoding means the primary path cannot parse the source.
	// It triggers exactly one fallback attempt.
	UnsupportedEncoding Kind = "UnsupportedEncodingError"
	// PageInvariant means the output could not be reduced to a single page.
	PageInvariant Kind = "PageInvariantViolationError"
	// Storage is a failed read or write against the storage collaborator.
	Storage Kind = "StorageError"
	// OriginalLost means the original upload is gone.
	OriginalLost Kind = "OriginalLostError"
	// Busy means another job is in flight for the same document.
	Busy Kind = "BusyError"
	// NotFound means the document record does not exist.
	NotFound Kind = "NotFoundError"
	// Internal covers everything else.
	Internal Kind = "InternalError"
)

var hints = map[Kind]string{
	Validation:          "move or resize the code so it fits inside the page and retry",
	Protected:           "unlock the PDF (remove its password) before uploading it",
	UnsupportedEncoding: "re-export the document from its source application, or retry from the editor so a page snapshot can be used",
	PageInvariant:       "the document could not be reduced to a single page; upload a single-page document",
	Storage:             "the file could not be stored; retry later",
	OriginalLost:        "the original upload is missing; upload the document again",
	Busy:                "an embed is already running for this document; wait for it to finish",
	NotFound:            "check the document identifier",
	Internal:            "retry later; contact support if the problem persists",
}

var messages = map[Kind]string{
	Validation:          "the placement does not fit the page",
	Protected:           "the document is password protected",
	UnsupportedEncoding: "the document could not be processed",
	PageInvariant:       "the result was not a single page",
	Storage:             "the result could not be stored",
	OriginalLost:        "original lost",
	Busy:                "an embed is already running for this document",
	NotFound:            "document not found",
	Internal:            "internal error",
}

// MessageFor returns the user-facing summary of a failure of kind.
func MessageFor(kind Kind) string {
	if m, ok := messages[kind]; ok {
		return m
	}
	return messages[Internal]
}

// HintFor returns the remediation hint shown to users for kind.
func HintFor(kind Kind) string {
	if h, ok := hints[kind]; ok {
		return h
	}
	return hints[Internal]
}

// Retryable reports whether a failure of this kind may be retried through
// the fallback path.
func (k Kind) Retryable() bool {
	return k == UnsupportedEncoding
}

// Kinded is implemented by component errors that know their kind.
type Kinded interface {
	error
	Kind() Kind
}

// Error is a classified error with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error
}

// New creates a classified error with the default hint for kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Hint: HintFor(kind)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Hint: HintFor(kind), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Of returns the kind of err, searching the wrap chain. Errors that carry no
// classification are Internal; nil has no kind.
func Of(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Internal
}

// Sentinel values usable with errors.Is.
var (
	ErrValidation          = &Error{Kind: Validation}
	ErrProtected           = &Error{Kind: Protected}
	ErrUnsupportedEncoding = &Error{Kind: UnsupportedEncoding}
	ErrPageInvariant       = &Error{Kind: PageInvariant}
	ErrStorage             = &Error{Kind: Storage}
	ErrOriginalLost        = &Error{Kind: OriginalLost}
	ErrBusy                = &Error{Kind: Busy}
	ErrNotFound            = &Error{Kind: NotFound}
)
