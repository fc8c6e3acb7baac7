package goreason

import "fmt"

// Kind tags the category of an Error, per spec §7.
type Kind int

const (
	// InvalidParams: bad file path, unknown chat, malformed input.
	InvalidParams Kind = iota
	// RecordNotFound: absent object.
	RecordNotFound
	// InvalidData: unparseable page.
	InvalidData
	// Internal: embedder/vector-store failure, count mismatch, lock poisoning.
	Internal
	// LocalEmbeddingNotReady: scheduler slot empty.
	LocalEmbeddingNotReady
	// NotSupport: feature unavailable on current platform.
	NotSupport
	// RefDrop: a required weak reference to an external service is no longer live.
	RefDrop
)

func (k Kind) String() string {
	switch k {
	case InvalidParams:
		return "InvalidParams"
	case RecordNotFound:
		return "RecordNotFound"
	case InvalidData:
		return "InvalidData"
	case Internal:
		return "Internal"
	case LocalEmbeddingNotReady:
		return "LocalEmbeddingNotReady"
	case NotSupport:
		return "NotSupport"
	case RefDrop:
		return "RefDrop"
	default:
		return "Unknown"
	}
}

// Error is the single exported error type for the core, carrying a Kind so
// callers can branch on category (spec §7) without string matching.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("goreason: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("goreason: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// do `errors.Is(err, &goreason.Error{Kind: goreason.RecordNotFound})`.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel errors for common cases, kept in the teacher's flat-variable
// style so existing errors.Is(err, ErrX) call sites keep working, now
// carrying a Kind underneath.
var (
	ErrDocumentNotFound       = New(RecordNotFound, "document not found")
	ErrUnsupportedFormat      = New(InvalidParams, "unsupported document format")
	ErrParsingFailed          = New(InvalidData, "parsing failed")
	ErrEmbeddingFailed        = New(Internal, "embedding generation failed")
	ErrSchedulerNotReady      = New(LocalEmbeddingNotReady, "embedding scheduler not ready")
	ErrStoreClosed            = New(Internal, "store is closed")
	ErrNoResults              = New(RecordNotFound, "no results found")
	ErrInvalidConfig          = New(InvalidParams, "invalid configuration")
	ErrVisionRequired         = New(NotSupport, "vision provider required for this document")
	ErrExternalParserRequired = New(NotSupport, "external parser required for legacy format")
)
