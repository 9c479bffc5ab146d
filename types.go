package eqlx

import "github.com/cockroachdb/errors"

// Operator represents comparison operators.
type Operator string

const (
	// OpEq represents equality operator.
	OpEq Operator = "eq"
	// OpNe represents not-equal operator.
	OpNe Operator = "ne"
	// OpGt represents greater-than operator.
	OpGt Operator = "gt"
	// OpGte represents greater-than-or-equal operator.
	OpGte Operator = "gte"
	// OpLt represents less-than operator.
	OpLt Operator = "lt"
	// OpLte represents less-than-or-equal operator.
	OpLte Operator = "lte"
	// OpExists represents field existence check.
	OpExists Operator = "exists"
)

// ErrorCode represents specific error codes for search and codec operations.
type ErrorCode int

const (
	// ErrCodeEmptyQuery is returned when an empty query is provided.
	ErrCodeEmptyQuery ErrorCode = iota + 1000

	// ErrCodeInvalidOption is returned when an invalid option is provided.
	ErrCodeInvalidOption

	// ErrCodeInvalidExpression is returned when an invalid expression is provided.
	ErrCodeInvalidExpression

	// ErrCodeTimeout is returned when a search operation times out.
	ErrCodeTimeout

	// ErrCodeCanceled is returned when a search operation is canceled.
	ErrCodeCanceled

	// ErrCodeNotImplemented is returned when a feature is not implemented.
	ErrCodeNotImplemented

	// ErrCodeBackendUnavailable is returned when the search backend is unavailable.
	ErrCodeBackendUnavailable

	// ErrCodeMalformedStream is returned when a binary envelope cannot be decoded.
	ErrCodeMalformedStream

	// ErrCodeMalformedDocument is returned when a document does not have the
	// expected structure.
	ErrCodeMalformedDocument

	// ErrCodeMissingField is returned when a mandatory document field is absent.
	ErrCodeMissingField

	// ErrCodeUnknownRelation is returned for a total relation other than eq or gte.
	ErrCodeUnknownRelation
)

// String returns the human-readable string representation of the error code.
// This implements the fmt.Stringer interface.
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeEmptyQuery:
		return "empty query"
	case ErrCodeInvalidOption:
		return "invalid option"
	case ErrCodeInvalidExpression:
		return "invalid expression"
	case ErrCodeTimeout:
		return "operation timed out"
	case ErrCodeCanceled:
		return "operation canceled"
	case ErrCodeNotImplemented:
		return "not implemented"
	case ErrCodeBackendUnavailable:
		return "backend unavailable"
	case ErrCodeMalformedStream:
		return "malformed stream"
	case ErrCodeMalformedDocument:
		return "malformed document"
	case ErrCodeMissingField:
		return "missing field"
	case ErrCodeUnknownRelation:
		return "unknown relation"
	default:
		return "unknown error"
	}
}

// newErrorWithCode creates a new error with a code and message.
func newErrorWithCode(code ErrorCode, msg string) error {
	err := errors.New(msg)
	return errors.WithSecondaryError(err, errors.Newf("code: %d", int(code)))
}

// Common errors that can be returned by search and codec operations.
var (
	// ErrEmptyQuery is returned when an empty query is provided.
	ErrEmptyQuery = newErrorWithCode(ErrCodeEmptyQuery, "eqlx: empty query")

	// ErrInvalidOption is returned when an invalid option is provided.
	ErrInvalidOption = newErrorWithCode(ErrCodeInvalidOption, "eqlx: invalid option")

	// ErrInvalidExpression is returned when an invalid expression is provided.
	ErrInvalidExpression = newErrorWithCode(ErrCodeInvalidExpression, "eqlx: invalid expression")

	// ErrTimeout is returned when a search operation times out.
	ErrTimeout = newErrorWithCode(ErrCodeTimeout, "eqlx: operation timed out")

	// ErrCanceled is returned when a search operation is canceled.
	ErrCanceled = newErrorWithCode(ErrCodeCanceled, "eqlx: operation canceled")

	// ErrNotImplemented is returned when a feature is not implemented.
	ErrNotImplemented = newErrorWithCode(ErrCodeNotImplemented, "eqlx: not implemented")

	// ErrBackendUnavailable is returned when the search backend is unavailable.
	ErrBackendUnavailable = newErrorWithCode(ErrCodeBackendUnavailable, "eqlx: backend unavailable")

	// ErrMalformedStream is returned when a binary envelope is truncated or invalid.
	ErrMalformedStream = newErrorWithCode(ErrCodeMalformedStream, "eqlx: malformed stream")

	// ErrMalformedDocument is returned when a document has an unexpected token.
	ErrMalformedDocument = newErrorWithCode(ErrCodeMalformedDocument, "eqlx: malformed document")

	// ErrMissingField is returned when a mandatory document field is absent.
	ErrMissingField = newErrorWithCode(ErrCodeMissingField, "eqlx: missing field")

	// ErrUnknownRelation is returned for a total relation other than eq or gte.
	ErrUnknownRelation = newErrorWithCode(ErrCodeUnknownRelation, "eqlx: unknown relation")
)
