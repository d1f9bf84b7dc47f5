// Package errors classifies service errors into kinds that map onto HTTP
// statuses and JSON-RPC codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Kind is the class of an error as seen by a client.
type Kind int

const (
	Internal Kind = iota
	InvalidArgument
	NotFound
	Conflict
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error carries a Kind, the operation that failed and a stack-bearing cause.
type Error struct {
	Kind      Kind
	Message   string
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Operation != "" {
		parts = append(parts, e.Operation)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithOperation records the operation that failed.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// Format prints the stack of the cause with %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') && e.Err != nil {
			fmt.Fprintf(s, "%s\n%+v", e.Error(), e.Err)
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// New creates an error of kind k with a stack trace.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Err: pkgerrors.New(msg)}
}

// Newf creates an error of kind k with a formatted message.
func Newf(k Kind, format string, args ...interface{}) *Error {
	return New(k, fmt.Sprintf(format, args...))
}

// Wrap classifies err as kind k. It returns nil if err is nil.
func Wrap(err error, k Kind, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Message: msg, Err: pkgerrors.WithStack(err)}
}

// KindOf returns the kind of the first classified error in err's chain.
// Invalid-argument errors from the optimization package are InvalidArgument;
// anything else unclassified is Internal.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	var argErr *optimization.ErrInvalidArgument
	if stderrors.As(err, &argErr) {
		return InvalidArgument
	}
	return Internal
}

// HTTPStatus maps err to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// RPCCode maps err to a JSON-RPC error code.
func RPCCode(err error) int {
	switch KindOf(err) {
	case InvalidArgument:
		return CodeInvalidParams
	case NotFound, Conflict:
		return CodeServerError
	default:
		return CodeInternalError
	}
}
