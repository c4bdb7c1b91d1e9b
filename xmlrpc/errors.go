package xmlrpc

import (
	"errors"
	"strings"
)

// Error categories. Use errors.Is to check the category of an error returned
// by this package.
var (
	// ErrIllFormedDocument means that the document is not valid XML.
	ErrIllFormedDocument = errors.New("ill-formed XML document")
	// ErrInvalidDocument means that the document is valid XML, but no valid
	// XML-RPC method call or response.
	ErrInvalidDocument = errors.New("invalid XML-RPC document")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrInvalidValue    = errors.New("invalid value")
	// ErrInvalidParamCount means that the number of parameters does not match
	// the signature of a method.
	ErrInvalidParamCount = errors.New("invalid parameter count")
	// ErrNonSerializableMember means that an XML-RPC struct contains a member
	// that is excluded from mapping in the Go struct.
	ErrNonSerializableMember = errors.New("non-serializable member")
	ErrMissingMember         = errors.New("missing member")
	ErrUnsupportedType       = errors.New("unsupported type")
	ErrNullValue             = errors.New("null value")
	ErrRecursiveValue        = errors.New("recursive value")
	ErrInvalidKey            = errors.New("invalid key")
	ErrDuplicateKey          = errors.New("duplicate key")
	// ErrFault is matched by all faults reported by an XML-RPC server.
	ErrFault = errors.New("XML-RPC fault")
	// ErrAborted is reported by an aborted call.
	ErrAborted = errors.New("call aborted")
	// ErrResultConsumed is returned, if the result of a call is requested
	// more than once.
	ErrResultConsumed = errors.New("result already consumed")
)

// Error is returned by the codec. It describes the location in the processed
// value by a trail.
type Error struct {
	// Err is one of the error categories.
	Err error
	Msg string
	// Trail describes the location, e.g. "[response : array mapped to type
	// []int : element 3]".
	Trail string
	// Members lists the missing members for ErrMissingMember.
	Members []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Trail == "" {
		return e.Msg
	}
	return e.Msg + " " + e.Trail
}

// Unwrap returns the error category.
func (e *Error) Unwrap() error {
	return e.Err
}

func missingMembersMsg(names []string) string {
	return "missing non-optional member(s): " + strings.Join(names, " ")
}
