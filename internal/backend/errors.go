package backend

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JonMunkholm/userimport/internal/core"
)

// Sentinels matched by TransportError.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal server error")
)

// Kind classifies a TransportError.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// TransportError is the single error type a Gateway returns. It aborts the
// whole stage call it came from.
type TransportError struct {
	Kind    Kind
	Code    codes.Code // meaningful only when HasCode
	HasCode bool
	Err     error // underlying cause, may be nil
}

// Message returns the operator-facing text for the error.
func (e *TransportError) Message() string {
	switch {
	case e.Kind == KindNotFound:
		return "Not found"
	case e.Kind == KindInternal:
		return "Internal server error"
	case e.HasCode:
		return fmt.Sprintf("gRPC error: %d", e.Code)
	default:
		return "Unknown error"
	}
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message(), e.Err)
	}
	return e.Message()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets callers match with errors.Is(err, backend.ErrNotFound).
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInternal:
		return e.Kind == KindInternal
	}
	return false
}

// UserMessage implements core.UserFacing.
func (e *TransportError) UserMessage() core.UserMessage {
	switch {
	case e.Kind == KindNotFound:
		return core.UserMessage{Message: e.Message(), Action: "Check the id or email and try again", Code: "RPC001"}
	case e.Kind == KindInternal:
		return core.UserMessage{Message: e.Message(), Action: "Please try again later or contact support", Code: "RPC002"}
	case e.HasCode && (e.Code == codes.Unavailable || e.Code == codes.DeadlineExceeded):
		return core.UserMessage{Message: e.Message(), Action: "The user service is unreachable or slow. Please try again", Code: "RPC003"}
	default:
		return core.UserMessage{Message: e.Message(), Action: "Please try again or contact support", Code: "RPC000"}
	}
}

// FromError maps any error from a backend call onto a TransportError.
//
// gRPC NotFound becomes KindNotFound and Internal becomes KindInternal. Every
// other status code is KindUnknown carrying that code, context errors carry
// the matching gRPC code, and anything without a code is KindUnknown with no
// code. FromError(nil) is nil.
func FromError(err error) error {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fromCode(status.FromContextError(err).Code(), err)
	}

	if st, ok := status.FromError(err); ok {
		return fromCode(st.Code(), err)
	}

	return &TransportError{Kind: KindUnknown, Err: err}
}

func fromCode(code codes.Code, err error) *TransportError {
	te := &TransportError{Kind: KindUnknown, Code: code, HasCode: true, Err: err}
	switch code {
	case codes.NotFound:
		te.Kind = KindNotFound
	case codes.Internal:
		te.Kind = KindInternal
	}
	return te
}

func notFound() error {
	return &TransportError{Kind: KindNotFound, Code: codes.NotFound, HasCode: true}
}
