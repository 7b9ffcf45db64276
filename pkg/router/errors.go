package router

import (
	"fmt"

	"github.com/lumisync/lumisync-core/pkg/adapter"
	"github.com/lumisync/lumisync-core/pkg/message"
)

// RouterErrorKind discriminates router-level failures.
type RouterErrorKind uint8

const (
	KindHandlerNotFound RouterErrorKind = iota
	KindNoHandlerFound
	KindHandlingFailed
	KindTransportError
	KindAlreadyRunning
	KindNotRunning
	KindConfigError
	KindTooManyHandlers
	KindTimeout
	KindDuplicateMessage
)

func (k RouterErrorKind) String() string {
	switch k {
	case KindHandlerNotFound:
		return "HandlerNotFound"
	case KindNoHandlerFound:
		return "NoHandlerFound"
	case KindHandlingFailed:
		return "HandlingFailed"
	case KindTransportError:
		return "TransportError"
	case KindAlreadyRunning:
		return "AlreadyRunning"
	case KindNotRunning:
		return "NotRunning"
	case KindConfigError:
		return "ConfigError"
	case KindTooManyHandlers:
		return "TooManyHandlers"
	case KindTimeout:
		return "Timeout"
	case KindDuplicateMessage:
		return "DuplicateMessage"
	default:
		return "Unknown"
	}
}

// RouterError is the single error type every BaseMessageRouter
// operation returns, mirroring the errors.go shape already used in
// pkg/wire, pkg/transport, and pkg/adapter.
type RouterError struct {
	Kind       RouterErrorKind
	HandlerID  uint32
	PayloadKnd message.PayloadType
	Msg        string
	Wrap       error
}

func (e *RouterError) Error() string {
	switch e.Kind {
	case KindHandlerNotFound:
		return fmt.Sprintf("handler not found: %d", e.HandlerID)
	case KindNoHandlerFound:
		return fmt.Sprintf("no handler found for payload type: %s", e.PayloadKnd)
	case KindHandlingFailed:
		return fmt.Sprintf("message handling failed: %v", e.Wrap)
	case KindTransportError:
		return fmt.Sprintf("transport error: %v", e.Wrap)
	case KindConfigError:
		return fmt.Sprintf("configuration error: %s", e.Msg)
	default:
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
		}
		return e.Kind.String()
	}
}

func (e *RouterError) Unwrap() error { return e.Wrap }

func (e *RouterError) Is(target error) bool {
	t, ok := target.(*RouterError)
	return ok && t.Kind == e.Kind
}

func transportErr(err error) *RouterError {
	if adapterErr, ok := err.(*adapter.AdapterError); ok {
		return &RouterError{Kind: KindTransportError, Wrap: adapterErr}
	}
	return &RouterError{Kind: KindTransportError, Wrap: err}
}

var ErrAlreadyRunning = &RouterError{Kind: KindAlreadyRunning}
var ErrNotRunning = &RouterError{Kind: KindNotRunning}
var ErrDuplicateMessage = &RouterError{Kind: KindDuplicateMessage}
