package timesync

import "fmt"

// SyncErrorKind discriminates synchronizer/service-level failures.
type SyncErrorKind uint8

const (
	KindHighNetworkDelay SyncErrorKind = iota
	KindExcessiveDrift
	KindTimeout
	KindTransportError
	KindInvalidTimestamp
)

func (k SyncErrorKind) String() string {
	switch k {
	case KindHighNetworkDelay:
		return "HighNetworkDelay"
	case KindExcessiveDrift:
		return "ExcessiveDrift"
	case KindTimeout:
		return "Timeout"
	case KindTransportError:
		return "TransportError"
	case KindInvalidTimestamp:
		return "InvalidTimestamp"
	default:
		return "Unknown"
	}
}

// SyncError is the single error type the synchronizer and the node
// time service return, matching the errors.go shape used by pkg/wire,
// pkg/transport, pkg/adapter and pkg/router.
type SyncError struct {
	Kind SyncErrorKind
	Msg  string
	Wrap error
}

func (e *SyncError) Error() string {
	switch e.Kind {
	case KindHighNetworkDelay:
		return "network delay too high for reliable sync"
	case KindExcessiveDrift:
		return "time drift exceeds acceptable threshold"
	case KindTimeout:
		return "sync operation timed out"
	case KindTransportError:
		return "transport layer error during sync"
	case KindInvalidTimestamp:
		return "received invalid timestamp"
	default:
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
		}
		return e.Kind.String()
	}
}

func (e *SyncError) Unwrap() error { return e.Wrap }

func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	return ok && t.Kind == e.Kind
}

var (
	ErrHighNetworkDelay = &SyncError{Kind: KindHighNetworkDelay}
	ErrExcessiveDrift   = &SyncError{Kind: KindExcessiveDrift}
	ErrInvalidTimestamp = &SyncError{Kind: KindInvalidTimestamp}
)
