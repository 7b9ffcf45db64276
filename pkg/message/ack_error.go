package message

import "github.com/google/uuid"

// Acknowledge confirms successful handling of a prior message.
type Acknowledge struct {
	OriginalMessageID uuid.UUID
	Status            string
	Details           string
	HasDetails        bool
}

func (Acknowledge) Kind() PayloadType { return PayloadAcknowledge }

// ErrorCode enumerates the reasons an Error payload may be emitted.
type ErrorCode uint8

const (
	ErrorInvalidRequest ErrorCode = iota
	ErrorDeviceOffline
	ErrorPermissionDenied
	ErrorOverLimit
	ErrorInternalError
	ErrorHardwareFailure
	ErrorNetworkError
	ErrorBatteryLow
	ErrorTimeout
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorInvalidRequest:
		return "InvalidRequest"
	case ErrorDeviceOffline:
		return "DeviceOffline"
	case ErrorPermissionDenied:
		return "PermissionDenied"
	case ErrorOverLimit:
		return "OverLimit"
	case ErrorInternalError:
		return "InternalError"
	case ErrorHardwareFailure:
		return "HardwareFailure"
	case ErrorNetworkError:
		return "NetworkError"
	case ErrorBatteryLow:
		return "BatteryLow"
	case ErrorTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// ErrorPayload reports a failure in response to a prior message.
type ErrorPayload struct {
	// OriginalMessageID is the zero UUID when the error isn't tied to a
	// specific earlier message.
	OriginalMessageID uuid.UUID
	HasOriginalID     bool
	Code              ErrorCode
	Message           string
}

func (ErrorPayload) Kind() PayloadType { return PayloadError }
