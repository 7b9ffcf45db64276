package message

// The four payload families below are declared opaque by spec.md's data
// model: the router only needs PayloadType to dispatch them. Their
// concrete sub-kinds are nonetheless carried here (supplemented from
// original_source/lumisync-api/src/message.rs, which the distillation
// dropped) so there is something concrete for the BLE MTU size test
// (spec.md §8) and the example cmd/ binaries to exercise.

// Id is a generic resource identifier shared by the application-facing
// payloads (region, window, actuator, device).
type Id = uint32

// WindowData is a window actuator's reported/target position, 0-100.
type WindowData struct {
	TargetPosition uint8
}

// RegionSettingData is one entry of a region's environmental plan.
type RegionSettingData struct {
	Hour        uint8
	TargetLux   uint16
	TargetTempC float32
}

// WindowSettingData constrains a window's allowed auto-adjust behavior.
type WindowSettingData struct {
	PositionRangeMin uint8
	PositionRangeMax uint8
	AutoAdjust       bool
}

// DeviceStatus is a compact device health/position summary as reported
// by an Edge to the Cloud.
type DeviceStatus struct {
	DeviceID Id
	Position uint8
	Online   bool
}

// SensorData is a single device's environmental reading.
type SensorData struct {
	Temperature float32
	Illuminance int32
	Humidity    float32
}

// CloudSubKind discriminates CloudCommandPayload variants.
type CloudSubKind uint8

const (
	CloudConfigureRegion CloudSubKind = iota
	CloudConfigureWindow
	CloudControlDevices
	CloudSendAnalyse
)

// CloudCommandPayload carries one Cloud-to-Edge command. Only SubKind
// plus the fields relevant to it are meaningful.
type CloudCommandPayload struct {
	SubKind CloudSubKind

	RegionID Id
	RegionPlan []RegionSettingData

	WindowID   Id
	WindowPlan []WindowSettingData

	DeviceCommands map[Id]uint32 // actuator id -> opaque command code

	AnalyseWindows    []WindowData
	AnalyseReason     string
	AnalyseConfidence float32
}

func (CloudCommandPayload) Kind() PayloadType { return PayloadCloudCommand }

// EdgeSubKind discriminates EdgeReportPayload variants.
type EdgeSubKind uint8

const (
	EdgeDeviceStatusReport EdgeSubKind = iota
	EdgeHealthReport
)

// EdgeReportPayload carries one Edge-to-Cloud status report.
type EdgeReportPayload struct {
	SubKind EdgeSubKind

	RegionID Id
	Devices  []DeviceStatus

	CPUUsage    float32
	MemoryUsage float32
}

func (EdgeReportPayload) Kind() PayloadType { return PayloadEdgeReport }

// ActuatorCommandKind discriminates the commands an Edge can send a window actuator.
type ActuatorCommandKind uint8

const (
	ActuatorSetPosition ActuatorCommandKind = iota
	ActuatorRequestStatus
	ActuatorEmergencyStop
	ActuatorCalibrate
)

// EdgeCommandSubKind discriminates EdgeCommandPayload variants.
type EdgeCommandSubKind uint8

const (
	EdgeCmdActuator EdgeCommandSubKind = iota
	EdgeCmdRequestHealthStatus
	EdgeCmdRequestSensorData
)

// EdgeCommandPayload carries one Edge-to-Device command.
type EdgeCommandPayload struct {
	SubKind EdgeCommandSubKind

	ActuatorID Id
	Sequence   uint16

	Command         ActuatorCommandKind
	TargetPosition  uint8 // meaningful iff Command == ActuatorSetPosition
}

func (EdgeCommandPayload) Kind() PayloadType { return PayloadEdgeCommand }

// DeviceSubKind discriminates DeviceReportPayload variants.
type DeviceSubKind uint8

const (
	DeviceStatusReport DeviceSubKind = iota
	DeviceSensorReport
	DeviceHealthReport
)

// DeviceReportPayload carries one Device-to-Edge report.
type DeviceReportPayload struct {
	SubKind DeviceSubKind

	ActuatorID         Id
	Window             WindowData
	Sensor             SensorData
	BatteryLevel       uint8
	ErrorCode          uint8
	RelativeTimestamp  uint64
	CPUUsage           float32
	MemoryUsage        float32
	SignalStrengthRSSI int8
}

func (DeviceReportPayload) Kind() PayloadType { return PayloadDeviceReport }
