package wire

import (
	"sort"
	"time"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// EncodeMessageBinary renders msg in the compact tag-length-value
// profile: a fixed field order matching the Go struct declarations,
// enum discriminants as a single byte, varint-length-prefixed strings.
func EncodeMessageBinary(msg *message.Message) ([]byte, error) {
	w := &writer{}
	w.uuidv(msg.Header.ID)
	w.timev(msg.Header.Timestamp)
	w.u8(uint8(msg.Header.Priority))
	w.nodeID(msg.Header.Source)
	w.nodeID(msg.Header.Target)
	w.u8(uint8(msg.Payload.Kind()))

	if err := encodePayloadBinary(w, msg.Payload); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// DecodeMessageBinary is the inverse of EncodeMessageBinary.
func DecodeMessageBinary(data []byte) (*message.Message, error) {
	r := &reader{data: data}

	id, err := r.uuidv()
	if err != nil {
		return nil, err
	}
	ts, err := r.timev()
	if err != nil {
		return nil, err
	}
	prio, err := r.u8()
	if err != nil {
		return nil, err
	}
	src, err := r.nodeID()
	if err != nil {
		return nil, err
	}
	dst, err := r.nodeID()
	if err != nil {
		return nil, err
	}
	kind, err := r.u8()
	if err != nil {
		return nil, err
	}

	payload, err := decodePayloadBinary(r, message.PayloadType(kind))
	if err != nil {
		return nil, err
	}

	return &message.Message{
		Header: message.MessageHeader{
			ID:        id,
			Timestamp: ts,
			Priority:  message.Priority(prio),
			Source:    src,
			Target:    dst,
		},
		Payload: payload,
	}, nil
}

func encodePayloadBinary(w *writer, p message.MessagePayload) error {
	switch v := p.(type) {
	case message.CloudCommandPayload:
		return encodeCloudCommand(w, v)
	case message.EdgeReportPayload:
		return encodeEdgeReport(w, v)
	case message.EdgeCommandPayload:
		return encodeEdgeCommand(w, v)
	case message.DeviceReportPayload:
		return encodeDeviceReport(w, v)
	case message.TimeSyncMessage:
		return encodeTimeSync(w, v)
	case message.Acknowledge:
		w.uuidv(v.OriginalMessageID)
		w.str(v.Status)
		w.boolb(v.HasDetails)
		if v.HasDetails {
			w.str(v.Details)
		}
		return nil
	case message.ErrorPayload:
		w.boolb(v.HasOriginalID)
		if v.HasOriginalID {
			w.uuidv(v.OriginalMessageID)
		}
		w.u8(uint8(v.Code))
		w.str(v.Message)
		return nil
	default:
		return newCodecErr(KindSerializationFailed, "unknown payload type")
	}
}

func decodePayloadBinary(r *reader, kind message.PayloadType) (message.MessagePayload, error) {
	switch kind {
	case message.PayloadCloudCommand:
		return decodeCloudCommand(r)
	case message.PayloadEdgeReport:
		return decodeEdgeReport(r)
	case message.PayloadEdgeCommand:
		return decodeEdgeCommand(r)
	case message.PayloadDeviceReport:
		return decodeDeviceReport(r)
	case message.PayloadTimeSync:
		return decodeTimeSync(r)
	case message.PayloadAcknowledge:
		id, err := r.uuidv()
		if err != nil {
			return nil, err
		}
		status, err := r.str()
		if err != nil {
			return nil, err
		}
		hasDetails, err := r.boolb()
		if err != nil {
			return nil, err
		}
		var details string
		if hasDetails {
			details, err = r.str()
			if err != nil {
				return nil, err
			}
		}
		return message.Acknowledge{OriginalMessageID: id, Status: status, HasDetails: hasDetails, Details: details}, nil
	case message.PayloadError:
		hasID, err := r.boolb()
		if err != nil {
			return nil, err
		}
		var id [16]byte
		if hasID {
			u, err := r.uuidv()
			if err != nil {
				return nil, err
			}
			id = u
		}
		code, err := r.u8()
		if err != nil {
			return nil, err
		}
		msg, err := r.str()
		if err != nil {
			return nil, err
		}
		return message.ErrorPayload{HasOriginalID: hasID, OriginalMessageID: id, Code: message.ErrorCode(code), Message: msg}, nil
	default:
		return nil, newCodecErr(KindSerializationFailed, "unknown payload discriminant")
	}
}

func encodeCloudCommand(w *writer, v message.CloudCommandPayload) error {
	w.u8(uint8(v.SubKind))
	switch v.SubKind {
	case message.CloudConfigureRegion:
		w.u32(v.RegionID)
		w.buf = putVarint(w.buf, uint64(len(v.RegionPlan)))
		for _, e := range v.RegionPlan {
			w.u8(e.Hour)
			w.u16(e.TargetLux)
			w.f32(e.TargetTempC)
		}
	case message.CloudConfigureWindow:
		w.u32(v.WindowID)
		w.buf = putVarint(w.buf, uint64(len(v.WindowPlan)))
		for _, e := range v.WindowPlan {
			w.u8(e.PositionRangeMin)
			w.u8(e.PositionRangeMax)
			w.boolb(e.AutoAdjust)
		}
	case message.CloudControlDevices:
		w.buf = putVarint(w.buf, uint64(len(v.DeviceCommands)))
		// Map order is randomized; emit entries sorted by id so the same
		// payload always encodes to the same bytes.
		ids := make([]message.Id, 0, len(v.DeviceCommands))
		for k := range v.DeviceCommands {
			ids = append(ids, k)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, k := range ids {
			w.u32(k)
			w.u32(v.DeviceCommands[k])
		}
	case message.CloudSendAnalyse:
		w.buf = putVarint(w.buf, uint64(len(v.AnalyseWindows)))
		for _, e := range v.AnalyseWindows {
			w.u8(e.TargetPosition)
		}
		w.str(v.AnalyseReason)
		w.f32(v.AnalyseConfidence)
	}
	return nil
}

func decodeCloudCommand(r *reader) (message.MessagePayload, error) {
	sub, err := r.u8()
	if err != nil {
		return nil, err
	}
	v := message.CloudCommandPayload{SubKind: message.CloudSubKind(sub)}
	switch v.SubKind {
	case message.CloudConfigureRegion:
		if v.RegionID, err = r.u32(); err != nil {
			return nil, err
		}
		n, err := readCount(r)
		if err != nil {
			return nil, err
		}
		v.RegionPlan = make([]message.RegionSettingData, n)
		for i := range v.RegionPlan {
			if v.RegionPlan[i].Hour, err = r.u8(); err != nil {
				return nil, err
			}
			if v.RegionPlan[i].TargetLux, err = r.u16(); err != nil {
				return nil, err
			}
			if v.RegionPlan[i].TargetTempC, err = r.f32(); err != nil {
				return nil, err
			}
		}
	case message.CloudConfigureWindow:
		if v.WindowID, err = r.u32(); err != nil {
			return nil, err
		}
		n, err := readCount(r)
		if err != nil {
			return nil, err
		}
		v.WindowPlan = make([]message.WindowSettingData, n)
		for i := range v.WindowPlan {
			if v.WindowPlan[i].PositionRangeMin, err = r.u8(); err != nil {
				return nil, err
			}
			if v.WindowPlan[i].PositionRangeMax, err = r.u8(); err != nil {
				return nil, err
			}
			if v.WindowPlan[i].AutoAdjust, err = r.boolb(); err != nil {
				return nil, err
			}
		}
	case message.CloudControlDevices:
		n, err := readCount(r)
		if err != nil {
			return nil, err
		}
		v.DeviceCommands = make(map[message.Id]uint32, n)
		for i := uint64(0); i < n; i++ {
			k, err := r.u32()
			if err != nil {
				return nil, err
			}
			val, err := r.u32()
			if err != nil {
				return nil, err
			}
			v.DeviceCommands[k] = val
		}
	case message.CloudSendAnalyse:
		n, err := readCount(r)
		if err != nil {
			return nil, err
		}
		v.AnalyseWindows = make([]message.WindowData, n)
		for i := range v.AnalyseWindows {
			if v.AnalyseWindows[i].TargetPosition, err = r.u8(); err != nil {
				return nil, err
			}
		}
		if v.AnalyseReason, err = r.str(); err != nil {
			return nil, err
		}
		if v.AnalyseConfidence, err = r.f32(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func encodeEdgeReport(w *writer, v message.EdgeReportPayload) error {
	w.u8(uint8(v.SubKind))
	switch v.SubKind {
	case message.EdgeDeviceStatusReport:
		w.u32(v.RegionID)
		w.buf = putVarint(w.buf, uint64(len(v.Devices)))
		for _, d := range v.Devices {
			w.u32(d.DeviceID)
			w.u8(d.Position)
			w.boolb(d.Online)
		}
	case message.EdgeHealthReport:
		w.f32(v.CPUUsage)
		w.f32(v.MemoryUsage)
	}
	return nil
}

func decodeEdgeReport(r *reader) (message.MessagePayload, error) {
	sub, err := r.u8()
	if err != nil {
		return nil, err
	}
	v := message.EdgeReportPayload{SubKind: message.EdgeSubKind(sub)}
	switch v.SubKind {
	case message.EdgeDeviceStatusReport:
		if v.RegionID, err = r.u32(); err != nil {
			return nil, err
		}
		n, err := readCount(r)
		if err != nil {
			return nil, err
		}
		v.Devices = make([]message.DeviceStatus, n)
		for i := range v.Devices {
			if v.Devices[i].DeviceID, err = r.u32(); err != nil {
				return nil, err
			}
			if v.Devices[i].Position, err = r.u8(); err != nil {
				return nil, err
			}
			if v.Devices[i].Online, err = r.boolb(); err != nil {
				return nil, err
			}
		}
	case message.EdgeHealthReport:
		if v.CPUUsage, err = r.f32(); err != nil {
			return nil, err
		}
		if v.MemoryUsage, err = r.f32(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func encodeEdgeCommand(w *writer, v message.EdgeCommandPayload) error {
	w.u8(uint8(v.SubKind))
	switch v.SubKind {
	case message.EdgeCmdActuator:
		w.u32(v.ActuatorID)
		w.u16(v.Sequence)
		w.u8(uint8(v.Command))
		w.u8(v.TargetPosition)
	case message.EdgeCmdRequestHealthStatus, message.EdgeCmdRequestSensorData:
		w.u32(v.ActuatorID)
	}
	return nil
}

func decodeEdgeCommand(r *reader) (message.MessagePayload, error) {
	sub, err := r.u8()
	if err != nil {
		return nil, err
	}
	v := message.EdgeCommandPayload{SubKind: message.EdgeCommandSubKind(sub)}
	switch v.SubKind {
	case message.EdgeCmdActuator:
		if v.ActuatorID, err = r.u32(); err != nil {
			return nil, err
		}
		if v.Sequence, err = r.u16(); err != nil {
			return nil, err
		}
		cmd, err := r.u8()
		if err != nil {
			return nil, err
		}
		v.Command = message.ActuatorCommandKind(cmd)
		if v.TargetPosition, err = r.u8(); err != nil {
			return nil, err
		}
	case message.EdgeCmdRequestHealthStatus, message.EdgeCmdRequestSensorData:
		if v.ActuatorID, err = r.u32(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func encodeDeviceReport(w *writer, v message.DeviceReportPayload) error {
	w.u8(uint8(v.SubKind))
	switch v.SubKind {
	case message.DeviceStatusReport:
		w.u32(v.ActuatorID)
		w.u8(v.Window.TargetPosition)
		w.u8(v.BatteryLevel)
		w.u8(v.ErrorCode)
		w.u64(v.RelativeTimestamp)
	case message.DeviceSensorReport:
		w.u32(v.ActuatorID)
		w.f32(v.Sensor.Temperature)
		w.i32(v.Sensor.Illuminance)
		w.f32(v.Sensor.Humidity)
		w.u64(v.RelativeTimestamp)
	case message.DeviceHealthReport:
		w.u32(v.ActuatorID)
		w.f32(v.CPUUsage)
		w.f32(v.MemoryUsage)
		w.u8(v.BatteryLevel)
		w.i8(v.SignalStrengthRSSI)
		w.u64(v.RelativeTimestamp)
	}
	return nil
}

func decodeDeviceReport(r *reader) (message.MessagePayload, error) {
	sub, err := r.u8()
	if err != nil {
		return nil, err
	}
	v := message.DeviceReportPayload{SubKind: message.DeviceSubKind(sub)}
	switch v.SubKind {
	case message.DeviceStatusReport:
		if v.ActuatorID, err = r.u32(); err != nil {
			return nil, err
		}
		if v.Window.TargetPosition, err = r.u8(); err != nil {
			return nil, err
		}
		if v.BatteryLevel, err = r.u8(); err != nil {
			return nil, err
		}
		if v.ErrorCode, err = r.u8(); err != nil {
			return nil, err
		}
		if v.RelativeTimestamp, err = r.u64(); err != nil {
			return nil, err
		}
	case message.DeviceSensorReport:
		if v.ActuatorID, err = r.u32(); err != nil {
			return nil, err
		}
		if v.Sensor.Temperature, err = r.f32(); err != nil {
			return nil, err
		}
		if v.Sensor.Illuminance, err = r.i32(); err != nil {
			return nil, err
		}
		if v.Sensor.Humidity, err = r.f32(); err != nil {
			return nil, err
		}
		if v.RelativeTimestamp, err = r.u64(); err != nil {
			return nil, err
		}
	case message.DeviceHealthReport:
		if v.ActuatorID, err = r.u32(); err != nil {
			return nil, err
		}
		if v.CPUUsage, err = r.f32(); err != nil {
			return nil, err
		}
		if v.MemoryUsage, err = r.f32(); err != nil {
			return nil, err
		}
		if v.BatteryLevel, err = r.u8(); err != nil {
			return nil, err
		}
		if v.SignalStrengthRSSI, err = r.i8(); err != nil {
			return nil, err
		}
		if v.RelativeTimestamp, err = r.u64(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func encodeTimeSync(w *writer, v message.TimeSyncMessage) error {
	w.u8(uint8(v.TimeSyncVariant()))
	switch m := v.(type) {
	case message.TimeSyncRequest:
		w.u32(m.Sequence)
		w.boolb(m.SendTime != nil)
		if m.SendTime != nil {
			w.timev(*m.SendTime)
		}
		w.u16(m.PrecisionMS)
	case message.TimeSyncResponse:
		w.u32(m.RequestSequence)
		w.timev(m.RequestReceiveTime)
		w.timev(m.ResponseSendTime)
		w.u32(m.EstimatedDelayMS)
		w.u16(m.AccuracyMS)
	case message.TimeSyncBroadcast:
		w.timev(m.Timestamp)
		w.i64(m.OffsetMS)
		w.u16(m.AccuracyMS)
	case message.TimeSyncStatusQuery:
		// no fields
	case message.TimeSyncStatusResponse:
		w.boolb(m.IsSynced)
		w.i64(m.CurrentOffsetMS)
		w.timev(m.LastSyncTime)
		w.u16(m.AccuracyMS)
	default:
		return newCodecErr(KindSerializationFailed, "unknown time sync variant")
	}
	return nil
}

func decodeTimeSync(r *reader) (message.MessagePayload, error) {
	variant, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch message.TimeSyncVariant(variant) {
	case message.TimeSyncVariantRequest:
		seq, err := r.u32()
		if err != nil {
			return nil, err
		}
		hasSend, err := r.boolb()
		if err != nil {
			return nil, err
		}
		var sendTime *time.Time
		if hasSend {
			t, err := r.timev()
			if err != nil {
				return nil, err
			}
			sendTime = &t
		}
		prec, err := r.u16()
		if err != nil {
			return nil, err
		}
		return message.TimeSyncRequest{Sequence: seq, SendTime: sendTime, PrecisionMS: prec}, nil
	case message.TimeSyncVariantResponse:
		seq, err := r.u32()
		if err != nil {
			return nil, err
		}
		recv, err := r.timev()
		if err != nil {
			return nil, err
		}
		send, err := r.timev()
		if err != nil {
			return nil, err
		}
		delay, err := r.u32()
		if err != nil {
			return nil, err
		}
		acc, err := r.u16()
		if err != nil {
			return nil, err
		}
		return message.TimeSyncResponse{
			RequestSequence: seq, RequestReceiveTime: recv, ResponseSendTime: send,
			EstimatedDelayMS: delay, AccuracyMS: acc,
		}, nil
	case message.TimeSyncVariantBroadcast:
		ts, err := r.timev()
		if err != nil {
			return nil, err
		}
		offset, err := r.i64()
		if err != nil {
			return nil, err
		}
		acc, err := r.u16()
		if err != nil {
			return nil, err
		}
		return message.TimeSyncBroadcast{Timestamp: ts, OffsetMS: offset, AccuracyMS: acc}, nil
	case message.TimeSyncVariantStatusQuery:
		return message.TimeSyncStatusQuery{}, nil
	case message.TimeSyncVariantStatusResponse:
		synced, err := r.boolb()
		if err != nil {
			return nil, err
		}
		offset, err := r.i64()
		if err != nil {
			return nil, err
		}
		last, err := r.timev()
		if err != nil {
			return nil, err
		}
		acc, err := r.u16()
		if err != nil {
			return nil, err
		}
		return message.TimeSyncStatusResponse{IsSynced: synced, CurrentOffsetMS: offset, LastSyncTime: last, AccuracyMS: acc}, nil
	default:
		return nil, newCodecErr(KindSerializationFailed, "unknown time sync discriminant")
	}
}

func readCount(r *reader) (uint64, error) {
	n, consumed, err := getVarint(r.data[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += consumed
	return n, nil
}
