package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// jsonMessage mirrors message.Message for the diagnostics JSON profile:
// a standard tagged union, field names matching the abstract model.
type jsonMessage struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Priority  string          `json:"priority"`
	Source    string          `json:"source"`
	Target    string          `json:"target"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// EncodeMessageJSON renders msg as {"id":..., "type":"...", "payload":{...}}.
func EncodeMessageJSON(msg *message.Message) ([]byte, error) {
	payloadJSON, err := marshalPayloadJSON(msg.Payload)
	if err != nil {
		return nil, &CodecError{Kind: KindSerializationFailed, Msg: "payload marshal", Wrap: err}
	}

	jm := jsonMessage{
		ID:        msg.Header.ID,
		Timestamp: msg.Header.Timestamp,
		Priority:  msg.Header.Priority.String(),
		Source:    msg.Header.Source.String(),
		Target:    msg.Header.Target.String(),
		Type:      msg.Payload.Kind().String(),
		Payload:   payloadJSON,
	}
	out, err := json.Marshal(jm)
	if err != nil {
		return nil, &CodecError{Kind: KindSerializationFailed, Msg: "message marshal", Wrap: err}
	}
	return out, nil
}

// DecodeMessageJSON is the inverse of EncodeMessageJSON. Source/Target
// are parsed back from their NodeId.String() form.
func DecodeMessageJSON(data []byte) (*message.Message, error) {
	var jm jsonMessage
	if err := json.Unmarshal(data, &jm); err != nil {
		return nil, &CodecError{Kind: KindInvalidFrame, Msg: "message unmarshal", Wrap: err}
	}

	src, err := parseNodeID(jm.Source)
	if err != nil {
		return nil, err
	}
	dst, err := parseNodeID(jm.Target)
	if err != nil {
		return nil, err
	}

	payload, err := unmarshalPayloadJSON(jm.Type, jm.Payload)
	if err != nil {
		return nil, err
	}

	priority := message.PriorityRegular
	if jm.Priority == "emergency" {
		priority = message.PriorityEmergency
	}

	return &message.Message{
		Header: message.MessageHeader{
			ID:        jm.ID,
			Timestamp: jm.Timestamp,
			Priority:  priority,
			Source:    src,
			Target:    dst,
		},
		Payload: payload,
	}, nil
}

// marshalPayloadJSON marshals a payload, injecting a "variant" tag for
// TimeSync payloads since Go structs can't carry Rust's enum
// discriminant natively.
func marshalPayloadJSON(p message.MessagePayload) ([]byte, error) {
	ts, ok := p.(message.TimeSyncMessage)
	if !ok {
		return json.Marshal(p)
	}

	var variant string
	switch ts.TimeSyncVariant() {
	case message.TimeSyncVariantRequest:
		variant = "Request"
	case message.TimeSyncVariantResponse:
		variant = "Response"
	case message.TimeSyncVariantBroadcast:
		variant = "Broadcast"
	case message.TimeSyncVariantStatusQuery:
		variant = "StatusQuery"
	case message.TimeSyncVariantStatusResponse:
		variant = "StatusResponse"
	}

	body, err := json.Marshal(ts)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	variantJSON, err := json.Marshal(variant)
	if err != nil {
		return nil, err
	}
	fields["variant"] = variantJSON
	return json.Marshal(fields)
}

func unmarshalPayloadJSON(kind string, raw json.RawMessage) (message.MessagePayload, error) {
	unmarshal := func(v message.MessagePayload) (message.MessagePayload, error) {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, &CodecError{Kind: KindSerializationFailed, Msg: "payload unmarshal", Wrap: err}
		}
		return v, nil
	}

	switch kind {
	case message.PayloadCloudCommand.String():
		v := &message.CloudCommandPayload{}
		p, err := unmarshal(v)
		if err != nil {
			return nil, err
		}
		return *p.(*message.CloudCommandPayload), nil
	case message.PayloadEdgeReport.String():
		v := &message.EdgeReportPayload{}
		p, err := unmarshal(v)
		if err != nil {
			return nil, err
		}
		return *p.(*message.EdgeReportPayload), nil
	case message.PayloadEdgeCommand.String():
		v := &message.EdgeCommandPayload{}
		p, err := unmarshal(v)
		if err != nil {
			return nil, err
		}
		return *p.(*message.EdgeCommandPayload), nil
	case message.PayloadDeviceReport.String():
		v := &message.DeviceReportPayload{}
		p, err := unmarshal(v)
		if err != nil {
			return nil, err
		}
		return *p.(*message.DeviceReportPayload), nil
	case message.PayloadAcknowledge.String():
		v := &message.Acknowledge{}
		p, err := unmarshal(v)
		if err != nil {
			return nil, err
		}
		return *p.(*message.Acknowledge), nil
	case message.PayloadError.String():
		v := &message.ErrorPayload{}
		p, err := unmarshal(v)
		if err != nil {
			return nil, err
		}
		return *p.(*message.ErrorPayload), nil
	case message.PayloadTimeSync.String():
		return unmarshalTimeSyncJSON(raw)
	default:
		return nil, newCodecErr(KindSerializationFailed, "unknown payload type tag: "+kind)
	}
}

// timeSyncEnvelope distinguishes the five TimeSync shapes by variant tag
// since Go has no native tagged-union unmarshaling.
type timeSyncEnvelope struct {
	Variant string `json:"variant"`
}

func unmarshalTimeSyncJSON(raw json.RawMessage) (message.MessagePayload, error) {
	var env timeSyncEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &CodecError{Kind: KindSerializationFailed, Msg: "time sync envelope", Wrap: err}
	}

	unmarshalInto := func(v any) error {
		if err := json.Unmarshal(raw, v); err != nil {
			return &CodecError{Kind: KindSerializationFailed, Msg: "time sync payload", Wrap: err}
		}
		return nil
	}

	switch env.Variant {
	case "Request":
		var v message.TimeSyncRequest
		if err := unmarshalInto(&v); err != nil {
			return nil, err
		}
		return v, nil
	case "Response":
		var v message.TimeSyncResponse
		if err := unmarshalInto(&v); err != nil {
			return nil, err
		}
		return v, nil
	case "Broadcast":
		var v message.TimeSyncBroadcast
		if err := unmarshalInto(&v); err != nil {
			return nil, err
		}
		return v, nil
	case "StatusQuery":
		return message.TimeSyncStatusQuery{}, nil
	case "StatusResponse":
		var v message.TimeSyncStatusResponse
		if err := unmarshalInto(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, newCodecErr(KindSerializationFailed, "unknown time sync variant tag: "+env.Variant)
	}
}

func parseNodeID(s string) (message.NodeId, error) {
	switch {
	case s == "cloud":
		return message.Cloud, nil
	case s == "edge(*)":
		return message.EdgeBroadcastID(), nil
	case len(s) > 5 && s[:5] == "edge(":
		var n uint8
		if _, err := fmt.Sscanf(s, "edge(%d)", &n); err != nil {
			return message.NodeId{}, newCodecErr(KindInvalidFrame, "bad edge node id: "+s)
		}
		return message.NewEdge(n), nil
	case len(s) > 7 && s[:7] == "device(":
		var mac [6]byte
		if _, err := fmt.Sscanf(s, "device(%02x:%02x:%02x:%02x:%02x:%02x)",
			&mac[0], &mac[1], &mac[2], &mac[3], &mac[4], &mac[5]); err != nil {
			return message.NodeId{}, newCodecErr(KindInvalidFrame, "bad device node id: "+s)
		}
		return message.NewDevice(mac), nil
	default:
		return message.NodeId{}, newCodecErr(KindInvalidFrame, "unrecognized node id: "+s)
	}
}
