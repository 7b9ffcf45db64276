package router

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumisync/lumisync-core/internal/latency"
	"github.com/lumisync/lumisync-core/pkg/message"
)

type testHandler struct {
	node     message.NodeId
	name     string
	types    []message.PayloadType
	response *message.Message
	err      error
}

func (h *testHandler) HandleMessage(*message.Message) (*message.Message, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.response, nil
}

func (h *testHandler) SupportedPayloads() []message.PayloadType { return h.types }
func (h *testHandler) NodeID() message.NodeId                   { return h.node }
func (h *testHandler) Name() string                             { return h.name }

func ackMessage(source, target message.NodeId, status string) *message.Message {
	return &message.Message{
		Header: message.MessageHeader{
			ID:        uuid.New(),
			Timestamp: time.Unix(0, 0),
			Priority:  message.PriorityRegular,
			Source:    source,
			Target:    target,
		},
		Payload: message.Acknowledge{OriginalMessageID: uuid.New(), Status: status},
	}
}

func TestRouterHandlerRegistration(t *testing.T) {
	r := NewBaseMessageRouter(DefaultRouterConfig())
	h := &testHandler{node: message.Cloud, name: "test_handler", types: []message.PayloadType{message.PayloadCloudCommand}}

	id, err := r.RegisterHandler(h)
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}
	if id != 1 {
		t.Fatalf("handler id = %d, want 1", id)
	}
	if r.Stats().RegisteredHandlers != 1 {
		t.Fatalf("RegisteredHandlers = %d, want 1", r.Stats().RegisteredHandlers)
	}

	if err := r.UnregisterHandler(id); err != nil {
		t.Fatalf("UnregisterHandler: %v", err)
	}
	if r.Stats().RegisteredHandlers != 0 {
		t.Fatalf("RegisteredHandlers after unregister = %d, want 0", r.Stats().RegisteredHandlers)
	}
}

func TestRouterUnregisterUnknownHandler(t *testing.T) {
	r := NewBaseMessageRouter(DefaultRouterConfig())
	err := r.UnregisterHandler(99)
	if err == nil {
		t.Fatal("expected HandlerNotFound")
	}
	if err.(*RouterError).Kind != KindHandlerNotFound {
		t.Fatalf("got %v, want KindHandlerNotFound", err)
	}
}

func TestRouterRoutesToMatchingHandler(t *testing.T) {
	r := NewBaseMessageRouter(DefaultRouterConfig())

	response := ackMessage(message.Cloud, message.NewEdge(1), "OK")
	h := &testHandler{
		node:     message.Cloud,
		name:     "ack_handler",
		types:    []message.PayloadType{message.PayloadAcknowledge},
		response: response,
	}
	if _, err := r.RegisterHandler(h); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	msg := ackMessage(message.NewEdge(1), message.Cloud, "Test")
	if err := r.RouteMessage(msg); err != nil {
		t.Fatalf("RouteMessage: %v", err)
	}

	stats := r.Stats()
	if stats.TotalMessages != 1 || stats.RoutedMessages != 1 {
		t.Fatalf("stats = %+v, want total=1 routed=1", stats)
	}
}

func TestRouterNoHandlerFound(t *testing.T) {
	r := NewBaseMessageRouter(DefaultRouterConfig())
	msg := ackMessage(message.NewEdge(1), message.Cloud, "Test")

	err := r.RouteMessage(msg)
	if err == nil {
		t.Fatal("expected NoHandlerFound")
	}
	if err.(*RouterError).Kind != KindNoHandlerFound {
		t.Fatalf("got %v, want KindNoHandlerFound", err)
	}

	stats := r.Stats()
	if stats.TotalMessages != 1 || stats.UnroutedMessages != 1 {
		t.Fatalf("stats = %+v, want total=1 unrouted=1", stats)
	}
}

func TestRouterStopsAtFirstSuccess(t *testing.T) {
	r := NewBaseMessageRouter(DefaultRouterConfig())

	failing := &testHandler{
		node:  message.Cloud,
		name:  "failing",
		types: []message.PayloadType{message.PayloadAcknowledge},
		err:   &RouterError{Kind: KindHandlingFailed, Msg: "boom"},
	}
	succeeding := &testHandler{
		node:  message.Cloud,
		name:  "succeeding",
		types: []message.PayloadType{message.PayloadAcknowledge},
	}
	if _, err := r.RegisterHandler(failing); err != nil {
		t.Fatal(err)
	}
	if _, err := r.RegisterHandler(succeeding); err != nil {
		t.Fatal(err)
	}

	msg := ackMessage(message.NewEdge(1), message.Cloud, "Test")
	if err := r.RouteMessage(msg); err != nil {
		t.Fatalf("RouteMessage: %v", err)
	}
	if r.Stats().RoutedMessages != 1 {
		t.Fatalf("RoutedMessages = %d, want 1", r.Stats().RoutedMessages)
	}
}

func TestRouterAllHandlersFail(t *testing.T) {
	r := NewBaseMessageRouter(DefaultRouterConfig())
	h := &testHandler{
		node:  message.Cloud,
		name:  "failing",
		types: []message.PayloadType{message.PayloadAcknowledge},
		err:   &RouterError{Kind: KindHandlingFailed, Msg: "boom"},
	}
	if _, err := r.RegisterHandler(h); err != nil {
		t.Fatal(err)
	}

	msg := ackMessage(message.NewEdge(1), message.Cloud, "Test")
	err := r.RouteMessage(msg)
	if err == nil || err.(*RouterError).Kind != KindHandlingFailed {
		t.Fatalf("got %v, want KindHandlingFailed", err)
	}
	if r.Stats().FailedMessages != 1 {
		t.Fatalf("FailedMessages = %d, want 1", r.Stats().FailedMessages)
	}
}

func TestRouterDuplicateDetection(t *testing.T) {
	r := NewBaseMessageRouter(DefaultRouterConfig())
	h := &testHandler{node: message.Cloud, name: "ack", types: []message.PayloadType{message.PayloadAcknowledge}}
	if _, err := r.RegisterHandler(h); err != nil {
		t.Fatal(err)
	}

	msg := ackMessage(message.NewEdge(1), message.Cloud, "Test")
	if err := r.RouteMessage(msg); err != nil {
		t.Fatalf("first route: %v", err)
	}
	err := r.RouteMessage(msg)
	if err == nil || err.(*RouterError).Kind != KindDuplicateMessage {
		t.Fatalf("second route = %v, want KindDuplicateMessage", err)
	}
	if r.Stats().DuplicateMessages != 1 {
		t.Fatalf("DuplicateMessages = %d, want 1", r.Stats().DuplicateMessages)
	}
}

func TestRouterFeedsLatencyRegistry(t *testing.T) {
	reg := latency.NewRegistry()
	r := NewBaseMessageRouter(DefaultRouterConfig()).WithLatencyRegistry(reg)
	h := &testHandler{node: message.Cloud, name: "ack", types: []message.PayloadType{message.PayloadAcknowledge}}
	if _, err := r.RegisterHandler(h); err != nil {
		t.Fatal(err)
	}

	if err := r.RouteMessage(ackMessage(message.NewEdge(1), message.Cloud, "Test")); err != nil {
		t.Fatalf("RouteMessage: %v", err)
	}

	if _, ok := reg.Get(latency.Key{Node: message.NewEdge(1), Payload: message.PayloadAcknowledge}); !ok {
		t.Fatal("routed message should have recorded a processing-time sample")
	}
	if _, ok := reg.Get(latency.Key{Node: message.Cloud, Payload: message.PayloadAcknowledge}); ok {
		t.Fatal("samples should be keyed on the message source, not the handler's node")
	}
}

func TestRouterStatsDerived(t *testing.T) {
	stats := RouterStats{TotalMessages: 100, RoutedMessages: 95, RegisteredHandlers: 5}
	if rate := stats.SuccessRate(); rate != 0.95 {
		t.Fatalf("SuccessRate = %v, want 0.95", rate)
	}
	if load := stats.AverageHandlerLoad(); load != 19.0 {
		t.Fatalf("AverageHandlerLoad = %v, want 19.0", load)
	}
}

func TestRouterStartStopLifecycle(t *testing.T) {
	r := NewBaseMessageRouter(DefaultRouterConfig())
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(); err == nil || err.(*RouterError).Kind != KindAlreadyRunning {
		t.Fatalf("second Start = %v, want KindAlreadyRunning", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := r.Stop(); err == nil || err.(*RouterError).Kind != KindNotRunning {
		t.Fatalf("second Stop = %v, want KindNotRunning", err)
	}
}

func TestRouterTooManyHandlers(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.MaxHandlers = 1
	r := NewBaseMessageRouter(cfg)

	if _, err := r.RegisterHandler(&testHandler{node: message.Cloud, name: "a"}); err != nil {
		t.Fatal(err)
	}
	_, err := r.RegisterHandler(&testHandler{node: message.Cloud, name: "b"})
	if err == nil || err.(*RouterError).Kind != KindTooManyHandlers {
		t.Fatalf("got %v, want KindTooManyHandlers", err)
	}
}
