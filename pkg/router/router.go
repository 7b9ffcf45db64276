package router

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lumisync/lumisync-core/internal/latency"
	"github.com/lumisync/lumisync-core/pkg/adapter"
	"github.com/lumisync/lumisync-core/pkg/message"
)

// MessageRouter is the dispatch surface every node wires its handlers
// and adapters through.
type MessageRouter interface {
	RegisterHandler(h MessageHandler) (uint32, error)
	UnregisterHandler(handlerID uint32) error
	RouteMessage(msg *message.Message) error
	SendMessage(target message.NodeId, msg *message.Message) error
	Stats() RouterStats
	Config() RouterConfig
	Start() error
	Stop() error
}

// BaseMessageRouter is the reference MessageRouter implementation: a
// flat handler table plus a payload-type index, backed by an
// AdapterManager for the actual send side.
type BaseMessageRouter struct {
	mu sync.Mutex

	handlers        map[uint32]*handlerEntry
	nextHandlerID   uint32
	payloadHandlers map[message.PayloadType][]uint32

	adapterManager *adapter.AdapterManager

	config RouterConfig
	stats  RouterStats

	latency *latency.Registry // optional, nil when no caller is watching

	seen      map[uuid.UUID]struct{}
	seenOrder []uuid.UUID

	running bool
}

// NewBaseMessageRouter builds a router over its own fresh AdapterManager.
func NewBaseMessageRouter(config RouterConfig) *BaseMessageRouter {
	return &BaseMessageRouter{
		handlers:        make(map[uint32]*handlerEntry),
		nextHandlerID:   1,
		payloadHandlers: make(map[message.PayloadType][]uint32),
		adapterManager:  adapter.NewAdapterManager(),
		config:          config,
		seen:            make(map[uuid.UUID]struct{}),
	}
}

// AdapterManager exposes the router's transport layer for adapter
// registration (RegisterAdapter, SetRoute), the same "mutable accessor"
// the original router offers so callers can wire up transports without
// the router needing to know about adapter construction.
func (r *BaseMessageRouter) AdapterManager() *adapter.AdapterManager {
	return r.adapterManager
}

// WithLatencyRegistry has the router feed one handler-processing-time
// sample per successfully routed message into reg, keyed on the
// message's source node and payload kind.
func (r *BaseMessageRouter) WithLatencyRegistry(reg *latency.Registry) *BaseMessageRouter {
	r.latency = reg
	return r
}

func (r *BaseMessageRouter) RegisterHandler(h MessageHandler) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.handlers) >= r.config.MaxHandlers {
		return 0, &RouterError{Kind: KindTooManyHandlers}
	}

	id := r.nextHandlerID
	r.nextHandlerID++

	entry := &handlerEntry{id: id, handler: h}
	r.handlers[id] = entry
	for _, pt := range h.SupportedPayloads() {
		r.payloadHandlers[pt] = append(r.payloadHandlers[pt], id)
	}
	r.stats.RegisteredHandlers++

	return id, nil
}

func (r *BaseMessageRouter) UnregisterHandler(handlerID uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[handlerID]; !ok {
		return &RouterError{Kind: KindHandlerNotFound, HandlerID: handlerID}
	}
	delete(r.handlers, handlerID)

	for pt, ids := range r.payloadHandlers {
		filtered := ids[:0]
		for _, id := range ids {
			if id != handlerID {
				filtered = append(filtered, id)
			}
		}
		r.payloadHandlers[pt] = filtered
	}
	if r.stats.RegisteredHandlers > 0 {
		r.stats.RegisteredHandlers--
	}
	return nil
}

// isDuplicate reports whether id has been seen within the
// configured window, recording it if not.
func (r *BaseMessageRouter) isDuplicate(id uuid.UUID) bool {
	if !r.config.EnableDuplicateDetection {
		return false
	}
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	r.seenOrder = append(r.seenOrder, id)
	if len(r.seenOrder) > r.config.DuplicateWindowSize {
		oldest := r.seenOrder[0]
		r.seenOrder = r.seenOrder[1:]
		delete(r.seen, oldest)
	}
	return false
}

// RouteMessage dispatches msg to the first registered handler for its
// payload kind that accepts it without error. A returned response is
// posted back to msg's source. Handlers are tried in registration
// order; the first success wins and later candidates are skipped.
func (r *BaseMessageRouter) RouteMessage(msg *message.Message) error {
	r.mu.Lock()

	r.stats.TotalMessages++

	if r.isDuplicate(msg.Header.ID) {
		r.stats.DuplicateMessages++
		r.mu.Unlock()
		return &RouterError{Kind: KindDuplicateMessage}
	}

	payloadType := msg.Payload.Kind()
	ids := append([]uint32(nil), r.payloadHandlers[payloadType]...)
	if len(ids) == 0 {
		r.stats.UnroutedMessages++
		r.mu.Unlock()
		return &RouterError{Kind: KindNoHandlerFound, PayloadKnd: payloadType}
	}

	var entries []*handlerEntry
	for _, id := range ids {
		if e, ok := r.handlers[id]; ok {
			entries = append(entries, e)
		}
	}
	r.mu.Unlock()

	var lastErr error
	for _, entry := range entries {
		resp, elapsed, err := entry.handleWithTiming(msg)
		if err != nil {
			lastErr = err
			continue
		}

		r.mu.Lock()
		r.stats.RoutedMessages++
		r.stats.recordProcessing(uint64(elapsed.Milliseconds()))
		r.mu.Unlock()

		if r.latency != nil {
			r.latency.Sample(latency.Key{Node: msg.Header.Source, Payload: payloadType}, elapsed)
		}

		if resp != nil {
			_ = r.SendMessage(msg.Header.Source, resp)
		}
		return nil
	}

	r.mu.Lock()
	r.stats.FailedMessages++
	r.mu.Unlock()

	if lastErr != nil {
		return &RouterError{Kind: KindHandlingFailed, Wrap: lastErr}
	}
	return &RouterError{Kind: KindNoHandlerFound, PayloadKnd: payloadType}
}

// SendMessage hands msg off to the adapter manager for target.
func (r *BaseMessageRouter) SendMessage(target message.NodeId, msg *message.Message) error {
	if err := r.adapterManager.SendTo(target, msg); err != nil {
		return transportErr(err)
	}
	return nil
}

func (r *BaseMessageRouter) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *BaseMessageRouter) Config() RouterConfig {
	return r.config
}

func (r *BaseMessageRouter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}
	r.running = true
	return nil
}

func (r *BaseMessageRouter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return ErrNotRunning
	}
	r.running = false
	return nil
}
