// Package channel provides an in-memory bus for testing and for hosts that
// run the emulator shim in the same process.
package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/plynkio/outputbridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// ErrClosed is returned by Receive and Post after the bus has been closed.
var ErrClosed = errors.New("channel: bus closed")

const defaultInboxBuffer = 64

// PostedRequest is an outbound request observed on the hub's request tap.
type PostedRequest struct {
	Target  transport.Endpoint
	Request transport.Request
}

// Hub routes messages between endpoints in one process. A source side sends
// protocol messages with Send and observes listener requests on Requests.
type Hub struct {
	mu            sync.Mutex
	next          transport.Endpoint
	inboxes       map[transport.Endpoint]chan transport.Message
	requests      chan PostedRequest
	dropBroadcast bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		next:     1,
		inboxes:  make(map[transport.Endpoint]chan transport.Message),
		requests: make(chan PostedRequest, defaultInboxBuffer),
	}
}

// Attach allocates an endpoint and returns a bus bound to it. A buffer of
// zero or less uses the default inbox size.
func (h *Hub) Attach(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultInboxBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	endpoint := h.next
	h.next++
	inbox := make(chan transport.Message, buffer)
	h.inboxes[endpoint] = inbox

	return &Bus{hub: h, endpoint: endpoint, inbox: inbox}
}

// Send delivers a message to one endpoint, or to every endpoint when to is
// transport.Broadcast. A full inbox drops the message, the way a saturated
// OS message queue would.
func (h *Hub) Send(to transport.Endpoint, msg transport.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if to == transport.Broadcast {
		for _, inbox := range h.inboxes {
			deliver(inbox, msg)
		}
		return
	}
	if inbox, ok := h.inboxes[to]; ok {
		deliver(inbox, msg)
	}
}

// Requests exposes every request posted by attached listeners. Test doubles
// and in-process shims read this to answer label requests.
func (h *Hub) Requests() <-chan PostedRequest {
	return h.requests
}

// FilterBroadcast makes the hub drop broadcast-targeted requests before
// they reach the request tap, simulating OS-level message filtering. The
// direct request path is unaffected.
func (h *Hub) FilterBroadcast(drop bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropBroadcast = drop
}

func (h *Hub) post(target transport.Endpoint, req transport.Request) {
	h.mu.Lock()
	drop := h.dropBroadcast && target == transport.Broadcast
	h.mu.Unlock()
	if drop {
		return
	}

	select {
	case h.requests <- PostedRequest{Target: target, Request: req}:
	default:
		// nobody is draining the tap; best-effort like PostMessage
	}
}

func (h *Hub) detach(endpoint transport.Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if inbox, ok := h.inboxes[endpoint]; ok {
		delete(h.inboxes, endpoint)
		close(inbox)
	}
}

func deliver(inbox chan transport.Message, msg transport.Message) {
	select {
	case inbox <- msg:
	default:
	}
}

// Bus is one endpoint's view of the hub.
type Bus struct {
	hub      *Hub
	endpoint transport.Endpoint
	inbox    chan transport.Message
	once     sync.Once
}

func (b *Bus) Endpoint() transport.Endpoint { return b.endpoint }

func (b *Bus) Receive(ctx context.Context) (transport.Message, error) {
	select {
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	case msg, ok := <-b.inbox:
		if !ok {
			return transport.Message{}, ErrClosed
		}
		return msg, nil
	}
}

func (b *Bus) Post(target transport.Endpoint, req transport.Request) error {
	b.hub.post(target, req)
	return nil
}

func (b *Bus) Close() error {
	b.once.Do(func() { b.hub.detach(b.endpoint) })
	return nil
}

// Capabilities returns the capabilities of this transport.
func (b *Bus) Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}

// DefaultHub is the hub used by registry-built buses, so an in-process shim
// can reach listeners constructed from config.
var DefaultHub = NewHub()

// Factory allows overriding the bus creation for testing.
var Factory = func(buffer int) *Bus {
	return DefaultHub.Attach(buffer)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a new in-memory bus attached to DefaultHub.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Bus, error) {
	return Factory(defaultInboxBuffer), nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
