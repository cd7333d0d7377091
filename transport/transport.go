// Package transport defines the bus contract carrying the output protocol
// between an emulator source and a listener. Each bus implementation
// (channel, nats, ...) lives in its own sub-package and registers itself
// with the transport registry.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
)

// Endpoint is an opaque address on the bus. The listener holds one for
// itself and learns the source's endpoint from the session-start signal.
type Endpoint uint64

// Broadcast addresses every endpoint on the bus. Broadcast posts may be
// filtered by the underlying transport, which is why the protocol always
// pairs them with a direct post to the known source.
const Broadcast Endpoint = 0xFFFF

// Signal classifies an inbound message. Classification happens at the
// transport layer, the protocol equivalent of resolving registered window
// message identifiers.
type Signal int

const (
	SignalNone Signal = iota
	// SignalStart announces a new session; Source carries the sender's endpoint.
	SignalStart
	// SignalStop announces the end of the current session.
	SignalStop
	// SignalRegister announces that an output identifier exists; ID carries it.
	SignalRegister
	// SignalUpdate carries a new value for an output identifier.
	SignalUpdate
	// SignalUnregister withdraws an output identifier.
	SignalUnregister
	// SignalData carries a tagged byte payload, decoded by the listener.
	SignalData
)

func (s Signal) String() string {
	switch s {
	case SignalStart:
		return "start"
	case SignalStop:
		return "stop"
	case SignalRegister:
		return "register"
	case SignalUpdate:
		return "update"
	case SignalUnregister:
		return "unregister"
	case SignalData:
		return "data"
	default:
		return "none"
	}
}

// TagLabel marks a data payload carrying an identifier+label record.
const TagLabel uint32 = 1

// Message is one inbound protocol message. Only the fields relevant to the
// carried Signal are populated.
type Message struct {
	Signal Signal   `json:"signal"`
	Source Endpoint `json:"source,omitempty"`
	ID     uint32   `json:"id,omitempty"`
	Value  int32    `json:"value,omitempty"`
	Tag    uint32   `json:"tag,omitempty"`
	Data   []byte   `json:"data,omitempty"`
}

// RequestKind classifies an outbound request from the listener to the source.
type RequestKind int

const (
	// RequestRegister asks the source to send updates to the listener.
	RequestRegister RequestKind = iota + 1
	// RequestLabel asks the source to (re)send the label for ID.
	// ID 0 asks for every known label.
	RequestLabel
)

func (k RequestKind) String() string {
	switch k {
	case RequestRegister:
		return "register"
	case RequestLabel:
		return "label"
	default:
		return "unknown"
	}
}

// Request is an outbound request. Listener carries the requester's endpoint
// so the source knows where to reply.
type Request struct {
	Kind     RequestKind `json:"kind"`
	Listener Endpoint    `json:"listener"`
	ID       uint32      `json:"id,omitempty"`
}

// Bus carries the output protocol for exactly one listener.
type Bus interface {
	// Endpoint returns the listener's own address on the bus.
	Endpoint() Endpoint

	// Receive blocks until the next message addressed to the listener
	// arrives, or until ctx is cancelled. Cancellation is the wake-and-exit
	// path used by Listener.Stop and must win against pending traffic.
	Receive(ctx context.Context) (Message, error)

	// Post sends a request to target. Posts to Broadcast may be silently
	// filtered; direct posts are best effort and must not block on a slow
	// or absent source.
	Post(target Endpoint, req Request) error

	Close() error
}

// Builder is the function signature for creating a bus from config.
// Each transport package should provide a Builder that can be registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Bus, error)

// Config provides the configuration values needed by transports. The
// interface keeps bus packages from depending on the full config package.
type Config interface {
	// GetTransport returns the transport type name.
	GetTransport() string

	// GetListenerName identifies the listener on the bus.
	GetListenerName() string

	// NATS
	GetNATSURL() string
	GetSubjectPrefix() string
}

// CapabilitiesProvider is implemented by buses that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
