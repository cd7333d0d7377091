package transport

// Capabilities describes the delivery properties of a bus backend. Use this
// to introspect what the protocol can rely on at runtime.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string

	// SupportsBroadcast indicates broadcast posts actually fan out to
	// every endpoint on the bus.
	SupportsBroadcast bool

	// FiltersBroadcast indicates broadcast posts may be dropped before
	// reaching the source, so the direct request path is load-bearing.
	FiltersBroadcast bool

	// SupportsOrdering indicates messages from one source are delivered
	// in the order they were sent.
	SupportsOrdering bool

	// Remote indicates the bus crosses a process or network boundary.
	Remote bool

	// MaxPayloadSize is the maximum data payload size in bytes
	// (0 = unlimited/unknown).
	MaxPayloadSize int64
}

// RequiresDirectRequests returns true if dual-path requests are mandatory
// rather than a redundancy: a broadcast-only request may never arrive.
func (c Capabilities) RequiresDirectRequests() bool {
	return c.FiltersBroadcast || !c.SupportsBroadcast
}

// Predefined capability sets for the bundled transports.
var (
	// ChannelCapabilities for the in-memory hub.
	ChannelCapabilities = Capabilities{
		Name:              "channel",
		SupportsBroadcast: true,
		FiltersBroadcast:  true,
		SupportsOrdering:  true,
	}

	// NATSCapabilities for the NATS-backed bus.
	NATSCapabilities = Capabilities{
		Name:              "nats",
		SupportsBroadcast: true,
		FiltersBroadcast:  false,
		SupportsOrdering:  true,
		Remote:            true,
		MaxPayloadSize:    1048576, // NATS default 1MB
	}
)

// GetCapabilities returns the capabilities for a transport by name.
// Uses the registry to look up capabilities registered by each bus package.
// Returns a zero Capabilities struct if the transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
