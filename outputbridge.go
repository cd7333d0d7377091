package outputbridge

import (
	listenerpkg "github.com/plynkio/outputbridge/internal/listener"
	configpkg "github.com/plynkio/outputbridge/internal/listener/config"
	errspkg "github.com/plynkio/outputbridge/internal/listener/errors"
	idspkg "github.com/plynkio/outputbridge/internal/listener/ids"
	jsoncodec "github.com/plynkio/outputbridge/internal/listener/jsoncodec"
	loggingpkg "github.com/plynkio/outputbridge/internal/listener/logging"
	transportpkg "github.com/plynkio/outputbridge/transport"
)

type (
	Config       = configpkg.Config
	Listener     = listenerpkg.Listener
	Dependencies = listenerpkg.Dependencies

	Event        = listenerpkg.Event
	EventKind    = listenerpkg.EventKind
	EventHandler = listenerpkg.EventHandler

	SignalHandler    = listenerpkg.SignalHandler
	SignalMiddleware = listenerpkg.SignalMiddleware

	ListenerMetrics = listenerpkg.ListenerMetrics

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	// Decoded data payloads
	Record      = listenerpkg.Record
	LabelRecord = listenerpkg.LabelRecord
	ValueRecord = listenerpkg.ValueRecord

	// Modular transport types
	Bus               = transportpkg.Bus
	Endpoint          = transportpkg.Endpoint
	Message           = transportpkg.Message
	Request           = transportpkg.Request
	Signal            = transportpkg.Signal
	RequestKind       = transportpkg.RequestKind
	TransportBuilder  = transportpkg.Builder
	TransportConfig   = transportpkg.Config
	TransportRegistry = transportpkg.Registry
	Capabilities      = transportpkg.Capabilities
)

// Event kinds crossing the bridge.
const (
	EventNumericUpdate  = listenerpkg.EventNumericUpdate
	EventLabelUpdate    = listenerpkg.EventLabelUpdate
	EventTextUpdate     = listenerpkg.EventTextUpdate
	EventSessionStarted = listenerpkg.EventSessionStarted
	EventSessionStopped = listenerpkg.EventSessionStopped
)

// Reserved event keys from the wire protocol.
const (
	RunNameKey      = listenerpkg.RunNameKey
	SessionStartKey = listenerpkg.SessionStartKey
	SessionStopKey  = listenerpkg.SessionStopKey
)

// Protocol signals and request kinds for hosts implementing their own Bus
// or driving a channel Hub.
const (
	SignalNone       = transportpkg.SignalNone
	SignalStart      = transportpkg.SignalStart
	SignalStop       = transportpkg.SignalStop
	SignalRegister   = transportpkg.SignalRegister
	SignalUpdate     = transportpkg.SignalUpdate
	SignalUnregister = transportpkg.SignalUnregister
	SignalData       = transportpkg.SignalData

	RequestRegister = transportpkg.RequestRegister
	RequestLabel    = transportpkg.RequestLabel

	Broadcast = transportpkg.Broadcast
	TagLabel  = transportpkg.TagLabel
)

var (
	NewListener           = listenerpkg.NewListener
	NewListenerFromConfig = listenerpkg.NewListenerFromConfig
	NewListenerMetrics    = listenerpkg.NewListenerMetrics
	ValidateConfig        = configpkg.ValidateConfig

	// Payload codecs, exported for shims that speak the wire protocol.
	DeriveKey          = listenerpkg.DeriveKey
	DecodePayload      = listenerpkg.DecodePayload
	EncodeLabelPayload = listenerpkg.EncodeLabelPayload
	EncodeValuePayload = listenerpkg.EncodeValuePayload

	// Modular transport registry.
	// Import individual transports via: _ "github.com/plynkio/outputbridge/transport/nats"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrCallbackRequired = errspkg.ErrCallbackRequired
	ErrBusRequired      = errspkg.ErrBusRequired
	ErrConfigRequired   = errspkg.ErrConfigRequired
	ErrLoggerRequired   = errspkg.ErrLoggerRequired
	ErrDecodeSkipped    = errspkg.ErrDecodeSkipped

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewNopServiceLogger  = loggingpkg.NewNopServiceLogger

	CreateULID = idspkg.CreateULID
)
