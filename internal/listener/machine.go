package listener

import (
	"github.com/plynkio/outputbridge/internal/listener/logging"
	"github.com/plynkio/outputbridge/transport"
)

// machine is the protocol state machine. It owns the binding cache, the
// current source endpoint, and the last seen run name, and is driven
// exclusively from the listening goroutine: one inbound message at a time,
// no locking.
type machine struct {
	bus     transport.Bus
	log     logging.ServiceLogger
	metrics *ListenerMetrics

	bindings *Bindings

	// source stays set after session-stop; it is stale but harmless, and
	// the next session-start replaces it.
	source      transport.Endpoint
	sourceKnown bool

	runName string
}

func newMachine(bus transport.Bus, log logging.ServiceLogger, metrics *ListenerMetrics) *machine {
	return &machine{
		bus:      bus,
		log:      log,
		metrics:  metrics,
		bindings: NewBindings(),
	}
}

// Handle consumes one classified inbound message and returns the events to
// emit, in order. Signals arriving before the first session-start fall
// through their branches harmlessly.
func (m *machine) Handle(msg transport.Message) ([]Event, error) {
	switch msg.Signal {
	case transport.SignalStart:
		return m.handleStart(msg.Source), nil
	case transport.SignalRegister:
		m.requestLabel(msg.ID)
		return nil, nil
	case transport.SignalUpdate:
		return m.handleUpdate(msg.ID, msg.Value), nil
	case transport.SignalUnregister:
		m.bindings.Remove(msg.ID)
		return nil, nil
	case transport.SignalStop:
		// stay Active; the next session-start clears uniformly
		return []Event{newSessionEvent(EventSessionStopped)}, nil
	case transport.SignalData:
		return m.handleData(msg.Tag, msg.Data)
	default:
		return nil, nil
	}
}

func (m *machine) handleStart(source transport.Endpoint) []Event {
	m.source = source
	m.sourceKnown = true
	m.bindings.Clear()

	m.log.Info("session started", logging.LogFields{"source": source})

	// register for updates, then ask for every known label up front
	m.post(transport.Request{Kind: transport.RequestRegister, Listener: m.bus.Endpoint()})
	m.post(transport.Request{Kind: transport.RequestLabel, Listener: m.bus.Endpoint()})

	return []Event{newSessionEvent(EventSessionStarted)}
}

func (m *machine) handleUpdate(id uint32, value int32) []Event {
	// late binding is expected: ask again for a label we have not seen yet.
	// identifier 0 is the run-name channel and is never looked up.
	if id != 0 && m.sourceKnown {
		if _, ok := m.bindings.Get(id); !ok {
			m.requestLabel(id)
		}
	}

	return []Event{newNumericEvent(DeriveKey(id), value)}
}

func (m *machine) handleData(tag uint32, data []byte) ([]Event, error) {
	record, err := DecodePayload(tag, data)
	if err != nil {
		return nil, err
	}

	switch r := record.(type) {
	case LabelRecord:
		if r.ID == 0 {
			m.runName = r.Label
			// the zero-value numeric event seeds consumers that only
			// track numeric state
			return []Event{
				newTextEvent(RunNameKey, r.Label),
				newNumericEvent(RunNameKey, 0),
			}, nil
		}
		m.bindings.Put(r.ID, r.Label)
		key := DeriveKey(r.ID)
		return []Event{
			newLabelEvent(key, r.Label),
			newNumericEvent(key, 0),
		}, nil
	case ValueRecord:
		return []Event{newNumericEvent(r.Key, r.Value)}, nil
	}

	return nil, nil
}

// requestLabel asks the source for the label of id (0 = all), broadcast
// first and then directly to the known source. The redundancy is
// deliberate: broadcast may be filtered, direct delivery is the fallback.
func (m *machine) requestLabel(id uint32) {
	m.post(transport.Request{Kind: transport.RequestLabel, Listener: m.bus.Endpoint(), ID: id})
}

func (m *machine) post(req transport.Request) {
	if err := m.bus.Post(transport.Broadcast, req); err != nil {
		m.log.Debug("broadcast post failed", logging.LogFields{"kind": req.Kind.String(), "error": err})
	} else {
		m.metrics.ObserveRequest(req.Kind.String(), RequestPathBroadcast)
	}

	if !m.sourceKnown {
		return
	}
	if err := m.bus.Post(m.source, req); err != nil {
		m.log.Debug("direct post failed", logging.LogFields{"kind": req.Kind.String(), "error": err})
	} else {
		m.metrics.ObserveRequest(req.Kind.String(), RequestPathDirect)
	}
}

// RunName reports the last decoded run name. Only meaningful on the
// listening goroutine; external consumers should watch text-update events.
func (m *machine) RunName() string {
	return m.runName
}
