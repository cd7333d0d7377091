package listener

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"

	configpkg "github.com/plynkio/outputbridge/internal/listener/config"
	errs "github.com/plynkio/outputbridge/internal/listener/errors"
	"github.com/plynkio/outputbridge/internal/listener/logging"
	"github.com/plynkio/outputbridge/transport"
)

// Dependencies holds the collaborators a Listener needs. Bus is required;
// everything else is optional.
type Dependencies struct {
	// Bus delivers inbound protocol messages and carries outbound requests.
	Bus transport.Bus

	// Metrics collects protocol statistics. Leave nil to skip instrumentation.
	Metrics *ListenerMetrics

	// Middlewares run inside the default signal middleware chain.
	Middlewares []SignalMiddleware
}

// Listener bridges one source's output protocol into an ordered event
// stream delivered to a host-supplied callback. A Listener survives any
// number of start/stop cycles; protocol state (the binding cache, the known
// source endpoint) carries across them the way the wire protocol expects.
type Listener struct {
	conf     *configpkg.Config
	log      logging.ServiceLogger
	wmLogger watermill.LoggerAdapter
	bus      transport.Bus
	metrics  *ListenerMetrics

	machine *machine
	handle  SignalHandler

	mu      sync.Mutex
	running bool
	bridge  *bridge
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewListener constructs a Listener. Call Start on the result to begin
// receiving events.
func NewListener(conf *configpkg.Config, log logging.ServiceLogger, deps Dependencies) (*Listener, error) {
	if conf == nil {
		return nil, errs.ErrConfigRequired
	}
	if log == nil {
		return nil, errs.ErrLoggerRequired
	}
	if deps.Bus == nil {
		return nil, errs.ErrBusRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if conf.MetricsEnabled && deps.Metrics != nil {
		if err := deps.Metrics.Register(); err != nil {
			return nil, err
		}
	}

	log.Info("creating output listener", logging.LogFields{
		"endpoint": deps.Bus.Endpoint(),
		"config":   conf,
	})

	l := &Listener{
		conf:     conf,
		log:      log,
		wmLogger: logging.NewWatermillAdapter(log),
		bus:      deps.Bus,
		metrics:  deps.Metrics,
	}
	l.machine = newMachine(deps.Bus, log, deps.Metrics)

	middlewares := defaultMiddlewares(log, deps.Metrics)
	middlewares = append(middlewares, deps.Middlewares...)
	l.handle = chainMiddlewares(l.machine.Handle, middlewares...)

	return l, nil
}

// NewListenerFromConfig builds the bus for conf through the transport
// registry and constructs a Listener on top of it. Bus packages must be
// imported (blank imports suffice) so their builders are registered.
func NewListenerFromConfig(ctx context.Context, conf *configpkg.Config, log logging.ServiceLogger, deps Dependencies) (*Listener, error) {
	if conf == nil {
		return nil, errs.ErrConfigRequired
	}
	if log == nil {
		return nil, errs.ErrLoggerRequired
	}

	if deps.Bus == nil {
		bus, err := transport.Build(ctx, conf, logging.NewWatermillAdapter(log))
		if err != nil {
			return nil, err
		}
		deps.Bus = bus
	}

	return NewListener(conf, log, deps)
}

// Start binds the callback and launches the listening goroutine. A nil
// callback fails with ErrCallbackRequired. Calling Start while already
// running is a no-op success; no second listening goroutine is created.
func (l *Listener) Start(callback EventHandler) error {
	if callback == nil {
		return errs.ErrCallbackRequired
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	bridge := newBridge(l.conf.EventBuffer, l.wmLogger, l.log, l.metrics)
	bridge.Bind(callback)
	if err := bridge.Start(ctx); err != nil {
		cancel()
		return err
	}

	l.bridge = bridge
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true

	go l.run(ctx)

	l.log.Info("listener started", logging.LogFields{"endpoint": l.bus.Endpoint()})
	return nil
}

// Running reports whether the listening goroutine is active.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// run is the listening goroutine: the only place protocol state is touched.
func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	for {
		msg, err := l.bus.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.log.Error("bus receive failed, listener exiting", err, nil)
			}
			return
		}

		events, err := l.handle(msg)
		if err != nil {
			// skipped payloads and recovered panics are logged by the
			// middleware chain; the message is acknowledged either way
			continue
		}

		for _, event := range events {
			if err := l.bridge.Deliver(event); err != nil {
				if ctx.Err() != nil {
					return
				}
				l.log.Error("event delivery failed", err, logging.LogFields{
					"event_id": event.ID,
					"kind":     event.Kind.String(),
					"key":      event.Key,
				})
			}
		}
	}
}

// Stop wakes the listening goroutine, waits for it to exit, shuts the
// bridge down, and releases the callback binding. Safe to call when not
// running, and safe to call twice.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	done := l.done
	bridge := l.bridge
	l.mu.Unlock()

	cancel()
	<-done

	if err := bridge.Close(); err != nil && !errors.Is(err, context.Canceled) {
		l.log.Debug("bridge close reported error", logging.LogFields{"error": err})
	}
	bridge.Release()

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()

	l.log.Info("listener stopped", nil)
}
