// Package outputbridge listens to the output channel of an arcade emulator
// and turns the raw wire protocol (session boundaries, numeric output
// updates, label announcements, free-form key=value payloads) into an
// ordered stream of typed events delivered to a host-supplied callback.
// It keeps the label cache for numeric outputs, answers late registrations
// by re-requesting labels, and survives any number of emulator start/stop
// cycles without being restarted itself.
//
// A Listener is built from a Config and a transport.Bus. The bus abstracts
// how protocol messages reach the listener: the channel transport routes
// them in-process through a Hub (the default, and what tests use), the nats
// transport carries them between machines for a remote emulator shim.
// Custom buses register through RegisterTransport.
//
// # Events
//
// Five event kinds cross the bridge:
//   - numeric_update: an integer value for a key (lamp, counter, score)
//   - label_update: the human-readable label bound to an id_N key
//   - text_update: free text, currently only the run name on __GAME_NAME__
//   - session_started / session_stopped: session boundaries on their
//     reserved keys
//
// Events are delivered one at a time, in emission order, on a dedicated
// consumer goroutine. Delivery applies backpressure: the listening
// goroutine does not process the next protocol message until the callback
// has returned.
//
// # Middleware
//
// Signal handling runs through a middleware chain with panic recovery,
// structured logging, OpenTelemetry tracing, and Prometheus counters.
// Custom middleware can be added via Dependencies.Middlewares.
package outputbridge
