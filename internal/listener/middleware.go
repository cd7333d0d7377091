package listener

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	errs "github.com/plynkio/outputbridge/internal/listener/errors"
	"github.com/plynkio/outputbridge/internal/listener/logging"
	"github.com/plynkio/outputbridge/transport"
)

// SignalHandler processes one inbound message and returns the events to
// emit, in order.
type SignalHandler func(msg transport.Message) ([]Event, error)

// SignalMiddleware wraps a SignalHandler. Hosts can supply their own via
// Dependencies.Middlewares; they run inside the default chain.
type SignalMiddleware func(next SignalHandler) SignalHandler

// chainMiddlewares applies middlewares so the first one is outermost.
func chainMiddlewares(h SignalHandler, middlewares ...SignalMiddleware) SignalHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func defaultMiddlewares(log logging.ServiceLogger, metrics *ListenerMetrics) []SignalMiddleware {
	return []SignalMiddleware{
		recovererMiddleware(log),
		logSignalsMiddleware(log),
		tracerMiddleware(),
		metricsMiddleware(metrics),
	}
}

// recovererMiddleware converts panics in signal handling into errors so one
// hostile payload cannot take the listening goroutine down.
func recovererMiddleware(log logging.ServiceLogger) SignalMiddleware {
	return func(next SignalHandler) SignalHandler {
		return func(msg transport.Message) (events []Event, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("outputbridge: panic handling %s signal: %v", msg.Signal, r)
					log.Error("recovered from signal handler panic", err, logging.LogFields{
						"signal": msg.Signal.String(),
					})
				}
			}()
			return next(msg)
		}
	}
}

// logSignalsMiddleware traces every inbound signal and surfaces skipped
// payloads at debug level.
func logSignalsMiddleware(log logging.ServiceLogger) SignalMiddleware {
	return func(next SignalHandler) SignalHandler {
		return func(msg transport.Message) ([]Event, error) {
			log.Trace("processing signal", logging.LogFields{
				"signal": msg.Signal.String(),
				"id":     msg.ID,
				"bytes":  len(msg.Data),
			})

			events, err := next(msg)
			if errors.Is(err, errs.ErrDecodeSkipped) {
				log.Debug("payload skipped", logging.LogFields{
					"signal": msg.Signal.String(),
					"reason": err.Error(),
				})
			}
			return events, err
		}
	}
}

// tracerMiddleware wraps signal handling in an OpenTelemetry span.
func tracerMiddleware() SignalMiddleware {
	return func(next SignalHandler) SignalHandler {
		return func(msg transport.Message) ([]Event, error) {
			tracer := otel.Tracer("outputbridge-listener")
			_, span := tracer.Start(context.Background(), "HandleSignal")
			defer span.End()

			span.SetAttributes(
				attribute.String("signal", msg.Signal.String()),
				attribute.Int64("source", int64(msg.Source)),
				attribute.Int64("output.id", int64(msg.ID)),
			)
			return next(msg)
		}
	}
}

// metricsMiddleware counts signals, emitted events, and decode skips.
func metricsMiddleware(metrics *ListenerMetrics) SignalMiddleware {
	return func(next SignalHandler) SignalHandler {
		return func(msg transport.Message) ([]Event, error) {
			metrics.ObserveSignal(msg.Signal.String())

			events, err := next(msg)
			if errors.Is(err, errs.ErrDecodeSkipped) {
				metrics.ObserveDecodeSkip()
			}
			for _, event := range events {
				metrics.ObserveEvent(event.Kind.String())
			}
			return events, err
		}
	}
}
