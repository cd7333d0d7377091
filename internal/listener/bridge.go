package listener

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/plynkio/outputbridge/internal/listener/jsoncodec"
	"github.com/plynkio/outputbridge/internal/listener/logging"
)

const eventsTopic = "outputbridge.events"

// bridge hands events from the listening goroutine to the consumer
// goroutine through a bounded gochannel Pub/Sub. Publishing blocks until
// the callback has acknowledged the event, which is the backpressure the
// protocol relies on: the next inbound message is not processed until the
// consumer is done with the current event.
type bridge struct {
	pubSub  *gochannel.GoChannel
	log     logging.ServiceLogger
	metrics *ListenerMetrics

	mu       sync.RWMutex
	callback EventHandler
	started  bool

	done chan struct{}
}

func newBridge(buffer int, wmLogger watermill.LoggerAdapter, log logging.ServiceLogger, metrics *ListenerMetrics) *bridge {
	if buffer <= 0 {
		buffer = 1
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            int64(buffer),
			BlockPublishUntilSubscriberAck: true,
		},
		wmLogger,
	)

	return &bridge{
		pubSub:  pubSub,
		log:     log,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Bind installs the consumer callback for the coming session.
func (b *bridge) Bind(callback EventHandler) {
	b.mu.Lock()
	b.callback = callback
	b.mu.Unlock()
}

// Release drops the callback binding. Events delivered afterwards are
// discarded, which is expected during shutdown races.
func (b *bridge) Release() {
	b.Bind(nil)
}

func (b *bridge) handler() EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.callback
}

// Start subscribes the consumer goroutine. It must run before the first
// Deliver so no event is published into a topic without subscribers.
func (b *bridge) Start(ctx context.Context) error {
	messages, err := b.pubSub.Subscribe(ctx, eventsTopic)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.started = true
	b.mu.Unlock()

	go b.consume(messages)
	return nil
}

func (b *bridge) consume(messages <-chan *message.Message) {
	defer close(b.done)
	for msg := range messages {
		var event Event
		if err := jsoncodec.Unmarshal(msg.Payload, &event); err != nil {
			b.log.Error("dropping malformed bridge payload", err, logging.LogFields{
				"message_uuid": msg.UUID,
			})
			msg.Ack()
			continue
		}

		if callback := b.handler(); callback != nil {
			callback(event)
		} else {
			b.metrics.ObserveDrop()
		}
		// ack after the callback so the publisher stays blocked for the
		// full delivery
		msg.Ack()
	}
}

// Deliver publishes one event towards the consumer, blocking until it has
// been handled. Without a bound callback the event is dropped up front.
func (b *bridge) Deliver(event Event) error {
	if b.handler() == nil {
		b.metrics.ObserveDrop()
		return nil
	}

	payload, err := jsoncodec.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_kind", event.Kind.String())
	return b.pubSub.Publish(eventsTopic, msg)
}

// Close shuts the Pub/Sub down and joins the consumer goroutine.
func (b *bridge) Close() error {
	err := b.pubSub.Close()

	b.mu.RLock()
	started := b.started
	b.mu.RUnlock()
	if started {
		<-b.done
	}
	return err
}
