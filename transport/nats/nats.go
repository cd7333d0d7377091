// Package nats provides a NATS-backed bus for listeners whose source runs
// behind a remote shim. The shim forwards the OS-level protocol messages as
// JSON frames on a small subject tree:
//
//	<prefix>.msg.<endpoint>  inbound messages addressed to one listener
//	<prefix>.msg.broadcast   inbound messages addressed to every listener
//	<prefix>.req.<endpoint>  listener requests addressed to one source
//	<prefix>.req.broadcast   listener requests addressed to every source
package nats

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/nats-io/nats.go"

	"github.com/plynkio/outputbridge/internal/listener/jsoncodec"
	"github.com/plynkio/outputbridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

const defaultSubjectPrefix = "outputs"

// ConnFactory allows overriding the connection creation for testing.
var ConnFactory = func(url string, options ...nats.Option) (*nats.Conn, error) {
	return nats.Connect(url, options...)
}

// Register registers the NATS transport with the default registry.
// This should be called from an init() function in an importing package,
// or explicitly before using the transport.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

func init() {
	Register()
}

// Build creates a new NATS-backed bus.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Bus, error) {
	prefix := cfg.GetSubjectPrefix()
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	name := cfg.GetListenerName()
	if name == "" {
		name = "outputbridge-listener"
	}

	conn, err := ConnFactory(cfg.GetNATSURL(), nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}

	endpoint, err := randomEndpoint()
	if err != nil {
		conn.Close()
		return nil, err
	}

	inbox := make(chan *nats.Msg, 64)
	directSub, err := conn.ChanSubscribe(fmt.Sprintf("%s.msg.%d", prefix, endpoint), inbox)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats: subscribe direct: %w", err)
	}
	broadcastSub, err := conn.ChanSubscribe(prefix+".msg.broadcast", inbox)
	if err != nil {
		_ = directSub.Unsubscribe()
		conn.Close()
		return nil, fmt.Errorf("nats: subscribe broadcast: %w", err)
	}

	return &Bus{
		conn:     conn,
		subs:     []*nats.Subscription{directSub, broadcastSub},
		inbox:    inbox,
		endpoint: endpoint,
		prefix:   prefix,
		logger:   logger,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}

// Bus is a NATS-backed transport.Bus.
type Bus struct {
	conn     *nats.Conn
	subs     []*nats.Subscription
	inbox    chan *nats.Msg
	endpoint transport.Endpoint
	prefix   string
	logger   watermill.LoggerAdapter
}

func (b *Bus) Endpoint() transport.Endpoint { return b.endpoint }

func (b *Bus) Receive(ctx context.Context) (transport.Message, error) {
	for {
		select {
		case <-ctx.Done():
			return transport.Message{}, ctx.Err()
		case raw, ok := <-b.inbox:
			if !ok {
				return transport.Message{}, nats.ErrConnectionClosed
			}
			var msg transport.Message
			if err := jsoncodec.Unmarshal(raw.Data, &msg); err != nil {
				b.logger.Error("dropping malformed bus frame", err, watermill.LogFields{
					"subject": raw.Subject,
				})
				continue
			}
			return msg, nil
		}
	}
}

func (b *Bus) Post(target transport.Endpoint, req transport.Request) error {
	payload, err := jsoncodec.Marshal(req)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s.req.%d", b.prefix, target)
	if target == transport.Broadcast {
		subject = b.prefix + ".req.broadcast"
	}
	return b.conn.Publish(subject, payload)
}

func (b *Bus) Close() error {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.conn.Close()
	return nil
}

func randomEndpoint() (transport.Endpoint, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("nats: endpoint id: %w", err)
	}
	endpoint := transport.Endpoint(binary.LittleEndian.Uint64(buf[:]))
	if endpoint == transport.Broadcast || endpoint == 0 {
		endpoint++
	}
	return endpoint, nil
}
