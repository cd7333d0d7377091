package listener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/plynkio/outputbridge/internal/listener/errors"
	"github.com/plynkio/outputbridge/internal/listener/logging"
	"github.com/plynkio/outputbridge/transport"
)

type recordedPost struct {
	target  transport.Endpoint
	request transport.Request
}

type fakeBus struct {
	endpoint transport.Endpoint
	posts    []recordedPost
}

func (f *fakeBus) Endpoint() transport.Endpoint { return f.endpoint }
func (f *fakeBus) Receive(ctx context.Context) (transport.Message, error) {
	<-ctx.Done()
	return transport.Message{}, ctx.Err()
}
func (f *fakeBus) Post(target transport.Endpoint, req transport.Request) error {
	f.posts = append(f.posts, recordedPost{target: target, request: req})
	return nil
}
func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) drain() []recordedPost {
	posts := f.posts
	f.posts = nil
	return posts
}

func newTestMachine() (*machine, *fakeBus) {
	bus := &fakeBus{endpoint: 100}
	return newMachine(bus, logging.NewNopServiceLogger(), nil), bus
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestSessionStartClearsBindingsAndRequestsLabels(t *testing.T) {
	m, bus := newTestMachine()
	m.bindings.Put(7, "stale")

	events, err := m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventSessionStarted, events[0].Kind)
	assert.Equal(t, SessionStartKey, events[0].Key)
	assert.Equal(t, 0, m.bindings.Len(), "session start must clear all bindings")

	posts := bus.drain()
	require.Len(t, posts, 4)
	// register for updates, broadcast then direct
	assert.Equal(t, transport.RequestRegister, posts[0].request.Kind)
	assert.Equal(t, transport.Broadcast, posts[0].target)
	assert.Equal(t, transport.RequestRegister, posts[1].request.Kind)
	assert.Equal(t, transport.Endpoint(42), posts[1].target)
	// then ask for all labels, broadcast then direct
	assert.Equal(t, transport.RequestLabel, posts[2].request.Kind)
	assert.Equal(t, uint32(0), posts[2].request.ID)
	assert.Equal(t, transport.Broadcast, posts[2].target)
	assert.Equal(t, transport.Endpoint(42), posts[3].target)

	for _, post := range posts {
		assert.Equal(t, transport.Endpoint(100), post.request.Listener)
	}
}

func TestRegisterIssuesDualPathLabelRequest(t *testing.T) {
	m, bus := newTestMachine()
	_, err := m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	require.NoError(t, err)
	bus.drain()

	events, err := m.Handle(transport.Message{Signal: transport.SignalRegister, ID: 9})
	require.NoError(t, err)
	assert.Empty(t, events, "register emits no events; the label arrives later")

	posts := bus.drain()
	require.Len(t, posts, 2)
	assert.Equal(t, transport.Broadcast, posts[0].target)
	assert.Equal(t, transport.Endpoint(42), posts[1].target)
	for _, post := range posts {
		assert.Equal(t, transport.RequestLabel, post.request.Kind)
		assert.Equal(t, uint32(9), post.request.ID)
	}
	assert.Equal(t, 0, m.bindings.Len(), "register must not touch the cache")
}

func TestLabelRecordStoresBindingAndSeedsNumericRow(t *testing.T) {
	m, bus := newTestMachine()
	_, _ = m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	bus.drain()

	events, err := m.Handle(transport.Message{
		Signal: transport.SignalData,
		Tag:    transport.TagLabel,
		Data:   EncodeLabelPayload(7, "Lives"),
	})
	require.NoError(t, err)

	require.Equal(t, []EventKind{EventLabelUpdate, EventNumericUpdate}, kinds(events))
	assert.Equal(t, "id_7", events[0].Key)
	assert.Equal(t, "Lives", events[0].Label)
	assert.Equal(t, "id_7", events[1].Key)
	assert.Equal(t, int32(0), events[1].Value)

	label, ok := m.bindings.Get(7)
	require.True(t, ok)
	assert.Equal(t, "Lives", label)
}

func TestRunNameRecordStaysOutOfBindingCache(t *testing.T) {
	m, bus := newTestMachine()
	_, _ = m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	bus.drain()

	events, err := m.Handle(transport.Message{
		Signal: transport.SignalData,
		Tag:    transport.TagLabel,
		Data:   EncodeLabelPayload(0, "pacman"),
	})
	require.NoError(t, err)

	require.Equal(t, []EventKind{EventTextUpdate, EventNumericUpdate}, kinds(events))
	assert.Equal(t, RunNameKey, events[0].Key)
	assert.Equal(t, "pacman", events[0].Text)
	assert.Equal(t, RunNameKey, events[1].Key)
	assert.Equal(t, int32(0), events[1].Value)

	_, ok := m.bindings.Get(0)
	assert.False(t, ok, "identifier 0 must never be cached")
	assert.Equal(t, "pacman", m.RunName())
}

func TestUpdateForUnknownIdentifierRequestsLabel(t *testing.T) {
	m, bus := newTestMachine()
	_, _ = m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	bus.drain()

	events, err := m.Handle(transport.Message{Signal: transport.SignalUpdate, ID: 9, Value: 5})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventNumericUpdate, events[0].Kind)
	assert.Equal(t, "id_9", events[0].Key)
	assert.Equal(t, int32(5), events[0].Value)

	posts := bus.drain()
	require.Len(t, posts, 2, "exactly two label requests for an unknown id")
	assert.Equal(t, transport.Broadcast, posts[0].target)
	assert.Equal(t, transport.Endpoint(42), posts[1].target)
	for _, post := range posts {
		assert.Equal(t, transport.RequestLabel, post.request.Kind)
		assert.Equal(t, uint32(9), post.request.ID)
	}
}

func TestUpdateForKnownIdentifierDoesNotRequestLabel(t *testing.T) {
	m, bus := newTestMachine()
	_, _ = m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	_, _ = m.Handle(transport.Message{
		Signal: transport.SignalData,
		Tag:    transport.TagLabel,
		Data:   EncodeLabelPayload(7, "Lives"),
	})
	bus.drain()

	events, err := m.Handle(transport.Message{Signal: transport.SignalUpdate, ID: 7, Value: 3})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int32(3), events[0].Value)
	assert.Empty(t, bus.drain())
}

func TestUpdateForReservedIdentifierNeverRequestsLabel(t *testing.T) {
	m, bus := newTestMachine()
	_, _ = m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	bus.drain()

	events, err := m.Handle(transport.Message{Signal: transport.SignalUpdate, ID: 0, Value: 1})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, RunNameKey, events[0].Key)
	assert.Empty(t, bus.drain(), "identifier 0 is never looked up")
}

func TestSignalsBeforeFirstStartAreHarmless(t *testing.T) {
	m, bus := newTestMachine()

	events, err := m.Handle(transport.Message{Signal: transport.SignalUpdate, ID: 9, Value: 5})
	require.NoError(t, err)
	require.Len(t, events, 1, "updates still produce events without a session")
	assert.Empty(t, bus.drain(), "no source known, no direct or broadcast re-request")

	events, err = m.Handle(transport.Message{Signal: transport.SignalUnregister, ID: 9})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = m.Handle(transport.Message{Signal: transport.SignalNone})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestUnregisterRemovesBindingSilently(t *testing.T) {
	m, bus := newTestMachine()
	_, _ = m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	_, _ = m.Handle(transport.Message{
		Signal: transport.SignalData,
		Tag:    transport.TagLabel,
		Data:   EncodeLabelPayload(7, "Lives"),
	})
	bus.drain()

	events, err := m.Handle(transport.Message{Signal: transport.SignalUnregister, ID: 7})
	require.NoError(t, err)
	assert.Empty(t, events, "unregister is housekeeping, no event")

	_, ok := m.bindings.Get(7)
	assert.False(t, ok)
}

func TestSessionStopKeepsStateForRestart(t *testing.T) {
	m, bus := newTestMachine()
	_, _ = m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	_, _ = m.Handle(transport.Message{
		Signal: transport.SignalData,
		Tag:    transport.TagLabel,
		Data:   EncodeLabelPayload(7, "Lives"),
	})
	bus.drain()

	events, err := m.Handle(transport.Message{Signal: transport.SignalStop})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventSessionStopped, events[0].Kind)
	assert.Equal(t, SessionStopKey, events[0].Key)

	// bindings survive until the next start clears them
	assert.Equal(t, 1, m.bindings.Len())

	_, err = m.Handle(transport.Message{Signal: transport.SignalStart, Source: 43})
	require.NoError(t, err)
	assert.Equal(t, 0, m.bindings.Len())
}

func TestMalformedPayloadIsSkippedWithoutEvents(t *testing.T) {
	m, bus := newTestMachine()
	_, _ = m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	bus.drain()

	events, err := m.Handle(transport.Message{Signal: transport.SignalData, Data: []byte("score=abc")})
	assert.ErrorIs(t, err, errs.ErrDecodeSkipped)
	assert.Empty(t, events)
}

func TestScenarioStartLabelUpdateOrdering(t *testing.T) {
	m, bus := newTestMachine()

	var all []Event
	steps := []transport.Message{
		{Signal: transport.SignalStart, Source: 42},
		{Signal: transport.SignalData, Tag: transport.TagLabel, Data: EncodeLabelPayload(7, "Lives")},
		{Signal: transport.SignalUpdate, ID: 7, Value: 3},
	}
	for _, step := range steps {
		events, err := m.Handle(step)
		require.NoError(t, err)
		all = append(all, events...)
	}
	bus.drain()

	require.Equal(t, []EventKind{
		EventSessionStarted,
		EventLabelUpdate,
		EventNumericUpdate,
		EventNumericUpdate,
	}, kinds(all))
	assert.Equal(t, "Lives", all[1].Label)
	assert.Equal(t, "id_7", all[1].Key)
	assert.Equal(t, int32(0), all[2].Value)
	assert.Equal(t, int32(3), all[3].Value)
}

func TestKeyValuePayloadBypassesBindingCache(t *testing.T) {
	m, bus := newTestMachine()
	_, _ = m.Handle(transport.Message{Signal: transport.SignalStart, Source: 42})
	bus.drain()

	events, err := m.Handle(transport.Message{Signal: transport.SignalData, Data: []byte("score=1500")})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventNumericUpdate, events[0].Kind)
	assert.Equal(t, "score", events[0].Key)
	assert.Equal(t, int32(1500), events[0].Value)
	assert.Equal(t, 0, m.bindings.Len())
}
