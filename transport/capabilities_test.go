package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalString(t *testing.T) {
	tests := []struct {
		signal Signal
		want   string
	}{
		{SignalStart, "start"},
		{SignalStop, "stop"},
		{SignalRegister, "register"},
		{SignalUpdate, "update"},
		{SignalUnregister, "unregister"},
		{SignalData, "data"},
		{SignalNone, "none"},
		{Signal(99), "none"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.signal.String())
	}
}

func TestRequestKindString(t *testing.T) {
	assert.Equal(t, "register", RequestRegister.String())
	assert.Equal(t, "label", RequestLabel.String())
	assert.Equal(t, "unknown", RequestKind(0).String())
}

func TestChannelCapabilities(t *testing.T) {
	caps := ChannelCapabilities
	assert.Equal(t, "channel", caps.Name)
	assert.True(t, caps.SupportsBroadcast)
	assert.True(t, caps.FiltersBroadcast)
	assert.True(t, caps.RequiresDirectRequests())
}

func TestNATSCapabilities(t *testing.T) {
	caps := NATSCapabilities
	assert.Equal(t, "nats", caps.Name)
	assert.True(t, caps.Remote)
	assert.False(t, caps.RequiresDirectRequests())
}

func TestRequiresDirectRequestsWithoutBroadcast(t *testing.T) {
	caps := Capabilities{Name: "pipe", SupportsBroadcast: false}
	assert.True(t, caps.RequiresDirectRequests())
}
