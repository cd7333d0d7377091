package listener

import (
	"fmt"
	"strconv"

	"github.com/plynkio/outputbridge/internal/listener/ids"
)

// EventKind discriminates the payload carried by an Event.
type EventKind int

const (
	// EventNumericUpdate carries an integer value for a key.
	EventNumericUpdate EventKind = iota + 1
	// EventLabelUpdate carries the human-readable label for a key.
	EventLabelUpdate
	// EventTextUpdate carries free text, currently only the run name.
	EventTextUpdate
	// EventSessionStarted marks a new session; no payload beyond the key.
	EventSessionStarted
	// EventSessionStopped marks the end of a session; no payload beyond the key.
	EventSessionStopped
)

var eventKindNames = map[EventKind]string{
	EventNumericUpdate:  "numeric_update",
	EventLabelUpdate:    "label_update",
	EventTextUpdate:     "text_update",
	EventSessionStarted: "session_started",
	EventSessionStopped: "session_stopped",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText keeps kinds readable in JSON payloads crossing the bridge
// and on networked feeds.
func (k EventKind) MarshalText() ([]byte, error) {
	name, ok := eventKindNames[k]
	if !ok {
		return nil, fmt.Errorf("outputbridge: unknown event kind %d", int(k))
	}
	return []byte(name), nil
}

func (k *EventKind) UnmarshalText(text []byte) error {
	for kind, name := range eventKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("outputbridge: unknown event kind %q", string(text))
}

// Reserved keys mirror the source's wire protocol so key-only consumers can
// route session boundaries and the run name without inspecting kinds.
const (
	RunNameKey      = "__GAME_NAME__"
	SessionStartKey = "__MAME_START__"
	SessionStopKey  = "__MAME_STOP__"

	idKeyPrefix = "id_"
)

// Event is one consumer-facing record. Exactly one of Value, Label, or Text
// is meaningful, selected by Kind; session boundary events carry only their
// reserved key.
type Event struct {
	// ID is a ULID assigned at emission; lexicographic order is emission order.
	ID    string    `json:"id"`
	Kind  EventKind `json:"kind"`
	Key   string    `json:"key"`
	Value int32     `json:"value,omitempty"`
	Label string    `json:"label,omitempty"`
	Text  string    `json:"text,omitempty"`
}

// EventHandler receives events on the consumer goroutine, one call per
// event, in emission order. The listening goroutine blocks until the
// handler returns.
type EventHandler func(Event)

// DeriveKey renders the stable string form of an output identifier.
// Identifier 0 is the reserved run-name channel.
func DeriveKey(id uint32) string {
	if id == 0 {
		return RunNameKey
	}
	return idKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

func newNumericEvent(key string, value int32) Event {
	return Event{ID: ids.CreateULID(), Kind: EventNumericUpdate, Key: key, Value: value}
}

func newLabelEvent(key, label string) Event {
	return Event{ID: ids.CreateULID(), Kind: EventLabelUpdate, Key: key, Label: label}
}

func newTextEvent(key, text string) Event {
	return Event{ID: ids.CreateULID(), Kind: EventTextUpdate, Key: key, Text: text}
}

func newSessionEvent(kind EventKind) Event {
	key := SessionStartKey
	if kind == EventSessionStopped {
		key = SessionStopKey
	}
	return Event{ID: ids.CreateULID(), Kind: kind, Key: key}
}
