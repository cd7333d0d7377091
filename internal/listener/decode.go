package listener

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	errs "github.com/plynkio/outputbridge/internal/listener/errors"
	"github.com/plynkio/outputbridge/transport"
)

// labelRecordMin is one fixed-width identifier plus at least one label byte.
const labelRecordMin = 4 + 1

// minKeyValueLen is the shortest plausible "k=v" payload the source emits.
const minKeyValueLen = 3

// Record is a decoded data payload: either a LabelRecord or a ValueRecord.
type Record interface {
	isRecord()
}

// LabelRecord binds an output identifier to its human-readable label.
type LabelRecord struct {
	ID    uint32
	Label string
}

// ValueRecord is a text-keyed integer update, the label-free channel.
type ValueRecord struct {
	Key   string
	Value int32
}

func (LabelRecord) isRecord() {}
func (ValueRecord) isRecord() {}

// DecodePayload parses a tagged data payload. Unrecognised shapes and
// unparsable values return an error wrapping ErrDecodeSkipped; the caller
// acknowledges the message and carries on. Decoding never reads outside
// data, whatever the input looks like.
func DecodePayload(tag uint32, data []byte) (Record, error) {
	if tag == transport.TagLabel && len(data) >= labelRecordMin {
		id := binary.LittleEndian.Uint32(data[:4])
		label := data[4:]
		// trim at the first embedded terminator; trailing bytes after it
		// are padding and must not leak into the label
		if i := bytes.IndexByte(label, 0); i >= 0 {
			label = label[:i]
		}
		return LabelRecord{ID: id, Label: string(label)}, nil
	}

	if len(data) > minKeyValueLen {
		eq := bytes.IndexByte(data, '=')
		if eq < 0 {
			return nil, skip("no key/value separator")
		}
		key := string(data[:eq])
		raw := strings.TrimRight(string(data[eq+1:]), "\x00")
		value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
		if err != nil {
			return nil, skip("non-numeric value %q for key %q", raw, key)
		}
		return ValueRecord{Key: key, Value: int32(value)}, nil
	}

	return nil, skip("unrecognised payload shape (tag %d, %d bytes)", tag, len(data))
}

// EncodeLabelPayload renders a label record in the source's wire shape,
// identifier first, NUL-terminated label after. Shims and tests use it to
// synthesise traffic.
func EncodeLabelPayload(id uint32, label string) []byte {
	buf := make([]byte, 4, 4+len(label)+1)
	binary.LittleEndian.PutUint32(buf, id)
	buf = append(buf, label...)
	return append(buf, 0)
}

// EncodeValuePayload renders a key/value record in the source's wire shape.
func EncodeValuePayload(key string, value int32) []byte {
	return []byte(key + "=" + strconv.FormatInt(int64(value), 10))
}

func skip(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrDecodeSkipped, fmt.Sprintf(format, args...))
}
