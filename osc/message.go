// Package osc encodes and decodes the subset of Open Sound Control messages
// spoken by the mixing consoles: an address, a type tag string and a list of
// int32, float32, string and (receive only) blob parameters.
package osc

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Type identifies the wire type of a parameter by its type tag character.
type Type byte

const (
	TypeInt    Type = 'i'
	TypeFloat  Type = 'f'
	TypeString Type = 's'
	TypeBlob   Type = 'b'
)

// TypeOf returns the wire type of a Go parameter value. Values that cannot be
// encoded report false.
func TypeOf(v any) (Type, bool) {
	switch v.(type) {
	case int32:
		return TypeInt, true
	case float32:
		return TypeFloat, true
	case string:
		return TypeString, true
	case []byte:
		return TypeBlob, true
	}
	return 0, false
}

// Message is a single OSC message.
type Message struct {
	Command    string
	Parameters []any
}

// NewMessage creates a message. Parameters must be int32, float32 or string to
// end up on the wire.
func NewMessage(command string, params ...any) Message {
	return Message{Command: command, Parameters: params}
}

// String renders the message for logs, e.g. `/ch/01/mix/fader [f:0.75]`.
func (m Message) String() string {
	parts := make([]string, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		t, ok := TypeOf(p)
		if !ok {
			parts = append(parts, fmt.Sprintf("?:%v", p))
			continue
		}
		if t == TypeBlob {
			parts = append(parts, fmt.Sprintf("b:%d bytes", len(p.([]byte))))
			continue
		}
		parts = append(parts, fmt.Sprintf("%c:%v", t, p))
	}
	return fmt.Sprintf("%s [%s]", m.Command, strings.Join(parts, " "))
}

// Int returns parameter i if it is an int32.
func (m Message) Int(i int) (int32, bool) {
	if i < 0 || i >= len(m.Parameters) {
		return 0, false
	}
	v, ok := m.Parameters[i].(int32)
	return v, ok
}

// Float returns parameter i if it is a float32.
func (m Message) Float(i int) (float32, bool) {
	if i < 0 || i >= len(m.Parameters) {
		return 0, false
	}
	v, ok := m.Parameters[i].(float32)
	return v, ok
}

// Str returns parameter i if it is a string.
func (m Message) Str(i int) (string, bool) {
	if i < 0 || i >= len(m.Parameters) {
		return "", false
	}
	v, ok := m.Parameters[i].(string)
	return v, ok
}

// Blob returns parameter i if it is a blob.
func (m Message) Blob(i int) ([]byte, bool) {
	if i < 0 || i >= len(m.Parameters) {
		return nil, false
	}
	v, ok := m.Parameters[i].([]byte)
	return v, ok
}

// Pad terminates s and fills it with NUL bytes up to the next multiple of
// four. At least one NUL is always added.
func Pad(s string) string {
	return s + strings.Repeat("\x00", 4-len(s)%4)
}

// Encode returns the binary form of the message. Blobs and values of
// unsupported types are left out, together with their type tag.
func (m Message) Encode() []byte {
	tags := ","
	var params []byte

	for _, p := range m.Parameters {
		switch v := p.(type) {
		case int32:
			tags += string(TypeInt)
			params = binary.BigEndian.AppendUint32(params, uint32(v))
		case float32:
			tags += string(TypeFloat)
			params = binary.BigEndian.AppendUint32(params, math.Float32bits(v))
		case string:
			tags += string(TypeString)
			params = append(params, Pad(v)...)
		}
	}

	buf := make([]byte, 0, len(m.Command)+len(tags)+len(params)+8)
	buf = append(buf, Pad(m.Command)...)
	buf = append(buf, Pad(tags)...)
	return append(buf, params...)
}

// nextBoundary returns the offset of the first byte after the padding that
// follows a NUL terminator at pos.
func nextBoundary(pos int) int {
	return pos + 4 - pos%4
}

func indexNUL(data []byte, from int) int {
	for i := from; i < len(data); i++ {
		if data[i] == 0 {
			return i
		}
	}
	return len(data)
}

// Decode parses a binary message. It never fails: unknown type tags are
// skipped and parameters that run past the end of data are not read.
func Decode(data []byte) Message {
	cmdEnd := indexNUL(data, 0)
	msg := Message{Command: string(data[:cmdEnd])}

	tagsStart := nextBoundary(cmdEnd)
	if tagsStart >= len(data) || data[tagsStart] != ',' {
		return msg
	}
	tagsEnd := indexNUL(data, tagsStart+1)
	tags := data[tagsStart+1 : tagsEnd]

	pos := nextBoundary(tagsEnd)
	for _, tag := range tags {
		switch Type(tag) {
		case TypeInt:
			if pos+4 > len(data) {
				return msg
			}
			msg.Parameters = append(msg.Parameters, int32(binary.BigEndian.Uint32(data[pos:])))
			pos += 4
		case TypeFloat:
			if pos+4 > len(data) {
				return msg
			}
			msg.Parameters = append(msg.Parameters, math.Float32frombits(binary.BigEndian.Uint32(data[pos:])))
			pos += 4
		case TypeString:
			if pos >= len(data) {
				return msg
			}
			end := indexNUL(data, pos)
			msg.Parameters = append(msg.Parameters, string(data[pos:end]))
			pos = nextBoundary(end)
		case TypeBlob:
			if pos+4 > len(data) {
				return msg
			}
			size := int(int32(binary.BigEndian.Uint32(data[pos:])))
			if size < 0 {
				size = 0
			}
			start := pos + 4
			end := start + size
			if end > len(data) {
				end = len(data)
			}
			blob := make([]byte, end-start)
			copy(blob, data[start:end])
			msg.Parameters = append(msg.Parameters, blob)
			pos = start + size
		}
	}

	return msg
}
