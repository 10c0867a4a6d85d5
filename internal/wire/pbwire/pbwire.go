// Package pbwire is a minimal protobuf-wire-format encoder/decoder: varint
// tags, length-delimited fields, fixed32/fixed64 fields. It exists because
// the retrieval pack carries no .proto schema to generate real protobuf
// bindings from — field numbers here are internally consistent but are not
// claimed to be bit-exact with any external schema.
package pbwire

import (
	"encoding/binary"
	"fmt"
)

// WireType identifies how a field's value is encoded on the wire.
type WireType int

const (
	Varint          WireType = 0
	Fixed64         WireType = 1
	LengthDelimited WireType = 2
	Fixed32         WireType = 5
)

// Writer accumulates an encoded message body.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the encoded message so far.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) writeTag(field int, wt WireType) {
	tag := uint64(field)<<3 | uint64(wt)
	w.buf = binary.AppendUvarint(w.buf, tag)
}

// WriteVarint appends a varint field, skipping the zero value (proto3 default).
func (w *Writer) WriteVarint(field int, v uint64) {
	if v == 0 {
		return
	}
	w.writeTag(field, Varint)
	w.buf = binary.AppendUvarint(w.buf, v)
}

// WriteInt64 appends a zigzag-free signed varint (protobuf int64 semantics).
func (w *Writer) WriteInt64(field int, v int64) {
	if v == 0 {
		return
	}
	w.writeTag(field, Varint)
	w.buf = binary.AppendUvarint(w.buf, uint64(v))
}

// WriteBool appends a boolean as a 0/1 varint.
func (w *Writer) WriteBool(field int, v bool) {
	if !v {
		return
	}
	w.writeTag(field, Varint)
	w.buf = binary.AppendUvarint(w.buf, 1)
}

// WriteBytes appends a length-delimited byte field, skipping if empty.
func (w *Writer) WriteBytes(field int, v []byte) {
	if len(v) == 0 {
		return
	}
	w.writeTag(field, LengthDelimited)
	w.buf = binary.AppendUvarint(w.buf, uint64(len(v)))
	w.buf = append(w.buf, v...)
}

// WriteString appends a length-delimited string field, skipping if empty.
func (w *Writer) WriteString(field int, v string) {
	if v == "" {
		return
	}
	w.WriteBytes(field, []byte(v))
}

// WriteMessage embeds a nested message's already-encoded bytes, skipping if empty.
func (w *Writer) WriteMessage(field int, v []byte) {
	if len(v) == 0 {
		return
	}
	w.WriteBytes(field, v)
}

// WriteFixed64 appends a little-endian 64-bit field, skipping the zero value.
func (w *Writer) WriteFixed64(field int, v uint64) {
	if v == 0 {
		return
	}
	w.writeTag(field, Fixed64)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteFixed32 appends a little-endian 32-bit field, skipping the zero value.
func (w *Writer) WriteFixed32(field int, v uint32) {
	if v == 0 {
		return
	}
	w.writeTag(field, Fixed32)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// Field is one decoded (field number, wire type, raw value) triple. The raw
// value's interpretation (Varint payload vs LengthDelimited bytes vs fixed
// width) is determined by WireType.
type Field struct {
	Number int
	Type   WireType
	Varint uint64
	Bytes  []byte
}

// ErrTruncated is returned when a message ends mid-field.
var ErrTruncated = fmt.Errorf("pbwire: truncated message")

// Parse decodes buf into a flat list of fields in wire order. Callers
// typically range over the result switching on Number.
func Parse(buf []byte) ([]Field, error) {
	var fields []Field
	for len(buf) > 0 {
		tag, n := binary.Uvarint(buf)
		if n <= 0 {
			return nil, ErrTruncated
		}
		buf = buf[n:]

		field := int(tag >> 3)
		wt := WireType(tag & 0x7)

		switch wt {
		case Varint:
			v, n := binary.Uvarint(buf)
			if n <= 0 {
				return nil, ErrTruncated
			}
			buf = buf[n:]
			fields = append(fields, Field{Number: field, Type: wt, Varint: v})
		case LengthDelimited:
			l, n := binary.Uvarint(buf)
			if n <= 0 {
				return nil, ErrTruncated
			}
			buf = buf[n:]
			if uint64(len(buf)) < l {
				return nil, ErrTruncated
			}
			fields = append(fields, Field{Number: field, Type: wt, Bytes: buf[:l]})
			buf = buf[l:]
		case Fixed64:
			if len(buf) < 8 {
				return nil, ErrTruncated
			}
			fields = append(fields, Field{Number: field, Type: wt, Varint: binary.LittleEndian.Uint64(buf[:8])})
			buf = buf[8:]
		case Fixed32:
			if len(buf) < 4 {
				return nil, ErrTruncated
			}
			fields = append(fields, Field{Number: field, Type: wt, Varint: uint64(binary.LittleEndian.Uint32(buf[:4]))})
			buf = buf[4:]
		default:
			return nil, fmt.Errorf("pbwire: unsupported wire type %d", wt)
		}
	}
	return fields, nil
}

// String decodes a LengthDelimited field's bytes as a string.
func (f Field) String() string { return string(f.Bytes) }
