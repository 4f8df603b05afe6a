package wire

// Field encode/decode helpers built on protobuf's low-level wire
// primitives (google.golang.org/protobuf/encoding/protowire). There is no
// .proto/protoc step in this repo, so the payloads for the operations it
// implements are hand-assembled field by field.

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

type fieldWriter struct {
	buf []byte
}

func (w *fieldWriter) bytes(num protowire.Number, v []byte) {
	if v == nil {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, v)
}

func (w *fieldWriter) str(num protowire.Number, v string) {
	if v == "" {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, v)
}

func (w *fieldWriter) varint(num protowire.Number, v int64) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(v))
}

func (w *fieldWriter) boolean(num protowire.Number, v bool) {
	x := int64(0)
	if v {
		x = 1
	}
	w.varint(num, x)
}

func (w *fieldWriter) message(num protowire.Number, v []byte) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, v)
}

func (w *fieldWriter) finish() []byte { return w.buf }

// rawField is one decoded (number, type, value-bytes) triple; value is
// the raw payload appropriate to typ (varints re-encoded as varints,
// bytes as-is).
type rawField struct {
	num protowire.Number
	typ protowire.Type
	buf []byte
}

// parseFields decodes buf into a flat list of fields, consumed in order.
// Callers that need a field more than once (repeated fields) should filter
// by num.
func parseFields(buf []byte) ([]rawField, error) {
	var out []rawField
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]

		var val []byte
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad varint: %w", protowire.ParseError(n))
			}
			val = protowire.AppendVarint(nil, v)
			buf = buf[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad bytes: %w", protowire.ParseError(n))
			}
			val = append([]byte(nil), v...)
			buf = buf[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad fixed64: %w", protowire.ParseError(n))
			}
			val = protowire.AppendFixed64(nil, v)
			buf = buf[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad fixed32: %w", protowire.ParseError(n))
			}
			val = protowire.AppendFixed32(nil, v)
			buf = buf[n:]
		default:
			return nil, fmt.Errorf("wire: unsupported wire type %v", typ)
		}

		out = append(out, rawField{num: num, typ: typ, buf: val})
	}
	return out, nil
}

func fieldString(fields []rawField, num protowire.Number) string {
	for _, f := range fields {
		if f.num == num {
			return string(f.buf)
		}
	}
	return ""
}

func fieldBytes(fields []rawField, num protowire.Number) []byte {
	for _, f := range fields {
		if f.num == num {
			return f.buf
		}
	}
	return nil
}

func fieldVarint(fields []rawField, num protowire.Number) (int64, bool) {
	for _, f := range fields {
		if f.num == num {
			v, _ := protowire.ConsumeVarint(f.buf)
			return int64(v), true
		}
	}
	return 0, false
}

func fieldBool(fields []rawField, num protowire.Number) bool {
	v, _ := fieldVarint(fields, num)
	return v != 0
}

func fieldMessages(fields []rawField, num protowire.Number) [][]byte {
	var out [][]byte
	for _, f := range fields {
		if f.num == num {
			out = append(out, f.buf)
		}
	}
	return out
}
