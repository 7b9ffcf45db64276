package wire

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/lumisync/lumisync-core/pkg/message"
)

// writer accumulates an encoded Message AST one field at a time, in
// declaration order, as spec.md's binary profile requires.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) boolb(v bool) { if v { w.u8(1) } else { w.u8(0) } }

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) i32(v int32)   { w.u32(uint32(v)) }
func (w *writer) i64(v int64)   { w.u64(uint64(v)) }
func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *writer) i8(v int8)     { w.u8(uint8(v)) }

func (w *writer) bytesRaw(v []byte) { w.buf = append(w.buf, v...) }

func (w *writer) str(s string) {
	w.buf = putVarint(w.buf, uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) uuidv(id uuid.UUID) { w.buf = append(w.buf, id[:]...) }

func (w *writer) timev(t time.Time) {
	w.i64(t.Unix())
	w.u32(uint32(t.Nanosecond()))
}

func (w *writer) nodeID(n message.NodeId) {
	w.u8(uint8(n.Kind))
	switch n.Kind {
	case message.NodeEdge:
		w.u8(n.Edge)
	case message.NodeDevice:
		w.bytesRaw(n.Device[:])
	}
}

// reader consumes an encoded Message AST in the same field order writer
// produced it in.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) need(n int) error {
	if r.remaining() < n {
		return ErrTruncatedFrame
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) boolb() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) i8() (int8, error) {
	v, err := r.u8()
	return int8(v), err
}

func (r *reader) f32() (float32, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) bytesRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) str() (string, error) {
	n, consumed, err := getVarint(r.data[r.pos:])
	if err != nil {
		return "", err
	}
	r.pos += consumed
	b, err := r.bytesRaw(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) uuidv() (uuid.UUID, error) {
	b, err := r.bytesRaw(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

func (r *reader) timev() (time.Time, error) {
	sec, err := r.i64()
	if err != nil {
		return time.Time{}, err
	}
	nsec, err := r.u32()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, int64(nsec)).UTC(), nil
}

func (r *reader) nodeID() (message.NodeId, error) {
	kind, err := r.u8()
	if err != nil {
		return message.NodeId{}, err
	}
	n := message.NodeId{Kind: message.NodeKind(kind)}
	switch n.Kind {
	case message.NodeEdge:
		edge, err := r.u8()
		if err != nil {
			return message.NodeId{}, err
		}
		n.Edge = edge
	case message.NodeDevice:
		mac, err := r.bytesRaw(6)
		if err != nil {
			return message.NodeId{}, err
		}
		copy(n.Device[:], mac)
	}
	return n, nil
}
