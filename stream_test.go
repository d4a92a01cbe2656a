package syncra

import (
	"io"
	"testing"

	"github.com/google/uuid"
)

func TestStreamRoundTrip(t *testing.T) {
	s := NewStream()
	id := uuid.New()

	s.WriteByte(0x7f)
	s.WriteBool(true)
	s.WriteUint16(0xbeef)
	s.WriteUint32(0xdeadbeef)
	s.WriteUint64(1 << 40)
	s.WriteInt32(-12345)
	s.WriteFloat32(1.5)
	s.WriteFloat64(-2.25)
	s.WriteUUID(id)

	r := NewStreamFrom(s.Bytes())
	if v, _ := r.ReadByte(); v != 0x7f {
		t.Errorf("byte = %#x", v)
	}
	if v, _ := r.ReadBool(); !v {
		t.Error("bool = false")
	}
	if v, _ := r.ReadUint16(); v != 0xbeef {
		t.Errorf("uint16 = %#x", v)
	}
	if v, _ := r.ReadUint32(); v != 0xdeadbeef {
		t.Errorf("uint32 = %#x", v)
	}
	if v, _ := r.ReadUint64(); v != 1<<40 {
		t.Errorf("uint64 = %d", v)
	}
	if v, _ := r.ReadInt32(); v != -12345 {
		t.Errorf("int32 = %d", v)
	}
	if v, _ := r.ReadFloat32(); v != 1.5 {
		t.Errorf("float32 = %f", v)
	}
	if v, _ := r.ReadFloat64(); v != -2.25 {
		t.Errorf("float64 = %f", v)
	}
	if v, _ := r.ReadUUID(); v != id {
		t.Errorf("uuid = %s", v)
	}
	if r.Remaining() != 0 {
		t.Errorf("remaining = %d", r.Remaining())
	}
}

func TestStreamLittleEndian(t *testing.T) {
	s := NewStream()
	s.WriteUint32(0x01020304)
	want := []byte{0x04, 0x03, 0x02, 0x01}
	for i, b := range want {
		if s.Bytes()[i] != b {
			t.Fatalf("byte %d = %#x, want %#x", i, s.Bytes()[i], b)
		}
	}
}

func TestStreamShortRead(t *testing.T) {
	r := NewStreamFrom([]byte{1, 2})
	if _, err := r.ReadUint32(); err != io.ErrUnexpectedEOF {
		t.Fatalf("err = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestStreamReset(t *testing.T) {
	s := NewStream()
	s.WriteUint64(42)
	s.Reset()
	if s.Len() != 0 || s.Position() != 0 {
		t.Fatalf("len=%d pos=%d after reset", s.Len(), s.Position())
	}
}
