package syncra

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/google/uuid"
)

// Stream is a reusable read/write byte buffer with fixed-width little-endian
// encoding. The replicator keeps one write and one read stream alive across
// frames; user serializers receive it for both directions.
type Stream struct {
	buf []byte
	pos int
}

func NewStream() *Stream {
	return &Stream{buf: make([]byte, 0, 256)}
}

func NewStreamFrom(data []byte) *Stream {
	return &Stream{buf: data}
}

// Reset clears the stream for writing.
func (s *Stream) Reset() {
	s.buf = s.buf[:0]
	s.pos = 0
}

// Load replaces the stream content for reading. The data is not copied.
func (s *Stream) Load(data []byte) {
	s.buf = data
	s.pos = 0
}

func (s *Stream) Bytes() []byte {
	return s.buf
}

func (s *Stream) Len() int {
	return len(s.buf)
}

func (s *Stream) Position() int {
	return s.pos
}

func (s *Stream) Remaining() int {
	return len(s.buf) - s.pos
}

func (s *Stream) Skip(n int) error {
	if s.pos+n > len(s.buf) {
		return io.ErrUnexpectedEOF
	}
	s.pos += n
	return nil
}

// ==============================================
// Writing
// ==============================================

func (s *Stream) WriteByte(v byte) error {
	s.buf = append(s.buf, v)
	return nil
}

func (s *Stream) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *Stream) WriteBool(v bool) error {
	if v {
		return s.WriteByte(1)
	}
	return s.WriteByte(0)
}

func (s *Stream) WriteUint16(v uint16) error {
	s.buf = binary.LittleEndian.AppendUint16(s.buf, v)
	return nil
}

func (s *Stream) WriteUint32(v uint32) error {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, v)
	return nil
}

func (s *Stream) WriteUint64(v uint64) error {
	s.buf = binary.LittleEndian.AppendUint64(s.buf, v)
	return nil
}

func (s *Stream) WriteInt32(v int32) error {
	return s.WriteUint32(uint32(v))
}

func (s *Stream) WriteInt64(v int64) error {
	return s.WriteUint64(uint64(v))
}

func (s *Stream) WriteFloat32(v float32) error {
	return s.WriteUint32(math.Float32bits(v))
}

func (s *Stream) WriteFloat64(v float64) error {
	return s.WriteUint64(math.Float64bits(v))
}

func (s *Stream) WriteUUID(id uuid.UUID) error {
	s.buf = append(s.buf, id[:]...)
	return nil
}

// ==============================================
// Reading
// ==============================================

func (s *Stream) take(n int) ([]byte, error) {
	if s.pos+n > len(s.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	p := s.buf[s.pos : s.pos+n]
	s.pos += n
	return p, nil
}

func (s *Stream) ReadByte() (byte, error) {
	p, err := s.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (s *Stream) Read(p []byte) (int, error) {
	b, err := s.take(len(p))
	if err != nil {
		return 0, err
	}
	copy(p, b)
	return len(p), nil
}

func (s *Stream) ReadBool() (bool, error) {
	b, err := s.ReadByte()
	return b != 0, err
}

func (s *Stream) ReadUint16() (uint16, error) {
	p, err := s.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

func (s *Stream) ReadUint32() (uint32, error) {
	p, err := s.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (s *Stream) ReadUint64() (uint64, error) {
	p, err := s.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

func (s *Stream) ReadInt32() (int32, error) {
	v, err := s.ReadUint32()
	return int32(v), err
}

func (s *Stream) ReadInt64() (int64, error) {
	v, err := s.ReadUint64()
	return int64(v), err
}

func (s *Stream) ReadFloat32() (float32, error) {
	v, err := s.ReadUint32()
	return math.Float32frombits(v), err
}

func (s *Stream) ReadFloat64() (float64, error) {
	v, err := s.ReadUint64()
	return math.Float64frombits(v), err
}

func (s *Stream) ReadUUID() (uuid.UUID, error) {
	var id uuid.UUID
	p, err := s.take(16)
	if err != nil {
		return id, err
	}
	copy(id[:], p)
	return id, nil
}

// ReadBytes consumes and returns the next n bytes without copying.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	return s.take(n)
}
