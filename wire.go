package syncra

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// MessageID is the leading byte of every replication message.
type MessageID uint8

const (
	MessageObjectReplicate MessageID = iota + 1
	MessageObjectSpawn
	MessageObjectDespawn
	MessageObjectRole
)

const (
	// typeNameSize is the fixed on-wire size of a type name, NUL-padded.
	typeNameSize = 128
	// MaxPayloadSize bounds a single object's serialized state. Splitting
	// state across messages is not supported.
	MaxPayloadSize = 65535
)

var (
	ErrTypeNameTooLong = errors.New("syncra: type name exceeds wire limit")
	ErrBadMessage      = errors.New("syncra: malformed message")
)

// All messages are packed little-endian with no padding between fields.

type objectReplicateMsg struct {
	OwnerFrame uint32
	ObjectID   uuid.UUID
	ParentID   uuid.UUID
	TypeName   string
	Data       []byte
}

type objectSpawnMsg struct {
	ObjectID       uuid.UUID
	ParentID       uuid.UUID
	PrefabID       uuid.UUID
	PrefabObjectID uuid.UUID
	OwnerClientID  uint32
	TypeName       string
}

type objectDespawnMsg struct {
	ObjectID uuid.UUID
}

type objectRoleMsg struct {
	ObjectID      uuid.UUID
	OwnerClientID uint32
}

func writeTypeName(s *Stream, name string) error {
	if len(name) >= typeNameSize {
		return fmt.Errorf("%w: %q", ErrTypeNameTooLong, name)
	}
	var field [typeNameSize]byte
	copy(field[:], name)
	_, err := s.Write(field[:])
	return err
}

func readTypeName(s *Stream) (string, error) {
	p, err := s.ReadBytes(typeNameSize)
	if err != nil {
		return "", err
	}
	n := 0
	for n < typeNameSize && p[n] != 0 {
		n++
	}
	return string(p[:n]), nil
}

func (m *objectReplicateMsg) encode(s *Stream) error {
	s.WriteByte(byte(MessageObjectReplicate))
	s.WriteUint32(m.OwnerFrame)
	s.WriteUUID(m.ObjectID)
	s.WriteUUID(m.ParentID)
	if err := writeTypeName(s, m.TypeName); err != nil {
		return err
	}
	s.WriteUint16(uint16(len(m.Data)))
	_, err := s.Write(m.Data)
	return err
}

// decode reads the message body; the caller has consumed the id byte.
func (m *objectReplicateMsg) decode(s *Stream) error {
	var err error
	if m.OwnerFrame, err = s.ReadUint32(); err != nil {
		return err
	}
	if m.ObjectID, err = s.ReadUUID(); err != nil {
		return err
	}
	if m.ParentID, err = s.ReadUUID(); err != nil {
		return err
	}
	if m.TypeName, err = readTypeName(s); err != nil {
		return err
	}
	size, err := s.ReadUint16()
	if err != nil {
		return err
	}
	if m.Data, err = s.ReadBytes(int(size)); err != nil {
		return err
	}
	return nil
}

func (m *objectSpawnMsg) encode(s *Stream) error {
	s.WriteByte(byte(MessageObjectSpawn))
	s.WriteUUID(m.ObjectID)
	s.WriteUUID(m.ParentID)
	s.WriteUUID(m.PrefabID)
	s.WriteUUID(m.PrefabObjectID)
	s.WriteUint32(m.OwnerClientID)
	return writeTypeName(s, m.TypeName)
}

func (m *objectSpawnMsg) decode(s *Stream) error {
	var err error
	if m.ObjectID, err = s.ReadUUID(); err != nil {
		return err
	}
	if m.ParentID, err = s.ReadUUID(); err != nil {
		return err
	}
	if m.PrefabID, err = s.ReadUUID(); err != nil {
		return err
	}
	if m.PrefabObjectID, err = s.ReadUUID(); err != nil {
		return err
	}
	if m.OwnerClientID, err = s.ReadUint32(); err != nil {
		return err
	}
	m.TypeName, err = readTypeName(s)
	return err
}

func (m *objectDespawnMsg) encode(s *Stream) error {
	s.WriteByte(byte(MessageObjectDespawn))
	return s.WriteUUID(m.ObjectID)
}

func (m *objectDespawnMsg) decode(s *Stream) error {
	var err error
	m.ObjectID, err = s.ReadUUID()
	return err
}

func (m *objectRoleMsg) encode(s *Stream) error {
	s.WriteByte(byte(MessageObjectRole))
	s.WriteUUID(m.ObjectID)
	return s.WriteUint32(m.OwnerClientID)
}

func (m *objectRoleMsg) decode(s *Stream) error {
	var err error
	if m.ObjectID, err = s.ReadUUID(); err != nil {
		return err
	}
	m.OwnerClientID, err = s.ReadUint32()
	return err
}
