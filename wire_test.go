package syncra

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func decodeEnvelope(t *testing.T, data []byte, want MessageID) *Stream {
	t.Helper()
	s := NewStreamFrom(data)
	id, err := s.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if MessageID(id) != want {
		t.Fatalf("message id = %d, want %d", id, want)
	}
	return s
}

func TestReplicateMessageRoundTrip(t *testing.T) {
	in := objectReplicateMsg{
		OwnerFrame: 77,
		ObjectID:   uuid.New(),
		ParentID:   uuid.New(),
		TypeName:   "game.Player",
		Data:       []byte{1, 2, 3, 4, 5},
	}
	s := NewStream()
	if err := in.encode(s); err != nil {
		t.Fatal(err)
	}
	// msg id + frame + two ids + fixed type name + size + payload
	if want := 1 + 4 + 16 + 16 + 128 + 2 + len(in.Data); s.Len() != want {
		t.Fatalf("encoded size = %d, want %d", s.Len(), want)
	}

	var out objectReplicateMsg
	if err := out.decode(decodeEnvelope(t, s.Bytes(), MessageObjectReplicate)); err != nil {
		t.Fatal(err)
	}
	if out.OwnerFrame != in.OwnerFrame || out.ObjectID != in.ObjectID || out.ParentID != in.ParentID {
		t.Fatalf("header mismatch: %+v", out)
	}
	if out.TypeName != in.TypeName {
		t.Fatalf("type name = %q", out.TypeName)
	}
	if string(out.Data) != string(in.Data) {
		t.Fatalf("payload = %v", out.Data)
	}
}

func TestSpawnMessageRoundTrip(t *testing.T) {
	in := objectSpawnMsg{
		ObjectID:       uuid.New(),
		ParentID:       uuid.New(),
		PrefabID:       uuid.New(),
		PrefabObjectID: uuid.New(),
		OwnerClientID:  9,
		TypeName:       "game.Vehicle",
	}
	s := NewStream()
	if err := in.encode(s); err != nil {
		t.Fatal(err)
	}
	if want := 1 + 16*4 + 4 + 128; s.Len() != want {
		t.Fatalf("encoded size = %d, want %d", s.Len(), want)
	}

	var out objectSpawnMsg
	if err := out.decode(decodeEnvelope(t, s.Bytes(), MessageObjectSpawn)); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("mismatch: %+v != %+v", out, in)
	}
}

func TestDespawnAndRoleMessages(t *testing.T) {
	despawn := objectDespawnMsg{ObjectID: uuid.New()}
	s := NewStream()
	despawn.encode(s)
	if s.Len() != 1+16 {
		t.Fatalf("despawn size = %d", s.Len())
	}
	var outD objectDespawnMsg
	if err := outD.decode(decodeEnvelope(t, s.Bytes(), MessageObjectDespawn)); err != nil {
		t.Fatal(err)
	}
	if outD != despawn {
		t.Fatalf("despawn mismatch: %+v", outD)
	}

	role := objectRoleMsg{ObjectID: uuid.New(), OwnerClientID: 4}
	s.Reset()
	role.encode(s)
	if s.Len() != 1+16+4 {
		t.Fatalf("role size = %d", s.Len())
	}
	var outR objectRoleMsg
	if err := outR.decode(decodeEnvelope(t, s.Bytes(), MessageObjectRole)); err != nil {
		t.Fatal(err)
	}
	if outR != role {
		t.Fatalf("role mismatch: %+v", outR)
	}
}

func TestTypeNamePaddingAndLimit(t *testing.T) {
	s := NewStream()
	if err := writeTypeName(s, "abc"); err != nil {
		t.Fatal(err)
	}
	if s.Len() != typeNameSize {
		t.Fatalf("field size = %d", s.Len())
	}
	r := NewStreamFrom(s.Bytes())
	name, err := readTypeName(r)
	if err != nil {
		t.Fatal(err)
	}
	if name != "abc" {
		t.Fatalf("name = %q", name)
	}

	s.Reset()
	long := strings.Repeat("x", typeNameSize)
	if err := writeTypeName(s, long); !errors.Is(err, ErrTypeNameTooLong) {
		t.Fatalf("err = %v, want ErrTypeNameTooLong", err)
	}
}

func TestReplicateMessageTruncatedPayload(t *testing.T) {
	in := objectReplicateMsg{OwnerFrame: 1, TypeName: "t", Data: []byte{1, 2, 3}}
	s := NewStream()
	if err := in.encode(s); err != nil {
		t.Fatal(err)
	}
	var out objectReplicateMsg
	short := s.Bytes()[:s.Len()-2]
	if err := out.decode(decodeEnvelope(t, short, MessageObjectReplicate)); err == nil {
		t.Fatal("decode of truncated message succeeded")
	}
}
