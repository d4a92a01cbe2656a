package syncra

import (
	"errors"
	"testing"
)

func TestSerializerDirectEntry(t *testing.T) {
	w := newFakeWorld()
	n := serverNetwork(1)
	r, _ := newTestReplicator(n, w)

	typ := w.addType("game.Counter", nil)
	obj := newFakeObject(typ)
	obj.x = 11

	var gotSerTag, gotDeserTag any
	r.AddSerializer(typ,
		func(instance any, s *Stream, tag any) error {
			gotSerTag = tag
			return s.WriteUint32(instance.(*fakeObject).x)
		},
		func(instance any, s *Stream, tag any) error {
			gotDeserTag = tag
			v, err := s.ReadUint32()
			if err != nil {
				return err
			}
			instance.(*fakeObject).x = v
			return nil
		},
		"ser-tag", "deser-tag")

	s := NewStream()
	if err := r.InvokeSerializer(typ, obj, s, true); err != nil {
		t.Fatal(err)
	}
	if gotSerTag != "ser-tag" {
		t.Fatalf("serialize tag = %v", gotSerTag)
	}

	other := newFakeObject(typ)
	rs := NewStreamFrom(s.Bytes())
	if err := r.InvokeSerializer(typ, other, rs, false); err != nil {
		t.Fatal(err)
	}
	if gotDeserTag != "deser-tag" {
		t.Fatalf("deserialize tag = %v", gotDeserTag)
	}
	if other.x != 11 {
		t.Fatalf("x = %d after round trip", other.x)
	}
}

func TestSerializerCapabilityFallback(t *testing.T) {
	w := newFakeWorld()
	r, _ := newTestReplicator(serverNetwork(1), w)

	typ := w.addType("game.Health", nil)
	obj := newSerialObject(typ)
	obj.value = 250

	s := NewStream()
	if err := r.InvokeSerializer(typ, obj, s, true); err != nil {
		t.Fatal(err)
	}
	// The synthesized entry must be cached for future lookups.
	r.serializers.mu.RLock()
	_, cached := r.serializers.entries[typ.Name()]
	r.serializers.mu.RUnlock()
	if !cached {
		t.Error("capability entry was not cached")
	}

	other := newSerialObject(typ)
	if err := r.InvokeSerializer(typ, other, NewStreamFrom(s.Bytes()), false); err != nil {
		t.Fatal(err)
	}
	if other.value != 250 {
		t.Fatalf("value = %d after round trip", other.value)
	}
}

func TestSerializerBaseTypeFallback(t *testing.T) {
	w := newFakeWorld()
	r, _ := newTestReplicator(serverNetwork(1), w)

	base := w.addType("game.Unit", nil)
	derived := w.addType("game.Tank", base)

	r.AddSerializer(base,
		func(instance any, s *Stream, _ any) error {
			return s.WriteUint32(instance.(*fakeObject).x)
		},
		func(instance any, s *Stream, _ any) error {
			v, err := s.ReadUint32()
			if err != nil {
				return err
			}
			instance.(*fakeObject).x = v
			return nil
		},
		nil, nil)

	obj := newFakeObject(derived)
	obj.x = 3
	s := NewStream()
	if err := r.InvokeSerializer(derived, obj, s, true); err != nil {
		t.Fatalf("base fallback failed: %v", err)
	}
}

func TestSerializerMissing(t *testing.T) {
	w := newFakeWorld()
	r, _ := newTestReplicator(serverNetwork(1), w)

	typ := w.addType("game.Opaque", nil)
	obj := newFakeObject(typ)
	err := r.InvokeSerializer(typ, obj, NewStream(), true)
	if !errors.Is(err, ErrNoSerializer) {
		t.Fatalf("err = %v, want ErrNoSerializer", err)
	}
}
