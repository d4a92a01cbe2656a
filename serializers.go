package syncra

import (
	"errors"
	"sync"
)

// SerializeFunc is one slot of a serializer entry. The tag travels with the
// registration so the same entry shape can dispatch to plain functions,
// capability methods or model-driven serializers (the tag then carries the
// model, a vtable-like handle, or nothing).
type SerializeFunc func(instance any, stream *Stream, tag any) error

// ErrNoSerializer reports that no serializer could be resolved for a type,
// neither directly, via the NetworkSerializable capability, nor through any
// base type.
var ErrNoSerializer = errors.New("syncra: no serializer for type")

const (
	dirSerialize   = 0
	dirDeserialize = 1
)

type serializerEntry struct {
	methods [2]SerializeFunc
	tags    [2]any
}

type serializerTable struct {
	mu      sync.RWMutex
	entries map[string]serializerEntry
}

func newSerializerTable() *serializerTable {
	return &serializerTable{entries: make(map[string]serializerEntry)}
}

func capabilitySerialize(instance any, stream *Stream, _ any) error {
	return instance.(NetworkSerializable).NetSerialize(stream)
}

func capabilityDeserialize(instance any, stream *Stream, _ any) error {
	return instance.(NetworkSerializable).NetDeserialize(stream)
}

func (t *serializerTable) add(typeName string, serialize, deserialize SerializeFunc, serializeTag, deserializeTag any) {
	if typeName == "" {
		return
	}
	t.mu.Lock()
	t.entries[typeName] = serializerEntry{
		methods: [2]SerializeFunc{serialize, deserialize},
		tags:    [2]any{serializeTag, deserializeTag},
	}
	t.mu.Unlock()
}

// invoke resolves and runs the serializer for typ: direct entry first, then
// the NetworkSerializable capability (cached for future lookups), then the
// base type. Returns ErrNoSerializer when the whole chain misses.
func (t *serializerTable) invoke(typ Type, instance any, stream *Stream, direction int) error {
	if typ == nil || instance == nil || stream == nil {
		return ErrNoSerializer
	}

	t.mu.RLock()
	entry, ok := t.entries[typ.Name()]
	t.mu.RUnlock()

	if !ok {
		if _, capable := instance.(NetworkSerializable); capable {
			entry = serializerEntry{
				methods: [2]SerializeFunc{capabilitySerialize, capabilityDeserialize},
			}
			t.mu.Lock()
			t.entries[typ.Name()] = entry
			t.mu.Unlock()
		} else if base := typ.Base(); base != nil {
			return t.invoke(base, instance, stream, direction)
		} else {
			return ErrNoSerializer
		}
	}

	return entry.methods[direction](instance, stream, entry.tags[direction])
}

// AddSerializer registers a serialize/deserialize pair for a type. The tags
// are handed back verbatim on every invocation.
func (r *Replicator) AddSerializer(typ Type, serialize, deserialize SerializeFunc, serializeTag, deserializeTag any) {
	if typ == nil {
		return
	}
	r.serializers.add(typ.Name(), serialize, deserialize, serializeTag, deserializeTag)
}

// InvokeSerializer runs the registered serializer for typ against instance.
// serialize false deserializes. ErrNoSerializer means the type has none.
func (r *Replicator) InvokeSerializer(typ Type, instance any, stream *Stream, serialize bool) error {
	dir := dirDeserialize
	if serialize {
		dir = dirSerialize
	}
	return r.serializers.invoke(typ, instance, stream, dir)
}
