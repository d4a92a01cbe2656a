package syncra

import (
	"fmt"

	"github.com/google/uuid"
)

// Minimal in-package fakes for unit tests. The full scene implementation is
// exercised by the scenario tests in prefab_scenarios_test.go.

type fakeType struct {
	name string
	base *fakeType
}

func (t *fakeType) Name() string {
	return t.name
}

func (t *fakeType) Base() Type {
	if t.base == nil {
		return nil
	}
	return t.base
}

type fakeObject struct {
	id  uuid.UUID
	typ *fakeType
	x   uint32
}

func newFakeObject(typ *fakeType) *fakeObject {
	return &fakeObject{id: uuid.New(), typ: typ}
}

func (o *fakeObject) ID() uuid.UUID {
	return o.id
}

func (o *fakeObject) Type() Type {
	return o.typ
}

// serialObject carries one replicated field through the capability
// interface.
type serialObject struct {
	fakeObject
	value uint32
}

func newSerialObject(typ *fakeType) *serialObject {
	return &serialObject{fakeObject: fakeObject{id: uuid.New(), typ: typ}}
}

func (o *serialObject) NetSerialize(s *Stream) error {
	return s.WriteUint32(o.value)
}

func (o *serialObject) NetDeserialize(s *Stream) error {
	v, err := s.ReadUint32()
	if err != nil {
		return err
	}
	o.value = v
	return nil
}

type fakeWorld struct {
	objects map[uuid.UUID]Object
	types   map[string]*fakeType
	remap   map[uuid.UUID]uuid.UUID
	news    map[string]func() Object
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		objects: make(map[uuid.UUID]Object),
		types:   make(map[string]*fakeType),
		news:    make(map[string]func() Object),
	}
}

func (w *fakeWorld) addType(name string, base *fakeType) *fakeType {
	t := &fakeType{name: name, base: base}
	w.types[name] = t
	return t
}

func (w *fakeWorld) add(obj Object) Object {
	w.objects[obj.ID()] = obj
	return obj
}

func (w *fakeWorld) FindObject(id uuid.UUID) Object {
	if obj, ok := w.objects[id]; ok {
		return obj
	}
	if w.remap != nil {
		if local, ok := w.remap[id]; ok {
			return w.objects[local]
		}
	}
	return nil
}

func (w *fakeWorld) FindType(name string) (Type, bool) {
	t, ok := w.types[name]
	if !ok {
		return nil, false
	}
	return t, true
}

func (w *fakeWorld) NewObject(t Type) (Object, error) {
	if factory, ok := w.news[t.Name()]; ok {
		return factory(), nil
	}
	return nil, fmt.Errorf("no factory for %s", t.Name())
}

func (w *fakeWorld) Register(obj Object) {
	w.objects[obj.ID()] = obj
}

func (w *fakeWorld) Destroy(obj Object) {
	delete(w.objects, obj.ID())
}

func (w *fakeWorld) SetIDRemap(remap map[uuid.UUID]uuid.UUID) {
	w.remap = remap
}

type fakeNetwork struct {
	online   bool
	isClient bool
	localID  uint32
	frame    uint32
	clients  []Client
}

func serverNetwork(clients ...uint32) *fakeNetwork {
	n := &fakeNetwork{online: true, localID: ServerClientID}
	for _, id := range clients {
		n.clients = append(n.clients, Client{ID: id, State: ClientConnected})
	}
	return n
}

func clientNetwork(localID uint32) *fakeNetwork {
	return &fakeNetwork{online: true, isClient: true, localID: localID}
}

func (n *fakeNetwork) Online() bool          { return n.online }
func (n *fakeNetwork) IsClient() bool        { return n.isClient }
func (n *fakeNetwork) LocalClientID() uint32 { return n.localID }
func (n *fakeNetwork) Frame() uint32         { return n.frame }
func (n *fakeNetwork) Clients() []Client     { return n.clients }

type sentMessage struct {
	channel Channel
	targets []uint32
	data    []byte
}

func (m sentMessage) id() MessageID {
	return MessageID(m.data[0])
}

type fakePeer struct {
	sent []sentMessage
}

func (p *fakePeer) Send(channel Channel, payload []byte, targets []uint32) error {
	p.sent = append(p.sent, sentMessage{
		channel: channel,
		targets: append([]uint32(nil), targets...),
		data:    append([]byte(nil), payload...),
	})
	return nil
}

func (p *fakePeer) byID(id MessageID) []sentMessage {
	var out []sentMessage
	for _, m := range p.sent {
		if m.id() == id {
			out = append(out, m)
		}
	}
	return out
}

func (p *fakePeer) reset() {
	p.sent = nil
}

func newTestReplicator(n *fakeNetwork, w *fakeWorld) (*Replicator, *fakePeer) {
	p := &fakePeer{}
	r, err := New(Options{Network: n, Peer: p, World: w})
	if err != nil {
		panic(err)
	}
	return r, p
}
