package scene

import (
	"github.com/google/uuid"

	"syncra"
)

// Script is a behavior component attached to a host actor. Scripts take
// part in the scene graph through their host.
type Script struct {
	id             uuid.UUID
	kind           *Kind
	host           *Actor
	prefabID       uuid.UUID
	prefabObjectID uuid.UUID
}

func NewScript(kind *Kind) *Script {
	return &Script{id: uuid.New(), kind: kind}
}

func (s *Script) ID() uuid.UUID {
	return s.id
}

func (s *Script) Type() syncra.Type {
	return s.kind
}

func (s *Script) Host() syncra.Object {
	if s.host == nil {
		return nil
	}
	return s.host
}

func (s *Script) Parent() syncra.Object {
	return s.Host()
}

func (s *Script) SetParent(parent syncra.Object) {
	if pa, ok := parent.(*Actor); ok {
		pa.AttachScript(s)
	}
}

func (s *Script) Children() []syncra.Object {
	return nil
}

func (s *Script) PrefabID() uuid.UUID {
	return s.prefabID
}

func (s *Script) PrefabObjectID() uuid.UUID {
	return s.prefabObjectID
}
