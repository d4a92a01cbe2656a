package scene

import (
	"github.com/google/uuid"

	"syncra"
)

// Actor is a node of the scene graph. It may carry scripts and child
// actors, and remembers the prefab it was instantiated from.
type Actor struct {
	id             uuid.UUID
	kind           *Kind
	name           string
	parent         *Actor
	children       []*Actor
	scripts        []*Script
	prefabID       uuid.UUID
	prefabObjectID uuid.UUID
}

func NewActor(kind *Kind, name string) *Actor {
	return &Actor{id: uuid.New(), kind: kind, name: name}
}

func (a *Actor) ID() uuid.UUID {
	return a.id
}

func (a *Actor) Type() syncra.Type {
	return a.kind
}

func (a *Actor) Name() string {
	return a.name
}

func (a *Actor) Parent() syncra.Object {
	if a.parent == nil {
		return nil
	}
	return a.parent
}

func (a *Actor) SetParent(parent syncra.Object) {
	pa, _ := parent.(*Actor)
	if a.parent == pa {
		return
	}
	if a.parent != nil {
		a.parent.removeChild(a)
	}
	a.parent = pa
	if pa != nil {
		pa.children = append(pa.children, a)
	}
}

func (a *Actor) Children() []syncra.Object {
	out := make([]syncra.Object, 0, len(a.children))
	for _, c := range a.children {
		out = append(out, c)
	}
	return out
}

func (a *Actor) ChildActors() []*Actor {
	return a.children
}

func (a *Actor) Scripts() []*Script {
	return a.scripts
}

func (a *Actor) PrefabID() uuid.UUID {
	return a.prefabID
}

func (a *Actor) PrefabObjectID() uuid.UUID {
	return a.prefabObjectID
}

// AttachScript binds a script to this actor.
func (a *Actor) AttachScript(s *Script) {
	if s.host != nil {
		s.host.removeScript(s)
	}
	s.host = a
	a.scripts = append(a.scripts, s)
}

func (a *Actor) removeChild(child *Actor) {
	for i, c := range a.children {
		if c == child {
			a.children = append(a.children[:i], a.children[i+1:]...)
			return
		}
	}
}

func (a *Actor) removeScript(s *Script) {
	for i, v := range a.scripts {
		if v == s {
			a.scripts = append(a.scripts[:i], a.scripts[i+1:]...)
			return
		}
	}
}
