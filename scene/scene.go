// Package scene is an in-memory object system: typed game objects, actor
// hierarchies, prefabs and id lookup. It implements the collaborator
// interfaces the replication core consumes (syncra.World, syncra.Prefabs).
package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"syncra"
)

var (
	ErrUnknownKind   = errors.New("scene: unknown kind")
	ErrUnknownPrefab = errors.New("scene: unknown prefab")
)

// Kind is a registered object type. Kinds form a single-inheritance
// hierarchy through their base kind.
type Kind struct {
	name    string
	base    *Kind
	factory func() syncra.Object
}

func (k *Kind) Name() string {
	return k.name
}

func (k *Kind) Base() syncra.Type {
	if k.base == nil {
		return nil
	}
	return k.base
}

// World holds every live object and the kind registry.
type World struct {
	mu      sync.RWMutex
	objects map[uuid.UUID]syncra.Object
	kinds   map[string]*Kind
	prefabs map[uuid.UUID]*Prefab
	remap   map[uuid.UUID]uuid.UUID
}

func NewWorld() *World {
	return &World{
		objects: make(map[uuid.UUID]syncra.Object),
		kinds:   make(map[string]*Kind),
		prefabs: make(map[uuid.UUID]*Prefab),
	}
}

// RegisterKind adds a type to the registry. The base may be nil for a root
// kind; the factory may be nil for kinds that are never network-spawned by
// name.
func (w *World) RegisterKind(name string, base *Kind, factory func() syncra.Object) *Kind {
	w.mu.Lock()
	defer w.mu.Unlock()
	if k, ok := w.kinds[name]; ok {
		return k
	}
	k := &Kind{name: name, base: base, factory: factory}
	w.kinds[name] = k
	return k
}

func (w *World) FindType(name string) (syncra.Type, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	k, ok := w.kinds[name]
	if !ok {
		return nil, false
	}
	return k, true
}

func (w *World) NewObject(t syncra.Type) (syncra.Object, error) {
	w.mu.RLock()
	k, ok := w.kinds[t.Name()]
	w.mu.RUnlock()
	if !ok || k.factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, t.Name())
	}
	return k.factory(), nil
}

// Register makes an object findable by id.
func (w *World) Register(obj syncra.Object) {
	if obj == nil {
		return
	}
	w.mu.Lock()
	w.objects[obj.ID()] = obj
	w.mu.Unlock()
}

// FindObject resolves an id, consulting the published id remap on a miss.
func (w *World) FindObject(id uuid.UUID) syncra.Object {
	w.mu.RLock()
	defer w.mu.RUnlock()
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

// SetIDRemap publishes (or, with nil, removes) the remote-to-local id
// mapping for the duration of a replication tick.
func (w *World) SetIDRemap(remap map[uuid.UUID]uuid.UUID) {
	w.mu.Lock()
	w.remap = remap
	w.mu.Unlock()
}

// Destroy removes an object from the world. Destroying an actor destroys
// its scripts and child actors; destroying a script only detaches it.
func (w *World) Destroy(obj syncra.Object) {
	if obj == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyLocked(obj)
}

func (w *World) destroyLocked(obj syncra.Object) {
	delete(w.objects, obj.ID())
	switch v := obj.(type) {
	case *Actor:
		for _, s := range v.scripts {
			delete(w.objects, s.id)
		}
		v.scripts = nil
		for _, c := range v.children {
			c.parent = nil
			w.destroyLocked(c)
		}
		v.children = nil
		if v.parent != nil {
			v.parent.removeChild(v)
			v.parent = nil
		}
	case *Script:
		if v.host != nil {
			v.host.removeScript(v)
			v.host = nil
		}
	}
}

// Objects returns the number of live objects, for tests and stats.
func (w *World) Objects() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.objects)
}

// Snapshot returns the live objects, in no particular order.
func (w *World) Snapshot() []syncra.Object {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]syncra.Object, 0, len(w.objects))
	for _, obj := range w.objects {
		out = append(out, obj)
	}
	return out
}
