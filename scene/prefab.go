package scene

import (
	"fmt"

	"github.com/google/uuid"

	"syncra"
)

// PrefabScript describes one script of a prefab node.
type PrefabScript struct {
	ObjectID uuid.UUID
	Kind     *Kind
}

// PrefabNode describes one actor of a prefab template. ObjectID is the
// stable per-prefab id instances keep as their prefab-object id.
type PrefabNode struct {
	ObjectID uuid.UUID
	Kind     *Kind
	Name     string
	Scripts  []PrefabScript
	Children []*PrefabNode
}

// Prefab is a reusable actor-tree template.
type Prefab struct {
	id   uuid.UUID
	root *PrefabNode
}

func NewPrefab(root *PrefabNode) *Prefab {
	return &Prefab{id: uuid.New(), root: root}
}

func (p *Prefab) ID() uuid.UUID {
	return p.id
}

// AddPrefab makes a prefab loadable by id.
func (w *World) AddPrefab(p *Prefab) {
	w.mu.Lock()
	w.prefabs[p.id] = p
	w.mu.Unlock()
}

// Load resolves a prefab asset by id.
func (w *World) Load(id uuid.UUID) (syncra.Prefab, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.prefabs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPrefab, id)
	}
	return p, nil
}

// Spawn instantiates a prefab and registers every created object. The root
// actor is returned unparented.
func (w *World) Spawn(p syncra.Prefab) (syncra.Object, error) {
	prefab, ok := p.(*Prefab)
	if !ok || prefab.root == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPrefab, p)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	root := w.instantiateLocked(prefab, prefab.root, nil)
	return root, nil
}

func (w *World) instantiateLocked(prefab *Prefab, node *PrefabNode, parent *Actor) *Actor {
	a := NewActor(node.Kind, node.Name)
	a.prefabID = prefab.id
	a.prefabObjectID = node.ObjectID
	if parent != nil {
		a.parent = parent
		parent.children = append(parent.children, a)
	}
	w.objects[a.id] = a
	for _, ps := range node.Scripts {
		s := NewScript(ps.Kind)
		s.prefabID = prefab.id
		s.prefabObjectID = ps.ObjectID
		s.host = a
		a.scripts = append(a.scripts, s)
		w.objects[s.id] = s
	}
	for _, child := range node.Children {
		w.instantiateLocked(prefab, child, a)
	}
	return a
}

// FindSubObject locates the object carrying prefabObjectID inside an
// instance rooted at root: the actor itself, one of its scripts, then the
// children depth-first.
func (w *World) FindSubObject(root syncra.Object, prefabObjectID uuid.UUID) syncra.Object {
	a, ok := root.(*Actor)
	if !ok {
		return nil
	}
	if a.prefabObjectID == prefabObjectID {
		return a
	}
	for _, s := range a.scripts {
		if s.prefabObjectID == prefabObjectID {
			return s
		}
	}
	for _, c := range a.children {
		if found := w.FindSubObject(c, prefabObjectID); found != nil {
			return found
		}
	}
	return nil
}
