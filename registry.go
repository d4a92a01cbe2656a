package syncra

import (
	"github.com/google/uuid"
)

// replicatedObject is the registry record of one known object. The object
// itself is referenced weakly: get resolves through the world and returns
// nil once the object was destroyed out-of-band.
type replicatedObject struct {
	objectID       uuid.UUID
	parentID       uuid.UUID
	ownerClientID  uint32
	lastOwnerFrame uint32
	role           Role
	spawned        bool
	// serializerWarned de-duplicates the missing-serializer log line.
	serializerWarned bool
	// targetClientIDs restricts replication to an explicit set of peers;
	// nil means broadcast to everyone connected.
	targetClientIDs []uint32
	hooks           NetworkObject
}

func (item *replicatedObject) get(world World) Object {
	return world.FindObject(item.objectID)
}

// resolveObject looks an id up directly, then once more through the remap
// table.
func (r *Replicator) resolveObject(id uuid.UUID) *replicatedObject {
	if item, ok := r.objects[id]; ok {
		return item
	}
	if local, ok := r.idsRemapping[id]; ok {
		return r.objects[local]
	}
	return nil
}

// resolveObjectTyped is the identity-reconciliation lookup: on a miss it
// scans for a record with the same parent and type that never received a
// remote update, and cements the remote id as an alias of the local one.
func (r *Replicator) resolveObjectTyped(id, parentID uuid.UUID, typeName string) *replicatedObject {
	if item := r.resolveObject(id); item != nil {
		return item
	}

	if local, ok := r.idsRemapping[parentID]; ok {
		parentID = local
	}
	typ, ok := r.world.FindType(typeName)
	if !ok {
		return nil
	}
	for _, item := range r.objects {
		if item.lastOwnerFrame != 0 || item.parentID != parentID {
			continue
		}
		obj := item.get(r.world)
		if obj == nil || obj.Type().Name() != typ.Name() {
			continue
		}
		// Boost future lookups by using indirection.
		r.log.Printf("[syncra] remap id %s onto object %s (%s)", id, item.objectID, typ.Name())
		r.addRemap(id, item.objectID)
		return item
	}
	return nil
}

// addRemap inserts a remap entry. Entries are never rewritten: identity,
// once reconciled, is stable.
func (r *Replicator) addRemap(remote, local uuid.UUID) {
	if _, ok := r.idsRemapping[remote]; ok {
		return
	}
	r.idsRemapping[remote] = local
}

// toCanonicalID translates a local id back into the canonical (server-side)
// id for outbound messages. Only clients call it: the server's local ids
// are the canonical ones, even though the server also records remap
// entries for objects that clients spawn or reconcile.
func (r *Replicator) toCanonicalID(id uuid.UUID) uuid.UUID {
	for remote, local := range r.idsRemapping {
		if local == id {
			return remote
		}
	}
	return id
}

// findLocalObject resolves an id against the world, translating remote ids
// to local ones first. Handlers use it where the world's own remap window
// is not open.
func (r *Replicator) findLocalObject(id uuid.UUID) Object {
	if local, ok := r.idsRemapping[id]; ok {
		id = local
	}
	return r.world.FindObject(id)
}

// addObjectLocked registers an object for replication without spawning it.
// No-op when already tracked. Callers hold the objects lock.
func (r *Replicator) addObjectLocked(obj Object, parent Object) *replicatedObject {
	if item, ok := r.objects[obj.ID()]; ok {
		return item
	}

	// Automatic parenting for scene objects.
	if parent == nil {
		if so, ok := obj.(SceneObject); ok {
			parent = so.Parent()
		}
	}

	item := &replicatedObject{
		objectID:      obj.ID(),
		ownerClientID: ServerClientID,
		role:          RoleOwnedAuthoritative,
	}
	if parent != nil {
		item.parentID = parent.ID()
	}
	if r.network.IsClient() {
		item.role = RoleReplicated
	}
	if hooks, ok := obj.(NetworkObject); ok {
		item.hooks = hooks
	}
	r.objects[item.objectID] = item
	r.metrics.setObjects(len(r.objects))
	r.log.Printf("[syncra] add object %s (%s), parent %s", item.objectID, obj.Type().Name(), item.parentID)
	return item
}

// AddObject registers an object for local tracking. The parent may be nil;
// scene linkage is used to discover it. Ownership defaults to the server.
func (r *Replicator) AddObject(obj Object, parent Object) {
	if obj == nil || !r.network.Online() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addObjectLocked(obj, parent)
}

// RemoveObject stops tracking an object without despawning it anywhere.
func (r *Replicator) RemoveObject(obj Object) {
	if obj == nil || !r.network.Online() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[obj.ID()]; !ok {
		return
	}
	r.log.Printf("[syncra] remove object %s", obj.ID())
	delete(r.objects, obj.ID())
	r.metrics.setObjects(len(r.objects))
}

// OwnerOf returns the owning client id of an object, ServerClientID when
// the object is unknown.
func (r *Replicator) OwnerOf(obj Object) uint32 {
	if obj == nil {
		return ServerClientID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.objects[obj.ID()]; ok {
		return item.ownerClientID
	}
	return ServerClientID
}

// RoleOf returns the local role of an object, RoleNone when unknown.
func (r *Replicator) RoleOf(obj Object) Role {
	if obj == nil {
		return RoleNone
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.objects[obj.ID()]; ok {
		return item.role
	}
	return RoleNone
}
