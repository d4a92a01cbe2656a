package syncra

import (
	"errors"

	"github.com/google/uuid"
)

// HandleMessage applies one inbound replication message. The transport's
// dispatcher calls it with the sending peer's client id; on a client the
// sender is always the server. The whole handler runs under the objects
// lock.
func (r *Replicator) HandleMessage(sender uint32, data []byte) {
	if !r.network.Online() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var env Stream
	env.Load(data)
	id, err := env.ReadByte()
	if err != nil {
		return
	}
	switch MessageID(id) {
	case MessageObjectReplicate:
		r.handleReplicate(sender, &env)
	case MessageObjectSpawn:
		r.handleSpawn(sender, &env)
	case MessageObjectDespawn:
		r.handleDespawn(sender, &env)
	case MessageObjectRole:
		r.handleRole(sender, &env)
	default:
		r.log.Printf("[syncra] unknown message id %d from client %d", id, sender)
		r.metrics.incDrop("unknown_message")
	}
}

func (r *Replicator) handleReplicate(sender uint32, env *Stream) {
	var msg objectReplicateMsg
	if err := msg.decode(env); err != nil {
		r.metrics.incDrop("malformed")
		return
	}

	item := r.resolveObjectTyped(msg.ObjectID, msg.ParentID, msg.TypeName)
	if item == nil {
		// State for an object we have not spawned yet: drop and rely on
		// the owner's next frame.
		r.metrics.incDrop("unknown_object")
		return
	}
	obj := item.get(r.world)
	if obj == nil {
		return
	}

	// Only the recorded owner may drive an object's state.
	if !r.network.IsClient() && sender != item.ownerClientID {
		r.metrics.incDrop("unauthorized")
		return
	}
	// Stale traffic from before an ownership change.
	if item.role == RoleOwnedAuthoritative {
		r.metrics.incDrop("authoritative_local")
		return
	}
	// The unreliable channel reorders; never apply an older frame.
	if msg.OwnerFrame <= item.lastOwnerFrame {
		r.metrics.incDrop("stale_frame")
		return
	}
	item.lastOwnerFrame = msg.OwnerFrame

	r.readStream.Load(msg.Data)
	if err := r.serializers.invoke(obj.Type(), obj, r.readStream, dirDeserialize); err != nil {
		if errors.Is(err, ErrNoSerializer) {
			if !item.serializerWarned {
				item.serializerWarned = true
				r.log.Printf("[syncra] cannot deserialize object %s of type %s (no serializer)", item.objectID, obj.Type().Name())
			}
		} else {
			r.log.Printf("[syncra] deserialize error on %s: %v", item.objectID, err)
		}
		return
	}

	if item.hooks != nil {
		r.callHook("deserialize", item.hooks.OnNetDeserialize)
	}
}

func (r *Replicator) handleSpawn(sender uint32, env *Stream) {
	var msg objectSpawnMsg
	if err := msg.decode(env); err != nil {
		r.metrics.incDrop("malformed")
		return
	}

	if item := r.resolveObjectTyped(msg.ObjectID, msg.ParentID, msg.TypeName); item != nil {
		// Already known locally (local pre-spawn or duplicate message).
		item.spawned = true
		if r.network.IsClient() {
			// The server's view of ownership wins.
			item.ownerClientID = msg.OwnerClientID
			if item.role == RoleOwnedAuthoritative {
				item.role = RoleReplicated
			}
		}
		return
	}

	// Recreate the object locally.
	parent := r.resolveObject(msg.ParentID)
	var parentObj Object
	if parent != nil {
		parentObj = parent.get(r.world)
	}

	var obj Object
	if msg.PrefabID != uuid.Nil {
		obj = r.spawnFromPrefab(&msg, parentObj)
		if obj == nil {
			return
		}
	} else {
		typ, ok := r.world.FindType(msg.TypeName)
		if !ok {
			r.log.Printf("[syncra] cannot spawn object of unknown type %q", msg.TypeName)
			return
		}
		created, err := r.world.NewObject(typ)
		if err != nil {
			r.log.Printf("[syncra] cannot spawn object of type %q: %v", msg.TypeName, err)
			return
		}
		obj = created
	}
	r.world.Register(obj)

	item := &replicatedObject{
		objectID:      obj.ID(),
		ownerClientID: msg.OwnerClientID,
		role:          RoleReplicated,
		spawned:       true,
	}
	if parent != nil {
		item.parentID = parent.objectID
	}
	if item.ownerClientID == r.network.LocalClientID() {
		// The server spawned an object this peer is meant to own.
		item.role = RoleOwnedAuthoritative
	}
	if hooks, ok := obj.(NetworkObject); ok {
		item.hooks = hooks
	}
	r.objects[item.objectID] = item
	r.metrics.setObjects(len(r.objects))
	r.log.Printf("[syncra] add object %s (%s) from spawn of %s", item.objectID, obj.Type().Name(), msg.ObjectID)

	// Boost future lookups by using indirection.
	r.addRemap(msg.ObjectID, item.objectID)

	// Automatic parenting for scene objects.
	if so, ok := obj.(SceneObject); ok {
		if parentObj != nil {
			so.SetParent(parentObj)
		} else if pa := r.findLocalObject(msg.ParentID); pa != nil {
			so.SetParent(pa)
		}
	}

	if item.hooks != nil {
		r.callHook("spawn", item.hooks.OnNetSpawn)
	}
}

// spawnFromPrefab resolves or instantiates the prefab instance a spawn
// message refers to and returns the networked sub-object, nil when the
// spawn has to be aborted.
func (r *Replicator) spawnFromPrefab(msg *objectSpawnMsg, parentObj Object) Object {
	if r.prefabs == nil {
		r.log.Printf("[syncra] cannot spawn prefab %s: no prefab system", msg.PrefabID)
		return nil
	}

	var instance Object

	// The resolved parent may itself be the prefab instance (a networked
	// script inside an already-replicated actor).
	if so, ok := parentObj.(SceneObject); ok && so.PrefabID() == msg.PrefabID {
		instance = parentObj
	}

	// Otherwise look for an instance under the parent that has no network
	// identity yet, e.g. spawned locally ahead of the message.
	if instance == nil {
		pa := parentObj
		if pa == nil {
			pa = r.findLocalObject(msg.ParentID)
		}
		if so, ok := pa.(SceneObject); ok {
			for _, child := range so.Children() {
				cso, ok := child.(SceneObject)
				if !ok || cso.PrefabID() != msg.PrefabID {
					continue
				}
				sub := r.prefabs.FindSubObject(child, msg.PrefabObjectID)
				if sub == nil {
					continue
				}
				if _, taken := r.objects[sub.ID()]; taken {
					continue // another instance, already networked
				}
				instance = child
				break
			}
		}
	}

	if instance == nil {
		prefab, err := r.prefabs.Load(msg.PrefabID)
		if err != nil {
			r.log.Printf("[syncra] failed to load prefab %s: %v", msg.PrefabID, err)
			return nil
		}
		created, err := r.prefabs.Spawn(prefab)
		if err != nil || created == nil {
			r.log.Printf("[syncra] failed to spawn prefab %s: %v", msg.PrefabID, err)
			return nil
		}
		instance = created
	}

	obj := r.prefabs.FindSubObject(instance, msg.PrefabObjectID)
	if obj == nil {
		r.log.Printf("[syncra] object %s not found in prefab %s", msg.PrefabObjectID, msg.PrefabID)
		r.world.Destroy(instance)
		return nil
	}
	return obj
}

func (r *Replicator) handleDespawn(sender uint32, env *Stream) {
	var msg objectDespawnMsg
	if err := msg.decode(env); err != nil {
		r.metrics.incDrop("malformed")
		return
	}

	item := r.resolveObject(msg.ObjectID)
	if item == nil {
		r.log.Printf("[syncra] despawn of unknown object %s", msg.ObjectID)
		r.metrics.incDrop("unknown_object")
		return
	}
	obj := item.get(r.world)
	if obj == nil || !item.spawned {
		return
	}
	if !r.network.IsClient() && sender != item.ownerClientID {
		r.metrics.incDrop("unauthorized")
		return
	}

	if item.hooks != nil {
		r.callHook("despawn", item.hooks.OnNetDespawn)
	}
	delete(r.objects, item.objectID)
	r.metrics.setObjects(len(r.objects))
	r.deleteNetworkObject(obj)
}

func (r *Replicator) handleRole(sender uint32, env *Stream) {
	var msg objectRoleMsg
	if err := msg.decode(env); err != nil {
		r.metrics.incDrop("malformed")
		return
	}

	item := r.resolveObject(msg.ObjectID)
	if item == nil {
		r.log.Printf("[syncra] role update for unknown object %s", msg.ObjectID)
		r.metrics.incDrop("unknown_object")
		return
	}
	if item.get(r.world) == nil {
		return
	}
	if !r.network.IsClient() && sender != item.ownerClientID {
		r.metrics.incDrop("unauthorized")
		return
	}

	item.ownerClientID = msg.OwnerClientID
	item.lastOwnerFrame = 1
	if item.ownerClientID == r.network.LocalClientID() {
		// This peer became the owner.
		item.role = RoleOwnedAuthoritative
		item.lastOwnerFrame = 0
	} else if item.role == RoleOwnedAuthoritative {
		// Authority moved elsewhere.
		item.role = RoleReplicated
	}

	if !r.network.IsClient() {
		// Everyone but the sender needs to hear about the new owner.
		r.sendRoleMessage(item, sender)
	}
}
