package syncra

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// noClient is the "exclude nobody" sentinel for target building. Transports
// assign client ids starting at 1, so neither it nor ServerClientID ever
// matches a connected peer.
const noClient = ^uint32(0)

// spawnIntent is one queued spawn, batched until the next Update.
type spawnIntent struct {
	obj           Object
	targets       []uint32
	hasOwnership  bool
	hierarchical  bool
	ownerClientID uint32
	role          Role
}

// Options configures a Replicator. Network, Peer and World are required;
// Prefabs is only needed when prefab-linked objects are spawned. A nil
// Logger falls back to log.Default, a nil Metrics registerer disables
// metrics.
type Options struct {
	Network Network
	Peer    Peer
	World   World
	Prefabs Prefabs
	Logger  *log.Logger
	Metrics prometheus.Registerer
}

// Replicator keeps the registry of replicated objects and drives their
// synchronization: one Update per engine frame on the sending side,
// HandleMessage per inbound transport message on the receiving side.
//
// All public entry points may be called from any goroutine; a single coarse
// mutex guards the registry, the queues and the remap table. Update and
// HandleMessage hold it for their whole duration.
type Replicator struct {
	mu sync.Mutex

	network Network
	peer    Peer
	world   World
	prefabs Prefabs
	log     *log.Logger
	metrics *metrics

	objects      map[uuid.UUID]*replicatedObject
	spawnQueue   []*spawnIntent
	despawnQueue []uuid.UUID
	idsRemapping map[uuid.UUID]uuid.UUID
	newClients   []uint32

	cachedTargets []uint32
	writeStream   *Stream
	readStream    *Stream
	msgStream     *Stream

	serializers *serializerTable
}

func New(opts Options) (*Replicator, error) {
	if opts.Network == nil || opts.Peer == nil || opts.World == nil {
		return nil, errors.New("syncra: Network, Peer and World are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Replicator{
		network:      opts.Network,
		peer:         opts.Peer,
		world:        opts.World,
		prefabs:      opts.Prefabs,
		log:          logger,
		metrics:      newMetrics(opts.Metrics),
		objects:      make(map[uuid.UUID]*replicatedObject),
		idsRemapping: make(map[uuid.UUID]uuid.UUID),
		writeStream:  NewStream(),
		readStream:   NewStream(),
		msgStream:    NewStream(),
		serializers:  newSerializerTable(),
	}, nil
}

// ==============================================
// Spawning
// ==============================================

// SpawnObject queues an object for replicated spawning. The spawn message
// goes out on the next Update. Explicit targets restrict replication to
// those clients; none means broadcast. Spawning an already-spawned object
// is a no-op.
func (r *Replicator) SpawnObject(obj Object, targets ...uint32) {
	if obj == nil || !r.network.Online() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.objects[obj.ID()]; ok && item.spawned {
		return
	}
	for _, e := range r.spawnQueue {
		if e.obj.ID() == obj.ID() {
			return
		}
	}
	intent := &spawnIntent{obj: obj}
	if len(targets) > 0 {
		intent.targets = append([]uint32(nil), targets...)
	}
	r.spawnQueue = append(r.spawnQueue, intent)
}

// DespawnObject queues a despawn for an object the local peer owns and
// destroys it locally right away. The despawn message goes out on the next
// Update, before any spawn queued the same frame.
func (r *Replicator) DespawnObject(obj Object) {
	if obj == nil || !r.network.Online() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.objects[obj.ID()]
	if !ok || !item.spawned || item.ownerClientID != r.network.LocalClientID() {
		return
	}

	id := obj.ID()
	if !slices.Contains(r.despawnQueue, id) {
		r.despawnQueue = append(r.despawnQueue, id)
	}

	// Prevent a same-frame spawn from resurrecting it.
	for i, e := range r.spawnQueue {
		if e.obj.ID() == id {
			r.spawnQueue = append(r.spawnQueue[:i], r.spawnQueue[i+1:]...)
			break
		}
	}

	if item.hooks != nil {
		r.callHook("despawn", item.hooks.OnNetDespawn)
	}
	r.deleteNetworkObject(obj)
}

// DirtyObject marks an owned object as changed. State is currently
// broadcast every frame regardless, so this only validates ownership.
// TODO: per-object dirty flags and send-rate control keyed off this.
func (r *Replicator) DirtyObject(obj Object) {
	if obj == nil || !r.network.Online() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.objects[obj.ID()]
	if !ok || item.role != RoleOwnedAuthoritative {
		return
	}
}

// ==============================================
// Peer lifecycle
// ==============================================

// ClientConnected registers a late joiner; the next Update replays every
// spawned object whose target set includes it.
func (r *Replicator) ClientConnected(clientID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newClients = append(r.newClients, clientID)
}

// ClientDisconnected drops a departed peer and destroys every object it
// owned. No despawn messages are emitted; remaining clients clean up
// through their own disconnect handling.
func (r *Replicator) ClientDisconnected(clientID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, id := range r.newClients {
		if id == clientID {
			r.newClients = append(r.newClients[:i], r.newClients[i+1:]...)
			break
		}
	}
	for id, item := range r.objects {
		if !item.spawned || item.ownerClientID != clientID {
			continue
		}
		obj := item.get(r.world)
		if obj == nil {
			continue
		}
		if item.hooks != nil {
			r.callHook("despawn", item.hooks.OnNetDespawn)
		}
		delete(r.objects, id)
		r.deleteNetworkObject(obj)
	}
	r.metrics.setObjects(len(r.objects))
}

// Clear shuts the replicator down: spawned objects are despawned locally
// and all state is dropped. The instance may be reused afterwards.
func (r *Replicator) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Printf("[syncra] shutdown")
	for id, item := range r.objects {
		if obj := item.get(r.world); obj != nil && item.spawned {
			if item.hooks != nil {
				r.callHook("despawn", item.hooks.OnNetDespawn)
			}
			r.deleteNetworkObject(obj)
		}
		delete(r.objects, id)
	}
	r.spawnQueue = nil
	r.despawnQueue = nil
	r.newClients = nil
	r.cachedTargets = nil
	r.idsRemapping = make(map[uuid.UUID]uuid.UUID)
	r.writeStream.Reset()
	r.readStream.Reset()
	r.msgStream.Reset()
	r.world.SetIDRemap(nil)
	r.metrics.setObjects(0)
}

// ==============================================
// Replication loop
// ==============================================

// Update runs one replication frame: late-join catch-up, despawn and spawn
// queue drains, then the state broadcast over every registry record.
func (r *Replicator) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()

	isClient := r.network.IsClient()
	localID := r.network.LocalClientID()

	// Publish the remap so deserialization resolves remote ids to local
	// objects for the rest of the frame.
	r.world.SetIDRemap(r.idsRemapping)

	// Sync previously spawned objects with late joiners.
	if !isClient && len(r.newClients) > 0 {
		for _, item := range r.objects {
			obj := item.get(r.world)
			if obj == nil || !item.spawned {
				continue
			}
			targets := r.buildTargetsAmong(r.newClients, item.targetClientIDs)
			if len(targets) > 0 {
				r.sendSpawnMessage(item, obj, targets)
			}
		}
		r.newClients = r.newClients[:0]
	}

	allTargets := r.buildTargets(nil, ServerClientID)
	if !isClient && len(allTargets) == 0 {
		// Server with nobody to talk to.
		r.world.SetIDRemap(nil)
		return
	}

	// Despawns go first so a same-frame spawn of a recycled id cannot be
	// observed before the despawn of the old one.
	for _, id := range r.despawnQueue {
		msg := objectDespawnMsg{ObjectID: id}
		if isClient {
			msg.ObjectID = r.toCanonicalID(id)
		}
		r.log.Printf("[syncra] despawn object %s", id)
		r.msgStream.Reset()
		msg.encode(r.msgStream)
		if isClient {
			r.peer.Send(ChannelReliableOrdered, r.msgStream.Bytes(), nil)
		} else {
			r.peer.Send(ChannelReliableOrdered, r.msgStream.Bytes(), allTargets)
		}
		r.metrics.incSent("despawn")
	}
	r.despawnQueue = r.despawnQueue[:0]

	if len(r.spawnQueue) > 0 {
		// Hierarchical ownership pre-pass: a spawned parent with explicit
		// ownership passes it to queued scene-children without their own
		// override. Scene linkage is used because the children may not be
		// in the registry yet.
		for _, e := range r.spawnQueue {
			if !e.hasOwnership || !e.hierarchical {
				continue
			}
			for _, q := range r.spawnQueue {
				if !q.hasOwnership && isParentOf(q.obj, e.obj) {
					q.hasOwnership = true
					q.ownerClientID = e.ownerClientID
					q.role = e.role
				}
			}
		}
		for _, e := range r.spawnQueue {
			if r.world.FindObject(e.obj.ID()) == nil {
				continue // deleted before the drain
			}
			item := r.addObjectLocked(e.obj, nil)
			if item.spawned {
				continue
			}
			if item.ownerClientID != localID || item.role != RoleOwnedAuthoritative {
				continue // not ours to spawn
			}
			if e.hasOwnership {
				item.ownerClientID = e.ownerClientID
				item.role = e.role
				if e.hierarchical {
					r.setOwnershipLocked(e.obj, e.ownerClientID, e.role, true)
				}
			}
			if e.targets != nil {
				if isClient {
					// Target lists are enforced by the server; a client
					// cannot announce one yet.
					r.log.Printf("[syncra] spawn target list for %s is not forwarded to the server", item.objectID)
				}
				item.targetClientIDs = e.targets
			}
			r.log.Printf("[syncra] spawn object %s", item.objectID)
			targets := r.buildTargets(item.targetClientIDs, ServerClientID)
			r.sendSpawnMessage(item, e.obj, targets)
			item.spawned = true
		}
		r.spawnQueue = r.spawnQueue[:0]
	}

	// State broadcast over every record. Dead back-references are collected
	// here rather than in a separate sweep.
	frame := r.network.Frame()
	for id, item := range r.objects {
		obj := item.get(r.world)
		if obj == nil {
			r.log.Printf("[syncra] drop object %s: back-reference is dead", item.objectID)
			delete(r.objects, id)
			r.metrics.setObjects(len(r.objects))
			continue
		}
		// Clients send only what they own; the server also forwards state
		// of client-owned objects to everyone else.
		if item.role != RoleOwnedAuthoritative && (isClient || item.ownerClientID == localID) {
			continue
		}

		if item.hooks != nil {
			r.callHook("serialize", item.hooks.OnNetSerialize)
		}

		r.writeStream.Reset()
		if err := r.serializers.invoke(obj.Type(), obj, r.writeStream, dirSerialize); err != nil {
			if errors.Is(err, ErrNoSerializer) {
				if !item.serializerWarned {
					item.serializerWarned = true
					r.log.Printf("[syncra] cannot serialize object %s of type %s (no serializer)", item.objectID, obj.Type().Name())
				}
			} else {
				r.log.Printf("[syncra] serialize error on %s: %v", item.objectID, err)
			}
			continue
		}
		if r.writeStream.Len() > MaxPayloadSize {
			panic(fmt.Sprintf("syncra: serialized state of %s (%s) is %d bytes, above the %d limit",
				item.objectID, obj.Type().Name(), r.writeStream.Len(), MaxPayloadSize))
		}

		msg := objectReplicateMsg{
			OwnerFrame: frame,
			ObjectID:   item.objectID,
			ParentID:   item.parentID,
			TypeName:   obj.Type().Name(),
			Data:       r.writeStream.Bytes(),
		}
		if isClient {
			msg.ObjectID = r.toCanonicalID(msg.ObjectID)
			msg.ParentID = r.toCanonicalID(msg.ParentID)
		}
		r.msgStream.Reset()
		if err := msg.encode(r.msgStream); err != nil {
			r.log.Printf("[syncra] cannot encode state of %s: %v", item.objectID, err)
			continue
		}
		if isClient {
			r.peer.Send(ChannelUnreliable, r.msgStream.Bytes(), nil)
		} else {
			targets := r.buildTargets(item.targetClientIDs, item.ownerClientID)
			if len(targets) == 0 {
				continue
			}
			r.peer.Send(ChannelUnreliable, r.msgStream.Bytes(), targets)
		}
		r.metrics.incSent("replicate")
	}

	r.world.SetIDRemap(nil)
}

// ==============================================
// Send helpers
// ==============================================

func (r *Replicator) sendSpawnMessage(item *replicatedObject, obj Object, targets []uint32) {
	msg := objectSpawnMsg{
		ObjectID:      item.objectID,
		ParentID:      item.parentID,
		OwnerClientID: item.ownerClientID,
		TypeName:      obj.Type().Name(),
	}
	isClient := r.network.IsClient()
	if isClient {
		msg.ObjectID = r.toCanonicalID(msg.ObjectID)
		msg.ParentID = r.toCanonicalID(msg.ParentID)
	}
	if so, ok := obj.(SceneObject); ok && so.PrefabID() != uuid.Nil {
		msg.PrefabID = so.PrefabID()
		msg.PrefabObjectID = so.PrefabObjectID()
	}
	r.msgStream.Reset()
	if err := msg.encode(r.msgStream); err != nil {
		r.log.Printf("[syncra] cannot encode spawn of %s: %v", item.objectID, err)
		return
	}
	if isClient {
		r.peer.Send(ChannelReliableOrdered, r.msgStream.Bytes(), nil)
	} else {
		r.peer.Send(ChannelReliableOrdered, r.msgStream.Bytes(), targets)
	}
	r.metrics.incSent("spawn")
}

func (r *Replicator) sendRoleMessage(item *replicatedObject, excluded uint32) {
	msg := objectRoleMsg{ObjectID: item.objectID, OwnerClientID: item.ownerClientID}
	isClient := r.network.IsClient()
	if isClient {
		msg.ObjectID = r.toCanonicalID(msg.ObjectID)
	}
	r.msgStream.Reset()
	msg.encode(r.msgStream)
	if isClient {
		r.peer.Send(ChannelReliableOrdered, r.msgStream.Bytes(), nil)
	} else {
		targets := r.buildTargets(nil, excluded)
		if len(targets) == 0 {
			return
		}
		r.peer.Send(ChannelReliableOrdered, r.msgStream.Bytes(), targets)
	}
	r.metrics.incSent("role")
}

// buildTargets collects the connected clients to address, excluding one id
// and, when allowed is non-nil, keeping only listed clients. The returned
// slice is reused between calls.
func (r *Replicator) buildTargets(allowed []uint32, excluded uint32) []uint32 {
	r.cachedTargets = r.cachedTargets[:0]
	for _, c := range r.network.Clients() {
		if c.State != ClientConnected || c.ID == excluded {
			continue
		}
		if allowed != nil && !containsID(allowed, c.ID) {
			continue
		}
		r.cachedTargets = append(r.cachedTargets, c.ID)
	}
	return r.cachedTargets
}

// buildTargetsAmong is buildTargets over an explicit candidate list instead
// of the connected-client set.
func (r *Replicator) buildTargetsAmong(candidates, allowed []uint32) []uint32 {
	r.cachedTargets = r.cachedTargets[:0]
	for _, id := range candidates {
		if allowed != nil && !containsID(allowed, id) {
			continue
		}
		r.cachedTargets = append(r.cachedTargets, id)
	}
	return r.cachedTargets
}

func containsID(ids []uint32, id uint32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// deleteNetworkObject destroys an object locally. A script component takes
// its host actor with it.
func (r *Replicator) deleteNetworkObject(obj Object) {
	if sc, ok := obj.(ScriptComponent); ok && sc.Host() != nil {
		r.world.Destroy(sc.Host())
		return
	}
	r.world.Destroy(obj)
}

// isParentOf reports whether parent is a transitive scene-graph ancestor of
// obj. Replication parent ids are not used here: queued children may not be
// registered yet.
func isParentOf(obj, parent Object) bool {
	so, ok := obj.(SceneObject)
	if !ok {
		return false
	}
	for p := so.Parent(); p != nil; {
		if p.ID() == parent.ID() {
			return true
		}
		ps, ok := p.(SceneObject)
		if !ok {
			return false
		}
		p = ps.Parent()
	}
	return false
}
