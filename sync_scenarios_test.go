package syncra

import (
	"testing"
)

// End-to-end flows across an in-process server and clients, with messages
// carried by the recording fake peers.

type testPeerSetup struct {
	world   *fakeWorld
	network *fakeNetwork
	rep     *Replicator
	peer    *fakePeer
	created []*serialObject
}

func newClientSetup(t *testing.T, id uint32, typeName string) *testPeerSetup {
	t.Helper()
	s := &testPeerSetup{world: newFakeWorld(), network: clientNetwork(id)}
	typ := s.world.addType(typeName, nil)
	s.world.news[typeName] = func() Object {
		obj := newSerialObject(typ)
		s.created = append(s.created, obj)
		return obj
	}
	s.rep, s.peer = newTestReplicator(s.network, s.world)
	return s
}

func TestOwnershipHandoffEndToEnd(t *testing.T) {
	serverWorld := newFakeWorld()
	styp := serverWorld.addType("game.Orb", nil)
	serverNet := serverNetwork(7, 8)
	server, serverPeer := newTestReplicator(serverNet, serverWorld)

	c7 := newClientSetup(t, 7, "game.Orb")
	c8 := newClientSetup(t, 8, "game.Orb")
	clients := map[uint32]*Replicator{7: c7.rep, 8: c8.rep}
	toServer := map[uint32]*Replicator{ServerClientID: server}

	obj := newSerialObject(styp)
	obj.value = 7
	serverWorld.add(obj)
	server.SpawnObject(obj)
	serverNet.frame = 10
	server.Update()
	deliver(serverPeer, ServerClientID, clients)

	if len(c7.created) != 1 || len(c8.created) != 1 {
		t.Fatalf("clients created %d/%d objects", len(c7.created), len(c8.created))
	}
	obj7, obj8 := c7.created[0], c8.created[0]
	if obj7.value != 7 || obj8.value != 7 {
		t.Fatalf("initial state not replicated: %d/%d", obj7.value, obj8.value)
	}

	// Hand the object to client 7.
	server.SetOwnership(obj, 7, RoleReplicated, false)
	deliver(serverPeer, ServerClientID, clients)

	if got := c7.rep.RoleOf(obj7); got != RoleOwnedAuthoritative {
		t.Fatalf("client 7 role = %v", got)
	}
	c7.rep.mu.Lock()
	frame := c7.rep.objects[obj7.ID()].lastOwnerFrame
	c7.rep.mu.Unlock()
	if frame != 0 {
		t.Fatalf("client 7 lastOwnerFrame = %d, want 0", frame)
	}
	if got := c8.rep.OwnerOf(obj8); got != 7 {
		t.Fatalf("client 8 sees owner %d", got)
	}

	// State now flows client 7 -> server -> client 8.
	obj7.value = 99
	c7.network.frame = 11
	c7.rep.Update()
	deliver(c7.peer, 7, toServer)
	if obj.value != 99 {
		t.Fatalf("server value = %d after owner update", obj.value)
	}

	serverNet.frame = 12
	server.Update()
	deliver(serverPeer, ServerClientID, clients)
	if obj8.value != 99 {
		t.Fatalf("client 8 value = %d after forward", obj8.value)
	}

	// Exactly one peer holds authority.
	authoritative := 0
	if server.RoleOf(obj) == RoleOwnedAuthoritative {
		authoritative++
	}
	if c7.rep.RoleOf(obj7) == RoleOwnedAuthoritative {
		authoritative++
	}
	if c8.rep.RoleOf(obj8) == RoleOwnedAuthoritative {
		authoritative++
	}
	if authoritative != 1 {
		t.Fatalf("authoritative peers = %d, want 1", authoritative)
	}
}

func TestIdentityReconciliationEndToEnd(t *testing.T) {
	serverWorld := newFakeWorld()
	styp := serverWorld.addType("game.Node", nil)
	serverNet := serverNetwork(7)
	server, serverPeer := newTestReplicator(serverNet, serverWorld)

	c7 := newClientSetup(t, 7, "game.Node")
	clients := map[uint32]*Replicator{7: c7.rep}

	// The shared parent reaches the client through a normal spawn.
	parentS := newSerialObject(styp)
	serverWorld.add(parentS)
	server.SpawnObject(parentS)
	serverNet.frame = 20
	server.Update()
	deliver(serverPeer, ServerClientID, clients)
	if len(c7.created) != 1 {
		t.Fatalf("parent not spawned on client: %d objects", len(c7.created))
	}
	parent7 := c7.created[0]

	// Both peers construct the same logical child locally, ids differ.
	childS := newSerialObject(styp)
	childS.value = 64
	serverWorld.add(childS)
	server.AddObject(childS, parentS)

	child7 := newSerialObject(c7.world.types["game.Node"])
	c7.world.add(child7)
	c7.rep.AddObject(child7, parent7)
	objectsBefore := len(c7.world.objects)

	serverNet.frame = 21
	server.Update()
	deliver(serverPeer, ServerClientID, clients)

	// No duplicate was created; the remote id aliases the local record.
	if len(c7.world.objects) != objectsBefore {
		t.Fatalf("objects = %d, want %d (duplicate created)", len(c7.world.objects), objectsBefore)
	}
	if child7.value != 64 {
		t.Fatalf("child value = %d, state did not land on the local object", child7.value)
	}
	c7.rep.mu.Lock()
	mapped, ok := c7.rep.idsRemapping[childS.ID()]
	frame := c7.rep.objects[child7.ID()].lastOwnerFrame
	c7.rep.mu.Unlock()
	if !ok || mapped != child7.ID() {
		t.Fatalf("remap %s -> %s missing (got %s)", childS.ID(), child7.ID(), mapped)
	}
	if frame != 21 {
		t.Fatalf("lastOwnerFrame = %d, want 21", frame)
	}

	// The alias holds for follow-up frames too.
	childS.value = 65
	serverNet.frame = 22
	server.Update()
	deliver(serverPeer, ServerClientID, clients)
	if child7.value != 65 {
		t.Fatalf("follow-up state lost: %d", child7.value)
	}
}
