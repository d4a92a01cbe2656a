package syncra

import (
	"github.com/google/uuid"
)

// ServerClientID is the distinguished client id of the server peer. Objects
// are owned by the server unless ownership was transferred explicitly.
const ServerClientID uint32 = 0

// Role describes the local authority over a replicated object.
type Role uint8

const (
	// RoleNone marks an object that does not participate in replication.
	RoleNone Role = iota
	// RoleReplicated marks an object whose authority lives on another peer.
	RoleReplicated
	// RoleOwnedAuthoritative marks an object the local peer simulates and
	// broadcasts. At most one peer holds this role per object.
	RoleOwnedAuthoritative
)

func (r Role) String() string {
	switch r {
	case RoleReplicated:
		return "replicated"
	case RoleOwnedAuthoritative:
		return "owned_authoritative"
	default:
		return "none"
	}
}

// Channel selects the transport delivery class of an outgoing message.
type Channel uint8

const (
	// ChannelUnreliable delivers best-effort with no ordering. State updates
	// go here; the receiver rejects regressions by owner frame.
	ChannelUnreliable Channel = iota
	// ChannelReliableOrdered delivers exactly once, in send order. Spawn,
	// despawn and role messages go here.
	ChannelReliableOrdered
)

// ClientState is the connection state of a remote peer.
type ClientState uint8

const (
	ClientConnecting ClientState = iota
	ClientConnected
	ClientDisconnected
)

// Client is one entry of the peer registry.
type Client struct {
	ID    uint32
	State ClientState
}

// Network exposes the session the replicator runs in: who we are, which
// peers are connected and the engine frame counter.
type Network interface {
	Online() bool
	IsClient() bool
	LocalClientID() uint32
	Frame() uint32
	Clients() []Client
}

// Peer is the transport endpoint messages are handed to. On a client the
// targets slice is ignored and everything goes to the server; on the server
// nil targets means nobody (the replicator always passes an explicit set).
// Send must not block on the network. Payload and targets are only valid
// for the duration of the call; implementations retain copies.
type Peer interface {
	Send(channel Channel, payload []byte, targets []uint32) error
}

// Type is a handle into the game's type system.
type Type interface {
	Name() string
	// Base returns the parent type, or nil at the root of the hierarchy.
	Base() Type
}

// Object is the minimal surface the replicator needs from a game object.
type Object interface {
	ID() uuid.UUID
	Type() Type
}

// SceneObject is the optional scene-graph capability of an Object. Actors
// and scripts placed in a level implement it; free-standing objects don't.
type SceneObject interface {
	Object
	Parent() Object
	SetParent(parent Object)
	// Children returns the child actors of this object.
	Children() []Object
	// PrefabID identifies the prefab this object was instantiated from,
	// uuid.Nil when the object has no prefab link.
	PrefabID() uuid.UUID
	// PrefabObjectID identifies this object inside its prefab.
	PrefabObjectID() uuid.UUID
}

// ScriptComponent is the optional capability of script objects attached to a
// host actor. Despawning a script destroys its host.
type ScriptComponent interface {
	Object
	Host() Object
}

// World is the object system the replicator creates, finds and destroys
// game objects through.
type World interface {
	// FindObject resolves an id to a live object, nil when the object is
	// unknown or was destroyed. While the replicator publishes its id remap
	// (SetIDRemap) lookups also resolve remote ids to local objects.
	FindObject(id uuid.UUID) Object
	FindType(name string) (Type, bool)
	NewObject(t Type) (Object, error)
	Register(obj Object)
	Destroy(obj Object)
	// SetIDRemap installs (or, with nil, removes) the remote-to-local id
	// mapping consulted by FindObject during deserialization.
	SetIDRemap(remap map[uuid.UUID]uuid.UUID)
}

// Prefab is a handle to a loaded prefab asset.
type Prefab interface {
	ID() uuid.UUID
}

// Prefabs is the prefab manager collaborator.
type Prefabs interface {
	Load(id uuid.UUID) (Prefab, error)
	// Spawn instantiates the prefab and returns the root actor.
	Spawn(p Prefab) (Object, error)
	// FindSubObject locates the object identified by prefabObjectID inside
	// an instance rooted at root, nil when absent.
	FindSubObject(root Object, prefabObjectID uuid.UUID) Object
}

// NetworkSerializable is the capability interface the serializer registry
// falls back to when no explicit serializer was registered for a type.
type NetworkSerializable interface {
	NetSerialize(s *Stream) error
	NetDeserialize(s *Stream) error
}

// NetworkObject is the optional lifecycle-hook capability of replicated
// objects. Each hook fires exactly once per corresponding event,
// synchronously on the replication tick.
type NetworkObject interface {
	OnNetSpawn()
	OnNetDespawn()
	OnNetSerialize()
	OnNetDeserialize()
}
