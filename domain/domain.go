package domain

// Role is the permission level of a connected peer. Every connection starts
// unassigned and picks a role with its first control message.
type Role int

const (
	RoleUnassigned Role = iota
	RoleTransmitter
	RoleListener
)

func (r Role) String() string {
	switch r {
	case RoleTransmitter:
		return "transmitter"
	case RoleListener:
		return "listener"
	default:
		return "unassigned"
	}
}

// Control message types, client to server.
const (
	TypeTransmitter = "transmitter"
	TypeListener    = "listener"
	TypeStop        = "stop"
)

// Control message types, server to client.
const (
	TypeReady          = "ready"
	TypeBroadcastStart = "broadcast-start"
	TypeBroadcastEnd   = "broadcast-end"
	TypeError          = "error"
	TypeListenerCount  = "listener-count"
)

// ClientMessage is a control frame received from a peer.
type ClientMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// ServerMessage is a control frame sent to a peer. Count is a pointer so a
// zero listener count still serializes.
type ServerMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

// Snapshot is the read-only broadcast state published to the status endpoint.
type Snapshot struct {
	Live          bool `json:"live"`
	ListenerCount int  `json:"listenerCount"`
}

// Connection is a live duplex channel to one peer. Send methods must never
// block on peer I/O; a slow peer drops frames instead of stalling the caller.
type Connection interface {
	ID() string
	Role() Role
	SetRole(Role)
	SendControl(data []byte) error
	SendAudio(data []byte) error
	Close() error
}

// Relay owns the transmitter slot, the listener set, and the live/init-segment
// state, all behind one synchronization boundary.
type Relay interface {
	RegisterTransmitter(conn Connection)
	UnregisterTransmitter(conn Connection)
	AddListener(conn Connection)
	RemoveListener(conn Connection)
	ForwardAudio(conn Connection, frame []byte)
	Snapshot() Snapshot
}

// MessageHandler processes inbound frames and lifecycle events for one
// connection, in arrival order.
type MessageHandler interface {
	HandleControl(conn Connection, data []byte)
	HandleAudio(conn Connection, data []byte)
	HandleClose(conn Connection)
}

// TokenVerifier reports whether a bearer token authorizes the transmitter
// role. Implementations fail closed: malformed, expired, or unsigned tokens
// are simply unauthorized.
type TokenVerifier interface {
	Verify(token string) bool
}
