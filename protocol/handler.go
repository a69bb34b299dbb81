package protocol

import (
	"encoding/json"
	"log/slog"

	"github.com/shasan419/maktab/domain"
)

// Handler is the per-connection protocol dispatcher. It classifies inbound
// frames, enforces role permissions, and drives the relay. It keeps no state
// of its own: role lives on the connection, broadcast state in the relay.
type Handler struct {
	relay    domain.Relay
	verifier domain.TokenVerifier
}

func NewHandler(relay domain.Relay, verifier domain.TokenVerifier) *Handler {
	return &Handler{relay: relay, verifier: verifier}
}

func (h *Handler) HandleControl(conn domain.Connection, data []byte) {
	var msg domain.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("malformed control message", "clientId", conn.ID(), "error", err)
		h.sendError(conn, "malformed control message")
		return
	}

	switch msg.Type {
	case domain.TypeTransmitter:
		if !h.verifier.Verify(msg.Token) {
			slog.Warn("transmitter registration rejected", "clientId", conn.ID())
			h.sendError(conn, "unauthorized")
			conn.Close()
			return
		}
		// A connection may only hold one role; a listener that upgrades
		// leaves the listener set first.
		if conn.Role() == domain.RoleListener {
			h.relay.RemoveListener(conn)
		}
		conn.SetRole(domain.RoleTransmitter)
		h.relay.RegisterTransmitter(conn)
		h.send(conn, domain.ServerMessage{Type: domain.TypeReady})

	case domain.TypeListener:
		if conn.Role() == domain.RoleTransmitter {
			return
		}
		conn.SetRole(domain.RoleListener)
		h.relay.AddListener(conn)

	case domain.TypeStop:
		if conn.Role() != domain.RoleTransmitter {
			return
		}
		h.relay.UnregisterTransmitter(conn)
		conn.Close()

	default:
		// Unrecognized control types are dropped without a reply; they are
		// likely late messages from an evicted or outdated peer.
		slog.Debug("unrecognized control message", "clientId", conn.ID(), "type", msg.Type)
	}
}

func (h *Handler) HandleAudio(conn domain.Connection, data []byte) {
	if conn.Role() != domain.RoleTransmitter {
		return
	}
	h.relay.ForwardAudio(conn, data)
}

// HandleClose runs once when a connection's read loop ends, whether the peer
// closed cleanly or the transport failed. A dying transmitter ends the
// broadcast; a dying listener leaves the set. Either is idempotent.
func (h *Handler) HandleClose(conn domain.Connection) {
	switch conn.Role() {
	case domain.RoleTransmitter:
		h.relay.UnregisterTransmitter(conn)
	case domain.RoleListener:
		h.relay.RemoveListener(conn)
	}
}

func (h *Handler) send(conn domain.Connection, msg domain.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return
	}
	_ = conn.SendControl(data)
}

func (h *Handler) sendError(conn domain.Connection, reason string) {
	h.send(conn, domain.ServerMessage{Type: domain.TypeError, Message: reason})
}
