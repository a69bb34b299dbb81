package station

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/shasan419/maktab/domain"
)

// Station is the broadcast relay: the single transmitter slot, the listener
// set, and the live/init-segment state. One mutex guards all of it; sends
// issued under the lock are non-blocking enqueues on the peer's outbound
// buffer, so the lock is never held across socket I/O. Holding the lock while
// enqueuing is what guarantees a joining listener sees broadcast-start, then
// the init segment, then live frames with nothing in between.
type Station struct {
	mu          sync.RWMutex
	transmitter domain.Connection
	listeners   map[string]domain.Connection
	live        bool
	initSegment []byte
}

func New() *Station {
	return &Station{
		listeners: make(map[string]domain.Connection),
	}
}

// RegisterTransmitter installs conn as the active transmitter and goes live.
// A previously registered transmitter is evicted: its connection is closed
// and the init segment is discarded, because the new session has no frames
// yet. broadcast-start is announced to every listener even if already live,
// so a listener that joined mid-eviction still sees a start event.
func (s *Station) RegisterTransmitter(conn domain.Connection) {
	start := marshal(domain.ServerMessage{Type: domain.TypeBroadcastStart})

	s.mu.Lock()
	evicted := s.transmitter
	s.transmitter = conn
	s.live = true
	s.initSegment = nil
	for _, l := range s.listeners {
		_ = l.SendControl(start)
	}
	count := len(s.listeners)
	s.mu.Unlock()

	if evicted != nil && evicted != conn {
		evicted.Close()
		slog.Info("transmitter evicted", "clientId", evicted.ID())
	}
	slog.Info("broadcast started", "clientId", conn.ID(), "listeners", count)
}

// UnregisterTransmitter ends the broadcast if conn is the current
// transmitter. Stale calls from an already-evicted connection are no-ops.
func (s *Station) UnregisterTransmitter(conn domain.Connection) {
	end := marshal(domain.ServerMessage{Type: domain.TypeBroadcastEnd})

	s.mu.Lock()
	if s.transmitter != conn {
		s.mu.Unlock()
		return
	}
	s.transmitter = nil
	s.live = false
	s.initSegment = nil
	for _, l := range s.listeners {
		_ = l.SendControl(end)
	}
	count := len(s.listeners)
	s.mu.Unlock()

	slog.Info("broadcast ended", "clientId", conn.ID(), "listeners", count)
}

// AddListener adds conn to the listener set and brings it up to date:
// broadcast-start plus the cached init segment while live, broadcast-end
// while idle. The transmitter is told the new audience size.
func (s *Station) AddListener(conn domain.Connection) {
	s.mu.Lock()
	s.listeners[conn.ID()] = conn
	count := len(s.listeners)
	if s.live {
		_ = conn.SendControl(marshal(domain.ServerMessage{Type: domain.TypeBroadcastStart}))
		if s.initSegment != nil {
			_ = conn.SendAudio(s.initSegment)
		}
	} else {
		_ = conn.SendControl(marshal(domain.ServerMessage{Type: domain.TypeBroadcastEnd}))
	}
	s.notifyListenerCount(count)
	s.mu.Unlock()

	slog.Info("listener joined", "clientId", conn.ID(), "listeners", count)
}

// RemoveListener deletes conn from the listener set. Idempotent: removing a
// connection that is not a member changes nothing and notifies nobody.
func (s *Station) RemoveListener(conn domain.Connection) {
	s.mu.Lock()
	if _, ok := s.listeners[conn.ID()]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.listeners, conn.ID())
	count := len(s.listeners)
	s.notifyListenerCount(count)
	s.mu.Unlock()

	slog.Info("listener left", "clientId", conn.ID(), "listeners", count)
}

// ForwardAudio fans one audio frame out to every listener. The first frame
// of a session is copied and retained as the init segment. Frames from a
// connection that is not the current transmitter are dropped; that covers
// late frames from a just-evicted transmitter. Per-listener send failures
// are swallowed and never abort delivery to the rest.
func (s *Station) ForwardAudio(conn domain.Connection, frame []byte) {
	s.mu.Lock()
	if !s.live || s.transmitter != conn {
		s.mu.Unlock()
		return
	}
	if s.initSegment == nil {
		s.initSegment = append([]byte(nil), frame...)
	}
	for _, l := range s.listeners {
		_ = l.SendAudio(frame)
	}
	s.mu.Unlock()
}

// Snapshot returns the published live/listener-count view.
func (s *Station) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Snapshot{Live: s.live, ListenerCount: len(s.listeners)}
}

func (s *Station) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// notifyListenerCount is called with s.mu held.
func (s *Station) notifyListenerCount(count int) {
	if s.transmitter == nil {
		return
	}
	_ = s.transmitter.SendControl(marshal(domain.ServerMessage{
		Type:  domain.TypeListenerCount,
		Count: &count,
	}))
}

func marshal(msg domain.ServerMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("marshal error", "type", msg.Type, "error", err)
	}
	return data
}
