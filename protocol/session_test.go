package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shasan419/maktab/domain"
	"github.com/shasan419/maktab/station"
)

// Full-session tests against the real station, driving it the way the
// websocket layer would: one HandleControl/HandleAudio call per inbound
// frame, HandleClose on disconnect.

func (m *mockConn) controlTypes(t *testing.T) []string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.control))
	for _, raw := range m.control {
		var msg domain.ServerMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		types = append(types, msg.Type)
	}
	return types
}

func (m *mockConn) getAudio() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audio
}

func TestSession_BroadcastLifecycle(t *testing.T) {
	relay := station.New()
	h := NewHandler(relay, stubVerifier{valid: "good-token"})

	tx := &mockConn{id: "tx"}
	h.HandleControl(tx, control(t, domain.ClientMessage{Type: domain.TypeTransmitter, Token: "good-token"}))
	assert.Equal(t, domain.TypeReady, tx.lastControl(t).Type)
	assert.True(t, relay.Snapshot().Live)

	listenerA := &mockConn{id: "a"}
	h.HandleControl(listenerA, control(t, domain.ClientMessage{Type: domain.TypeListener}))
	assert.Equal(t, []string{domain.TypeBroadcastStart}, listenerA.controlTypes(t))

	h.HandleAudio(tx, []byte("chunk-X"))
	require.Len(t, listenerA.getAudio(), 1)
	assert.Equal(t, []byte("chunk-X"), listenerA.getAudio()[0])

	// a late joiner bootstraps from the cached init segment
	listenerB := &mockConn{id: "b"}
	h.HandleControl(listenerB, control(t, domain.ClientMessage{Type: domain.TypeListener}))
	assert.Equal(t, []string{domain.TypeBroadcastStart}, listenerB.controlTypes(t))
	require.Len(t, listenerB.getAudio(), 1)
	assert.Equal(t, []byte("chunk-X"), listenerB.getAudio()[0])

	h.HandleControl(tx, control(t, domain.ClientMessage{Type: domain.TypeStop}))
	assert.True(t, tx.closed)
	assert.False(t, relay.Snapshot().Live)
	assert.Contains(t, listenerA.controlTypes(t), domain.TypeBroadcastEnd)
	assert.Contains(t, listenerB.controlTypes(t), domain.TypeBroadcastEnd)
}

func TestSession_InvalidTokenLeavesStateUntouched(t *testing.T) {
	relay := station.New()
	h := NewHandler(relay, stubVerifier{valid: "good-token"})
	before := relay.Snapshot()

	tx := &mockConn{id: "tx"}
	h.HandleControl(tx, control(t, domain.ClientMessage{Type: domain.TypeTransmitter, Token: "forged"}))

	msg := tx.lastControl(t)
	assert.Equal(t, domain.TypeError, msg.Type)
	assert.Equal(t, "unauthorized", msg.Message)
	assert.True(t, tx.closed)
	assert.Equal(t, before, relay.Snapshot())
}

func TestSession_TransmitterTakeover(t *testing.T) {
	relay := station.New()
	h := NewHandler(relay, stubVerifier{valid: "good-token"})

	tx1 := &mockConn{id: "tx1"}
	h.HandleControl(tx1, control(t, domain.ClientMessage{Type: domain.TypeTransmitter, Token: "good-token"}))
	h.HandleAudio(tx1, []byte("old-session"))

	listener := &mockConn{id: "l"}
	h.HandleControl(listener, control(t, domain.ClientMessage{Type: domain.TypeListener}))

	tx2 := &mockConn{id: "tx2"}
	h.HandleControl(tx2, control(t, domain.ClientMessage{Type: domain.TypeTransmitter, Token: "good-token"}))
	assert.True(t, tx1.closed)
	assert.Equal(t, domain.TypeReady, tx2.lastControl(t).Type)
	assert.True(t, relay.Snapshot().Live)

	// the evicted transmitter's teardown and late traffic are no-ops
	h.HandleAudio(tx1, []byte("stale-frame"))
	h.HandleClose(tx1)
	assert.True(t, relay.Snapshot().Live)

	h.HandleAudio(tx2, []byte("new-session"))
	joiner := &mockConn{id: "j"}
	h.HandleControl(joiner, control(t, domain.ClientMessage{Type: domain.TypeListener}))
	require.Len(t, joiner.getAudio(), 1)
	assert.Equal(t, []byte("new-session"), joiner.getAudio()[0])
}

func TestSession_TransmitterDisconnectEndsBroadcast(t *testing.T) {
	relay := station.New()
	h := NewHandler(relay, stubVerifier{valid: "good-token"})

	tx := &mockConn{id: "tx"}
	h.HandleControl(tx, control(t, domain.ClientMessage{Type: domain.TypeTransmitter, Token: "good-token"}))

	listener := &mockConn{id: "l"}
	h.HandleControl(listener, control(t, domain.ClientMessage{Type: domain.TypeListener}))

	// transport failure, no explicit stop
	h.HandleClose(tx)

	assert.False(t, relay.Snapshot().Live)
	assert.Contains(t, listener.controlTypes(t), domain.TypeBroadcastEnd)
}

func TestSession_ListenerDisconnectUpdatesCount(t *testing.T) {
	relay := station.New()
	h := NewHandler(relay, stubVerifier{valid: "good-token"})

	tx := &mockConn{id: "tx"}
	h.HandleControl(tx, control(t, domain.ClientMessage{Type: domain.TypeTransmitter, Token: "good-token"}))

	listener := &mockConn{id: "l"}
	h.HandleControl(listener, control(t, domain.ClientMessage{Type: domain.TypeListener}))
	assert.Equal(t, 1, relay.Snapshot().ListenerCount)

	h.HandleClose(listener)
	assert.Equal(t, 0, relay.Snapshot().ListenerCount)

	// disconnect of a connection that never registered changes nothing
	h.HandleClose(&mockConn{id: "ghost"})
	assert.Equal(t, domain.Snapshot{Live: true}, relay.Snapshot())
}
