package sse

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/pagetrail-server/internal/domain"
)

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(slog.New(slog.DiscardHandler), WithHeartbeatInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = m.Shutdown(context.Background())
	})
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case evt := <-c.EventChan:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestManager_DeliversOnlyToOwner(t *testing.T) {
	m := startManager(t)

	alice, err := m.Connect("user-alice")
	require.NoError(t, err)
	bob, err := m.Connect("user-bob")
	require.NoError(t, err)

	m.Emit(NewBookUpdatedEvent(&domain.Book{UserID: "user-alice", Title: "Dune"}))

	evt := receive(t, alice)
	assert.Equal(t, EventBookUpdated, evt.Type)

	select {
	case evt := <-bob.EventChan:
		t.Fatalf("bob received %s meant for alice", evt.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManager_UnscopedClientReceivesEverything(t *testing.T) {
	m := startManager(t)

	all, err := m.Connect("")
	require.NoError(t, err)

	m.Emit(NewBookDeletedEvent("user-alice", "book-1"))
	evt := receive(t, all)
	assert.Equal(t, EventBookDeleted, evt.Type)
}

func TestManager_DisconnectClosesChannels(t *testing.T) {
	m := startManager(t)

	c, err := m.Connect("user-alice")
	require.NoError(t, err)
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())

	_, ok := <-c.EventChan
	assert.False(t, ok)

	// Second disconnect is a no-op.
	m.Disconnect(c.ID)
}

func TestManager_EmitAfterShutdownIsDropped(t *testing.T) {
	m := NewManager(slog.New(slog.DiscardHandler))
	require.NoError(t, m.Shutdown(context.Background()))

	assert.NotPanics(t, func() {
		m.Emit(NewHeartbeatEvent())
	})
}

func TestManager_IgnoresForeignPayloads(t *testing.T) {
	m := startManager(t)
	assert.NotPanics(t, func() {
		m.Emit("not an event")
	})
}

func TestEvent_IsBookChange(t *testing.T) {
	assert.True(t, NewSessionCreatedEvent(&domain.ReadingSession{UserID: "u"}).IsBookChange())
	assert.True(t, NewBookDeletedEvent("u", "b").IsBookChange())
	assert.False(t, NewHeartbeatEvent().IsBookChange())
	assert.False(t, NewBooksSnapshotEvent("u", nil, 0).IsBookChange())
}
