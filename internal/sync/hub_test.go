package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_BroadcastsEvents(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(ln.Addr().String(), hub).Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)

	welcome, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, welcome, `"welcome"`)
	assert.Equal(t, 1, hub.Stats().TCPClients)

	ev := NewEvent(EventEntryCreated)
	ev.EntryID = 7
	ev.Title = "Akira"
	hub.Publish(ev)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	var got CatalogEvent
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, EventEntryCreated, got.Type)
	assert.Equal(t, int64(7), got.EntryID)
	assert.Equal(t, "Akira", got.Title)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestPublish_FillsIDAndTime(t *testing.T) {
	hub := NewHub(nil)
	client, server := net.Pipe()
	defer client.Close()
	hub.Add(server)

	go hub.Publish(CatalogEvent{Type: EventImportCompleted})

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)

	var got CatalogEvent
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.At.IsZero())
}
