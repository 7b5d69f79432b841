package sync

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, hub *Hub) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", WSHandler(hub))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWSHandler_WelcomeFirstWhilePublishing(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	url := newWSServer(t, hub)

	stop := make(chan struct{})
	var publishers gosync.WaitGroup
	for range 4 {
		publishers.Add(1)
		go func() {
			defer publishers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Publish(NewEvent(EventEntryUpdated))
					time.Sleep(100 * time.Microsecond)
				}
			}
		}()
	}
	defer func() {
		close(stop)
		publishers.Wait()
	}()

	for range 50 {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var first map[string]any
		require.NoError(t, json.Unmarshal(msg, &first))
		assert.Equal(t, "welcome", first["type"])

		_, msg, err = conn.ReadMessage()
		require.NoError(t, err)
		var ev CatalogEvent
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, EventEntryUpdated, ev.Type)

		conn.Close()
	}
}
