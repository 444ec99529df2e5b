package notify

import (
	"context"
	"net/http/httptest"
	"pricewatch-backend/internal/components/telemetry"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func waitForSubscribers(t testing.TB, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.Len() == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWebsocketSubscriber(t *testing.T) {
	hub := NewHub(telemetry.NewMetrics(), telemetry.NewRecorder())
	server := httptest.NewServer(NewWebsocketHandler(hub, nil, telemetry.NewRecorder()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsUrl := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsUrl, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	waitForSubscribers(t, hub, 1)

	err = conn.Write(ctx, websocket.MessageText, []byte("hello"))
	require.NoError(t, err)
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)
	require.Equal(t, "Message received: hello", string(data))

	hub.Broadcast(ctx, "Added: Mixer X with price 4500")
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "Added: Mixer X with price 4500", string(data))

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	waitForSubscribers(t, hub, 0)
}

func TestWebsocketRejectsPlainRequests(t *testing.T) {
	hub := NewHub(telemetry.NewMetrics(), telemetry.NewRecorder())
	tel := telemetry.NewRecorder()
	handler := NewWebsocketHandler(hub, nil, tel)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	require.Equal(t, 0, hub.Len())
	require.Len(t, tel.Reports("warning"), 1)
}
