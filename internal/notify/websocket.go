package notify

import (
	"context"
	"errors"
	"net/http"
	"pricewatch-backend/internal/components/assert"
	"pricewatch-backend/internal/components/telemetry"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

const report_websocket_accept = "websocket.accept"

// WebsocketSubscriber delivers notifications as text frames.
type WebsocketSubscriber struct {
	id   string
	conn *websocket.Conn
}

func NewWebsocketSubscriber(conn *websocket.Conn) *WebsocketSubscriber {
	assert.NotNil(conn)
	return &WebsocketSubscriber{
		id:   "ws:" + uuid.NewString(),
		conn: conn,
	}
}

func (s *WebsocketSubscriber) ID() string {
	return s.id
}

func (s *WebsocketSubscriber) Send(ctx context.Context, message string) error {
	return s.conn.Write(ctx, websocket.MessageText, []byte(message))
}

// WebsocketHandler upgrades requests to websockets and keeps them registered on the hub
// until they disconnect. Text received from the client is echoed back.
type WebsocketHandler struct {
	hub            *Hub
	originPatterns []string
	tel            telemetry.API
}

// NewWebsocketHandler creates a WebsocketHandler, originPatterns are passed to
// websocket.AcceptOptions, an empty list only accepts same-origin browsers.
func NewWebsocketHandler(hub *Hub, originPatterns []string, tel telemetry.API) WebsocketHandler {
	assert.NotNil(hub)
	assert.NotNil(tel)
	return WebsocketHandler{
		hub:            hub,
		originPatterns: originPatterns,
		tel:            telemetry.NewScopedAPI("notify", tel),
	}
}

func (h WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.tel.ReportWarning(report_websocket_accept, err, r.RemoteAddr)
		return
	}
	defer conn.CloseNow()

	sub := NewWebsocketSubscriber(conn)
	h.hub.Register(sub)
	defer h.hub.Unregister(sub)

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				!errors.Is(err, context.Canceled) {
				h.tel.ReportDebug("websocket read failed", sub.ID(), err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		err = sub.Send(ctx, "Message received: "+string(data))
		if err != nil {
			h.tel.ReportDebug("websocket echo failed", sub.ID(), err)
			return
		}
	}
}
