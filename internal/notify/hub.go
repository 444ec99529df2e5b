package notify

import (
	"context"
	"pricewatch-backend/internal/components/assert"
	"pricewatch-backend/internal/components/telemetry"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

const (
	report_hub_broadcast = "hub.broadcast"
	report_hub_size      = "hub.size"
)

// DefaultSendTimeout bounds a single Send so one stuck subscriber cannot stall a broadcast.
const DefaultSendTimeout = 10 * time.Second

// Subscriber is a live connection that wants to receive change notifications.
type Subscriber interface {
	// ID is unique for the lifetime of the process.
	ID() string
	Send(ctx context.Context, message string) error
}

// Hub is the process wide set of subscribers.
type Hub struct {
	subscribers *xsync.MapOf[string, Subscriber]
	sendTimeout time.Duration
	metrics     *telemetry.Metrics
	tel         telemetry.API
}

func NewHub(metrics *telemetry.Metrics, tel telemetry.API) *Hub {
	assert.NotNil(metrics)
	assert.NotNil(tel)
	return &Hub{
		subscribers: xsync.NewMapOf[string, Subscriber](),
		sendTimeout: DefaultSendTimeout,
		metrics:     metrics,
		tel:         telemetry.NewScopedAPI("notify", tel),
	}
}

// SetSendTimeout overrides DefaultSendTimeout, a non-positive value disables the timeout.
func (h *Hub) SetSendTimeout(d time.Duration) {
	h.sendTimeout = d
}

// Register adds sub to the set, it must only be called once the transport is ready to send.
func (h *Hub) Register(sub Subscriber) {
	assert.NotNil(sub)
	_, loaded := h.subscribers.LoadOrStore(sub.ID(), sub)
	if loaded {
		return
	}
	h.sizeChanged()
	h.tel.ReportDebug("registered subscriber", sub.ID())
}

// Unregister removes sub from the set, removing an absent subscriber is a no-op.
func (h *Hub) Unregister(sub Subscriber) {
	_, loaded := h.subscribers.LoadAndDelete(sub.ID())
	if !loaded {
		return
	}
	h.sizeChanged()
	h.tel.ReportDebug("unregistered subscriber", sub.ID())
}

// Len returns the current number of subscribers.
func (h *Hub) Len() int {
	return h.subscribers.Size()
}

// Broadcast sends message to every current subscriber one after the other. A subscriber
// whose Send fails is removed, failures never reach the caller.
func (h *Hub) Broadcast(ctx context.Context, message string) {
	var members []Subscriber
	h.subscribers.Range(func(_ string, sub Subscriber) bool {
		members = append(members, sub)
		return true
	})

	for _, sub := range members {
		err := h.send(ctx, sub, message)
		if err == nil {
			continue
		}
		h.metrics.DeliveryFailures.Inc()
		h.tel.ReportWarning(report_hub_broadcast, err, sub.ID())
		h.Unregister(sub)
	}
}

func (h *Hub) send(ctx context.Context, sub Subscriber, message string) error {
	if h.sendTimeout <= 0 {
		return sub.Send(ctx, message)
	}
	ctx, cancel := context.WithTimeout(ctx, h.sendTimeout)
	defer cancel()
	return sub.Send(ctx, message)
}

func (h *Hub) sizeChanged() {
	size := h.subscribers.Size()
	h.metrics.Subscribers.Set(float64(size))
	h.tel.ReportCount(report_hub_size, int64(size))
}
