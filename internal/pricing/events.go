package pricing

import (
	"context"
	"fmt"
	"pricewatch-backend/internal/components/telemetry"
)

type ChangeKind int

const (
	Added ChangeKind = iota
	Updated
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "Added"
	case Updated:
		return "Updated"
	case Deleted:
		return "Deleted"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// label is the value of the "kind" metric label.
func (k ChangeKind) label() string {
	switch k {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// ChangeEvent describes one mutation of the price table. Name and Price are the values
// after the mutation and are left empty for Deleted.
type ChangeEvent struct {
	Kind  ChangeKind
	ID    int64
	Name  string
	Price int64
}

// Message renders the event the way subscribers receive it.
func (e ChangeEvent) Message() string {
	if e.Kind == Deleted {
		return fmt.Sprintf("Deleted: Item with ID %d", e.ID)
	}
	return fmt.Sprintf("%s: %s with price %d", e.Kind, e.Name, e.Price)
}

// Broadcaster delivers a message to every current subscriber, *notify.Hub implements it.
type Broadcaster interface {
	Broadcast(ctx context.Context, message string)
}

// Announce broadcasts events in order and counts them.
func Announce(ctx context.Context, b Broadcaster, metrics *telemetry.Metrics, events []ChangeEvent) {
	for _, e := range events {
		metrics.ChangeEvents.WithLabelValues(e.Kind.label()).Inc()
		b.Broadcast(ctx, e.Message())
	}
}
