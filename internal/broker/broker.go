// Package broker fans application change events out to live subscribers.
package broker

import (
	"context"
	"time"
)

// Kind of change that produced an Event.
type Kind string

const (
	KindCreated       Kind = "created"
	KindStatusChanged Kind = "status_changed"
)

// Event announces that the application set changed. Subscribers re-read the
// store on every event, so the payload only identifies what moved.
type Event struct {
	Kind          Kind      `json:"kind"`
	ApplicationID string    `json:"applicationId"`
	Status        string    `json:"status"`
	At            time.Time `json:"at"`
}

// Broker publishes change events to every current subscriber.
type Broker interface {
	// Publish delivers ev to all subscribers registered at call time.
	Publish(ctx context.Context, ev Event) error

	// Subscribe registers a subscriber. The returned channel is closed once
	// cancel is called or ctx ends. Delivery coalesces: a slow subscriber sees
	// at least one event after the last change, not every event.
	Subscribe(ctx context.Context) (events <-chan Event, cancel func(), err error)

	Close() error
}

// offer performs a non-blocking coalescing send.
func offer(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
	}
}
