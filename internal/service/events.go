package service

import (
	"go-proposal-review/internal/ws"
)

// EventPublisher receives workflow events after their transaction commits.
// *ws.Hub satisfies it.
type EventPublisher interface {
	Publish(event ws.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(ws.Event) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
