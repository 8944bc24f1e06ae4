package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/audioscribe/internal/pipeline"
)

// EventBroker fans pipeline progress events out to SSE subscribers. The
// pipeline manager publishes through its progress callback; each connected
// client subscribes to one project.
type EventBroker struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan pipeline.ProgressEvent]struct{}
}

// NewEventBroker creates an empty broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		subs: make(map[uuid.UUID]map[chan pipeline.ProgressEvent]struct{}),
	}
}

// Publish delivers an event to every subscriber of its project. Slow
// subscribers have events dropped rather than blocking the pipeline.
func (b *EventBroker) Publish(event pipeline.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[event.ProjectID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a listener for one project's events. The returned
// cancel func must be called when the subscriber disconnects.
func (b *EventBroker) Subscribe(projectID uuid.UUID) (<-chan pipeline.ProgressEvent, func()) {
	ch := make(chan pipeline.ProgressEvent, 16)

	b.mu.Lock()
	if b.subs[projectID] == nil {
		b.subs[projectID] = make(map[chan pipeline.ProgressEvent]struct{})
	}
	b.subs[projectID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[projectID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, projectID)
			}
		}
	}
	return ch, cancel
}
