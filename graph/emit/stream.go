package emit

import "sync"

// StreamEmitter fans a run's events out to live subscribers over
// channels. The SSE layer subscribes before starting a run and translates
// engine events into wire events.
//
// Delivery is best-effort: a subscriber that stops draining its channel
// loses events rather than blocking the run. Channel capacity absorbs
// normal bursts.
type StreamEmitter struct {
	mu       sync.RWMutex
	subs     map[string][]chan Event
	capacity int
}

// NewStreamEmitter creates a StreamEmitter whose subscriber channels hold
// up to capacity undelivered events. capacity <= 0 defaults to 256.
func NewStreamEmitter(capacity int) *StreamEmitter {
	if capacity <= 0 {
		capacity = 256
	}
	return &StreamEmitter{
		subs:     make(map[string][]chan Event),
		capacity: capacity,
	}
}

// Subscribe registers for a run's events. The returned channel closes on
// Unsubscribe. Subscribe before the run starts or early events are lost.
func (s *StreamEmitter) Subscribe(runID string) <-chan Event {
	ch := make(chan Event, s.capacity)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[runID] = append(s.subs[runID], ch)
	return ch
}

// Unsubscribe removes every subscription for the run and closes the
// channels. Call it once the run finishes or the client disconnects.
func (s *StreamEmitter) Unsubscribe(runID string) {
	s.mu.Lock()
	channels := s.subs[runID]
	delete(s.subs, runID)
	s.mu.Unlock()

	for _, ch := range channels {
		close(ch)
	}
}

// Emit delivers the event to the run's subscribers without blocking;
// events to saturated subscribers are dropped.
func (s *StreamEmitter) Emit(event Event) {
	s.mu.RLock()
	channels := s.subs[event.RunID]
	s.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
}
