package emit

// Emitter receives events from a run. Implementations must be safe for
// concurrent use: fan-out branches emit in parallel. Emit must not block
// for long; the engine calls it inline on the execution path.
type Emitter interface {
	Emit(event Event)
}

// Multi fans one event out to several emitters in order.
type Multi []Emitter

// Emit forwards the event to every member.
func (m Multi) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
