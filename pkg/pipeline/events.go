package pipeline

import (
	"github.com/graphscribe/backend/pkg/model"
)

// StatusListener receives pipeline status events. Delivery is synchronous
// and in-process; listeners must not block.
type StatusListener func(event model.StatusEvent)

// OnStatus registers a listener for status events emitted by every
// subsequent Process call.
func (p *Pipeline) OnStatus(listener StatusListener) {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()
	p.listeners = append(p.listeners, listener)
}

func (p *Pipeline) emit(documentID string, phase model.Phase, message string) {
	event := model.StatusEvent{
		DocumentID: documentID,
		Phase:      phase,
		Progress:   phase.Progress(),
		Message:    message,
	}

	p.listenerMu.Lock()
	listeners := make([]StatusListener, len(p.listeners))
	copy(listeners, p.listeners)
	p.listenerMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}
