package ofstats

import "sync"

// recordEmitter fans live-matching records out to same-process subscribers.
// Dispatch is fire-and-forget: a subscriber with a full buffer misses the
// event and must fall back to the pull-based cache. No ack, no retry.
type recordEmitter struct {
	mu   sync.Mutex
	subs []chan ProfileEvent
}

const subscriberBuffer = 8

func (m *recordEmitter) subscribe() <-chan ProfileEvent {
	ch := make(chan ProfileEvent, subscriberBuffer)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

func (m *recordEmitter) emit(rec *ProfileRecord) {
	ev := ProfileEvent{Name: EventProfileIntercepted, Record: rec}
	m.mu.Lock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	m.mu.Unlock()
}
