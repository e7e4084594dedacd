package feed

import "sync"

// MemoryBus is an in-process bus for single-instance mode and tests
type MemoryBus struct {
	mu      sync.RWMutex
	subs    map[string]map[int]func([]byte)
	nextSub int
	closed  bool
}

// NewMemoryBus creates an in-process change-feed bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]func([]byte))}
}

// Publish delivers the payload synchronously to every subscriber of the subject
func (b *MemoryBus) Publish(subject string, data []byte) error {
	b.mu.RLock()
	handlers := make([]func([]byte), 0, len(b.subs[subject]))
	for _, h := range b.subs[subject] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

// Subscribe registers a handler for the subject
func (b *MemoryBus) Subscribe(subject string, onMessage func([]byte), _ func(error)) (Unsubscribe, error) {
	b.mu.Lock()
	if b.subs[subject] == nil {
		b.subs[subject] = make(map[int]func([]byte))
	}
	id := b.nextSub
	b.nextSub++
	b.subs[subject][id] = onMessage
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[subject], id)
			b.mu.Unlock()
		})
	}, nil
}

// Close drops all subscriptions
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[int]func([]byte))
	b.closed = true
	return nil
}
