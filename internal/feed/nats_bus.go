package feed

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATSBus carries change notifications over NATS core pub/sub, so multiple
// service instances see each other's writes.
//
// Async subscription errors (e.g. slow-consumer drops) arrive on the
// connection-level error handler; the bus routes them to the error callback
// registered for the affected subscription, keeping the data and error
// channels separate.
type NATSBus struct {
	nc *nats.Conn

	mu       sync.RWMutex
	onErrors map[*nats.Subscription]func(error)
}

// NewNATSBus connects to NATS
func NewNATSBus(url string) (*NATSBus, error) {
	b := &NATSBus{onErrors: make(map[*nats.Subscription]func(error))}

	nc, err := nats.Connect(url, nats.ErrorHandler(b.dispatchError))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	b.nc = nc
	return b, nil
}

// Publish sends the payload on the subject
func (b *NATSBus) Publish(subject string, data []byte) error {
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for the subject
func (b *NATSBus) Subscribe(subject string, onMessage func([]byte), onError func(error)) (Unsubscribe, error) {
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		onMessage(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	if onError != nil {
		b.mu.Lock()
		b.onErrors[sub] = onError
		b.mu.Unlock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.onErrors, sub)
			b.mu.Unlock()
			_ = sub.Unsubscribe()
		})
	}, nil
}

// Close closes the underlying NATS connection
func (b *NATSBus) Close() error {
	b.nc.Close()
	return nil
}

func (b *NATSBus) dispatchError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if sub == nil || err == nil {
		return
	}
	b.mu.RLock()
	onError := b.onErrors[sub]
	b.mu.RUnlock()
	if onError != nil {
		onError(err)
	}
}
