package livestatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSStore persists live status entries in a JetStream KV bucket.
// Watch-backed subscriptions give push delivery without polling.
type NATSStore struct {
	nc  *nats.Conn
	kv  nats.KeyValue
	now func() time.Time
}

// NewNATSStore connects to NATS and opens (or creates) the live status bucket
func NewNATSStore(url, bucket string) (*NATSStore, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create live status bucket %q: %w", bucket, err)
		}
	}

	return &NATSStore{nc: nc, kv: kv, now: time.Now}, nil
}

// SetStatus fully overwrites the driver's entry
func (s *NATSStore) SetStatus(_ context.Context, driverID, driverName string, status DriverStatus) error {
	now := s.now().Unix()
	entry := Entry{
		DriverID:    driverID,
		DriverName:  driverName,
		Status:      status,
		LastUpdated: now,
	}
	if status != StatusOffline {
		sessionStart := now
		entry.SessionStart = &sessionStart
	}
	return s.put(driverID, entry)
}

// UpdateStatus overwrites only status and last-updated. The current entry is
// read first to preserve name and session start; the write itself is a plain
// put, not a CAS, since last-write-wins is acceptable for live indicators.
func (s *NATSStore) UpdateStatus(ctx context.Context, driverID string, status DriverStatus) error {
	current, err := s.Get(ctx, driverID)
	if err != nil {
		return err
	}
	entry := Entry{DriverID: driverID}
	if current != nil {
		entry = *current
	}
	entry.Status = status
	entry.LastUpdated = s.now().Unix()
	return s.put(driverID, entry)
}

// Remove forces the entry to offline without deleting the key
func (s *NATSStore) Remove(ctx context.Context, driverID string) error {
	current, err := s.Get(ctx, driverID)
	if err != nil {
		return err
	}
	entry := Entry{DriverID: driverID}
	if current != nil {
		entry = *current
	}
	entry.Status = StatusOffline
	entry.LastUpdated = s.now().Unix()
	entry.SessionStart = nil
	return s.put(driverID, entry)
}

// Get returns the driver's entry, or nil when the key is absent
func (s *NATSStore) Get(_ context.Context, driverID string) (*Entry, error) {
	kvEntry, err := s.kv.Get(driverID)
	if err != nil {
		if err == nats.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get live status: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(kvEntry.Value(), &entry); err != nil {
		return nil, fmt.Errorf("decode live status: %w", err)
	}
	return &entry, nil
}

// GetAll returns a snapshot of every entry in the bucket
func (s *NATSStore) GetAll(_ context.Context) ([]Entry, error) {
	keys, err := s.kv.Keys()
	if err != nil {
		if err == nats.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list live status keys: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		kvEntry, err := s.kv.Get(key)
		if err != nil {
			if err == nats.ErrKeyNotFound {
				continue // Deleted between Keys and Get
			}
			return nil, fmt.Errorf("get live status %q: %w", key, err)
		}
		var entry Entry
		if err := json.Unmarshal(kvEntry.Value(), &entry); err != nil {
			return nil, fmt.Errorf("decode live status %q: %w", key, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Subscribe watches one driver's key
func (s *NATSStore) Subscribe(_ context.Context, driverID string, onChange func(Entry), onError func(error)) (Unsubscribe, error) {
	watcher, err := s.kv.Watch(driverID)
	if err != nil {
		return nil, fmt.Errorf("watch live status %q: %w", driverID, err)
	}
	go s.pump(watcher, onChange, onError)
	return func() { _ = watcher.Stop() }, nil
}

// SubscribeAll watches the whole bucket
func (s *NATSStore) SubscribeAll(_ context.Context, onChange func(Entry), onError func(error)) (Unsubscribe, error) {
	watcher, err := s.kv.WatchAll()
	if err != nil {
		return nil, fmt.Errorf("watch live status bucket: %w", err)
	}
	go s.pump(watcher, onChange, onError)
	return func() { _ = watcher.Stop() }, nil
}

// Close closes the underlying NATS connection
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}

func (s *NATSStore) put(driverID string, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode live status: %w", err)
	}
	if _, err := s.kv.Put(driverID, body); err != nil {
		return fmt.Errorf("put live status: %w", err)
	}
	return nil
}

// pump forwards watcher updates to the change callback. The nil marker ending
// the initial replay is skipped; decode failures go to the error callback and
// the stream stays alive.
func (s *NATSStore) pump(watcher nats.KeyWatcher, onChange func(Entry), onError func(error)) {
	for kvEntry := range watcher.Updates() {
		if kvEntry == nil || kvEntry.Operation() != nats.KeyValuePut {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(kvEntry.Value(), &entry); err != nil {
			if onError != nil {
				onError(fmt.Errorf("decode live status %q: %w", kvEntry.Key(), err))
			}
			continue
		}
		onChange(entry)
	}
}
