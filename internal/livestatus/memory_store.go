package livestatus

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps live status entries in process memory for
// single-instance mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[string]Entry
	subs    map[int]*memorySub
	nextSub int
}

type memorySub struct {
	driverID string // empty subscribes to all drivers
	onChange func(Entry)
}

// NewMemoryStore creates an in-memory live status store.
// A nil now function defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:     now,
		entries: make(map[string]Entry),
		subs:    make(map[int]*memorySub),
	}
}

// SetStatus fully overwrites the driver's entry
func (s *MemoryStore) SetStatus(_ context.Context, driverID, driverName string, status DriverStatus) error {
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

	s.mu.Lock()
	s.entries[driverID] = entry
	subs := s.matchingSubs(driverID)
	s.mu.Unlock()

	notify(subs, entry)
	return nil
}

// UpdateStatus overwrites only status and last-updated, preserving the
// session start set by a previous SetStatus
func (s *MemoryStore) UpdateStatus(_ context.Context, driverID string, status DriverStatus) error {
	s.mu.Lock()
	entry := s.entries[driverID]
	entry.DriverID = driverID
	entry.Status = status
	entry.LastUpdated = s.now().Unix()
	s.entries[driverID] = entry
	subs := s.matchingSubs(driverID)
	s.mu.Unlock()

	notify(subs, entry)
	return nil
}

// Remove forces the entry to offline without deleting the key
func (s *MemoryStore) Remove(_ context.Context, driverID string) error {
	s.mu.Lock()
	entry := s.entries[driverID]
	entry.DriverID = driverID
	entry.Status = StatusOffline
	entry.LastUpdated = s.now().Unix()
	entry.SessionStart = nil
	s.entries[driverID] = entry
	subs := s.matchingSubs(driverID)
	s.mu.Unlock()

	notify(subs, entry)
	return nil
}

// Get returns the driver's entry, or nil when absent
func (s *MemoryStore) Get(_ context.Context, driverID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[driverID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// GetAll returns a snapshot of every entry
func (s *MemoryStore) GetAll(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	return entries, nil
}

// Subscribe delivers every change to one driver's entry
func (s *MemoryStore) Subscribe(_ context.Context, driverID string, onChange func(Entry), _ func(error)) (Unsubscribe, error) {
	return s.addSub(driverID, onChange), nil
}

// SubscribeAll delivers every change to any entry
func (s *MemoryStore) SubscribeAll(_ context.Context, onChange func(Entry), _ func(error)) (Unsubscribe, error) {
	return s.addSub("", onChange), nil
}

// Close releases memory store resources
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[int]*memorySub)
	return nil
}

func (s *MemoryStore) addSub(driverID string, onChange func(Entry)) Unsubscribe {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = &memorySub{driverID: driverID, onChange: onChange}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// matchingSubs must be called with the lock held
func (s *MemoryStore) matchingSubs(driverID string) []*memorySub {
	subs := make([]*memorySub, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.driverID == "" || sub.driverID == driverID {
			subs = append(subs, sub)
		}
	}
	return subs
}

// notify invokes callbacks outside the store lock so a subscriber can call
// back into the store
func notify(subs []*memorySub, entry Entry) {
	for _, sub := range subs {
		sub.onChange(entry)
	}
}
