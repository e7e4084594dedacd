// Package livestatus manages per-driver live status entries in a realtime
// key-value store.
//
// Entries are ephemeral, overwritten in place, and never versioned: a status
// is a stale-tolerant live indicator, not a ledger. Concurrent writers to the
// same driver race on last-write-wins, matching the store's native single-key
// overwrite semantics. No compare-and-swap is used or required.
package livestatus

import "context"

// DriverStatus represents a driver's current monitoring state
type DriverStatus string

const (
	StatusAlert    DriverStatus = "alert"
	StatusDrowsy   DriverStatus = "drowsy"
	StatusSleeping DriverStatus = "sleeping"
	StatusOffline  DriverStatus = "offline"
)

// IsValid reports whether the status is a recognized value
func (s DriverStatus) IsValid() bool {
	switch s {
	case StatusAlert, StatusDrowsy, StatusSleeping, StatusOffline:
		return true
	}
	return false
}

// Entry is one driver's live status. No history is retained; every status
// change overwrites the whole entry or a subset of its fields.
type Entry struct {
	DriverID     string       `json:"driver_id"`
	DriverName   string       `json:"driver_name"`
	Status       DriverStatus `json:"status"`
	LastUpdated  int64        `json:"last_updated"`  // Unix seconds
	SessionStart *int64       `json:"session_start"` // Unix seconds, nil when offline
}

// Unsubscribe detaches a subscription. The consumer must call it exactly once
// when the subscribing view is torn down, or the subscription keeps delivering
// updates indefinitely.
type Unsubscribe func()

// Store provides live status persistence and fan-out.
//
// SetStatus fully overwrites the entry, stamping LastUpdated to now and
// SessionStart to now unless the status is offline. UpdateStatus is the
// cheaper partial write: only status and LastUpdated change, SessionStart is
// left untouched. Remove neutralizes the entry to offline without deleting
// the key.
//
// Subscription errors are delivered through the error callback rather than
// terminating the stream; Get returns (nil, nil) for absent drivers.
type Store interface {
	SetStatus(ctx context.Context, driverID, driverName string, status DriverStatus) error
	UpdateStatus(ctx context.Context, driverID string, status DriverStatus) error
	Remove(ctx context.Context, driverID string) error
	Get(ctx context.Context, driverID string) (*Entry, error)
	GetAll(ctx context.Context) ([]Entry, error)
	Subscribe(ctx context.Context, driverID string, onChange func(Entry), onError func(error)) (Unsubscribe, error)
	SubscribeAll(ctx context.Context, onChange func(Entry), onError func(error)) (Unsubscribe, error)
	Close() error
}
