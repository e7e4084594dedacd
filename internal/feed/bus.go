// Package feed carries change notifications between the write paths and
// push subscribers.
//
// Every document-store read path is exposed both as a one-shot fetch and as a
// push subscription. The bus carries the "something changed" signal per
// collection; subscription wrappers in the services re-fetch the matching
// ordered set on each notification.
package feed

import "encoding/json"

// Subjects, one per collection.
const (
	SubjectEvents  = "changes.events"
	SubjectAlerts  = "changes.alerts"
	SubjectDrivers = "changes.drivers"
	SubjectAudit   = "changes.audit"
)

// Change describes a single document mutation
type Change struct {
	Collection string `json:"collection"`
	Op         string `json:"op"` // created, updated
	ID         string `json:"id"`
}

// Encode serializes a change for publishing
func (c Change) Encode() []byte {
	body, _ := json.Marshal(c)
	return body
}

// DecodeChange parses a change notification payload
func DecodeChange(data []byte) (Change, error) {
	var c Change
	err := json.Unmarshal(data, &c)
	return c, err
}

// Unsubscribe detaches a subscription; it must be called exactly once when
// the consumer is torn down
type Unsubscribe func()

// Bus is the change-notification transport. Message handlers receive the raw
// payload; stream-level errors are delivered through the error callback so
// the subscription itself stays alive.
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, onMessage func(data []byte), onError func(error)) (Unsubscribe, error)
	Close() error
}
