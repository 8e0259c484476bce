package audit

import "time"

// Action is the kind of persistence operation a record describes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// EntityName is the entity-type name of audit records themselves.
// Stores over this entity are never audited.
const EntityName = "audit_logs"

// Change holds the old and new value of one field. Create records
// carry only New; update records carry both.
type Change struct {
	Old any `bson:"old,omitempty" json:"old,omitempty"`
	New any `bson:"new,omitempty" json:"new,omitempty"`
}

// DiffUnavailableKey marks a change set whose pre-write snapshot could
// not be obtained. The record still exists: partial observability is
// preferred over total loss.
const DiffUnavailableKey = "_diff"

// Record is one attributed audit log entry. Records are append-only:
// they are never updated or deleted.
type Record struct {
	ID        string            `bson:"_id" json:"id"`
	ActorID   string            `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	Action    Action            `bson:"action" json:"action"`
	Entity    string            `bson:"entity" json:"entity"`
	EntityID  string            `bson:"entity_id" json:"entity_id"`
	Changes   map[string]Change `bson:"changes,omitempty" json:"changes,omitempty"`
	IP        string            `bson:"ip,omitempty" json:"ip,omitempty"`
	UserAgent string            `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	Method    string            `bson:"method,omitempty" json:"method,omitempty"`
	URL       string            `bson:"url,omitempty" json:"url,omitempty"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
}
