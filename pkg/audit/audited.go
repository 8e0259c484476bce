package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"

	"github.com/zenvoice/backoffice/pkg/store"
)

// Audited decorates a store.Store with change tracking. Every write
// that succeeds produces one audit record; failed writes produce none.
// Snapshotting and diffing errors degrade the record, never the write.
type Audited[T store.Entity] struct {
	inner    store.Store[T]
	recorder *Recorder
}

// NewAudited wraps a store with the audit decorator.
func NewAudited[T store.Entity](inner store.Store[T], recorder *Recorder) *Audited[T] {
	return &Audited[T]{inner: inner, recorder: recorder}
}

func (a *Audited[T]) FindByID(ctx context.Context, id string) (T, error) {
	return a.inner.FindByID(ctx, id)
}

func (a *Audited[T]) FindOne(ctx context.Context, filter store.Filter) (T, error) {
	return a.inner.FindOne(ctx, filter)
}

func (a *Audited[T]) Find(ctx context.Context, filter store.Filter) ([]T, error) {
	return a.inner.Find(ctx, filter)
}

// Insert persists a new entity and records a create with every declared
// field as a new value. Create records never carry old values.
func (a *Audited[T]) Insert(ctx context.Context, entity T) error {
	if err := a.inner.Insert(ctx, entity); err != nil {
		return err
	}

	changes := make(map[string]Change)
	for field, value := range entity.Fields() {
		changes[field] = Change{New: value}
	}
	a.recorder.RecordDetached(ctx, ActionCreate, entity.EntityName(), entity.EntityID(), changes)
	return nil
}

// Save replaces an existing entity's persisted state. Old values come
// from re-reading the database, not from in-memory prior state, since
// the in-memory copy could be stale under concurrent writers. A save
// that changes nothing produces no record.
func (a *Audited[T]) Save(ctx context.Context, entity T) error {
	old, oldErr := a.inner.FindByID(ctx, entity.EntityID())

	if err := a.inner.Save(ctx, entity); err != nil {
		return err
	}

	var changes map[string]Change
	if oldErr != nil {
		changes = diffUnavailable()
	} else {
		changes = diff(old.Fields(), entity.Fields())
		if len(changes) == 0 {
			return nil
		}
	}
	a.recorder.RecordDetached(ctx, ActionUpdate, entity.EntityName(), entity.EntityID(), changes)
	return nil
}

// UpdateOne applies an atomic field update to the first match. The
// matching document's full state is snapshotted before the write and
// re-fetched after it; the record carries a field-by-field diff over
// the union of both snapshots. When the pre-snapshot cannot be
// obtained the update still proceeds and the record degrades to a
// sentinel change set instead of being skipped.
func (a *Audited[T]) UpdateOne(ctx context.Context, filter store.Filter, set map[string]any) error {
	pre, preErr := a.inner.FindOne(ctx, filter)

	if err := a.inner.UpdateOne(ctx, filter, set); err != nil {
		return err
	}

	var zero T
	entityName := zero.EntityName()

	if preErr != nil {
		a.recorder.RecordDetached(ctx, ActionUpdate, entityName, "", diffUnavailable())
		return nil
	}

	entityID := pre.EntityID()
	post, postErr := a.inner.FindByID(ctx, entityID)

	var changes map[string]Change
	if postErr != nil {
		changes = diffUnavailable()
	} else {
		changes = diff(pre.Fields(), post.Fields())
		if len(changes) == 0 {
			return nil
		}
	}
	a.recorder.RecordDetached(ctx, ActionUpdate, entityName, entityID, changes)
	return nil
}

// DeleteByID removes a document and records a delete. Delete records
// carry identity only, no change set.
func (a *Audited[T]) DeleteByID(ctx context.Context, id string) error {
	var zero T
	if err := a.inner.DeleteByID(ctx, id); err != nil {
		return err
	}
	a.recorder.RecordDetached(ctx, ActionDelete, zero.EntityName(), id, nil)
	return nil
}

// DeleteOne removes the first match. The identifier is captured before
// the delete, since afterward the document is gone.
func (a *Audited[T]) DeleteOne(ctx context.Context, filter store.Filter) error {
	var zero T
	var entityID string
	if pre, err := a.inner.FindOne(ctx, filter); err == nil {
		entityID = pre.EntityID()
	}

	if err := a.inner.DeleteOne(ctx, filter); err != nil {
		return err
	}
	a.recorder.RecordDetached(ctx, ActionDelete, zero.EntityName(), entityID, nil)
	return nil
}

// diff returns the fields whose serialized old and new values differ.
// Unchanged fields are never emitted.
func diff(old, current map[string]any) map[string]Change {
	changes := make(map[string]Change)

	for field, newValue := range current {
		oldValue, existed := old[field]
		if existed && equalValues(oldValue, newValue) {
			continue
		}
		if !existed {
			changes[field] = Change{New: newValue}
			continue
		}
		changes[field] = Change{Old: oldValue, New: newValue}
	}
	for field, oldValue := range old {
		if _, stillThere := current[field]; !stillThere {
			changes[field] = Change{Old: oldValue}
		}
	}
	return changes
}

func diffUnavailable() map[string]Change {
	return map[string]Change{DiffUnavailableKey: {New: "unavailable"}}
}

// equalValues compares by serialized form so that numerically equal
// values surviving a database round-trip do not show up as changes.
func equalValues(a, b any) bool {
	aj, aerr := json.Marshal(a)
	bj, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(aj, bj)
}
