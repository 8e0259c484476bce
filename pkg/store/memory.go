package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore implements Store in memory for tests and local
// development. Documents are matched the same way the Mongo
// implementation matches them: "_id" against the entity identifier,
// everything else against declared fields.
type MemoryStore[T Entity] struct {
	mu       sync.RWMutex
	entities map[string]T
	order    []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore[T Entity]() *MemoryStore[T] {
	return &MemoryStore[T]{entities: make(map[string]T)}
}

func (s *MemoryStore[T]) FindByID(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entities[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return entity, nil
}

func (s *MemoryStore[T]) FindOne(ctx context.Context, filter Filter) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if matches(s.entities[id], filter) {
			return s.entities[id], nil
		}
	}
	var zero T
	return zero, ErrNotFound
}

func (s *MemoryStore[T]) Find(ctx context.Context, filter Filter) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []T
	for _, id := range s.order {
		if matches(s.entities[id], filter) {
			out = append(out, s.entities[id])
		}
	}
	return out, nil
}

func (s *MemoryStore[T]) Insert(ctx context.Context, entity T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := entity.EntityID()
	if _, exists := s.entities[id]; exists {
		return ErrDuplicateID
	}
	s.entities[id] = entity
	s.order = append(s.order, id)
	return nil
}

func (s *MemoryStore[T]) Save(ctx context.Context, entity T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := entity.EntityID()
	if _, exists := s.entities[id]; !exists {
		return ErrNotFound
	}
	s.entities[id] = entity
	return nil
}

func (s *MemoryStore[T]) UpdateOne(ctx context.Context, filter Filter, set map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if matches(s.entities[id], filter) {
			setter, ok := any(s.entities[id]).(FieldSetter)
			if !ok {
				return fmt.Errorf("store: %T does not implement FieldSetter", s.entities[id])
			}
			updated := setter.WithFields(set)
			s.entities[id] = updated.(T)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore[T]) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[id]; !exists {
		return ErrNotFound
	}
	delete(s.entities, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

func (s *MemoryStore[T]) DeleteOne(ctx context.Context, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if matches(s.entities[id], filter) {
			delete(s.entities, id)
			s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
			return nil
		}
	}
	return ErrNotFound
}

// FieldSetter lets the in-memory store apply UpdateOne field sets to
// value-type entities. The Mongo implementation does not need it since
// $set operates server-side.
type FieldSetter interface {
	WithFields(set map[string]any) Entity
}

func matches(entity Entity, filter Filter) bool {
	fields := entity.Fields()
	for key, want := range filter {
		if key == "_id" {
			if entity.EntityID() != want {
				return false
			}
			continue
		}
		if fields[key] != want {
			return false
		}
	}
	return true
}
