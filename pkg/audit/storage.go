package audit

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Storage persists audit records.
type Storage interface {
	Store(ctx context.Context, record Record) error
}

// MongoStorage writes records to the audit collection of a database.
// Each tenant database carries its own collection; the central database
// has one for super-admin scope.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage creates storage over db's audit collection.
func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{coll: db.Collection(EntityName)}
}

func (s *MongoStorage) Store(ctx context.Context, record Record) error {
	if _, err := s.coll.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// MemoryStorage keeps records in memory for tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns a snapshot of everything stored so far.
func (s *MemoryStorage) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
