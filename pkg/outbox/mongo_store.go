package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoJobStore implements JobStore over the central database's job
// collection. Claiming relies on findOneAndUpdate's per-document
// atomicity: the status flip to processing and the read happen as one
// operation.
type MongoJobStore struct {
	coll *mongo.Collection
}

// NewMongoJobStore creates a job store over the central database.
func NewMongoJobStore(central *mongo.Database) *MongoJobStore {
	return &MongoJobStore{coll: central.Collection(CollectionName)}
}

func (s *MongoJobStore) Create(ctx context.Context, job *Job) error {
	if _, err := s.coll.InsertOne(ctx, job); err != nil {
		return fmt.Errorf("insert email job: %w", err)
	}
	return nil
}

func (s *MongoJobStore) ClaimNext(ctx context.Context, now time.Time) (*Job, error) {
	filter := bson.M{
		"status":          StatusPending,
		"next_attempt_at": bson.M{"$lte": now},
	}
	update := bson.M{"$set": bson.M{
		"status":     StatusProcessing,
		"claimed_at": now,
	}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetReturnDocument(options.After)

	var job Job
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoJobDue
	}
	if err != nil {
		return nil, fmt.Errorf("claim email job: %w", err)
	}
	return &job, nil
}

func (s *MongoJobStore) Complete(ctx context.Context, id uuid.UUID) error {
	return s.update(ctx, id, bson.M{
		"$set":   bson.M{"status": StatusCompleted},
		"$unset": bson.M{"claimed_at": ""},
	})
}

func (s *MongoJobStore) Retry(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time) error {
	return s.update(ctx, id, bson.M{
		"$set": bson.M{
			"status":          StatusPending,
			"attempts":        attempts,
			"last_error":      lastError,
			"next_attempt_at": nextAttemptAt,
		},
		"$unset": bson.M{"claimed_at": ""},
	})
}

func (s *MongoJobStore) Fail(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return s.update(ctx, id, bson.M{
		"$set": bson.M{
			"status":     StatusFailed,
			"attempts":   attempts,
			"last_error": lastError,
		},
		"$unset": bson.M{"claimed_at": ""},
	})
}

func (s *MongoJobStore) FindByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var job Job
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find email job: %w", err)
	}
	return &job, nil
}

func (s *MongoJobStore) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.coll.UpdateMany(ctx,
		bson.M{
			"status":     StatusProcessing,
			"claimed_at": bson.M{"$lt": cutoff},
		},
		bson.M{
			"$set":   bson.M{"status": StatusPending, "next_attempt_at": time.Now()},
			"$unset": bson.M{"claimed_at": ""},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale email jobs: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoJobStore) update(ctx context.Context, id uuid.UUID, update bson.M) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update email job: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrJobNotFound
	}
	return nil
}
