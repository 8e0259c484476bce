package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoStore implements Store over a MongoDB collection. Documents are
// stored with the entity's EntityID as _id.
type MongoStore[T Entity] struct {
	coll *mongo.Collection
}

// NewMongoStore creates a store over the named collection of db.
func NewMongoStore[T Entity](db *mongo.Database, collection string) *MongoStore[T] {
	return &MongoStore[T]{coll: db.Collection(collection)}
}

func (s *MongoStore[T]) FindByID(ctx context.Context, id string) (T, error) {
	return s.FindOne(ctx, Filter{"_id": id})
}

func (s *MongoStore[T]) FindOne(ctx context.Context, filter Filter) (T, error) {
	var entity T
	err := s.coll.FindOne(ctx, toBSON(filter)).Decode(&entity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity, ErrNotFound
	}
	if err != nil {
		return entity, fmt.Errorf("find one in %s: %w", s.coll.Name(), err)
	}
	return entity, nil
}

func (s *MongoStore[T]) Find(ctx context.Context, filter Filter) ([]T, error) {
	cursor, err := s.coll.Find(ctx, toBSON(filter))
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", s.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var entities []T
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, fmt.Errorf("decode results from %s: %w", s.coll.Name(), err)
	}
	return entities, nil
}

func (s *MongoStore[T]) Insert(ctx context.Context, entity T) error {
	if _, err := s.coll.InsertOne(ctx, entity); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert into %s: %w", s.coll.Name(), err)
	}
	return nil
}

func (s *MongoStore[T]) Save(ctx context.Context, entity T) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": entity.EntityID()}, entity)
	if err != nil {
		return fmt.Errorf("save in %s: %w", s.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore[T]) UpdateOne(ctx context.Context, filter Filter, set map[string]any) error {
	res, err := s.coll.UpdateOne(ctx, toBSON(filter), bson.M{"$set": bson.M(set)})
	if err != nil {
		return fmt.Errorf("update one in %s: %w", s.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore[T]) DeleteByID(ctx context.Context, id string) error {
	return s.DeleteOne(ctx, Filter{"_id": id})
}

func (s *MongoStore[T]) DeleteOne(ctx context.Context, filter Filter) error {
	res, err := s.coll.DeleteOne(ctx, toBSON(filter))
	if err != nil {
		return fmt.Errorf("delete from %s: %w", s.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func toBSON(filter Filter) bson.M {
	m := make(bson.M, len(filter))
	for k, v := range filter {
		m[k] = v
	}
	return m
}
