package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"rollcall/internal/student/models"
	"rollcall/pkg/platform/sentinel"
)

// MongoStore keeps one document per student, keyed by uid in _id.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongo wraps a collection, typically "Students".
func NewMongo(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// ConnectMongo dials uri and pings the primary.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

func (s *MongoStore) FindByUID(ctx context.Context, uid string) (*models.Profile, error) {
	var p models.Profile
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: uid}}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile by uid: %w", err)
	}
	return &p, nil
}

// CreateIfAbsent relies on the unique _id index; a duplicate insert is
// reported as sentinel.ErrConflict.
func (s *MongoStore) CreateIfAbsent(ctx context.Context, p *models.Profile) error {
	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *MongoStore) TouchLastLogin(ctx context.Context, uid string, at time.Time) (*models.Profile, error) {
	return s.findAndSet(ctx, uid, bson.D{{Key: "lastLoginTime", Value: at}})
}

// ApplyUpdate $sets only the supplied fields. Explicit nulls are stored as
// BSON null.
func (s *MongoStore) ApplyUpdate(ctx context.Context, uid string, update models.ProfileUpdate, at time.Time) (*models.Profile, error) {
	fields := update.Fields()
	set := make(bson.D, 0, len(fields)+1)
	for _, name := range mutableOrder {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if v == nil {
			set = append(set, bson.E{Key: name, Value: nil})
			continue
		}
		set = append(set, bson.E{Key: name, Value: *v})
	}
	set = append(set, bson.E{Key: "lastUpdated", Value: at})
	return s.findAndSet(ctx, uid, set)
}

func (s *MongoStore) findAndSet(ctx context.Context, uid string, set bson.D) (*models.Profile, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Profile
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: uid}},
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &p, nil
}
