package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo stores records in a MongoDB collection, one document per record.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects to uri and uses database.collection.
func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		err = fmt.Errorf("ping mongo: %w", err)
		if derr := client.Disconnect(context.Background()); derr != nil {
			err = errors.Join(err, fmt.Errorf("disconnect: %w", derr))
		}
		return nil, err
	}
	return &Mongo{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func byID(id string) bson.D { return bson.D{{Key: "_id", Value: id}} }

func (m *Mongo) updateOne(ctx context.Context, op, id string, update bson.D) error {
	res, err := m.coll.UpdateOne(ctx, byID(id), update)
	if err != nil {
		return &Error{Op: op, ID: id, Err: err}
	}
	if res.MatchedCount == 0 {
		return &Error{Op: op, ID: id, Err: ErrNotFound}
	}
	return nil
}

// Get implements Store.
func (m *Mongo) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := m.coll.FindOne(ctx, byID(id)).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &Error{Op: "get", ID: id, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Op: "get", ID: id, Err: err}
	}
	return &rec, nil
}

// Create implements Store.
func (m *Mongo) Create(ctx context.Context, rec *Record) error {
	r := *rec
	if r.Status == "" {
		r.Status = StatusPending
	}
	r.UpdatedAt = time.Now().UTC()
	_, err := m.coll.InsertOne(ctx, r)
	if mongo.IsDuplicateKeyError(err) {
		return &Error{Op: "create", ID: rec.ID, Err: ErrExists}
	}
	if err != nil {
		return &Error{Op: "create", ID: rec.ID, Err: err}
	}
	return nil
}

// Restore implements Store.
func (m *Mongo) Restore(ctx context.Context, id string) error {
	return m.updateOne(ctx, "restore", id, bson.D{
		{Key: "$unset", Value: bson.D{{Key: "deleted_at", Value: ""}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	})
}

// SetStatus implements Store.
func (m *Mongo) SetStatus(ctx context.Context, id string, status Status) error {
	return m.updateOne(ctx, "set status", id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: status},
			{Key: "updated_at", Value: time.Now().UTC()},
		}},
	})
}

// Commit implements Store. The update is a single-document atomic
// find-and-modify, so the artifact and placement change together.
func (m *Mongo) Commit(ctx context.Context, id string, c Commit) (string, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "artifact_path", Value: c.ArtifactPath},
		{Key: "placement", Value: c.Placement},
		{Key: "digest", Value: c.Digest},
		{Key: "strategy", Value: c.Strategy},
		{Key: "status", Value: StatusEmbedded},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var prev Record
	err := m.coll.FindOneAndUpdate(ctx, byID(id), update, opts).Decode(&prev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", &Error{Op: "commit", ID: id, Err: ErrNotFound}
	}
	if err != nil {
		return "", &Error{Op: "commit", ID: id, Err: err}
	}
	return prev.ArtifactPath, nil
}

// SoftDelete implements Store.
func (m *Mongo) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return m.updateOne(ctx, "soft delete", id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "deleted_at", Value: now},
			{Key: "updated_at", Value: now},
		}},
	})
}
