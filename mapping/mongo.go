package mapping

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "registration_data"

type MongoStore struct {
	collection *mongo.Collection
}

var _ Store = &MongoStore{}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique index the create-if-absent contract of Record relies on
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "temporaryUuid", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("UniqueTemporaryUuid"),
	})
	if err != nil {
		return fmt.Errorf("unable to create registration data index: %w", err)
	}
	return nil
}

func (m *MongoStore) Lookup(ctx context.Context, temporaryUuid string) (*Record, error) {
	record := &Record{}
	err := m.collection.FindOne(ctx, bson.M{"temporaryUuid": temporaryUuid}).Decode(record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("unable to find registration data: %w", err)
	}
	return record, nil
}

func (m *MongoStore) Record(ctx context.Context, record Record) (*Record, bool, error) {
	selector := bson.M{"temporaryUuid": record.TemporaryUuid}
	update := bson.M{"$setOnInsert": bson.M{
		"assignedUuid": record.AssignedUuid,
		"submissionId": record.SubmissionId,
		"createdTime":  record.CreatedTime,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	existing := &Record{}
	err := m.collection.FindOneAndUpdate(ctx, selector, update, opts).Decode(existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &record, true, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		// another upsert inserted the document between our match and insert
		existing, err = m.Lookup(ctx, record.TemporaryUuid)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("unable to record registration data: %w", err)
	}
	return existing, false, nil
}

func (m *MongoStore) Release(ctx context.Context, temporaryUuid, assignedUuid string) error {
	_, err := m.collection.DeleteOne(ctx, bson.M{"temporaryUuid": temporaryUuid, "assignedUuid": assignedUuid})
	if err != nil {
		return fmt.Errorf("unable to release registration data: %w", err)
	}
	return nil
}
