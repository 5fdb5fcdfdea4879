package queuedata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/muzima/registration-worker/issues"
	"github.com/muzima/registration-worker/queue"
)

const ErrorsCollectionName = "queue_data_errors"

// ErrorRecord is a submission which failed with fatal issues. It is kept until it is replayed successfully.
type ErrorRecord struct {
	SubmissionId  string         `bson:"submissionId"`
	Discriminator string         `bson:"discriminator"`
	Payload       string         `bson:"payload"`
	Source        string         `bson:"source,omitempty"`
	Messages      []string       `bson:"messages"`
	Issues        []issues.Issue `bson:"issues"`
	FailedTime    time.Time      `bson:"failedTime"`
}

type ErrorStore interface {
	Save(ctx context.Context, record ErrorRecord) error
	List(ctx context.Context, discriminator string, limit int64) ([]ErrorRecord, error)
	Delete(ctx context.Context, submissionId string) error
}

type MongoErrorStore struct {
	collection *mongo.Collection
}

var _ ErrorStore = &MongoErrorStore{}

func NewMongoErrorStore(db *mongo.Database) *MongoErrorStore {
	return &MongoErrorStore{collection: db.Collection(ErrorsCollectionName)}
}

func (m *MongoErrorStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "submissionId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("UniqueSubmissionId"),
		},
		{
			Keys:    bson.D{{Key: "discriminator", Value: 1}, {Key: "failedTime", Value: 1}},
			Options: options.Index().SetName("DiscriminatorFailedTime"),
		},
	})
	return err
}

// Save replaces the previous failure of the same submission
func (m *MongoErrorStore) Save(ctx context.Context, record ErrorRecord) error {
	filter := bson.M{"submissionId": record.SubmissionId}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, filter, record, opts); err != nil {
		return fmt.Errorf("unable to save error record: %w", err)
	}
	return nil
}

// List returns the oldest failures first. An empty discriminator matches every failure.
func (m *MongoErrorStore) List(ctx context.Context, discriminator string, limit int64) ([]ErrorRecord, error) {
	filter := bson.M{}
	if discriminator != "" {
		filter["discriminator"] = discriminator
	}
	opts := options.Find().SetSort(bson.D{{Key: "failedTime", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("unable to list error records: %w", err)
	}

	var records []ErrorRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("unable to decode error records: %w", err)
	}
	return records, nil
}

func (m *MongoErrorStore) Delete(ctx context.Context, submissionId string) error {
	_, err := m.collection.DeleteOne(ctx, bson.M{"submissionId": submissionId})
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("unable to delete error record: %w", err)
	}
	return nil
}

func newErrorRecord(doc queue.Submission, err *issues.AggregateError, now time.Time) ErrorRecord {
	return ErrorRecord{
		SubmissionId:  doc.SubmissionID,
		Discriminator: doc.Discriminator,
		Payload:       doc.Payload,
		Source:        doc.Source,
		Messages:      err.Issues.Messages(),
		Issues:        err.Issues,
		FailedTime:    now,
	}
}
