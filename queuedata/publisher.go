package queuedata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	ce "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/muzima/registration-worker/issues"
)

const (
	OutcomeEventType = "org.muzima.queue-data.outcome"
	// OutcomeFailed is published for submissions which were moved to the error store
	OutcomeFailed = "failed"
)

// OutcomeEvent is the data of the cloud event published for every processed submission
type OutcomeEvent struct {
	SubmissionId  string         `json:"submissionId"`
	Discriminator string         `json:"discriminator"`
	Outcome       string         `json:"outcome"`
	TemporaryUuid string         `json:"temporaryUuid,omitempty"`
	PersonUuid    string         `json:"personUuid,omitempty"`
	EncounterUuid string         `json:"encounterUuid,omitempty"`
	Issues        []issues.Issue `json:"issues,omitempty"`
	ProcessedTime time.Time      `json:"processedTime"`
}

//go:generate mockgen -destination=./test/mock_publisher.go -package=test github.com/muzima/registration-worker/queuedata Publisher
type Publisher interface {
	Publish(ctx context.Context, outcome OutcomeEvent) error
}

// SaramaPublisher sends outcome events in structured cloud events mode
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	source   string
}

var _ Publisher = &SaramaPublisher{}

func NewSaramaPublisher(producer sarama.SyncProducer, topic, source string) *SaramaPublisher {
	return &SaramaPublisher{
		producer: producer,
		topic:    topic,
		source:   source,
	}
}

func (s *SaramaPublisher) Publish(_ context.Context, outcome OutcomeEvent) error {
	event := ce.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(s.source)
	event.SetType(OutcomeEventType)
	event.SetSubject(outcome.SubmissionId)
	event.SetTime(outcome.ProcessedTime)
	if err := event.SetData(ce.ApplicationJSON, outcome); err != nil {
		return fmt.Errorf("unable to set outcome event data: %w", err)
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid outcome event: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("unable to marshal outcome event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(outcome.SubmissionId),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte(ce.ApplicationCloudEventsJSON)},
		},
	}
	if _, _, err := s.producer.SendMessage(message); err != nil {
		return fmt.Errorf("unable to publish outcome event: %w", err)
	}
	return nil
}

func (s *SaramaPublisher) Close() error {
	return s.producer.Close()
}

// NoopPublisher is used when the outcomes topic is disabled
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ OutcomeEvent) error {
	return nil
}
