package cdc_test

import (
	"errors"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tidepool-org/go-common/events"

	"github.com/muzima/registration-worker/cdc"
)

type countingConsumer struct {
	calls int
	errs  []error
}

func (c *countingConsumer) Initialize(config *events.CloudEventsConfig) error {
	return nil
}

func (c *countingConsumer) HandleKafkaMessage(cm *sarama.ConsumerMessage) error {
	c.calls++
	if len(c.errs) == 0 {
		return nil
	}
	err := c.errs[0]
	c.errs = c.errs[1:]
	return err
}

var _ = Describe("RetryingConsumer", func() {
	var delegate *countingConsumer
	var consumer events.MessageConsumer

	BeforeEach(func() {
		delegate = &countingConsumer{}
		consumer = cdc.NewRetryingConsumer(delegate, cdc.RetryConfig{Attempts: 3, Delay: time.Millisecond})
	})

	It("retries transient errors until the delegate succeeds", func() {
		delegate.errs = []error{errors.New("timeout"), errors.New("timeout")}
		Expect(consumer.HandleKafkaMessage(&sarama.ConsumerMessage{})).To(Succeed())
		Expect(delegate.calls).To(Equal(3))
	})

	It("returns the last error when attempts are exhausted", func() {
		delegate.errs = []error{errors.New("first"), errors.New("second"), errors.New("third"), errors.New("fourth")}
		err := consumer.HandleKafkaMessage(&sarama.ConsumerMessage{})
		Expect(err).To(MatchError("third"))
		Expect(delegate.calls).To(Equal(3))
	})

	It("does not retry permanent errors", func() {
		delegate.errs = []error{fmt.Errorf("%w: no reconciler", cdc.ErrPermanent)}
		err := consumer.HandleKafkaMessage(&sarama.ConsumerMessage{})
		Expect(errors.Is(err, cdc.ErrPermanent)).To(BeTrue())
		Expect(delegate.calls).To(Equal(1))
	})
})

var _ = Describe("Event", func() {
	type document struct{}

	It("treats inserts and replaces with a full document as creates", func() {
		Expect(cdc.Event[document]{OperationType: cdc.OperationTypeInsert, FullDocument: &document{}}.IsCreate()).To(BeTrue())
		Expect(cdc.Event[document]{OperationType: cdc.OperationTypeReplace, FullDocument: &document{}}.IsCreate()).To(BeTrue())
	})

	It("does not treat other events as creates", func() {
		Expect(cdc.Event[document]{OperationType: cdc.OperationTypeInsert}.IsCreate()).To(BeFalse())
		Expect(cdc.Event[document]{OperationType: cdc.OperationTypeUpdate, FullDocument: &document{}}.IsCreate()).To(BeFalse())
		Expect(cdc.Event[document]{OperationType: cdc.OperationTypeDelete}.IsCreate()).To(BeFalse())
	})
})

var _ = Describe("TopicName", func() {
	It("replaces a trailing dot of the prefix", func() {
		config := &events.CloudEventsConfig{KafkaTopicPrefix: "muzima."}
		Expect(cdc.TopicName(config, "queue-data-outcomes")).To(Equal("muzima-queue-data-outcomes"))
	})

	It("keeps other prefixes", func() {
		config := &events.CloudEventsConfig{KafkaTopicPrefix: "dev-"}
		Expect(cdc.TopicName(config, "queue-data-outcomes")).To(Equal("dev-queue-data-outcomes"))
	})
})
