package queuedata_test

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/muzima/registration-worker/cdc"
	"github.com/muzima/registration-worker/queue"
	"github.com/muzima/registration-worker/queuedata"
	"github.com/muzima/registration-worker/test"
)

type recordingDispatcher struct {
	documents []queue.Document
}

func (r *recordingDispatcher) Dispatch(_ context.Context, doc queue.Document) (queuedata.Report, error) {
	r.documents = append(r.documents, doc)
	return queuedata.Report{Handled: true}, nil
}

var _ = Describe("QueueDataCDCConsumer", func() {
	var fixture []byte

	BeforeEach(func() {
		var err error
		fixture, err = test.LoadFixture("test/fixtures/queue_data_event.json")
		Expect(err).ToNot(HaveOccurred())

		// Some editors add a new line at the end of the file by default, remove it
		fixture = []byte(strings.TrimSuffix(string(fixture), "\n"))
	})

	Describe("UnmarshalEvent", func() {
		It("unmarshals events successfully", func() {
			event := cdc.Event[queue.Document]{}
			Expect(queuedata.UnmarshalEvent(fixture, &event)).To(Succeed())
			Expect(event.IsCreate()).To(BeTrue())

			doc := event.FullDocument
			Expect(doc.SubmissionID()).To(Equal("queue-data-1"))
			Expect(doc.Id).ToNot(BeNil())
			Expect(doc.Id.Hex()).To(Equal("6543b0c2a1b2c3d4e5f60718"))
			Expect(doc.Discriminator).To(Equal(queue.DiscriminatorHtmlRegistration))
			Expect(doc.Payload).To(ContainSubstring(`"patient.uuid":"tmp-0001"`))
			Expect(doc.DateCreated).ToNot(BeNil())
			Expect(doc.DateCreated.UTC()).To(Equal(time.UnixMilli(1698912000000).UTC()))
		})

		It("unmarshals quoted events", func() {
			event := cdc.Event[queue.Document]{}
			Expect(queuedata.UnmarshalEvent([]byte(strconv.Quote(string(fixture))), &event)).To(Succeed())
			Expect(event.FullDocument.SubmissionID()).To(Equal("queue-data-1"))
		})
	})

	Describe("HandleKafkaMessage", func() {
		var dispatcher *recordingDispatcher
		var consumer interface {
			HandleKafkaMessage(cm *sarama.ConsumerMessage) error
		}

		BeforeEach(func() {
			dispatcher = &recordingDispatcher{}
			var err error
			consumer, err = queuedata.NewQueueDataCDCConsumer(queuedata.Params{
				Config:     queuedata.ModuleConfig{Enabled: true, Timeout: time.Second},
				Logger:     zap.NewNop().Sugar(),
				Dispatcher: dispatcher,
			})
			Expect(err).ToNot(HaveOccurred())
		})

		It("dispatches inserted documents", func() {
			Expect(consumer.HandleKafkaMessage(&sarama.ConsumerMessage{Value: fixture, Offset: 7})).To(Succeed())
			Expect(dispatcher.documents).To(HaveLen(1))
			Expect(dispatcher.documents[0].Uuid).To(Equal("queue-data-1"))
		})

		It("skips updates", func() {
			update := strings.Replace(string(fixture), `"operationType":"insert"`, `"operationType":"update"`, 1)
			Expect(consumer.HandleKafkaMessage(&sarama.ConsumerMessage{Value: []byte(update)})).To(Succeed())
			Expect(dispatcher.documents).To(BeEmpty())
		})

		It("skips messages which cannot be decoded", func() {
			Expect(consumer.HandleKafkaMessage(&sarama.ConsumerMessage{Value: []byte("not json")})).To(Succeed())
			Expect(dispatcher.documents).To(BeEmpty())
		})

		It("ignores nil messages", func() {
			Expect(consumer.HandleKafkaMessage(nil)).To(Succeed())
		})
	})
})
