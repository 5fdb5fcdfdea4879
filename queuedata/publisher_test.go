package queuedata_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Shopify/sarama/mocks"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/muzima/registration-worker/queuedata"
)

var _ = Describe("SaramaPublisher", func() {
	var producer *mocks.SyncProducer
	var publisher *queuedata.SaramaPublisher

	BeforeEach(func() {
		producer = mocks.NewSyncProducer(GinkgoT(), nil)
		publisher = queuedata.NewSaramaPublisher(producer, "local-queue-data-outcomes", "reconciliation-worker")
	})

	AfterEach(func() {
		Expect(producer.Close()).To(Succeed())
	})

	It("publishes a structured cloud event", func() {
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
			envelope := map[string]interface{}{}
			if err := json.Unmarshal(value, &envelope); err != nil {
				return err
			}
			if envelope["type"] != queuedata.OutcomeEventType {
				return errors.New("unexpected event type")
			}
			if envelope["subject"] != "queue-data-1" {
				return errors.New("unexpected subject")
			}
			data, ok := envelope["data"].(map[string]interface{})
			if !ok || data["outcome"] != "created" || data["personUuid"] != "perm-1" {
				return errors.New("unexpected data")
			}
			return nil
		})

		err := publisher.Publish(context.Background(), queuedata.OutcomeEvent{
			SubmissionId:  "queue-data-1",
			Discriminator: "registration",
			Outcome:       "created",
			PersonUuid:    "perm-1",
			ProcessedTime: time.Now(),
		})
		Expect(err).ToNot(HaveOccurred())
	})

	It("returns producer errors", func() {
		producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))

		err := publisher.Publish(context.Background(), queuedata.OutcomeEvent{SubmissionId: "queue-data-1", ProcessedTime: time.Now()})
		Expect(err).To(MatchError(ContainSubstring("broker unavailable")))
	})
})
