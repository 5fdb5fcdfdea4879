package replay_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/muzima/registration-worker/queue"
	"github.com/muzima/registration-worker/queuedata"
	testQueuedata "github.com/muzima/registration-worker/queuedata/test"
	"github.com/muzima/registration-worker/replay"
)

type scriptedDispatcher struct {
	reports map[string]queuedata.Report
	errs    map[string]error
	seen    []string
	mu      sync.Mutex
}

func (s *scriptedDispatcher) Dispatch(_ context.Context, doc queue.Document) (queuedata.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = append(s.seen, doc.Uuid)
	if err := s.errs[doc.Uuid]; err != nil {
		return queuedata.Report{}, err
	}
	return s.reports[doc.Uuid], nil
}

var _ = Describe("Replayer", func() {
	var errorStore *testQueuedata.ErrorStore
	var dispatcher *scriptedDispatcher
	var replayer replay.Replayer
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		errorStore = testQueuedata.NewErrorStore()
		dispatcher = &scriptedDispatcher{
			reports: map[string]queuedata.Report{},
			errs:    map[string]error{},
		}
		replayer = replay.NewReplayer(replay.Config{Threadiness: 2, BatchSize: 10}, zap.NewNop().Sugar(), errorStore, dispatcher)

		failed := time.Date(2023, time.November, 2, 0, 0, 0, 0, time.UTC)
		for i, id := range []string{"queue-data-1", "queue-data-2", "queue-data-3"} {
			Expect(errorStore.Save(ctx, queuedata.ErrorRecord{
				SubmissionId:  id,
				Discriminator: queue.DiscriminatorHtmlRegistration,
				Payload:       "{}",
				FailedTime:    failed.Add(time.Duration(i) * time.Minute),
			})).To(Succeed())
		}
	})

	It("removes the submissions which reconcile", func() {
		dispatcher.reports["queue-data-1"] = queuedata.Report{Handled: true}
		dispatcher.reports["queue-data-2"] = queuedata.Report{Handled: true, Failed: true}
		dispatcher.reports["queue-data-3"] = queuedata.Report{}

		summary, err := replayer.Replay(ctx, "", 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(summary).To(Equal(replay.Summary{Attempted: 3, Reconciled: 1, Failed: 1, Skipped: 1}))
		Expect(errorStore.Records).ToNot(HaveKey("queue-data-1"))
		Expect(errorStore.Records).To(HaveKey("queue-data-2"))
		Expect(errorStore.Records).To(HaveKey("queue-data-3"))
	})

	It("replays the oldest failures up to the limit", func() {
		_, err := replayer.Replay(ctx, queue.DiscriminatorHtmlRegistration, 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(dispatcher.seen).To(ConsistOf("queue-data-1", "queue-data-2"))
	})

	It("filters by discriminator", func() {
		summary, err := replayer.Replay(ctx, queue.DiscriminatorXmlEncounter, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(summary.Attempted).To(BeZero())
	})

	It("returns transient dispatcher errors", func() {
		dispatcher.errs["queue-data-2"] = errors.New("emr unavailable")

		_, err := replayer.Replay(ctx, "", 0)
		Expect(err).To(MatchError(ContainSubstring("emr unavailable")))
		Expect(errorStore.Records).To(HaveKey("queue-data-2"))
	})

	Describe("Handler", func() {
		var server *echo.Echo

		BeforeEach(func() {
			server = echo.New()
			replay.NewHandler(replayer, zap.NewNop().Sugar()).RegisterRoutes(server.Group("/v1"))
		})

		It("rejects an invalid limit", func() {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/errors/replay?limit=many", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns the summary", func() {
			dispatcher.reports["queue-data-1"] = queuedata.Report{Handled: true}

			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/errors/replay?limit=1", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"attempted": 1, "reconciled": 1, "failed": 0, "skipped": 0}`))
		})
	})
})
