package replay

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/muzima/registration-worker/queue"
	"github.com/muzima/registration-worker/queuedata"
)

const submissionTimeout = 30 * time.Second

type Summary struct {
	Attempted  int64 `json:"attempted"`
	Reconciled int64 `json:"reconciled"`
	Failed     int64 `json:"failed"`
	Skipped    int64 `json:"skipped"`
}

// Replayer sends failed submissions through the dispatcher again. Submissions which reconcile are
// removed from the error store, submissions which fail again keep their error record.
type Replayer interface {
	Replay(ctx context.Context, discriminator string, limit int64) (Summary, error)
}

type replayer struct {
	config     Config
	logger     *zap.SugaredLogger
	errors     queuedata.ErrorStore
	dispatcher queuedata.Dispatcher
	limiter    *RateLimiter
}

var _ Replayer = &replayer{}

func NewReplayer(config Config, logger *zap.SugaredLogger, errors queuedata.ErrorStore, dispatcher queuedata.Dispatcher) Replayer {
	return &replayer{
		config:     config,
		logger:     logger,
		errors:     errors,
		dispatcher: dispatcher,
		limiter:    NewRateLimiter(config),
	}
}

func (r *replayer) Replay(ctx context.Context, discriminator string, limit int64) (Summary, error) {
	if limit <= 0 || limit > r.config.BatchSize {
		limit = r.config.BatchSize
	}

	records, err := r.errors.List(ctx, discriminator, limit)
	if err != nil {
		return Summary{}, err
	}
	r.logger.Infow("replaying failed submissions", "count", len(records), "discriminator", discriminator)

	threadiness := r.config.Threadiness
	if threadiness <= 0 {
		threadiness = 1
	}
	sem := semaphore.NewWeighted(threadiness)
	eg, c := errgroup.WithContext(ctx)

	var summary Summary
	for _, record := range records {
		if c.Err() != nil {
			break
		}
		if err := sem.Acquire(c, 1); err != nil {
			r.logger.Errorw("failed to acquire semaphore", zap.Error(err))
			break
		}

		record := record
		eg.Go(func() error {
			defer sem.Release(1)
			r.limiter.WaitOrContinue()

			atomic.AddInt64(&summary.Attempted, 1)
			rCtx, cancel := context.WithTimeout(c, submissionTimeout)
			defer cancel()
			return r.replay(rCtx, record, &summary)
		})
	}

	err = eg.Wait()
	return summary, err
}

func (r *replayer) replay(ctx context.Context, record queuedata.ErrorRecord, summary *Summary) error {
	report, err := r.dispatcher.Dispatch(ctx, Document(record))
	if err != nil {
		r.logger.Errorw("unable to replay submission", "submissionId", record.SubmissionId, zap.Error(err))
		return err
	}

	switch {
	case !report.Handled:
		atomic.AddInt64(&summary.Skipped, 1)
	case report.Failed:
		atomic.AddInt64(&summary.Failed, 1)
	default:
		atomic.AddInt64(&summary.Reconciled, 1)
		return r.errors.Delete(ctx, record.SubmissionId)
	}
	return nil
}

// Document rebuilds the queue document of a failed submission
func Document(record queuedata.ErrorRecord) queue.Document {
	return queue.Document{
		Uuid:          record.SubmissionId,
		Discriminator: record.Discriminator,
		Payload:       record.Payload,
		Source:        record.Source,
	}
}
