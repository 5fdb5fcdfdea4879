package queuedata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muzima/registration-worker/cdc"
	"github.com/muzima/registration-worker/issues"
	"github.com/muzima/registration-worker/queue"
	"github.com/muzima/registration-worker/reconcile"
)

// Report describes what the dispatcher did with a queue document
type Report struct {
	// Handled is false when no reconciler is registered for the discriminator
	Handled bool
	// Failed is true when the submission was moved to the error store
	Failed bool
	Result  reconcile.Result
}

type Dispatcher interface {
	Dispatch(ctx context.Context, doc queue.Document) (Report, error)
}

type DispatcherParams struct {
	fx.In

	Registration reconcile.Reconciler `name:"registration"`
	Encounter    reconcile.Reconciler `name:"encounter"`
	Errors       ErrorStore
	Publisher    Publisher
	Logger       *zap.SugaredLogger
}

type dispatcher struct {
	reconcilers map[queue.Kind]reconcile.Reconciler
	errors      ErrorStore
	publisher   Publisher
	logger      *zap.SugaredLogger
}

func NewDispatcher(p DispatcherParams) Dispatcher {
	return &dispatcher{
		reconcilers: map[queue.Kind]reconcile.Reconciler{
			queue.KindRegistration: p.Registration,
			queue.KindEncounter:    p.Encounter,
		},
		errors:    p.Errors,
		publisher: p.Publisher,
		logger:    p.Logger,
	}
}

// Dispatch reconciles the document with the reconciler of its discriminator. Submissions failing
// with fatal issues or rejected by the EMR are recorded in the error store and are not returned
// as errors. Non-fatal issues of successful submissions are logged by the reconcilers and not
// published.
func (d *dispatcher) Dispatch(ctx context.Context, doc queue.Document) (Report, error) {
	submission, route, ok := queue.NewSubmission(doc)
	if !ok {
		d.logger.Debugw("skipping submission without reconciler", "submissionId", doc.SubmissionID(), "discriminator", doc.Discriminator)
		return Report{}, nil
	}

	reconciler, ok := d.reconcilers[route.Kind]
	if !ok || reconciler == nil {
		return Report{}, fmt.Errorf("%w: no reconciler for %s submissions", cdc.ErrPermanent, route.Kind)
	}

	logger := d.logger.With("submissionId", submission.SubmissionID, "discriminator", submission.Discriminator)
	logger.Infow("reconciling submission", "dialect", submission.Dialect.String(), "policy", route.Policy)

	report := Report{Handled: true}
	result, err := reconciler.Reconcile(ctx, submission, route.Policy)
	report.Result = result

	var aggregate *issues.AggregateError
	if errors.As(err, &aggregate) {
		return d.fail(ctx, logger, submission, report, aggregate)
	} else if errors.Is(err, cdc.ErrPermanent) {
		list := issues.List{}
		list.Fatal(issues.Rejected, "", "%s", err.Error())
		return d.fail(ctx, logger, submission, report, &issues.AggregateError{Issues: list})
	} else if err != nil {
		logger.Errorw("unable to reconcile submission", zap.Error(err))
		return report, err
	}

	logger.Infow("submission reconciled", "outcome", result.Outcome, "personUuid", result.PersonUuid, "encounterUuid", result.EncounterUuid)
	return report, d.publish(ctx, submission, string(result.Outcome), result, nil)
}

// fail records the submission in the error store and publishes the failed outcome
func (d *dispatcher) fail(ctx context.Context, logger *zap.SugaredLogger, submission queue.Submission, report Report, aggregate *issues.AggregateError) (Report, error) {
	logger.Warnw("submission failed", "issues", aggregate.Issues.Messages())
	record := newErrorRecord(submission, aggregate, time.Now())
	if err := d.errors.Save(ctx, record); err != nil {
		return report, err
	}
	report.Failed = true
	return report, d.publish(ctx, submission, OutcomeFailed, report.Result, aggregate.Issues)
}

func (d *dispatcher) publish(ctx context.Context, submission queue.Submission, outcome string, result reconcile.Result, list issues.List) error {
	event := OutcomeEvent{
		SubmissionId:  submission.SubmissionID,
		Discriminator: submission.Discriminator,
		Outcome:       outcome,
		TemporaryUuid: result.TemporaryUuid,
		PersonUuid:    result.PersonUuid,
		EncounterUuid: result.EncounterUuid,
		Issues:        list,
		ProcessedTime: time.Now(),
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Errorw("unable to publish outcome", "submissionId", submission.SubmissionID, zap.Error(err))
		return err
	}
	return nil
}
