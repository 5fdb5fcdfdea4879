package test

import (
	"context"

	"github.com/muzima/registration-worker/matching"
	"github.com/muzima/registration-worker/queue"
	"github.com/muzima/registration-worker/reconcile"
)

// Reconciler records the submissions it receives and answers with the configured result
type Reconciler struct {
	Submissions []queue.Submission
	Policies    []matching.Policy
	Result      reconcile.Result
	Err         error
}

var _ reconcile.Reconciler = &Reconciler{}

func (r *Reconciler) Reconcile(_ context.Context, submission queue.Submission, policy matching.Policy) (reconcile.Result, error) {
	r.Submissions = append(r.Submissions, submission)
	r.Policies = append(r.Policies, policy)
	result := r.Result
	result.SubmissionId = submission.SubmissionID
	return result, r.Err
}
