package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/muzima/registration-worker/emr"
	"github.com/muzima/registration-worker/issues"
	"github.com/muzima/registration-worker/mapping"
	"github.com/muzima/registration-worker/matching"
	"github.com/muzima/registration-worker/payload"
	"github.com/muzima/registration-worker/queue"
)

type Outcome string

const (
	// OutcomeCreated means a new person was created for the submission
	OutcomeCreated Outcome = "created"
	// OutcomeMatched means the submission was mapped to an existing person
	OutcomeMatched Outcome = "matched"
	// OutcomeAlreadyReconciled means the temporary uuid of the submission was mapped before
	OutcomeAlreadyReconciled Outcome = "already-reconciled"
	// OutcomeEncounterCreated means the encounter and its observations were persisted
	OutcomeEncounterCreated Outcome = "encounter-created"
	// OutcomeEncounterExists means the encounter of the submission was persisted before
	OutcomeEncounterExists Outcome = "encounter-exists"
)

type Result struct {
	SubmissionId  string
	TemporaryUuid string
	PersonUuid    string
	EncounterUuid string
	Outcome       Outcome
	// Issues holds the non-fatal issues of a successful submission
	Issues issues.List
}

// Reconciler processes one submission to completion. Submissions with fatal issues fail with an
// *issues.AggregateError, any other error is transient and the submission can be retried in full.
type Reconciler interface {
	Reconcile(ctx context.Context, submission queue.Submission, policy matching.Policy) (Result, error)
}

type RegistrationReconcilerParams struct {
	Extractor *payload.Extractor
	Matcher   matching.Matcher
	Master    emr.MasterData
	Directory emr.PersonDirectory
	Store     mapping.Store
	Logger    *zap.SugaredLogger
}

type registrationReconciler struct {
	extractor *payload.Extractor
	matcher   matching.Matcher
	master    emr.MasterData
	directory emr.PersonDirectory
	store     mapping.Store
	logger    *zap.SugaredLogger

	inflight singleflight.Group
}

func NewRegistrationReconciler(params RegistrationReconcilerParams) Reconciler {
	return &registrationReconciler{
		extractor: params.Extractor,
		matcher:   params.Matcher,
		master:    params.Master,
		directory: params.Directory,
		store:     params.Store,
		logger:    params.Logger,
	}
}

func (r *registrationReconciler) Reconcile(ctx context.Context, submission queue.Submission, policy matching.Policy) (Result, error) {
	extraction := r.extractor.Extract(submission)
	result := Result{SubmissionId: submission.SubmissionID, TemporaryUuid: extraction.Patient.TemporaryId}
	if hasStructural(extraction.Issues) {
		return result, extraction.Issues.Err()
	}

	temporaryUuid := extraction.Patient.TemporaryId
	if temporaryUuid == "" {
		return r.reconcile(ctx, submission, policy, extraction)
	}

	// submissions sharing a temporary uuid in this worker wait for the first one
	leader := false
	shared, err, _ := r.inflight.Do(temporaryUuid, func() (interface{}, error) {
		leader = true
		return r.reconcile(ctx, submission, policy, extraction)
	})
	result = shared.(Result)
	result.SubmissionId = submission.SubmissionID
	if !leader && err == nil {
		result.Outcome = OutcomeAlreadyReconciled
		result.Issues = nil
	}
	return result, err
}

func (r *registrationReconciler) reconcile(ctx context.Context, submission queue.Submission, policy matching.Policy, extraction payload.Extraction) (Result, error) {
	list := extraction.Issues
	candidate := extraction.Patient
	result := Result{SubmissionId: submission.SubmissionID, TemporaryUuid: candidate.TemporaryId}

	var existing *mapping.Record
	if candidate.TemporaryId != "" {
		record, err := r.store.Lookup(ctx, candidate.TemporaryId)
		if err != nil && !errors.Is(err, mapping.ErrNotFound) {
			return result, err
		}
		if record != nil {
			person, err := r.directory.GetPerson(ctx, record.AssignedUuid)
			if err != nil {
				return result, fmt.Errorf("unable to get assigned person: %w", err)
			}
			if person != nil {
				result.PersonUuid = record.AssignedUuid
				result.Outcome = OutcomeAlreadyReconciled
				return result, nil
			}
			// the claim was recorded but the person creation did not complete
			existing = record
		}
	}

	person, err := r.candidatePerson(ctx, candidate, &list)
	if err != nil {
		return result, err
	}
	if list.HasFatal() {
		return result, list.Err()
	}

	if existing != nil {
		person.Uuid = existing.AssignedUuid
		return r.create(ctx, result, person, list, false)
	}

	match, err := r.matcher.Match(ctx, policy, person)
	if err != nil {
		return result, err
	}
	if match.Outcome == matching.Ambiguous {
		list.Warn(issues.DuplicateRisk, "patient", "%d existing persons match, using %s", match.Qualifying, match.PermanentId())
	}

	outcome := OutcomeCreated
	if match.Found() {
		person.Uuid = match.PermanentId()
		outcome = OutcomeMatched
	} else {
		person.Uuid = uuid.NewString()
	}

	if candidate.TemporaryId != "" {
		record, created, err := r.store.Record(ctx, mapping.Record{
			TemporaryUuid: candidate.TemporaryId,
			AssignedUuid:  person.Uuid,
			SubmissionId:  submission.SubmissionID,
			CreatedTime:   time.Now(),
		})
		if err != nil {
			return result, err
		}
		if !created {
			r.logger.Infow("temporary uuid was claimed concurrently", "temporaryUuid", candidate.TemporaryId, "assignedUuid", record.AssignedUuid)
			result.PersonUuid = record.AssignedUuid
			result.Outcome = OutcomeAlreadyReconciled
			return result, nil
		}
	}

	if outcome == OutcomeMatched {
		result.PersonUuid = person.Uuid
		result.Outcome = OutcomeMatched
		result.Issues = list
		logIssues(r.logger, result.SubmissionId, list)
		return result, nil
	}
	return r.create(ctx, result, person, list, candidate.TemporaryId != "")
}

func (r *registrationReconciler) create(ctx context.Context, result Result, person emr.Person, list issues.List, release bool) (Result, error) {
	err := r.directory.CreatePerson(ctx, person)
	if errors.Is(err, emr.ErrConflict) {
		r.logger.Infow("person was created concurrently", "temporaryUuid", result.TemporaryUuid, "personUuid", person.Uuid)
		result.PersonUuid = person.Uuid
		result.Outcome = OutcomeAlreadyReconciled
		return result, nil
	}
	if err != nil {
		err = fmt.Errorf("unable to create person: %w", err)
		if release {
			err = multierr.Append(err, r.store.Release(ctx, result.TemporaryUuid, person.Uuid))
		}
		return result, err
	}

	result.PersonUuid = person.Uuid
	result.Outcome = OutcomeCreated
	result.Issues = list
	logIssues(r.logger, result.SubmissionId, list)
	return result, nil
}

// candidatePerson resolves the references of the candidate into an unsaved person
func (r *registrationReconciler) candidatePerson(ctx context.Context, candidate payload.Candidate, list *issues.List) (emr.Person, error) {
	if strings.TrimSpace(candidate.Name.GivenName) == "" || strings.TrimSpace(candidate.Name.FamilyName) == "" {
		list.Fatal(issues.Data, "patient.name", "given and family names are required")
	}

	identifiers, err := resolveIdentifiers(ctx, r.master, candidate.Identifiers, list)
	if err != nil {
		return emr.Person{}, err
	}

	return emr.Person{
		Name:               candidate.Name,
		Gender:             candidate.Sex,
		Birthdate:          candidate.Birthdate,
		BirthdateEstimated: candidate.BirthdateEstimated,
		Identifiers:        identifiers,
		Address:            candidate.Address,
	}, nil
}

func resolveIdentifiers(ctx context.Context, master emr.MasterData, refs []payload.Identifier, list *issues.List) ([]emr.Identifier, error) {
	var identifiers []emr.Identifier
	preferred := false
	for _, ref := range refs {
		identifierType, err := resolveIdentifierType(ctx, master, ref.Type)
		if err != nil {
			return nil, fmt.Errorf("unable to get identifier type: %w", err)
		}
		if identifierType == nil {
			list.Fatal(issues.Reference, "identifier_type", "unable to find identifier type with %s", ref.Type)
			continue
		}

		if ref.Location.IsZero() {
			list.Fatal(issues.Reference, "identifier_location", "identifier %s does not have a location", ref.Value)
			continue
		}
		location, err := resolveLocation(ctx, master, ref.Location)
		if err != nil {
			return nil, fmt.Errorf("unable to get location: %w", err)
		}
		if location == nil {
			list.Fatal(issues.Reference, "identifier_location", "unable to find location with %s", ref.Location)
			continue
		}

		preferred = preferred || ref.Preferred
		identifiers = append(identifiers, emr.Identifier{
			Identifier:     ref.Value,
			IdentifierType: *identifierType,
			Location:       location,
			Preferred:      ref.Preferred,
		})
	}

	if !preferred && len(identifiers) > 0 {
		identifiers[0].Preferred = true
	}
	return identifiers, nil
}

// logIssues logs the informational issues of a successful submission
func logIssues(logger *zap.SugaredLogger, submissionId string, list issues.List) {
	for _, issue := range list {
		logger.Infow("submission issue", "submissionId", submissionId, "issue", issue.Error())
	}
}

func hasStructural(list issues.List) bool {
	for _, issue := range list {
		if issue.Fatal && issue.Kind == issues.Structural {
			return true
		}
	}
	return false
}
