package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muzima/registration-worker/emr"
	"github.com/muzima/registration-worker/issues"
	"github.com/muzima/registration-worker/mapping"
	"github.com/muzima/registration-worker/matching"
	"github.com/muzima/registration-worker/payload"
	"github.com/muzima/registration-worker/queue"
)

// encounterNamespace derives stable encounter uuids from submission ids
var encounterNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:muzima:queue-data:encounter"))

type EncounterReconcilerParams struct {
	Extractor *payload.Extractor
	Matcher   matching.Matcher
	Master    emr.MasterData
	Directory emr.PersonDirectory
	Writer    emr.EncounterWriter
	Store     mapping.Store
	Logger    *zap.SugaredLogger
}

type encounterReconciler struct {
	extractor *payload.Extractor
	matcher   matching.Matcher
	master    emr.MasterData
	directory emr.PersonDirectory
	writer    emr.EncounterWriter
	store     mapping.Store
	logger    *zap.SugaredLogger
}

func NewEncounterReconciler(params EncounterReconcilerParams) Reconciler {
	return &encounterReconciler{
		extractor: params.Extractor,
		matcher:   params.Matcher,
		master:    params.Master,
		directory: params.Directory,
		writer:    params.Writer,
		store:     params.Store,
		logger:    params.Logger,
	}
}

func (r *encounterReconciler) Reconcile(ctx context.Context, submission queue.Submission, policy matching.Policy) (Result, error) {
	extraction := r.extractor.Extract(submission)
	list := extraction.Issues
	result := Result{SubmissionId: submission.SubmissionID, TemporaryUuid: extraction.Patient.TemporaryId}
	if hasStructural(list) {
		return result, list.Err()
	}

	patient, err := r.resolvePatient(ctx, extraction.Patient, policy, &list)
	if err != nil {
		return result, err
	}

	encounter, err := r.encounter(ctx, extraction.Encounter, &list)
	if err != nil {
		return result, err
	}

	arena, err := buildObs(ctx, r.master, &extraction.Obs, &list, r.logger)
	if err != nil {
		return result, err
	}

	if list.HasFatal() {
		return result, list.Err()
	}

	encounter.Uuid = EncounterUuid(submission.SubmissionID)
	encounter.Patient = patient.Uuid
	encounter.Obs = arena.Obs()

	result.PersonUuid = patient.Uuid
	result.EncounterUuid = encounter.Uuid
	result.Issues = list
	result.Outcome = OutcomeEncounterCreated

	if err := r.writer.CreateEncounter(ctx, encounter); errors.Is(err, emr.ErrConflict) {
		result.Outcome = OutcomeEncounterExists
	} else if err != nil {
		return result, fmt.Errorf("unable to create encounter: %w", err)
	}

	logIssues(r.logger, submission.SubmissionID, list)
	return result, nil
}

// EncounterUuid is derived from the submission id so a replayed submission maps to the same encounter
func EncounterUuid(submissionId string) string {
	if submissionId == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(encounterNamespace, []byte(submissionId)).String()
}

// resolvePatient anchors the encounter by temporary uuid, else by identifier, else by name
func (r *encounterReconciler) resolvePatient(ctx context.Context, candidate payload.Candidate, policy matching.Policy, list *issues.List) (*emr.Person, error) {
	if candidate.TemporaryId != "" {
		personUuid := candidate.TemporaryId
		record, err := r.store.Lookup(ctx, candidate.TemporaryId)
		if err != nil && !errors.Is(err, mapping.ErrNotFound) {
			return nil, err
		}
		if record != nil {
			personUuid = record.AssignedUuid
		}

		person, err := r.directory.GetPerson(ctx, personUuid)
		if err != nil {
			return nil, fmt.Errorf("unable to get patient: %w", err)
		}
		if person == nil {
			list.Fatal(issues.Reference, "patient.uuid", "unable to find a patient for uuid %s", candidate.TemporaryId)
		}
		return person, nil
	}

	unsaved := emr.Person{
		Name:      candidate.Name,
		Gender:    candidate.Sex,
		Birthdate: candidate.Birthdate,
	}
	if value := candidate.IdentifierValue(); value != "" {
		unsaved.Identifiers = []emr.Identifier{{Identifier: value, Preferred: true}}
	}

	match, err := r.matcher.Match(ctx, policy, unsaved)
	if err != nil {
		return nil, err
	}
	switch match.Outcome {
	case matching.NoMatch:
		list.Fatal(issues.Reference, "patient", "unable to uniquely identify a patient for this encounter")
		return nil, nil
	case matching.Ambiguous:
		list.Warn(issues.DuplicateRisk, "patient", "%d existing persons match, using %s", match.Qualifying, match.PermanentId())
	}
	return match.Person, nil
}

func (r *encounterReconciler) encounter(ctx context.Context, ref payload.EncounterRef, list *issues.List) (emr.Encounter, error) {
	encounter := emr.Encounter{Datetime: ref.Datetime}

	var formEncounterType *emr.EncounterType
	if !ref.Form.IsZero() {
		form, err := resolveForm(ctx, r.master, ref.Form)
		if err != nil {
			return encounter, fmt.Errorf("unable to get form: %w", err)
		}
		if form == nil {
			list.Warn(issues.Reference, "form", "unable to find form with %s", ref.Form)
		} else {
			encounter.Form = form
			formEncounterType = form.EncounterType
		}
	}

	switch {
	case formEncounterType != nil && (ref.PreferFormEncounterType || ref.EncounterType.IsZero()):
		encounter.EncounterType = *formEncounterType
	case ref.EncounterType.IsZero():
		list.Fatal(issues.Reference, "encounter_type", "encounter type is required")
	default:
		encounterType, err := resolveEncounterType(ctx, r.master, ref.EncounterType)
		if err != nil {
			return encounter, fmt.Errorf("unable to get encounter type: %w", err)
		}
		if encounterType == nil {
			list.Fatal(issues.Reference, "encounter_type", "unable to find encounter type with %s", ref.EncounterType)
		} else {
			encounter.EncounterType = *encounterType
		}
	}

	if !ref.Provider.IsZero() {
		provider, err := resolveUser(ctx, r.master, ref.Provider)
		if err != nil {
			return encounter, fmt.Errorf("unable to get provider: %w", err)
		}
		if provider == nil {
			list.Warn(issues.Reference, "provider", "unable to find user with %s", ref.Provider)
		}
		encounter.Provider = provider
	}

	if ref.Location.IsZero() {
		list.Fatal(issues.Reference, "location", "encounter location is required")
		return encounter, nil
	}
	location, err := resolveLocation(ctx, r.master, ref.Location)
	if err != nil {
		return encounter, fmt.Errorf("unable to get location: %w", err)
	}
	if location == nil {
		list.Fatal(issues.Reference, "location", "unable to find encounter location with %s", ref.Location)
	} else {
		encounter.Location = *location
	}

	return encounter, nil
}
