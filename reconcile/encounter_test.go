package reconcile_test

import (
	"context"
	"errors"
	"github.com/muzima/registration-worker/emr"
	testEmr "github.com/muzima/registration-worker/emr/test"
	"github.com/muzima/registration-worker/issues"
	"github.com/muzima/registration-worker/mapping"
	testMapping "github.com/muzima/registration-worker/mapping/test"
	"github.com/muzima/registration-worker/matching"
	"github.com/muzima/registration-worker/queue"
	"github.com/muzima/registration-worker/reconcile"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"strings"
	"time"
)

var _ = Describe("EncounterReconciler", func() {
	var host *testEmr.EMR
	var store *testMapping.Store
	var reconciler reconcile.Reconciler
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		host = testEmr.NewSeededEMR()
		store = testMapping.NewStore()
		reconciler = reconcile.NewEncounterReconciler(reconcile.EncounterReconcilerParams{
			Extractor: newExtractor(),
			Matcher:   matching.NewMatcher(host),
			Master:    host,
			Directory: host,
			Writer:    host,
			Store:     store,
			Logger:    zap.NewNop().Sugar(),
		})
	})

	addPerson := func(uuid, given, family, gender string, born *time.Time, identifier string) {
		person := emr.Person{
			Uuid:      uuid,
			Name:      emr.PersonName{GivenName: given, FamilyName: family},
			Gender:    gender,
			Birthdate: born,
		}
		if identifier != "" {
			person.Identifiers = []emr.Identifier{
				{Identifier: identifier, IdentifierType: host.IdentifierTypes[0], Preferred: true},
			}
		}
		host.Persons = append(host.Persons, person)
	}

	mapTemporary := func(temporaryUuid, assignedUuid string) {
		_, _, err := store.Record(ctx, mapping.Record{TemporaryUuid: temporaryUuid, AssignedUuid: assignedUuid})
		Expect(err).ToNot(HaveOccurred())
	}

	Describe("a json encounter of a registered patient", func() {
		var submission queue.Submission

		BeforeEach(func() {
			addPerson("perm-1", "Jon", "Smith", "M", birthdate(1990, time.March, 4), "1234-5")
			mapTemporary("tmp-0001", "perm-1")
			submission = loadSubmission("json_encounter.json", queue.DialectJSONPath)
		})

		It("attaches the encounter to the assigned person", func() {
			result, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Outcome).To(Equal(reconcile.OutcomeEncounterCreated))
			Expect(result.PersonUuid).To(Equal("perm-1"))
			Expect(result.EncounterUuid).To(Equal(reconcile.EncounterUuid(submission.SubmissionID)))

			Expect(host.Encounters).To(HaveLen(1))
			encounter := host.Encounters[0]
			Expect(encounter.Patient).To(Equal("perm-1"))
			Expect(encounter.EncounterType).To(Equal(testEmr.AdultReturn))
			Expect(encounter.Location.Id).To(Equal(7))
			Expect(encounter.Provider).ToNot(BeNil())
			Expect(encounter.Provider.Username).To(Equal("admin"))
			Expect(encounter.Form).ToNot(BeNil())
			Expect(encounter.Form.Uuid).To(Equal("form-uuid-adult"))
			Expect(*encounter.Datetime).To(BeTemporally("==", time.Date(2023, time.November, 2, 0, 0, 0, 0, time.UTC)))
		})

		It("builds the observations by concept datatype", func() {
			_, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(err).ToNot(HaveOccurred())

			obs := host.Encounters[0].Obs
			Expect(obs).To(HaveLen(4))

			Expect(obs[0].Concept.Id).To(Equal(5089))
			Expect(obs[0].ValueNumeric.String()).To(Equal("61.5"))

			Expect(obs[1].Concept.Id).To(Equal(1559))
			Expect(obs[1].GroupMembers).To(HaveLen(2))
			Expect(obs[1].GroupMembers[0].ValueNumeric.String()).To(Equal("120"))
			Expect(obs[1].GroupMembers[1].ValueNumeric.String()).To(Equal("80"))

			Expect(obs[2].ValueCoded).ToNot(BeNil())
			Expect(obs[2].ValueCoded.Id).To(Equal(1065))

			Expect(*obs[3].ValueDatetime).To(BeTemporally("==", time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)))
		})

		It("reports keys which are not concepts as warnings", func() {
			result, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Issues).To(HaveLen(1))
			Expect(result.Issues[0].Fatal).To(BeFalse())
		})

		It("does not create a second encounter when the submission is replayed", func() {
			_, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(err).ToNot(HaveOccurred())

			result, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Outcome).To(Equal(reconcile.OutcomeEncounterExists))
			Expect(host.EncounterCount()).To(Equal(1))
		})

		It("skips observations of unknown concepts", func() {
			host.RemoveConcept(5096)

			result, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(err).ToNot(HaveOccurred())
			Expect(host.Encounters[0].Obs).To(HaveLen(3))
			Expect(result.Issues).To(ContainElement(HaveField("Kind", issues.Reference)))
		})

		It("fails when a coded answer is unknown", func() {
			host.RemoveConcept(1065)

			_, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(aggregateOf(err).Issues).To(ContainElement(And(
				HaveField("Kind", issues.Reference),
				HaveField("Fatal", BeTrue()),
			)))
			Expect(host.EncounterCount()).To(Equal(0))
		})

		It("fails when a numeric value cannot be parsed", func() {
			submission.Payload = strings.Replace(submission.Payload, `"61.5"`, `"heavy"`, 1)

			_, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(aggregateOf(err).Issues).To(ContainElement(HaveField("Kind", issues.Data)))
			Expect(host.EncounterCount()).To(Equal(0))
		})

		It("fails when the location cannot be resolved", func() {
			submission.Payload = strings.Replace(submission.Payload, "location-uuid-7", "location-uuid-unknown", 1)

			_, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(aggregateOf(err).Issues).To(ContainElement(HaveField("Field", "location")))
			Expect(host.EncounterCount()).To(Equal(0))
		})

		It("returns a transient error when the encounter cannot be written", func() {
			host.CreateEncounterErr = errors.New("emr unavailable")

			_, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(err).To(MatchError(ContainSubstring("emr unavailable")))
			var aggregate *issues.AggregateError
			Expect(errors.As(err, &aggregate)).To(BeFalse())
		})
	})

	It("accepts a patient uuid which is already permanent", func() {
		addPerson("tmp-0001", "Jon", "Smith", "M", birthdate(1990, time.March, 4), "")

		result, err := reconciler.Reconcile(ctx, loadSubmission("json_encounter.json", queue.DialectJSONPath), matching.PolicySameDay)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.PersonUuid).To(Equal("tmp-0001"))
	})

	It("fails when the patient cannot be found", func() {
		_, err := reconciler.Reconcile(ctx, loadSubmission("json_encounter.json", queue.DialectJSONPath), matching.PolicySameDay)
		Expect(aggregateOf(err).Issues).To(ContainElement(HaveField("Field", "patient.uuid")))
		Expect(host.EncounterCount()).To(Equal(0))
	})

	Describe("an xml encounter", func() {
		var submission queue.Submission

		BeforeEach(func() {
			addPerson("perm-4", "Kiprop", "Kemboi", "M", birthdate(1979, time.October, 30), "7777-3")
			mapTemporary("tmp-0004", "perm-4")
			submission = loadSubmission("xml_encounter.xml", queue.DialectXMLEncounter)
		})

		It("uses the encounter type of the form", func() {
			submission.Payload = strings.Replace(submission.Payload, "<encounter.encounter_type>2<", "<encounter.encounter_type>1<", 1)

			_, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(err).ToNot(HaveOccurred())
			Expect(host.Encounters[0].EncounterType).To(Equal(testEmr.AdultReturn))
		})

		It("anchors the encounter by temporary uuid when the identifier is blank", func() {
			submission.Payload = strings.Replace(submission.Payload, "<patient.medical_record_number>7777-3<", "<patient.medical_record_number><", 1)

			result, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.PersonUuid).To(Equal("perm-4"))
			Expect(host.Encounters).To(HaveLen(1))
			Expect(host.Encounters[0].Patient).To(Equal("perm-4"))
		})

		It("creates one coded observation per selected answer", func() {
			_, err := reconciler.Reconcile(ctx, submission, matching.PolicySameDay)
			Expect(err).ToNot(HaveOccurred())

			obs := host.Encounters[0].Obs
			Expect(obs).To(HaveLen(4))
			Expect(obs[2].Concept.Id).To(Equal(1069))
			Expect(obs[2].ValueCoded.Id).To(Equal(140238))
			Expect(obs[3].Concept.Id).To(Equal(1069))
			Expect(obs[3].ValueCoded.Id).To(Equal(143264))
		})
	})

	Describe("a form encounter without a temporary uuid", func() {
		It("finds the patient by identifier", func() {
			addPerson("perm-3", "Achieng", "Otieno", "F", birthdate(2001, time.January, 15), "5555-2")

			result, err := reconciler.Reconcile(ctx, loadSubmission("form_encounter.json", queue.DialectJSONFormFields), matching.PolicySameDay)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.PersonUuid).To(Equal("perm-3"))

			encounter := host.Encounters[0]
			Expect(encounter.EncounterType).To(Equal(testEmr.AdultReturn))
			Expect(encounter.Obs).To(HaveLen(2))
			Expect(encounter.Obs[1].GroupMembers).To(HaveLen(1))
		})

		It("fails when no patient matches", func() {
			_, err := reconciler.Reconcile(ctx, loadSubmission("form_encounter.json", queue.DialectJSONFormFields), matching.PolicySameDay)
			Expect(aggregateOf(err).Issues).To(ContainElement(HaveField("Field", "patient")))
		})
	})
})
