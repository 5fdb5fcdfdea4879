package queue_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/muzima/registration-worker/matching"
	"github.com/muzima/registration-worker/queue"
)

var _ = Describe("Routing", func() {
	DescribeTable("routes every handled discriminator",
		func(discriminator string, dialect queue.Dialect, kind queue.Kind, policy matching.Policy) {
			route, ok := queue.RouteFor(discriminator)
			Expect(ok).To(BeTrue())
			Expect(route.Dialect).To(Equal(dialect))
			Expect(route.Kind).To(Equal(kind))
			Expect(route.Policy).To(Equal(policy))
			Expect(route.Policy.IsValid()).To(BeTrue())
		},
		Entry("registration", queue.DiscriminatorRegistration, queue.DialectJSONDotted, queue.KindRegistration, matching.PolicyExactBirthdate),
		Entry("html registration", queue.DiscriminatorHtmlRegistration, queue.DialectJSONDotted, queue.KindRegistration, matching.PolicySameDay),
		Entry("json registration", queue.DiscriminatorJsonRegistration, queue.DialectJSONFormFields, queue.KindRegistration, matching.PolicySameDay),
		Entry("xml registration", queue.DiscriminatorXmlRegistration, queue.DialectXMLRegistration, queue.KindRegistration, matching.PolicyIdentifierConfirmed),
		Entry("json encounter", queue.DiscriminatorJsonEncounter, queue.DialectJSONPath, queue.KindEncounter, matching.PolicySameDay),
		Entry("json form encounter", queue.DiscriminatorJsonFormEncounter, queue.DialectJSONFormFields, queue.KindEncounter, matching.PolicySameDay),
		Entry("xml encounter", queue.DiscriminatorXmlEncounter, queue.DialectXMLEncounter, queue.KindEncounter, matching.PolicySameDay),
	)

	It("does not route unknown discriminators", func() {
		_, ok := queue.RouteFor("json-demographics-update")
		Expect(ok).To(BeFalse())
	})

	Describe("NewSubmission", func() {
		It("builds a submission from a document", func() {
			created := time.Date(2023, time.November, 2, 10, 0, 0, 0, time.UTC)
			submission, route, ok := queue.NewSubmission(queue.Document{
				Uuid:          "queue-data-1",
				Discriminator: " xml-encounter ",
				Payload:       "<form/>",
				Source:        "mobile",
				DateCreated:   &created,
			})
			Expect(ok).To(BeTrue())
			Expect(route.Kind).To(Equal(queue.KindEncounter))
			Expect(submission.SubmissionID).To(Equal("queue-data-1"))
			Expect(submission.Dialect).To(Equal(queue.DialectXMLEncounter))
			Expect(submission.Payload).To(Equal("<form/>"))
			Expect(submission.DateCreated).To(Equal(created))
		})

		It("falls back to the object id", func() {
			id := primitive.NewObjectID()
			submission, _, ok := queue.NewSubmission(queue.Document{Id: &id, Discriminator: queue.DiscriminatorRegistration})
			Expect(ok).To(BeTrue())
			Expect(submission.SubmissionID).To(Equal(id.Hex()))
		})

		It("skips documents of other handlers", func() {
			_, _, ok := queue.NewSubmission(queue.Document{Discriminator: "json-demographics-update"})
			Expect(ok).To(BeFalse())
		})
	})
})
