package matching_test

import (
	"context"
	"errors"
	"github.com/muzima/registration-worker/cdc"
	"github.com/muzima/registration-worker/emr"
	testEmr "github.com/muzima/registration-worker/emr/test"
	"github.com/muzima/registration-worker/matching"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"time"
)

func date(year int, month time.Month, day, hour int) *time.Time {
	t := time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func person(uuid, given, family, gender string, birthdate *time.Time, identifiers ...emr.Identifier) emr.Person {
	return emr.Person{
		Uuid:        uuid,
		Name:        emr.PersonName{GivenName: given, FamilyName: family},
		Gender:      gender,
		Birthdate:   birthdate,
		Identifiers: identifiers,
	}
}

var _ = Describe("FindMatch", func() {
	var candidate emr.Person

	BeforeEach(func() {
		candidate = person("", "Jon", "Smith", "M", date(1990, time.March, 4, 0))
	})

	It("matches names within the edit distance threshold on the same day", func() {
		existing := person("perm-1", "John", "Smith", "M", date(1990, time.March, 4, 15))
		result := matching.FindMatch(matching.PolicySameDay, candidate, []emr.Person{existing})
		Expect(result.Outcome).To(Equal(matching.Matched))
		Expect(result.PermanentId()).To(Equal("perm-1"))
	})

	It("does not match the same names when the birthdates are on different days", func() {
		existing := person("perm-1", "John", "Smith", "M", date(1990, time.March, 5, 0))
		result := matching.FindMatch(matching.PolicySameDay, candidate, []emr.Person{existing})
		Expect(result.Outcome).To(Equal(matching.NoMatch))
		Expect(result.PermanentId()).To(BeEmpty())
	})

	It("compares sex case-insensitively", func() {
		existing := person("perm-1", "John", "Smith", "m", date(1990, time.March, 4, 0))
		Expect(matching.FindMatch(matching.PolicySameDay, candidate, []emr.Person{existing}).Found()).To(BeTrue())
	})

	It("rejects a different sex", func() {
		existing := person("perm-1", "John", "Smith", "F", date(1990, time.March, 4, 0))
		Expect(matching.FindMatch(matching.PolicySameDay, candidate, []emr.Person{existing}).Found()).To(BeFalse())
	})

	It("rejects a member without a birthdate", func() {
		existing := person("perm-1", "Jon", "Smith", "M", nil)
		Expect(matching.FindMatch(matching.PolicySameDay, candidate, []emr.Person{existing}).Found()).To(BeFalse())
	})

	It("rejects an edit distance of three", func() {
		existing := person("perm-1", "Jonathan", "Smith", "M", date(1990, time.March, 4, 0))
		Expect(matching.NameDistance("Jon", "Jonathan")).To(BeNumerically(">=", matching.MaxNameDistance))
		Expect(matching.FindMatch(matching.PolicySameDay, candidate, []emr.Person{existing}).Found()).To(BeFalse())
	})

	It("requires both name distances to be under the threshold", func() {
		existing := person("perm-1", "Jon", "Smithsonian", "M", date(1990, time.March, 4, 0))
		Expect(matching.FindMatch(matching.PolicySameDay, candidate, []emr.Person{existing}).Found()).To(BeFalse())
	})

	It("ignores case when measuring name distance", func() {
		Expect(matching.NameDistance("SMITH", "smith")).To(Equal(0))
	})

	It("rejects blank names", func() {
		blank := person("", " ", "", "M", date(1990, time.March, 4, 0))
		existing := person("perm-1", "", "", "M", date(1990, time.March, 4, 0))
		Expect(matching.FindMatch(matching.PolicySameDay, blank, []emr.Person{existing}).Found()).To(BeFalse())
	})

	It("returns the first qualifying member and reports ambiguity", func() {
		pool := []emr.Person{
			person("perm-0", "Mary", "Jones", "F", date(1990, time.March, 4, 0)),
			person("perm-1", "John", "Smith", "M", date(1990, time.March, 4, 0)),
			person("perm-2", "Jon", "Smyth", "M", date(1990, time.March, 4, 0)),
		}
		result := matching.FindMatch(matching.PolicySameDay, candidate, pool)
		Expect(result.Outcome).To(Equal(matching.Ambiguous))
		Expect(result.Qualifying).To(Equal(2))
		Expect(result.PermanentId()).To(Equal("perm-1"))
	})

	Describe("exact birthdate policy", func() {
		It("rejects birthdates on the same day at different times", func() {
			existing := person("perm-1", "John", "Smith", "M", date(1990, time.March, 4, 15))
			Expect(matching.FindMatch(matching.PolicyExactBirthdate, candidate, []emr.Person{existing}).Found()).To(BeFalse())
		})

		It("accepts equal instants", func() {
			existing := person("perm-1", "John", "Smith", "M", date(1990, time.March, 4, 0))
			Expect(matching.FindMatch(matching.PolicyExactBirthdate, candidate, []emr.Person{existing}).Found()).To(BeTrue())
		})
	})

	Describe("identifier confirmed policy", func() {
		var idType emr.IdentifierType

		BeforeEach(func() {
			idType = emr.IdentifierType{Id: 3, Uuid: "type-uuid", Name: "AMRS Universal ID"}
			candidate.Identifiers = []emr.Identifier{{Identifier: "abc-123", IdentifierType: idType, Preferred: true}}
		})

		It("accepts a shared identifier regardless of case", func() {
			existing := person("perm-1", "John", "Smith", "M", date(1990, time.March, 4, 0),
				emr.Identifier{Identifier: "ABC-123", IdentifierType: idType})
			Expect(matching.FindMatch(matching.PolicyIdentifierConfirmed, candidate, []emr.Person{existing}).Found()).To(BeTrue())
		})

		It("rejects a voided identifier", func() {
			existing := person("perm-1", "John", "Smith", "M", date(1990, time.March, 4, 0),
				emr.Identifier{Identifier: "abc-123", IdentifierType: idType, Voided: true})
			Expect(matching.FindMatch(matching.PolicyIdentifierConfirmed, candidate, []emr.Person{existing}).Found()).To(BeFalse())
		})

		It("rejects the same value under another type", func() {
			other := emr.IdentifierType{Id: 4, Uuid: "other-uuid", Name: "National ID"}
			existing := person("perm-1", "John", "Smith", "M", date(1990, time.March, 4, 0),
				emr.Identifier{Identifier: "abc-123", IdentifierType: other})
			Expect(matching.FindMatch(matching.PolicyIdentifierConfirmed, candidate, []emr.Person{existing}).Found()).To(BeFalse())
		})
	})
})

var _ = Describe("Matcher", func() {
	var directory *testEmr.EMR
	var matcher matching.Matcher

	BeforeEach(func() {
		directory = testEmr.NewEMR()
		directory.Persons = []emr.Person{
			person("perm-1", "John", "Smith", "M", date(1990, time.March, 4, 0),
				emr.Identifier{Identifier: "1234-5", IdentifierType: emr.IdentifierType{Name: "AMRS Universal ID"}}),
			person("perm-2", "Jon", "Smith", "M", date(1990, time.March, 4, 0)),
		}
		matcher = matching.NewMatcher(directory)
	})

	It("looks the pool up by identifier when the candidate has one", func() {
		candidate := person("", "Jon", "Smith", "M", date(1990, time.March, 4, 0),
			emr.Identifier{Identifier: "1234-5", Preferred: true})
		result, err := matcher.Match(context.Background(), matching.PolicySameDay, candidate)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Outcome).To(Equal(matching.Matched))
		Expect(result.PermanentId()).To(Equal("perm-1"))
	})

	It("does not fall back to the name lookup when the identifier finds nobody", func() {
		candidate := person("", "Jon", "Smith", "M", date(1990, time.March, 4, 0),
			emr.Identifier{Identifier: "9999-9"})
		result, err := matcher.Match(context.Background(), matching.PolicySameDay, candidate)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Outcome).To(Equal(matching.NoMatch))
	})

	It("looks the pool up by full name without an identifier", func() {
		candidate := person("", "Jon", "Smith", "M", date(1990, time.March, 4, 0))
		result, err := matcher.Match(context.Background(), matching.PolicySameDay, candidate)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.PermanentId()).To(Equal("perm-2"))
	})

	It("rejects an unknown policy without retrying", func() {
		candidate := person("", "Jon", "Smith", "M", date(1990, time.March, 4, 0))
		_, err := matcher.Match(context.Background(), matching.Policy("soundex"), candidate)
		Expect(errors.Is(err, matching.ErrUnknownPolicy)).To(BeTrue())
		Expect(cdc.IsRetryable(err)).To(BeFalse())
	})
})
