package issues_test

import (
	"errors"
	"github.com/muzima/registration-worker/issues"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("List", func() {
	It("does not raise an error for warnings only", func() {
		var list issues.List
		list.Warn(issues.Data, "patient.birthdate", "unable to parse %q", "31/02/2000")
		Expect(list.HasFatal()).To(BeFalse())
		Expect(list.Err()).ToNot(HaveOccurred())
	})

	It("raises every accumulated issue when one of them is fatal", func() {
		var list issues.List
		list.Warn(issues.Data, "patient.birthdate", "unable to parse")
		list.Fatal(issues.Reference, "encounter.location_id", "unable to find location %d", 9)

		err := list.Err()
		Expect(err).To(HaveOccurred())

		var aggregate *issues.AggregateError
		Expect(errors.As(err, &aggregate)).To(BeTrue())
		Expect(aggregate.Issues).To(HaveLen(2))
		Expect(err.Error()).To(ContainSubstring("unable to find location 9"))
	})

	It("unwraps into the individual issues", func() {
		var list issues.List
		list.Fatal(issues.Structural, "", "invalid json")

		var issue issues.Issue
		Expect(errors.As(list.Err(), &issue)).To(BeTrue())
		Expect(issue.Kind).To(Equal(issues.Structural))
	})
})
