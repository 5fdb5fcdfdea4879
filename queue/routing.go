package queue

import (
	"strings"

	"github.com/muzima/registration-worker/matching"
)

const (
	DiscriminatorRegistration      = "registration"
	DiscriminatorHtmlRegistration  = "html-registration"
	DiscriminatorJsonRegistration  = "json-registration"
	DiscriminatorXmlRegistration   = "xml-registration"
	DiscriminatorJsonEncounter     = "json-encounter"
	DiscriminatorJsonFormEncounter = "json-form-encounter"
	DiscriminatorXmlEncounter      = "xml-encounter"
)

// Kind selects the reconciler responsible for a submission
type Kind int

const (
	KindRegistration Kind = iota + 1
	KindEncounter
)

func (k Kind) String() string {
	switch k {
	case KindRegistration:
		return "registration"
	case KindEncounter:
		return "encounter"
	default:
		return "unknown"
	}
}

// Route describes how a discriminator is handled
type Route struct {
	Dialect Dialect
	Kind    Kind
	Policy  matching.Policy
}

var routes = map[string]Route{
	DiscriminatorRegistration:      {Dialect: DialectJSONDotted, Kind: KindRegistration, Policy: matching.PolicyExactBirthdate},
	DiscriminatorHtmlRegistration:  {Dialect: DialectJSONDotted, Kind: KindRegistration, Policy: matching.PolicySameDay},
	DiscriminatorJsonRegistration:  {Dialect: DialectJSONFormFields, Kind: KindRegistration, Policy: matching.PolicySameDay},
	DiscriminatorXmlRegistration:   {Dialect: DialectXMLRegistration, Kind: KindRegistration, Policy: matching.PolicyIdentifierConfirmed},
	DiscriminatorJsonEncounter:     {Dialect: DialectJSONPath, Kind: KindEncounter, Policy: matching.PolicySameDay},
	DiscriminatorJsonFormEncounter: {Dialect: DialectJSONFormFields, Kind: KindEncounter, Policy: matching.PolicySameDay},
	DiscriminatorXmlEncounter:      {Dialect: DialectXMLEncounter, Kind: KindEncounter, Policy: matching.PolicySameDay},
}

// RouteFor returns the route registered for the discriminator. The second return value is false
// when no reconciler handles the discriminator.
func RouteFor(discriminator string) (Route, bool) {
	route, ok := routes[strings.TrimSpace(discriminator)]
	return route, ok
}

// NewSubmission builds a submission from a queue document, resolving its dialect from the
// discriminator. The second return value is false when the discriminator is not handled here.
func NewSubmission(doc Document) (Submission, Route, bool) {
	route, ok := RouteFor(doc.Discriminator)
	if !ok {
		return Submission{}, Route{}, false
	}

	submission := Submission{
		SubmissionID:  doc.SubmissionID(),
		Discriminator: doc.Discriminator,
		Dialect:       route.Dialect,
		Payload:       doc.Payload,
		Source:        doc.Source,
	}
	if doc.DateCreated != nil {
		submission.DateCreated = *doc.DateCreated
	}
	return submission, route, true
}
