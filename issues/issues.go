package issues

import (
	"fmt"
	"strings"
)

type Kind int

const (
	// Structural issues mean the payload does not have the shape of its dialect
	Structural Kind = iota
	// Reference issues mean a master data lookup found nothing
	Reference
	// DuplicateRisk issues are raised when more than one existing person qualified as a match
	DuplicateRisk
	// Data issues are unparsable or inconsistent values
	Data
	// Rejected issues mean the EMR refused a request and repeating it cannot succeed
	Rejected
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Reference:
		return "reference"
	case DuplicateRisk:
		return "duplicate-risk"
	case Rejected:
		return "rejected"
	default:
		return "data"
	}
}

type Issue struct {
	Kind    Kind   `json:"kind" bson:"kind"`
	Field   string `json:"field,omitempty" bson:"field,omitempty"`
	Message string `json:"message" bson:"message"`
	Fatal   bool   `json:"fatal" bson:"fatal"`
}

func (i Issue) Error() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s", i.Kind, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Kind, i.Field, i.Message)
}

// List accumulates the issues of a single submission
type List []Issue

func (l *List) Fatal(kind Kind, field, format string, args ...interface{}) {
	*l = append(*l, Issue{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...), Fatal: true})
}

func (l *List) Warn(kind Kind, field, format string, args ...interface{}) {
	*l = append(*l, Issue{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (l *List) Append(other ...Issue) {
	*l = append(*l, other...)
}

func (l List) HasFatal() bool {
	for _, issue := range l {
		if issue.Fatal {
			return true
		}
	}
	return false
}

func (l List) Messages() []string {
	messages := make([]string, 0, len(l))
	for _, issue := range l {
		messages = append(messages, issue.Error())
	}
	return messages
}

// Err returns an *AggregateError carrying every issue if at least one of them is fatal, nil otherwise
func (l List) Err() error {
	if !l.HasFatal() {
		return nil
	}
	aggregate := &AggregateError{Issues: make(List, len(l))}
	copy(aggregate.Issues, l)
	return aggregate
}

// AggregateError is raised once per failed submission
type AggregateError struct {
	Issues List
}

func (a *AggregateError) Error() string {
	fatal := 0
	for _, issue := range a.Issues {
		if issue.Fatal {
			fatal++
		}
	}
	return fmt.Sprintf("%d fatal of %d issues: %s", fatal, len(a.Issues), strings.Join(a.Issues.Messages(), "; "))
}

func (a *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(a.Issues))
	for _, issue := range a.Issues {
		errs = append(errs, issue)
	}
	return errs
}
