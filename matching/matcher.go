package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/muzima/registration-worker/cdc"
	"github.com/muzima/registration-worker/emr"
)

// ErrUnknownPolicy is returned for a policy without a matching rule
var ErrUnknownPolicy = fmt.Errorf("%w: unknown matching policy", cdc.ErrPermanent)

type Outcome int

const (
	NoMatch Outcome = iota
	Matched
	// Ambiguous means more than one pool member qualified. The first one is still returned.
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Ambiguous:
		return "ambiguous"
	default:
		return "no-match"
	}
}

type Result struct {
	Outcome    Outcome
	Person     *emr.Person
	Qualifying int
}

// PermanentId returns the uuid of the accepted person or an empty string for NoMatch
func (r Result) PermanentId() string {
	if r.Person == nil {
		return ""
	}
	return r.Person.Uuid
}

func (r Result) Found() bool {
	return r.Outcome != NoMatch && r.Person != nil
}

// FindMatch returns the first member of pool, in pool order, which qualifies under the policy
func FindMatch(policy Policy, candidate emr.Person, pool []emr.Person) Result {
	result := Result{Outcome: NoMatch}
	for i := range pool {
		if !policy.Qualifies(candidate, pool[i]) {
			continue
		}
		result.Qualifying++
		if result.Person == nil {
			person := pool[i]
			result.Person = &person
		}
	}

	switch {
	case result.Qualifying == 1:
		result.Outcome = Matched
	case result.Qualifying > 1:
		result.Outcome = Ambiguous
	}
	return result
}

// NameDistance is the Levenshtein distance of the lower-cased names
func NameDistance(a, b string) int {
	return levenshtein.ComputeDistance(strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b)))
}

// Matcher fetches a candidate pool from the person directory and scores it
type Matcher interface {
	Match(ctx context.Context, policy Policy, candidate emr.Person) (Result, error)
}

type matcher struct {
	directory emr.PersonDirectory
}

func NewMatcher(directory emr.PersonDirectory) Matcher {
	return &matcher{directory: directory}
}

// Match looks the pool up by exact identifier value when the candidate carries a non-blank
// identifier and by full name otherwise, never both.
func (m *matcher) Match(ctx context.Context, policy Policy, candidate emr.Person) (Result, error) {
	if !policy.IsValid() {
		return Result{}, fmt.Errorf("%w %q", ErrUnknownPolicy, policy)
	}
	pool, err := m.pool(ctx, candidate)
	if err != nil {
		return Result{}, err
	}
	return FindMatch(policy, candidate, pool), nil
}

func (m *matcher) pool(ctx context.Context, candidate emr.Person) ([]emr.Person, error) {
	if identifier := LookupIdentifier(candidate); identifier != "" {
		pool, err := m.directory.FindPersonsByIdentifier(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("unable to find persons by identifier: %w", err)
		}
		return pool, nil
	}

	fullName := candidate.Name.FullName()
	if fullName == "" {
		return nil, nil
	}
	pool, err := m.directory.FindPersonsByName(ctx, fullName)
	if err != nil {
		return nil, fmt.Errorf("unable to find persons by name: %w", err)
	}
	return pool, nil
}

// LookupIdentifier returns the value used for the identifier pool lookup: the preferred
// identifier, else the first non-blank one.
func LookupIdentifier(candidate emr.Person) string {
	for _, identifier := range candidate.Identifiers {
		if identifier.Preferred && strings.TrimSpace(identifier.Identifier) != "" {
			return strings.TrimSpace(identifier.Identifier)
		}
	}
	for _, identifier := range candidate.Identifiers {
		if v := strings.TrimSpace(identifier.Identifier); v != "" {
			return v
		}
	}
	return ""
}
