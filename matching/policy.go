package matching

import (
	"strings"
	"time"

	"github.com/muzima/registration-worker/emr"
)

// Policy selects the rule a pool member must satisfy to be accepted as the same person.
// Dialects historically disagree on the birthdate comparison and on identifier confirmation,
// so each variant is kept as a named policy.
type Policy string

const (
	// PolicySameDay requires birthdates on the same calendar day
	PolicySameDay Policy = "same-day"
	// PolicyExactBirthdate requires birthdates denoting the same instant
	PolicyExactBirthdate Policy = "exact-birthdate"
	// PolicyIdentifierConfirmed is PolicySameDay plus an identifier type and value shared by both persons
	PolicyIdentifierConfirmed Policy = "identifier-confirmed"
)

// MaxNameDistance is the exclusive upper bound on the edit distance of given and family names
const MaxNameDistance = 3

func (p Policy) String() string {
	return string(p)
}

func (p Policy) IsValid() bool {
	switch p {
	case PolicySameDay, PolicyExactBirthdate, PolicyIdentifierConfirmed:
		return true
	default:
		return false
	}
}

// Qualifies reports whether existing satisfies the policy for candidate
func (p Policy) Qualifies(candidate, existing emr.Person) bool {
	if strings.TrimSpace(candidate.Name.FullName()) == "" || strings.TrimSpace(existing.Name.FullName()) == "" {
		return false
	}
	if !strings.EqualFold(candidate.Gender, existing.Gender) {
		return false
	}
	if candidate.Birthdate == nil || existing.Birthdate == nil {
		return false
	}

	switch p {
	case PolicyExactBirthdate:
		if !candidate.Birthdate.Equal(*existing.Birthdate) {
			return false
		}
	default:
		if !IsSameDay(*candidate.Birthdate, *existing.Birthdate) {
			return false
		}
	}

	if NameDistance(candidate.Name.GivenName, existing.Name.GivenName) >= MaxNameDistance {
		return false
	}
	if NameDistance(candidate.Name.FamilyName, existing.Name.FamilyName) >= MaxNameDistance {
		return false
	}

	if p == PolicyIdentifierConfirmed {
		return SharesIdentifier(candidate, existing)
	}
	return true
}

// IsSameDay compares the calendar day of each time in its own location
func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SharesIdentifier is true when one of the candidate identifiers has the same type and value
// (case-insensitive) as one of the active identifiers of existing
func SharesIdentifier(candidate, existing emr.Person) bool {
	for _, c := range candidate.Identifiers {
		for _, e := range existing.ActiveIdentifiers() {
			if sameIdentifierType(c.IdentifierType, e.IdentifierType) && strings.EqualFold(c.Identifier, e.Identifier) {
				return true
			}
		}
	}
	return false
}

func sameIdentifierType(a, b emr.IdentifierType) bool {
	if a.Uuid != "" && b.Uuid != "" {
		return a.Uuid == b.Uuid
	}
	if a.Id != 0 && b.Id != 0 {
		return a.Id == b.Id
	}
	return a.Name != "" && strings.EqualFold(a.Name, b.Name)
}
