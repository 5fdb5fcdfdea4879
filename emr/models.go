package emr

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Datatype string

const (
	DatatypeNumeric  Datatype = "Numeric"
	DatatypeCoded    Datatype = "Coded"
	DatatypeText     Datatype = "Text"
	DatatypeDate     Datatype = "Date"
	DatatypeTime     Datatype = "Time"
	DatatypeDatetime Datatype = "Datetime"
	DatatypeNA       Datatype = "N/A"
)

// IsTemporal is true for date, time and datetime concepts
func (d Datatype) IsTemporal() bool {
	return d == DatatypeDate || d == DatatypeTime || d == DatatypeDatetime
}

type IdentifierType struct {
	Id   int    `json:"id"`
	Uuid string `json:"uuid"`
	Name string `json:"name"`
}

type Location struct {
	Id   int    `json:"id"`
	Uuid string `json:"uuid"`
	Name string `json:"name"`
}

type Concept struct {
	Id       int      `json:"id"`
	Uuid     string   `json:"uuid"`
	Name     string   `json:"name"`
	Datatype Datatype `json:"datatype"`
	IsSet    bool     `json:"set"`
}

type EncounterType struct {
	Id   int    `json:"id"`
	Uuid string `json:"uuid"`
	Name string `json:"name"`
}

type Form struct {
	Id            int            `json:"id"`
	Uuid          string         `json:"uuid"`
	Name          string         `json:"name"`
	EncounterType *EncounterType `json:"encounterType,omitempty"`
}

type User struct {
	Id       int    `json:"id"`
	Uuid     string `json:"uuid"`
	Username string `json:"username"`
}

type PersonName struct {
	GivenName  string `json:"givenName"`
	MiddleName string `json:"middleName,omitempty"`
	FamilyName string `json:"familyName"`
}

// FullName joins the non-blank name parts with a single space
func (n PersonName) FullName() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{n.GivenName, n.MiddleName, n.FamilyName} {
		if p := strings.TrimSpace(part); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

type Address struct {
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
}

func (a *Address) IsEmpty() bool {
	return a == nil || (a.Address1 == "" && a.Address2 == "")
}

type Identifier struct {
	Identifier     string         `json:"identifier"`
	IdentifierType IdentifierType `json:"identifierType"`
	Location       *Location      `json:"location,omitempty"`
	Preferred      bool           `json:"preferred"`
	Voided         bool           `json:"voided,omitempty"`
}

type Person struct {
	Uuid               string       `json:"uuid"`
	Name               PersonName   `json:"name"`
	Gender             string       `json:"gender"`
	Birthdate          *time.Time   `json:"birthdate,omitempty"`
	BirthdateEstimated bool         `json:"birthdateEstimated"`
	Identifiers        []Identifier `json:"identifiers,omitempty"`
	Address            *Address     `json:"address,omitempty"`
}

// PreferredIdentifier returns the preferred active identifier or the first active one
func (p Person) PreferredIdentifier() *Identifier {
	active := p.ActiveIdentifiers()
	for i := range active {
		if active[i].Preferred {
			return &active[i]
		}
	}
	if len(active) > 0 {
		return &active[0]
	}
	return nil
}

func (p Person) ActiveIdentifiers() []Identifier {
	active := make([]Identifier, 0, len(p.Identifiers))
	for _, identifier := range p.Identifiers {
		if !identifier.Voided {
			active = append(active, identifier)
		}
	}
	return active
}

// Obs is an observation as accepted by the encounter endpoint. Group obs carry members and no value.
type Obs struct {
	Concept       Concept          `json:"concept"`
	ValueNumeric  *decimal.Decimal `json:"valueNumeric,omitempty"`
	ValueCoded    *Concept         `json:"valueCoded,omitempty"`
	ValueDatetime *time.Time       `json:"valueDatetime,omitempty"`
	ValueText     *string          `json:"valueText,omitempty"`
	GroupMembers  []Obs            `json:"groupMembers,omitempty"`
}

type Encounter struct {
	Uuid          string        `json:"uuid"`
	Patient       string        `json:"patient"`
	EncounterType EncounterType `json:"encounterType"`
	Form          *Form         `json:"form,omitempty"`
	Provider      *User         `json:"provider,omitempty"`
	Location      Location      `json:"location"`
	Datetime      *time.Time    `json:"encounterDatetime,omitempty"`
	Obs           []Obs         `json:"obs,omitempty"`
}
