package payload

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/muzima/registration-worker/emr"
	"github.com/muzima/registration-worker/issues"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate accepts a calendar date and, for the dialects carrying time of day, a datetime
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unable to parse date %q", value)
}

// fields addresses the dotted keys of a payload ("patient.given_name", "encounter.location_id", ...)
type fields interface {
	// value returns the trimmed value of the first field named key
	value(key string) (string, bool)
	// values returns every value of the fields named key with arrays fanned out
	values(key string) []string
}

// lookup returns the first present, non-blank value among the aliases of a field
func lookup(src fields, keys ...string) (string, string) {
	for _, key := range keys {
		if value, ok := src.value(key); ok && value != "" {
			return value, key
		}
	}
	return "", ""
}

func readCandidate(src fields, preferredIdentifierType string, list *issues.List) Candidate {
	candidate := Candidate{}
	candidate.TemporaryId, _ = lookup(src, "patient.uuid")
	candidate.Name = emr.PersonName{}
	candidate.Name.GivenName, _ = lookup(src, "patient.given_name")
	candidate.Name.MiddleName, _ = lookup(src, "patient.middle_name")
	candidate.Name.FamilyName, _ = lookup(src, "patient.family_name")
	candidate.Sex, _ = lookup(src, "patient.sex", "patient.gender")

	if value, key := lookup(src, "patient.birth_date", "patient.birthdate"); key != "" {
		birthdate, err := ParseDate(value)
		if err != nil {
			list.Warn(issues.Data, key, "%s", err.Error())
		}
		candidate.Birthdate = birthdate
	}
	if value, key := lookup(src, "patient.birthdate_estimated"); key != "" {
		estimated, err := strconv.ParseBool(value)
		if err != nil {
			list.Warn(issues.Data, key, "unable to parse boolean %q", value)
		}
		candidate.BirthdateEstimated = estimated
	}

	address := &emr.Address{}
	address.Address1, _ = lookup(src, "person_address.address1")
	address.Address2, _ = lookup(src, "person_address.address2")
	if !address.IsEmpty() {
		candidate.Address = address
	}

	candidate.Identifiers = readIdentifiers(src, preferredIdentifierType, list)
	return candidate
}

func readIdentifiers(src fields, preferredIdentifierType string, list *issues.List) []Identifier {
	var identifiers []Identifier
	locationId, _ := lookup(src, "encounter.location_id")
	location := ById(locationId)

	if value, ok := src.value("patient.identifier"); ok {
		typeUuid, _ := lookup(src, "patient.identifier_type")
		locationUuid, _ := lookup(src, "patient.identifier_location")
		identifier := Identifier{Type: ByUuid(typeUuid), Value: value, Location: ByUuid(locationUuid), Preferred: true}
		if identifier.Location.IsZero() {
			identifier.Location = location
		}
		identifiers = appendIdentifier(identifiers, identifier, "patient.identifier", list)
	}

	if value, ok := src.value("patient.medical_record_number"); ok {
		identifierType := ByName(preferredIdentifierType)
		if typeId, key := lookup(src, "patient_identifier.identifier_type_id"); key != "" {
			identifierType = ById(typeId)
		}
		identifier := Identifier{Type: identifierType, Value: value, Location: location, Preferred: len(identifiers) == 0}
		identifiers = appendIdentifier(identifiers, identifier, "patient.medical_record_number", list)
	}

	typeNames := src.values("other_identifier_type")
	values := src.values("other_identifier_value")
	if len(typeNames) != len(values) {
		list.Fatal(issues.Structural, "other_identifier_type", "%d identifier types but %d identifier values", len(typeNames), len(values))
	}
	for i := 0; i < len(typeNames) && i < len(values); i++ {
		identifier := Identifier{Type: ByName(typeNames[i]), Value: values[i], Location: location}
		identifiers = appendIdentifier(identifiers, identifier, "other_identifier_value", list)
	}

	return identifiers
}

func appendIdentifier(identifiers []Identifier, identifier Identifier, field string, list *issues.List) []Identifier {
	if identifier.Value == "" {
		list.Warn(issues.Data, field, "skipping blank identifier value for identifier type %s", identifier.Type)
		return identifiers
	}
	if identifier.Type.IsZero() {
		list.Fatal(issues.Reference, field, "identifier %s does not name an identifier type", identifier.Value)
		return identifiers
	}
	return append(identifiers, identifier)
}

func readEncounter(src fields, list *issues.List) EncounterRef {
	encounter := EncounterRef{}

	if value, key := lookup(src, "encounter.encounter_datetime", "encounter.datetime", "datetime"); key != "" {
		datetime, err := ParseDate(value)
		if err != nil {
			list.Warn(issues.Data, key, "%s", err.Error())
		}
		encounter.Datetime = datetime
	}

	if value, key := lookup(src, "encounter.location_id"); key != "" {
		encounter.Location = ById(value)
	} else if value, key := lookup(src, "location.uuid", "encounter.location_uuid"); key != "" {
		encounter.Location = ByUuid(value)
	}

	if value, key := lookup(src, "encounter.provider_id"); key != "" {
		encounter.Provider = ByName(value)
	} else if value, key := lookup(src, "provider.uuid", "encounter.provider_uuid"); key != "" {
		encounter.Provider = ByUuid(value)
	}

	if value, key := lookup(src, "encounter.form_uuid", "form.uuid"); key != "" {
		encounter.Form = ByUuid(value)
	}

	if value, key := lookup(src, "encounter.encounter_type"); key != "" {
		encounter.EncounterType = ById(value)
	} else if value, key := lookup(src, "encounterType.uuid", "encounter.encounter_type_uuid"); key != "" {
		encounter.EncounterType = ByUuid(value)
	}

	return encounter
}
