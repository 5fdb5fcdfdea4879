package test

import "github.com/muzima/registration-worker/emr"

var AdultReturn = emr.EncounterType{Id: 2, Uuid: "encounter-type-uuid-adult", Name: "ADULT RETURN"}

// NewSeededEMR returns an EMR holding the master data referenced by the test fixtures
func NewSeededEMR() *EMR {
	adultReturn := AdultReturn
	return &EMR{
		IdentifierTypes: []emr.IdentifierType{
			{Id: 3, Uuid: "type-uuid-amrs", Name: "AMRS Universal ID"},
			{Id: 4, Uuid: "type-uuid-a", Name: "A"},
			{Id: 5, Uuid: "type-uuid-b", Name: "B"},
			{Id: 6, Uuid: "type-uuid-national", Name: "National ID"},
		},
		Locations: []emr.Location{
			{Id: 7, Uuid: "location-uuid-7", Name: "Clinic 7"},
		},
		Concepts: []emr.Concept{
			{Id: 5089, Uuid: "concept-uuid-5089", Name: "WEIGHT (KG)", Datatype: emr.DatatypeNumeric},
			{Id: 1559, Uuid: "concept-uuid-1559", Name: "VITAL SIGNS", Datatype: emr.DatatypeNA, IsSet: true},
			{Id: 5085, Uuid: "concept-uuid-5085", Name: "SYSTOLIC BLOOD PRESSURE", Datatype: emr.DatatypeNumeric},
			{Id: 5086, Uuid: "concept-uuid-5086", Name: "DIASTOLIC BLOOD PRESSURE", Datatype: emr.DatatypeNumeric},
			{Id: 1193, Uuid: "concept-uuid-1193", Name: "CURRENT MEDICATIONS", Datatype: emr.DatatypeCoded},
			{Id: 1065, Uuid: "concept-uuid-1065", Name: "YES", Datatype: emr.DatatypeNA},
			{Id: 5096, Uuid: "concept-uuid-5096", Name: "RETURN VISIT DATE", Datatype: emr.DatatypeDate},
			{Id: 1069, Uuid: "concept-uuid-1069", Name: "SYMPTOMS", Datatype: emr.DatatypeCoded},
			{Id: 140238, Uuid: "concept-uuid-140238", Name: "FEVER", Datatype: emr.DatatypeNA},
			{Id: 143264, Uuid: "concept-uuid-143264", Name: "COUGH", Datatype: emr.DatatypeNA},
		},
		EncounterTypes: []emr.EncounterType{
			{Id: 1, Uuid: "encounter-type-uuid-initial", Name: "ADULT INITIAL"},
			adultReturn,
		},
		Forms: []emr.Form{
			{Id: 11, Uuid: "form-uuid-adult", Name: "Adult Return Visit", EncounterType: &adultReturn},
			{Id: 12, Uuid: "form-uuid-registration", Name: "Registration"},
		},
		Users: []emr.User{
			{Id: 1, Uuid: "user-uuid-1", Username: "admin"},
		},
	}
}

func (e *EMR) RemoveConcept(id int) {
	kept := e.Concepts[:0]
	for _, concept := range e.Concepts {
		if concept.Id != id {
			kept = append(kept, concept)
		}
	}
	e.Concepts = kept
}
