package test

import (
	"context"
	"strings"
	"sync"

	"github.com/muzima/registration-worker/emr"
)

// EMR is an in-memory host EMR. Zero values of the master data maps behave as "not found".
type EMR struct {
	IdentifierTypes []emr.IdentifierType
	Locations       []emr.Location
	Concepts        []emr.Concept
	EncounterTypes  []emr.EncounterType
	Forms           []emr.Form
	Users           []emr.User

	Persons    []emr.Person
	Encounters []emr.Encounter

	// CreatePersonErr is returned by CreatePerson when set
	CreatePersonErr error
	// CreateEncounterErr is returned by CreateEncounter when set
	CreateEncounterErr error

	mu sync.Mutex
}

var _ emr.MasterData = &EMR{}
var _ emr.PersonDirectory = &EMR{}
var _ emr.EncounterWriter = &EMR{}

func NewEMR() *EMR {
	return &EMR{}
}

func (e *EMR) IdentifierTypeByName(_ context.Context, name string) (*emr.IdentifierType, error) {
	return first(e.IdentifierTypes, func(t emr.IdentifierType) bool { return t.Name == name }), nil
}

func (e *EMR) IdentifierTypeById(_ context.Context, id int) (*emr.IdentifierType, error) {
	return first(e.IdentifierTypes, func(t emr.IdentifierType) bool { return t.Id == id }), nil
}

func (e *EMR) IdentifierTypeByUuid(_ context.Context, uuid string) (*emr.IdentifierType, error) {
	return first(e.IdentifierTypes, func(t emr.IdentifierType) bool { return t.Uuid == uuid }), nil
}

func (e *EMR) LocationById(_ context.Context, id int) (*emr.Location, error) {
	return first(e.Locations, func(l emr.Location) bool { return l.Id == id }), nil
}

func (e *EMR) LocationByUuid(_ context.Context, uuid string) (*emr.Location, error) {
	return first(e.Locations, func(l emr.Location) bool { return l.Uuid == uuid }), nil
}

func (e *EMR) ConceptById(_ context.Context, id int) (*emr.Concept, error) {
	return first(e.Concepts, func(c emr.Concept) bool { return c.Id == id }), nil
}

func (e *EMR) EncounterTypeById(_ context.Context, id int) (*emr.EncounterType, error) {
	return first(e.EncounterTypes, func(t emr.EncounterType) bool { return t.Id == id }), nil
}

func (e *EMR) EncounterTypeByUuid(_ context.Context, uuid string) (*emr.EncounterType, error) {
	return first(e.EncounterTypes, func(t emr.EncounterType) bool { return t.Uuid == uuid }), nil
}

func (e *EMR) FormByUuid(_ context.Context, uuid string) (*emr.Form, error) {
	return first(e.Forms, func(f emr.Form) bool { return f.Uuid == uuid }), nil
}

func (e *EMR) UserById(_ context.Context, id int) (*emr.User, error) {
	return first(e.Users, func(u emr.User) bool { return u.Id == id }), nil
}

func (e *EMR) UserByUsername(_ context.Context, username string) (*emr.User, error) {
	return first(e.Users, func(u emr.User) bool { return u.Username == username }), nil
}

func (e *EMR) UserByUuid(_ context.Context, uuid string) (*emr.User, error) {
	return first(e.Users, func(u emr.User) bool { return u.Uuid == uuid }), nil
}

func (e *EMR) FindPersonsByIdentifier(_ context.Context, identifier string) ([]emr.Person, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var found []emr.Person
	for _, person := range e.Persons {
		for _, id := range person.ActiveIdentifiers() {
			if id.Identifier == identifier {
				found = append(found, person)
				break
			}
		}
	}
	return found, nil
}

func (e *EMR) FindPersonsByName(_ context.Context, fullName string) ([]emr.Person, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var found []emr.Person
	for _, person := range e.Persons {
		if strings.EqualFold(person.Name.FullName(), fullName) {
			found = append(found, person)
		}
	}
	return found, nil
}

func (e *EMR) GetPerson(_ context.Context, uuid string) (*emr.Person, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return first(e.Persons, func(p emr.Person) bool { return p.Uuid == uuid }), nil
}

func (e *EMR) CreatePerson(_ context.Context, person emr.Person) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.CreatePersonErr != nil {
		return e.CreatePersonErr
	}
	if first(e.Persons, func(p emr.Person) bool { return p.Uuid == person.Uuid }) != nil {
		return emr.ErrConflict
	}
	e.Persons = append(e.Persons, person)
	return nil
}

func (e *EMR) CreateEncounter(_ context.Context, encounter emr.Encounter) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.CreateEncounterErr != nil {
		return e.CreateEncounterErr
	}
	if first(e.Encounters, func(c emr.Encounter) bool { return c.Uuid == encounter.Uuid }) != nil {
		return emr.ErrConflict
	}
	e.Encounters = append(e.Encounters, encounter)
	return nil
}

func (e *EMR) EncounterCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.Encounters)
}

func (e *EMR) PersonCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.Persons)
}

func first[T any](items []T, match func(T) bool) *T {
	for i := range items {
		if match(items[i]) {
			item := items[i]
			return &item
		}
	}
	return nil
}
