package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepmap/oapi-codegen/pkg/types"

	"github.com/muzima/registration-worker/emr"
	"github.com/muzima/registration-worker/mapping"
)

// ErrNotFound is returned when a temporary uuid was never reconciled or its person no longer exists
var ErrNotFound = errors.New("registration not found")

type Registration struct {
	TemporaryUuid string     `json:"temporaryUuid"`
	AssignedUuid  string     `json:"assignedUuid"`
	SubmissionId  string     `json:"submissionId,omitempty"`
	Submitted     *time.Time `json:"submitted,omitempty"`
	// Display is "identifier - full name", or empty when the person has no identifier
	Display string  `json:"display"`
	Patient Patient `json:"patient"`
}

type Patient struct {
	Uuid        string       `json:"uuid"`
	Name        string       `json:"name"`
	Gender      string       `json:"gender"`
	Birthdate   *types.Date  `json:"birthdate,omitempty"`
	Identifier  string       `json:"identifier,omitempty"`
	Identifiers []Identifier `json:"identifiers"`
}

type Identifier struct {
	Identifier     string `json:"identifier"`
	IdentifierType string `json:"identifierType"`
	Preferred      bool   `json:"preferred"`
}

type Service interface {
	Get(ctx context.Context, temporaryUuid string) (*Registration, error)
}

type service struct {
	store     mapping.Store
	directory emr.PersonDirectory
}

func NewService(store mapping.Store, directory emr.PersonDirectory) Service {
	return &service{
		store:     store,
		directory: directory,
	}
}

func (s *service) Get(ctx context.Context, temporaryUuid string) (*Registration, error) {
	record, err := s.store.Lookup(ctx, temporaryUuid)
	if errors.Is(err, mapping.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	person, err := s.directory.GetPerson(ctx, record.AssignedUuid)
	if err != nil {
		return nil, fmt.Errorf("unable to get person %s: %w", record.AssignedUuid, err)
	}
	if person == nil {
		return nil, ErrNotFound
	}

	registration := &Registration{
		TemporaryUuid: record.TemporaryUuid,
		AssignedUuid:  record.AssignedUuid,
		SubmissionId:  record.SubmissionId,
		Patient:       NewPatient(*person),
	}
	if !record.CreatedTime.IsZero() {
		submitted := record.CreatedTime
		registration.Submitted = &submitted
	}
	if registration.Patient.Identifier != "" {
		registration.Display = registration.Patient.Identifier + " - " + registration.Patient.Name
	}
	return registration, nil
}

func NewPatient(person emr.Person) Patient {
	patient := Patient{
		Uuid:        person.Uuid,
		Name:        person.Name.FullName(),
		Gender:      person.Gender,
		Identifiers: []Identifier{},
	}
	if person.Birthdate != nil {
		patient.Birthdate = &types.Date{Time: *person.Birthdate}
	}
	if preferred := person.PreferredIdentifier(); preferred != nil {
		patient.Identifier = preferred.Identifier
	}
	for _, identifier := range person.ActiveIdentifiers() {
		patient.Identifiers = append(patient.Identifiers, Identifier{
			Identifier:     identifier.Identifier,
			IdentifierType: identifier.IdentifierType.Name,
			Preferred:      identifier.Preferred,
		})
	}
	return patient
}
