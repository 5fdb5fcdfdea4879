package emr

import (
	"context"
	"errors"
)

// ErrNotFound is returned by the transport when the EMR has no such resource
var ErrNotFound = errors.New("emr: not found")

// ErrConflict is returned when a record with the same uuid already exists
var ErrConflict = errors.New("emr: record already exists")

// MasterData is the read-only reference data of the host EMR.
// Lookups return a nil reference and a nil error when nothing matches.
type MasterData interface {
	IdentifierTypeByName(ctx context.Context, name string) (*IdentifierType, error)
	IdentifierTypeById(ctx context.Context, id int) (*IdentifierType, error)
	IdentifierTypeByUuid(ctx context.Context, uuid string) (*IdentifierType, error)
	LocationById(ctx context.Context, id int) (*Location, error)
	LocationByUuid(ctx context.Context, uuid string) (*Location, error)
	ConceptById(ctx context.Context, id int) (*Concept, error)
	EncounterTypeById(ctx context.Context, id int) (*EncounterType, error)
	EncounterTypeByUuid(ctx context.Context, uuid string) (*EncounterType, error)
	FormByUuid(ctx context.Context, uuid string) (*Form, error)
	UserById(ctx context.Context, id int) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	UserByUuid(ctx context.Context, uuid string) (*User, error)
}

// PersonDirectory queries and creates persons in the host EMR
type PersonDirectory interface {
	FindPersonsByIdentifier(ctx context.Context, identifier string) ([]Person, error)
	FindPersonsByName(ctx context.Context, fullName string) ([]Person, error)
	GetPerson(ctx context.Context, uuid string) (*Person, error)
	// CreatePerson persists the person under its preset uuid. ErrConflict is returned if the uuid is taken.
	CreatePerson(ctx context.Context, person Person) error
}

// EncounterWriter persists a complete encounter with its observations as a single unit
type EncounterWriter interface {
	CreateEncounter(ctx context.Context, encounter Encounter) error
}
