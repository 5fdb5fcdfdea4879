package mapping

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("registration mapping not found")

// Record maps the temporary uuid a device generated for a person to the permanent uuid assigned to it.
// Records are created once and never updated.
type Record struct {
	TemporaryUuid string    `bson:"temporaryUuid" json:"temporaryUuid"`
	AssignedUuid  string    `bson:"assignedUuid" json:"assignedUuid"`
	SubmissionId  string    `bson:"submissionId,omitempty" json:"submissionId,omitempty"`
	CreatedTime   time.Time `bson:"createdTime" json:"createdTime"`
}

type Store interface {
	// Lookup returns the record of a temporary uuid or ErrNotFound
	Lookup(ctx context.Context, temporaryUuid string) (*Record, error)
	// Record creates the record unless one exists for the same temporary uuid. It returns the stored record
	// and whether this call created it. Concurrent calls for one temporary uuid create exactly one record.
	Record(ctx context.Context, record Record) (*Record, bool, error)
	// Release deletes the record of a temporary uuid if it is still assigned to assignedUuid
	Release(ctx context.Context, temporaryUuid, assignedUuid string) error
}

type Backend string

const (
	BackendMongo    Backend = "mongo"
	BackendPostgres Backend = "postgres"
)
