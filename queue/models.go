package queue

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Dialect identifies the payload format of a submission
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectJSONDotted
	DialectJSONPath
	DialectJSONFormFields
	DialectXMLRegistration
	DialectXMLEncounter
)

func (d Dialect) String() string {
	switch d {
	case DialectJSONDotted:
		return "JSON_DOTTED"
	case DialectJSONPath:
		return "JSON_JSONPATH"
	case DialectJSONFormFields:
		return "JSON_FORM_FIELDS"
	case DialectXMLRegistration:
		return "XML_REGISTRATION"
	case DialectXMLEncounter:
		return "XML_ENCOUNTER"
	default:
		return "UNKNOWN"
	}
}

// Submission is a single queued form submission. It is immutable once read from the queue.
type Submission struct {
	SubmissionID  string
	Discriminator string
	Dialect       Dialect
	Payload       string
	Source        string
	DateCreated   time.Time
}

// Document is the queue data document as it appears in the change stream
type Document struct {
	Id            *primitive.ObjectID `bson:"_id,omitempty"`
	Uuid          string              `bson:"uuid"`
	Discriminator string              `bson:"discriminator"`
	Payload       string              `bson:"payload"`
	FormName      string              `bson:"formName"`
	Source        string              `bson:"source"`
	DateCreated   *time.Time          `bson:"dateCreated"`
}

// SubmissionID returns the document uuid, falling back to the object id
func (d Document) SubmissionID() string {
	if d.Uuid != "" {
		return d.Uuid
	}
	if d.Id != nil {
		return d.Id.Hex()
	}
	return ""
}
