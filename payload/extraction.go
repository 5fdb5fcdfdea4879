package payload

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/muzima/registration-worker/emr"
	"github.com/muzima/registration-worker/issues"
	"github.com/muzima/registration-worker/queue"
)

type RefKind int

const (
	RefNone RefKind = iota
	RefById
	RefByUuid
	RefByName
)

// Ref is a master data reference exactly as the payload carries it. Resolution happens during reconciliation.
type Ref struct {
	Kind  RefKind
	Value string
}

func ById(value string) Ref {
	return newRef(RefById, value)
}

func ByUuid(value string) Ref {
	return newRef(RefByUuid, value)
}

func ByName(value string) Ref {
	return newRef(RefByName, value)
}

func newRef(kind RefKind, value string) Ref {
	value = strings.TrimSpace(value)
	if value == "" {
		return Ref{}
	}
	return Ref{Kind: kind, Value: value}
}

func (r Ref) IsZero() bool {
	return r.Kind == RefNone
}

func (r Ref) Id() (int, error) {
	return strconv.Atoi(r.Value)
}

func (r Ref) String() string {
	switch r.Kind {
	case RefById:
		return "id " + r.Value
	case RefByUuid:
		return "uuid " + r.Value
	case RefByName:
		return "name " + r.Value
	default:
		return "<none>"
	}
}

type Identifier struct {
	Type      Ref
	Value     string
	Location  Ref
	Preferred bool
}

// Candidate is the unsaved person described by a submission
type Candidate struct {
	TemporaryId        string
	Name               emr.PersonName
	Sex                string
	Birthdate          *time.Time
	BirthdateEstimated bool
	Identifiers        []Identifier
	Address            *emr.Address
}

// IdentifierValue returns the value used to look the candidate up: the preferred identifier, else the first non-blank one
func (c Candidate) IdentifierValue() string {
	for _, identifier := range c.Identifiers {
		if identifier.Preferred && identifier.Value != "" {
			return identifier.Value
		}
	}
	for _, identifier := range c.Identifiers {
		if identifier.Value != "" {
			return identifier.Value
		}
	}
	return ""
}

// EncounterRef is the unresolved encounter metadata of a submission
type EncounterRef struct {
	EncounterType Ref
	Form          Ref
	Provider      Ref
	Location      Ref
	Datetime      *time.Time
	// PreferFormEncounterType gives the encounter type of the form precedence over EncounterType
	PreferFormEncounterType bool
}

// ConceptKey is a concept reference encoded as "<id>^<name>^<source>"
type ConceptKey struct {
	Id     int
	Name   string
	Source string
	Raw    string
}

// ParseConceptKey parses a concept reference. When strict is set all three segments are required.
func ParseConceptKey(raw string, strict bool) (ConceptKey, error) {
	raw = strings.TrimSpace(raw)
	segments := strings.Split(raw, "^")
	if strict && len(segments) < 3 {
		return ConceptKey{}, fmt.Errorf("concept reference %q does not have three segments", raw)
	}
	id, err := strconv.Atoi(strings.TrimSpace(segments[0]))
	if err != nil {
		return ConceptKey{}, fmt.Errorf("concept reference %q does not start with an id", raw)
	}

	key := ConceptKey{Id: id, Raw: raw}
	if len(segments) > 1 {
		key.Name = segments[1]
	}
	if len(segments) > 2 {
		key.Source = segments[2]
	}
	return key, nil
}

type ObsId int

// ObsNode is an observation of the payload. Group nodes have members and no value.
type ObsNode struct {
	Concept ConceptKey
	Value   string
	Group   bool
	Members []ObsId
}

// ObsTree is an arena of observation nodes. Members are referenced by their index in Nodes.
type ObsTree struct {
	Nodes []ObsNode
	Roots []ObsId
}

// Add appends node as a member of parent, or as a root when parent is nil
func (t *ObsTree) Add(parent *ObsId, node ObsNode) ObsId {
	id := ObsId(len(t.Nodes))
	t.Nodes = append(t.Nodes, node)
	if parent == nil {
		t.Roots = append(t.Roots, id)
	} else {
		t.Nodes[*parent].Members = append(t.Nodes[*parent].Members, id)
	}
	return id
}

func (t *ObsTree) Node(id ObsId) ObsNode {
	return t.Nodes[id]
}

// Prune removes groups without members, innermost first
func (t *ObsTree) Prune() {
	var keep func(ids []ObsId) []ObsId
	keep = func(ids []ObsId) []ObsId {
		kept := ids[:0]
		for _, id := range ids {
			node := &t.Nodes[id]
			if node.Group {
				node.Members = keep(node.Members)
				if len(node.Members) == 0 {
					continue
				}
			}
			kept = append(kept, id)
		}
		return kept
	}
	t.Roots = keep(t.Roots)
}

// Size is the number of nodes reachable from the roots
func (t *ObsTree) Size() int {
	var count func(ids []ObsId) int
	count = func(ids []ObsId) int {
		total := len(ids)
		for _, id := range ids {
			total += count(t.Nodes[id].Members)
		}
		return total
	}
	return count(t.Roots)
}

type Extraction struct {
	Dialect   queue.Dialect
	Patient   Candidate
	Encounter EncounterRef
	Obs       ObsTree
	Issues    issues.List
}

type Config struct {
	PreferredIdentifierType string `envconfig:"RECONCILER_PREFERRED_IDENTIFIER_TYPE" default:"AMRS Universal ID"`
}

// Extractor converts raw payloads into extractions. It has no dependencies and is safe for concurrent use.
type Extractor struct {
	config Config
}

func NewExtractor(config Config) *Extractor {
	return &Extractor{config: config}
}

func (e *Extractor) Extract(submission queue.Submission) Extraction {
	extraction := Extraction{Dialect: submission.Dialect}
	switch submission.Dialect {
	case queue.DialectJSONDotted:
		e.extractDotted(submission.Payload, &extraction)
	case queue.DialectJSONPath:
		e.extractNested(submission.Payload, &extraction)
	case queue.DialectJSONFormFields:
		e.extractFormFields(submission.Payload, &extraction)
	case queue.DialectXMLRegistration:
		e.extractXMLRegistration(submission.Payload, &extraction)
	case queue.DialectXMLEncounter:
		e.extractXMLEncounter(submission.Payload, &extraction)
	default:
		extraction.Issues.Fatal(issues.Structural, "", "unsupported dialect %s", submission.Dialect)
	}
	extraction.Obs.Prune()
	return extraction
}
