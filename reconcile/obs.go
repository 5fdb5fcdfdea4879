package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/muzima/registration-worker/emr"
	"github.com/muzima/registration-worker/issues"
	"github.com/muzima/registration-worker/payload"
)

type DraftId int

// ObsDraft is a resolved observation. Drafts of set concepts have members and no value.
type ObsDraft struct {
	Concept       emr.Concept
	ValueNumeric  *decimal.Decimal
	ValueCoded    *emr.Concept
	ValueDatetime *time.Time
	ValueText     *string
	Members       []DraftId
}

// ObsArena owns every draft of an encounter. Groups reference their members by index.
type ObsArena struct {
	Nodes []ObsDraft
	Roots []DraftId
}

func (a *ObsArena) add(parent *DraftId, draft ObsDraft) DraftId {
	id := DraftId(len(a.Nodes))
	a.Nodes = append(a.Nodes, draft)
	if parent == nil {
		a.Roots = append(a.Roots, id)
	} else {
		a.Nodes[*parent].Members = append(a.Nodes[*parent].Members, id)
	}
	return id
}

// detach removes the most recently added child of parent
func (a *ObsArena) detach(parent *DraftId) {
	if parent == nil {
		a.Roots = a.Roots[:len(a.Roots)-1]
	} else {
		members := a.Nodes[*parent].Members
		a.Nodes[*parent].Members = members[:len(members)-1]
	}
}

// Obs converts the arena into the nested observations accepted by the EMR
func (a *ObsArena) Obs() []emr.Obs {
	var convert func(ids []DraftId) []emr.Obs
	convert = func(ids []DraftId) []emr.Obs {
		if len(ids) == 0 {
			return nil
		}
		obs := make([]emr.Obs, 0, len(ids))
		for _, id := range ids {
			draft := a.Nodes[id]
			obs = append(obs, emr.Obs{
				Concept:       draft.Concept,
				ValueNumeric:  draft.ValueNumeric,
				ValueCoded:    draft.ValueCoded,
				ValueDatetime: draft.ValueDatetime,
				ValueText:     draft.ValueText,
				GroupMembers:  convert(draft.Members),
			})
		}
		return obs
	}
	return convert(a.Roots)
}

var timeLayouts = []string{"15:04:05", "15:04"}

// obsBuilder resolves the concepts of an extracted observation tree and parses leaf values by the
// datatype of their concept
type obsBuilder struct {
	master   emr.MasterData
	logger   *zap.SugaredLogger
	issues   *issues.List
	tree     *payload.ObsTree
	arena    ObsArena
	concepts map[int]*emr.Concept
}

func buildObs(ctx context.Context, master emr.MasterData, tree *payload.ObsTree, list *issues.List, logger *zap.SugaredLogger) (ObsArena, error) {
	builder := &obsBuilder{
		master:   master,
		logger:   logger,
		issues:   list,
		tree:     tree,
		concepts: make(map[int]*emr.Concept),
	}
	if err := builder.build(ctx, tree.Roots, nil); err != nil {
		return ObsArena{}, err
	}
	return builder.arena, nil
}

func (b *obsBuilder) build(ctx context.Context, ids []payload.ObsId, parent *DraftId) error {
	for _, id := range ids {
		node := b.tree.Node(id)
		concept, err := b.concept(ctx, node.Concept.Id)
		if err != nil {
			return err
		}
		if concept == nil {
			b.logger.Infow("skipping observation, concept is not available", "concept", node.Concept.Raw)
			b.issues.Warn(issues.Reference, node.Concept.Raw, "unable to find concept with id %d", node.Concept.Id)
			continue
		}

		if node.Group {
			if !concept.IsSet {
				b.issues.Fatal(issues.Data, node.Concept.Raw, "concept %d is not a set but the observation has members", concept.Id)
				continue
			}
			group := b.arena.add(parent, ObsDraft{Concept: *concept})
			if err := b.build(ctx, node.Members, &group); err != nil {
				return err
			}
			if len(b.arena.Nodes[group].Members) == 0 {
				b.arena.detach(parent)
			}
			continue
		}

		if concept.IsSet {
			b.issues.Fatal(issues.Data, node.Concept.Raw, "concept %d is a set but the observation has a value", concept.Id)
			continue
		}
		draft, ok, err := b.leaf(ctx, *concept, node)
		if err != nil {
			return err
		}
		if ok {
			b.arena.add(parent, draft)
		}
	}
	return nil
}

func (b *obsBuilder) leaf(ctx context.Context, concept emr.Concept, node payload.ObsNode) (ObsDraft, bool, error) {
	draft := ObsDraft{Concept: concept}
	value := strings.TrimSpace(node.Value)

	switch {
	case concept.Datatype == emr.DatatypeNumeric:
		numeric, err := decimal.NewFromString(value)
		if err != nil {
			b.issues.Fatal(issues.Data, node.Concept.Raw, "unable to parse numeric value %q", value)
			return draft, false, nil
		}
		draft.ValueNumeric = &numeric
	case concept.Datatype.IsTemporal():
		datetime, err := parseTemporal(concept.Datatype, value)
		if err != nil {
			b.issues.Fatal(issues.Data, node.Concept.Raw, "%s", err.Error())
			return draft, false, nil
		}
		draft.ValueDatetime = datetime
	case concept.Datatype == emr.DatatypeCoded:
		key, err := payload.ParseConceptKey(value, false)
		if err != nil {
			b.issues.Fatal(issues.Data, node.Concept.Raw, "unable to parse coded value: %s", err.Error())
			return draft, false, nil
		}
		coded, err := b.concept(ctx, key.Id)
		if err != nil {
			return draft, false, err
		}
		if coded == nil {
			b.issues.Fatal(issues.Reference, node.Concept.Raw, "unable to find concept for value coded with id %d", key.Id)
			return draft, false, nil
		}
		draft.ValueCoded = coded
	default:
		draft.ValueText = &value
	}
	return draft, true, nil
}

func parseTemporal(datatype emr.Datatype, value string) (*time.Time, error) {
	if datatype == emr.DatatypeTime {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return &t, nil
			}
		}
	}
	datetime, err := payload.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s value %q", strings.ToLower(string(datatype)), value)
	}
	return datetime, nil
}

func (b *obsBuilder) concept(ctx context.Context, id int) (*emr.Concept, error) {
	if concept, ok := b.concepts[id]; ok {
		return concept, nil
	}
	concept, err := b.master.ConceptById(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("unable to get concept %d: %w", id, err)
	}
	b.concepts[id] = concept
	return concept, nil
}
