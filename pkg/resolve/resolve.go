package resolve

import (
	"sort"
	"strings"
	"time"

	"github.com/graphscribe/backend/pkg/logger"
	"github.com/graphscribe/backend/pkg/model"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	typeUnknown = "Unknown"

	fuzzyThreshold    = 0.85
	semanticThreshold = 0.92

	descriptionSeparator = " | "
)

// workingEntity is the mutable, resolution-time representation of a
// candidate canonical entity. It is owned exclusively by one Resolve call
// and frozen into a model.GraphNode at the end.
type workingEntity struct {
	id           string
	name         string
	entityType   string
	description  string
	confidence   float64
	sourceDocs   map[string]struct{}
	sourceChunks map[string]struct{}
	aliases      map[string]struct{}
	createdAt    time.Time
	updatedAt    time.Time
}

// Resolver reconciles per-chunk extraction results into a single
// canonical node/edge set. Resolution is pure and synchronous: it never
// fails on malformed mentions beyond defensive trimming and defaulting.
//
// Clustering is greedy and first-fit by design: the fuzzy and semantic
// stages scan in encounter order and merge into the first acceptable
// match, so input order can change merge outcomes.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve consumes every extraction batch for one document and produces
// the deduplicated graph. Processing is a three-stage pipeline: exact
// normalized-key grouping, fuzzy name matching, then semantic description
// matching; relation mentions are remapped onto the surviving entities
// afterwards.
func (r *Resolver) Resolve(documentID string, extractions []model.ChunkExtraction) (*model.ResolvedGraph, error) {
	entities, err := collectWorkingEntities(documentID, extractions)
	if err != nil {
		return nil, err
	}

	mentionCount := len(entities)
	entities = mergeExactMatches(entities)
	entities = mergeFuzzyMatches(entities)
	entities = mergeSemanticMatches(entities)

	logger.Debug("[Resolve] Entity clustering completed",
		"document_id", documentID,
		"mentions", mentionCount,
		"entities", len(entities),
	)

	edges, err := remapRelations(documentID, extractions, entities)
	if err != nil {
		return nil, err
	}

	nodes := make([]model.GraphNode, 0, len(entities))
	for _, e := range entities {
		nodes = append(nodes, e.toNode())
	}

	return &model.ResolvedGraph{
		Nodes: nodes,
		Edges: edges,
	}, nil
}

// collectWorkingEntities turns every mention into a fresh working entity
// with single-element alias and source sets, preserving encounter order.
func collectWorkingEntities(documentID string, extractions []model.ChunkExtraction) ([]*workingEntity, error) {
	now := time.Now().UTC()

	entities := make([]*workingEntity, 0)
	for _, extraction := range extractions {
		for _, mention := range extraction.Entities {
			id, err := gonanoid.New()
			if err != nil {
				return nil, err
			}

			name := strings.TrimSpace(mention.Name)
			e := &workingEntity{
				id:           id,
				name:         name,
				entityType:   normalizeType(mention.Type),
				description:  strings.TrimSpace(mention.Description),
				confidence:   clampConfidence(mention.Confidence),
				sourceDocs:   map[string]struct{}{documentID: {}},
				sourceChunks: map[string]struct{}{extraction.ChunkID: {}},
				aliases:      map[string]struct{}{name: {}},
				createdAt:    now,
				updatedAt:    now,
			}
			entities = append(entities, e)
		}
	}

	return entities, nil
}

// mergeExactMatches groups entities by their canonical key and merges
// each group left to right in encounter order.
func mergeExactMatches(entities []*workingEntity) []*workingEntity {
	byKey := make(map[string]*workingEntity)
	result := make([]*workingEntity, 0, len(entities))

	for _, e := range entities {
		key := normalizeName(e.name)
		if existing, ok := byKey[key]; ok {
			existing.absorb(e)
			continue
		}
		byKey[key] = e
		result = append(result, e)
	}

	return result
}

// mergeFuzzyMatches scans the exact-stage survivors once, left to right,
// merging each entity into the first already-accepted entity of the same
// type whose blended name similarity reaches the threshold.
func mergeFuzzyMatches(entities []*workingEntity) []*workingEntity {
	accepted := make([]*workingEntity, 0, len(entities))

	for _, candidate := range entities {
		candidateKey := normalizeName(candidate.name)

		merged := false
		for _, existing := range accepted {
			if existing.entityType != candidate.entityType {
				continue
			}
			if nameSimilarity(normalizeName(existing.name), candidateKey) >= fuzzyThreshold {
				existing.absorb(candidate)
				merged = true
				break
			}
		}
		if !merged {
			accepted = append(accepted, candidate)
		}
	}

	return accepted
}

// mergeSemanticMatches drains a FIFO queue of the fuzzy-stage survivors.
// The front entity repeatedly absorbs any remaining same-type entity whose
// description similarity reaches the threshold, then moves to the result.
func mergeSemanticMatches(entities []*workingEntity) []*workingEntity {
	queue := make([]*workingEntity, len(entities))
	copy(queue, entities)

	result := make([]*workingEntity, 0, len(entities))
	for len(queue) > 0 {
		front := queue[0]
		queue = queue[1:]

		for {
			merged := false
			remaining := queue[:0]
			for _, other := range queue {
				if other.entityType == front.entityType &&
					descriptionSimilarity(front.description, other.description) >= semanticThreshold {
					front.absorb(other)
					merged = true
					continue
				}
				remaining = append(remaining, other)
			}
			queue = remaining
			if !merged {
				break
			}
		}

		result = append(result, front)
	}

	return result
}

// absorb merges other into e; e survives and keeps its id and createdAt.
func (e *workingEntity) absorb(other *workingEntity) {
	if len(other.name) > len(e.name) {
		e.name = other.name
	}
	if e.entityType == typeUnknown && other.entityType != typeUnknown {
		e.entityType = other.entityType
	}
	e.description = mergeDescriptions(e.description, other.description)
	e.confidence = (e.confidence + other.confidence) / 2.0

	for doc := range other.sourceDocs {
		e.sourceDocs[doc] = struct{}{}
	}
	for chunk := range other.sourceChunks {
		e.sourceChunks[chunk] = struct{}{}
	}
	for alias := range other.aliases {
		e.aliases[alias] = struct{}{}
	}

	e.updatedAt = time.Now().UTC()
}

// mergeDescriptions unions the non-empty, trimmed segments of both
// descriptions, dropping exact duplicates and preserving order.
func mergeDescriptions(a, b string) string {
	seen := make(map[string]struct{})
	segments := make([]string, 0)

	for _, raw := range append(strings.Split(a, descriptionSeparator), strings.Split(b, descriptionSeparator)...) {
		segment := strings.TrimSpace(raw)
		if segment == "" {
			continue
		}
		if _, ok := seen[segment]; ok {
			continue
		}
		seen[segment] = struct{}{}
		segments = append(segments, segment)
	}

	return strings.Join(segments, descriptionSeparator)
}

func (e *workingEntity) toNode() model.GraphNode {
	return model.GraphNode{
		ID:              e.id,
		Name:            e.name,
		Type:            e.entityType,
		Description:     e.description,
		Confidence:      e.confidence,
		SourceDocuments: sortedKeys(e.sourceDocs),
		SourceChunks:    sortedKeys(e.sourceChunks),
		Aliases:         sortedKeys(e.aliases),
		CreatedAt:       e.createdAt,
		UpdatedAt:       e.updatedAt,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
