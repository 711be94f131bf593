package resolve

import (
	"strings"
	"time"

	"github.com/graphscribe/backend/pkg/model"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type edgeKey struct {
	sourceID string
	targetID string
	relType  string
}

type edgeAccumulator struct {
	edge     model.GraphEdge
	mentions int
}

// remapRelations resolves every relation mention onto the surviving
// entities. Mentions whose source or target cannot be resolved are
// dropped, as are self-loops. Mentions sharing the same
// (source, target, type) triple accumulate into one edge.
func remapRelations(
	documentID string,
	extractions []model.ChunkExtraction,
	entities []*workingEntity,
) ([]model.GraphEdge, error) {
	aliasIndex := buildAliasIndex(entities)

	now := time.Now().UTC()
	accumulators := make(map[edgeKey]*edgeAccumulator)
	order := make([]edgeKey, 0)

	for _, extraction := range extractions {
		for _, mention := range extraction.Relations {
			sourceID, okS := aliasIndex[normalizeName(mention.Source)]
			targetID, okT := aliasIndex[normalizeName(mention.Target)]
			if !okS || !okT {
				continue
			}
			if sourceID == targetID {
				continue
			}

			key := edgeKey{
				sourceID: sourceID,
				targetID: targetID,
				relType:  strings.TrimSpace(mention.Type),
			}
			description := strings.TrimSpace(mention.Description)
			confidence := clampConfidence(mention.Confidence)

			if acc, ok := accumulators[key]; ok {
				acc.mentions++
				acc.edge.Confidence += (confidence - acc.edge.Confidence) / float64(acc.mentions)
				acc.edge.Weight++
				if description != "" && !strings.Contains(acc.edge.Description, description) {
					acc.edge.Description = mergeDescriptions(acc.edge.Description, description)
				}
				continue
			}

			id, err := gonanoid.New()
			if err != nil {
				return nil, err
			}
			accumulators[key] = &edgeAccumulator{
				edge: model.GraphEdge{
					ID:              id,
					SourceID:        sourceID,
					TargetID:        targetID,
					Type:            key.relType,
					Description:     description,
					Weight:          1,
					SourceDocuments: []string{documentID},
					Confidence:      confidence,
					CreatedAt:       now,
				},
				mentions: 1,
			}
			order = append(order, key)
		}
	}

	edges := make([]model.GraphEdge, 0, len(order))
	for _, key := range order {
		edges = append(edges, accumulators[key].edge)
	}

	return edges, nil
}

// buildAliasIndex maps every surviving entity's normalized name and every
// normalized alias to that entity's id. First writer wins on collisions.
func buildAliasIndex(entities []*workingEntity) map[string]string {
	index := make(map[string]string)

	assign := func(key, id string) {
		if key == "" {
			return
		}
		if _, ok := index[key]; ok {
			return
		}
		index[key] = id
	}

	for _, e := range entities {
		assign(normalizeName(e.name), e.id)
		for alias := range e.aliases {
			assign(normalizeName(alias), e.id)
		}
	}

	return index
}
