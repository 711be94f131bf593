package resolve

import (
	"math"
	"sort"
	"testing"

	"github.com/graphscribe/backend/pkg/model"
)

func extraction(chunkID string, index int, entities []model.ExtractedEntity, relations []model.ExtractedRelation) model.ChunkExtraction {
	return model.ChunkExtraction{
		ChunkID:    chunkID,
		ChunkIndex: index,
		Entities:   entities,
		Relations:  relations,
	}
}

func TestResolve_ExactMatchMergesSynonyms(t *testing.T) {
	r := NewResolver()

	graph, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "LLM", Type: "CONCEPT", Description: "A model trained on text", Confidence: 0.8},
		}, nil),
		extraction("c2", 1, []model.ExtractedEntity{
			{Name: "Large Language Model", Type: "CONCEPT", Description: "Generates natural language", Confidence: 0.6},
		}, nil),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(graph.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(graph.Nodes))
	}

	node := graph.Nodes[0]
	if node.Name != "Large Language Model" {
		t.Fatalf("expected the longer name to survive, got %q", node.Name)
	}
	if math.Abs(node.Confidence-0.7) > 1e-9 {
		t.Fatalf("expected mean confidence 0.7, got %f", node.Confidence)
	}
	if node.Description != "A model trained on text | Generates natural language" {
		t.Fatalf("unexpected merged description: %q", node.Description)
	}

	wantAliases := []string{"LLM", "Large Language Model"}
	sort.Strings(wantAliases)
	if len(node.Aliases) != 2 || node.Aliases[0] != wantAliases[0] || node.Aliases[1] != wantAliases[1] {
		t.Fatalf("expected aliases %v, got %v", wantAliases, node.Aliases)
	}
	if len(node.SourceChunks) != 2 {
		t.Fatalf("expected 2 source chunks, got %v", node.SourceChunks)
	}
	if len(node.SourceDocuments) != 1 || node.SourceDocuments[0] != "doc1" {
		t.Fatalf("expected source documents [doc1], got %v", node.SourceDocuments)
	}
}

func TestResolve_UnknownTypeOverridden(t *testing.T) {
	r := NewResolver()

	graph, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "Gandalf", Type: "", Description: "A wizard", Confidence: 1},
			{Name: "gandalf", Type: "PERSON", Description: "Carries a staff", Confidence: 1},
		}, nil),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(graph.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(graph.Nodes))
	}
	if graph.Nodes[0].Type != "PERSON" {
		t.Fatalf("expected Unknown to be overridden by PERSON, got %q", graph.Nodes[0].Type)
	}
}

func TestResolve_FuzzyMatchSameTypeOnly(t *testing.T) {
	r := NewResolver()

	// Token sets are identical, so the blended score clears the
	// threshold even though the strings differ.
	merged, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "Acme Acme Corporation", Type: "ORGANIZATION", Confidence: 1},
			{Name: "Acme Corporation", Type: "ORGANIZATION", Confidence: 1},
		}, nil),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(merged.Nodes) != 1 {
		t.Fatalf("expected fuzzy merge into 1 node, got %d", len(merged.Nodes))
	}

	kept, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "Acme Acme Corporation", Type: "ORGANIZATION", Confidence: 1},
			{Name: "Acme Corporation", Type: "LOCATION", Confidence: 1},
		}, nil),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(kept.Nodes) != 2 {
		t.Fatalf("expected different types to stay separate, got %d nodes", len(kept.Nodes))
	}
}

func TestResolve_SemanticMatchOnDescriptions(t *testing.T) {
	r := NewResolver()

	graph, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "Foo Systems", Type: "ORGANIZATION", Description: "builds cloud infrastructure for large enterprises", Confidence: 1},
			{Name: "Barware Inc", Type: "ORGANIZATION", Description: "builds cloud infrastructure for large enterprises", Confidence: 1},
		}, nil),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(graph.Nodes) != 1 {
		t.Fatalf("expected semantic merge into 1 node, got %d", len(graph.Nodes))
	}
	if graph.Nodes[0].Description != "builds cloud infrastructure for large enterprises" {
		t.Fatalf("expected duplicate description segments to collapse, got %q", graph.Nodes[0].Description)
	}
}

func TestResolve_EmptyDescriptionsNeverMergeSemantically(t *testing.T) {
	r := NewResolver()

	graph, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "Foo Systems", Type: "ORGANIZATION", Confidence: 1},
			{Name: "Barware Inc", Type: "ORGANIZATION", Confidence: 1},
		}, nil),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(graph.Nodes) != 2 {
		t.Fatalf("expected entities without descriptions to stay separate, got %d nodes", len(graph.Nodes))
	}
}

func TestResolve_ExactClustersStableUnderPermutation(t *testing.T) {
	r := NewResolver()

	forward := []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "LLM", Type: "CONCEPT", Confidence: 0.8},
			{Name: "Large Language Model", Type: "CONCEPT", Confidence: 0.6},
		}, nil),
	}
	reversed := []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "Large Language Model", Type: "CONCEPT", Confidence: 0.6},
			{Name: "LLM", Type: "CONCEPT", Confidence: 0.8},
		}, nil),
	}

	a, err := r.Resolve("doc1", forward)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	b, err := r.Resolve("doc1", reversed)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(a.Nodes) != 1 || len(b.Nodes) != 1 {
		t.Fatalf("expected 1 node in both orders, got %d and %d", len(a.Nodes), len(b.Nodes))
	}
	if a.Nodes[0].Name != b.Nodes[0].Name {
		t.Fatalf("expected the same surviving name in both orders, got %q and %q", a.Nodes[0].Name, b.Nodes[0].Name)
	}
	if math.Abs(a.Nodes[0].Confidence-b.Nodes[0].Confidence) > 1e-9 {
		t.Fatalf("expected the same confidence in both orders, got %f and %f", a.Nodes[0].Confidence, b.Nodes[0].Confidence)
	}
}

func TestResolve_RelationConfidenceRunningMean(t *testing.T) {
	r := NewResolver()

	entities := []model.ExtractedEntity{
		{Name: "Alpha Corp", Type: "ORGANIZATION", Confidence: 1},
		{Name: "Beta Labs", Type: "ORGANIZATION", Confidence: 1},
	}

	graph, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, entities, []model.ExtractedRelation{
			{Source: "Alpha Corp", Target: "Beta Labs", Type: "PARTNERS_WITH", Description: "They partner closely", Confidence: 0.8},
		}),
		extraction("c2", 1, nil, []model.ExtractedRelation{
			{Source: "Alpha Corp", Target: "Beta Labs", Type: "PARTNERS_WITH", Description: "Signed an agreement in 2020", Confidence: 0.6},
		}),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(graph.Edges) != 1 {
		t.Fatalf("expected 1 accumulated edge, got %d", len(graph.Edges))
	}

	edge := graph.Edges[0]
	if math.Abs(edge.Confidence-0.7) > 1e-9 {
		t.Fatalf("expected running mean confidence 0.7, got %f", edge.Confidence)
	}
	if edge.Weight != 2 {
		t.Fatalf("expected weight 2, got %f", edge.Weight)
	}
	if edge.Description != "They partner closely | Signed an agreement in 2020" {
		t.Fatalf("unexpected edge description: %q", edge.Description)
	}
	if len(edge.SourceDocuments) != 1 || edge.SourceDocuments[0] != "doc1" {
		t.Fatalf("expected source documents [doc1], got %v", edge.SourceDocuments)
	}
}

func TestResolve_RelationDuplicateDescriptionNotAppended(t *testing.T) {
	r := NewResolver()

	entities := []model.ExtractedEntity{
		{Name: "Alpha Corp", Type: "ORGANIZATION", Confidence: 1},
		{Name: "Beta Labs", Type: "ORGANIZATION", Confidence: 1},
	}

	graph, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, entities, []model.ExtractedRelation{
			{Source: "Alpha Corp", Target: "Beta Labs", Type: "PARTNERS_WITH", Description: "They partner closely", Confidence: 1},
			{Source: "Alpha Corp", Target: "Beta Labs", Type: "PARTNERS_WITH", Description: "partner", Confidence: 1},
		}),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(graph.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(graph.Edges))
	}
	if graph.Edges[0].Description != "They partner closely" {
		t.Fatalf("expected contained description to be skipped, got %q", graph.Edges[0].Description)
	}
}

func TestResolve_UnresolvedRelationsDropped(t *testing.T) {
	r := NewResolver()

	graph, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "Alpha Corp", Type: "ORGANIZATION", Confidence: 1},
		}, []model.ExtractedRelation{
			{Source: "Alpha Corp", Target: "Ghost Inc", Type: "ACQUIRED", Confidence: 1},
			{Source: "Ghost Inc", Target: "Alpha Corp", Type: "ACQUIRED_BY", Confidence: 1},
		}),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(graph.Edges) != 0 {
		t.Fatalf("expected relations with unresolved endpoints to be dropped, got %d edges", len(graph.Edges))
	}
}

func TestResolve_SelfLoopsDropped(t *testing.T) {
	r := NewResolver()

	// Both names resolve to the same merged entity.
	graph, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "LLM", Type: "CONCEPT", Confidence: 1},
			{Name: "Large Language Model", Type: "CONCEPT", Confidence: 1},
		}, []model.ExtractedRelation{
			{Source: "LLM", Target: "Large Language Model", Type: "SAME_AS", Confidence: 1},
		}),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(graph.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(graph.Nodes))
	}
	if len(graph.Edges) != 0 {
		t.Fatalf("expected self-loops to be dropped, got %d edges", len(graph.Edges))
	}
}

func TestResolve_RelationsResolveThroughAliases(t *testing.T) {
	r := NewResolver()

	graph, err := r.Resolve("doc1", []model.ChunkExtraction{
		extraction("c1", 0, []model.ExtractedEntity{
			{Name: "LLM", Type: "CONCEPT", Confidence: 1},
			{Name: "Large Language Model", Type: "CONCEPT", Confidence: 1},
			{Name: "Transformer", Type: "CONCEPT", Confidence: 1},
		}, []model.ExtractedRelation{
			{Source: "LLM", Target: "Transformer", Type: "BASED_ON", Confidence: 1},
		}),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(graph.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(graph.Nodes))
	}
	if len(graph.Edges) != 1 {
		t.Fatalf("expected the alias mention to resolve into 1 edge, got %d", len(graph.Edges))
	}

	ids := map[string]struct{}{}
	for _, node := range graph.Nodes {
		ids[node.ID] = struct{}{}
	}
	edge := graph.Edges[0]
	if _, ok := ids[edge.SourceID]; !ok {
		t.Fatalf("edge source %q is not a surviving node", edge.SourceID)
	}
	if _, ok := ids[edge.TargetID]; !ok {
		t.Fatalf("edge target %q is not a surviving node", edge.TargetID)
	}
	if edge.SourceID == edge.TargetID {
		t.Fatal("expected a non-loop edge")
	}
}

func TestResolve_Empty(t *testing.T) {
	r := NewResolver()

	graph, err := r.Resolve("doc1", nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(graph.Nodes) != 0 || len(graph.Edges) != 0 {
		t.Fatalf("expected empty graph, got %d nodes and %d edges", len(graph.Nodes), len(graph.Edges))
	}
}

func TestMergeDescriptions(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{"First fact", "Second fact", "First fact | Second fact"},
		{"First fact", "First fact", "First fact"},
		{"", "Only fact", "Only fact"},
		{"Only fact", "", "Only fact"},
		{"", "", ""},
		{"A | B", "B | C", "A | B | C"},
	}

	for _, tt := range tests {
		if got := mergeDescriptions(tt.a, tt.b); got != tt.want {
			t.Errorf("mergeDescriptions(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	if got := clampConfidence(-0.5); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
	if got := clampConfidence(1.5); got != 1 {
		t.Fatalf("expected 1, got %f", got)
	}
	if got := clampConfidence(0.42); got != 0.42 {
		t.Fatalf("expected 0.42, got %f", got)
	}
}
