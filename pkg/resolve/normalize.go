package resolve

import "strings"

// synonymTable maps common abbreviations onto their expanded form so
// that exact-match grouping treats them as the same canonical key.
var synonymTable = map[string]string{
	"llm":  "large language model",
	"llms": "large language models",
	"ai":   "artificial intelligence",
	"ml":   "machine learning",
	"nlp":  "natural language processing",
	"kg":   "knowledge graph",
	"db":   "database",
}

// normalizeName produces the canonical key for an entity name: trimmed,
// lowercased, internal whitespace collapsed, then substituted through the
// synonym table.
func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.Join(strings.Fields(normalized), " ")
	if expanded, ok := synonymTable[normalized]; ok {
		return expanded
	}
	return normalized
}

// normalizeType defaults a missing entity type to Unknown.
func normalizeType(entityType string) string {
	trimmed := strings.TrimSpace(entityType)
	if trimmed == "" {
		return typeUnknown
	}
	return trimmed
}
