package semantic

import "github.com/WessleyAI/vidrag/engine/record"

// ContentKey is the payload field holding the chunk text.
const ContentKey = "content"

// SearchResult represents a single vector search hit.
type SearchResult struct {
	ID        string              `json:"id"`
	Score     float32             `json:"score"`
	Content   string              `json:"content"`
	Restricts map[string][]string `json:"restricts"`
}

// Value returns the first value stored under namespace.
func (r SearchResult) Value(namespace string) string {
	if vs := r.Restricts[namespace]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// BatchReport summarizes a batched upsert. A failed batch does not stop later
// batches.
type BatchReport struct {
	Batches  int
	Failed   int
	Upserted int
	Errors   []error
}

// Filter restricts a search to points whose namespace holds any of the
// allowed values.
type Filter = record.Restriction
