package store

import "sort"

// rrfK is the Reciprocal Rank Fusion constant (standard value from the
// literature), kept from the teacher's retrieval/rrf.go.
const rrfK = 60

// fuseRRF combines a vector-search result list and an FTS5 result list from
// the same store into one ranked list via Reciprocal Rank Fusion. This is
// the hybrid-search enrichment described in SPEC_FULL.md; it runs inside a
// single store's ReadDocuments call and never replaces the cross-store
// (weight ASC, score DESC) sort performed by the multi-source retriever
// (spec §4.10).
func fuseRRF(vecDocs, ftsDocs []Document, k int) []Document {
	type entry struct {
		doc   Document
		score float64
	}
	fused := make(map[string]*entry)
	keyOf := func(d Document) string { return d.ObjectID + "\x00" + d.Content }

	for rank, d := range vecDocs {
		key := keyOf(d)
		e, ok := fused[key]
		if !ok {
			e = &entry{doc: d}
			fused[key] = e
		}
		e.score += 1.0 / float64(k+rank+1)
	}
	for rank, d := range ftsDocs {
		key := keyOf(d)
		e, ok := fused[key]
		if !ok {
			e = &entry{doc: d}
			fused[key] = e
		}
		e.score += 1.0 / float64(k+rank+1)
	}

	entries := make([]*entry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].score > entries[j].score })

	out := make([]Document, len(entries))
	for i, e := range entries {
		out[i] = e.doc
		out[i].Score = e.score
	}
	return out
}
