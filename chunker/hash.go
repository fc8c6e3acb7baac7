package chunker

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/brunobiangulo/goreason"
)

// CanonicalMetadata serialises chunk metadata to the fixed key order
// `{id, source, name}` required for a stable fragment_id (spec §3 invariant
// 1, §4.3). Building it by hand rather than through encoding/json's map
// serialization (which does not guarantee key order) is what makes the hash
// deterministic across processes and Go versions.
func CanonicalMetadata(objectID goreason.ObjectID, source, name string) string {
	return fmt.Sprintf(`{"id":%q,"source":%q,"name":%q}`, objectID, source, name)
}

// FragmentID computes the stable fragment_id for a chunk: the zero-padded
// 16-hex XXH64 digest of content‖metadata, seed 0 (spec §3 invariant 1).
//
// The original source computes this hash in two inconsistent formats
// (`{:x}` unpadded and `{:016x}` zero-padded, see spec §9's open question);
// this implementation canonicalizes on zero-padded 16-hex everywhere.
func FragmentID(content, metadata string) string {
	h := xxhash.New()
	h.WriteString(content)
	h.WriteString(metadata)
	return fmt.Sprintf("%016x", h.Sum64())
}
