package semantic

import (
	"sort"

	"github.com/quivermath/quiver/ontology"
)

// DefaultTopK bounds the selected tag list.
const DefaultTopK = 8

// SelectTags filters final node scores by threshold, orders them by
// (score desc, id asc), and returns the top k as ranked assignments. An
// empty result is valid output: nothing cleared the threshold.
func SelectTags(graph *ontology.Graph, final map[string]float64, threshold float64, topK int) []TagAssignment {
	if topK <= 0 {
		topK = DefaultTopK
	}

	ids := make([]string, 0, len(final))
	for id, score := range final {
		if score >= threshold {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if final[ids[i]] != final[ids[j]] {
			return final[ids[i]] > final[ids[j]]
		}
		return ids[i] < ids[j]
	})

	if len(ids) > topK {
		ids = ids[:topK]
	}

	tags := make([]TagAssignment, 0, len(ids))
	for i, id := range ids {
		assignment := TagAssignment{
			TagID: id,
			Score: final[id],
			Rank:  i + 1,
		}
		if tag := graph.Tag(id); tag != nil {
			assignment.TagName = tag.Name
			assignment.Explanation = tag.Description
		}
		tags = append(tags, assignment)
	}
	return tags
}
