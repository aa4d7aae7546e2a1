package ontology

import (
	"sort"

	"github.com/quivermath/quiver/errors"
)

// Graph is the in-memory ontology structure built once per analysis batch.
// It is read-only after construction and safe to share across concurrent
// analysis tasks. Every returned list is sorted by id so iteration order
// never depends on storage order.
type Graph struct {
	tags     map[string]*Tag
	children map[string][]string
	roots    []string
	depths   map[string]int
	maxDepth int
}

// BuildGraph constructs a Graph from the tag set. A cyclic parent chain or
// a dangling parent reference is a configuration error and aborts the build.
func BuildGraph(tags []*Tag) (*Graph, error) {
	g := &Graph{
		tags:     make(map[string]*Tag, len(tags)),
		children: make(map[string][]string),
		depths:   make(map[string]int, len(tags)),
	}

	for _, tag := range tags {
		if _, dup := g.tags[tag.ID]; dup {
			return nil, errors.Wrapf(errors.ErrConflict, "duplicate ontology tag id %s", tag.ID)
		}
		g.tags[tag.ID] = tag
	}

	for _, tag := range tags {
		if tag.ParentID == "" {
			g.roots = append(g.roots, tag.ID)
			continue
		}
		if _, ok := g.tags[tag.ParentID]; !ok {
			return nil, errors.Newf("ontology tag %s references missing parent %s", tag.ID, tag.ParentID)
		}
		g.children[tag.ParentID] = append(g.children[tag.ParentID], tag.ID)
	}

	sort.Strings(g.roots)
	for _, ids := range g.children {
		sort.Strings(ids)
	}

	// Resolve all depths eagerly so cycles surface at build time, not
	// mid-scoring.
	for _, tag := range tags {
		depth, err := g.resolveDepth(tag.ID)
		if err != nil {
			return nil, err
		}
		if depth > g.maxDepth {
			g.maxDepth = depth
		}
	}

	return g, nil
}

// resolveDepth walks the parent chain, memoizing as it goes. A chain longer
// than the node count means a cycle.
func (g *Graph) resolveDepth(id string) (int, error) {
	if depth, ok := g.depths[id]; ok {
		return depth, nil
	}

	var chain []string
	cur := id
	for {
		if depth, ok := g.depths[cur]; ok {
			for i := len(chain) - 1; i >= 0; i-- {
				depth++
				g.depths[chain[i]] = depth
			}
			return g.depths[id], nil
		}

		chain = append(chain, cur)
		if len(chain) > len(g.tags) {
			return 0, errors.Wrapf(errors.ErrCyclicOntology, "parent chain from %s never reaches a root", id)
		}

		tag := g.tags[cur]
		if tag.ParentID == "" {
			g.depths[cur] = 0
			for i := len(chain) - 2; i >= 0; i-- {
				g.depths[chain[i]] = g.depths[chain[i+1]] + 1
			}
			return g.depths[id], nil
		}
		cur = tag.ParentID
	}
}

// Tag returns the tag with the given id, or nil.
func (g *Graph) Tag(id string) *Tag {
	return g.tags[id]
}

// Children returns the ids of the node's children, sorted by id.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// Parent returns the parent id of a node, or "" for roots and unknown ids.
func (g *Graph) Parent(id string) string {
	if tag := g.tags[id]; tag != nil {
		return tag.ParentID
	}
	return ""
}

// Depth returns the node's depth: 0 for roots.
func (g *Graph) Depth(id string) int {
	return g.depths[id]
}

// Roots returns the root ids, sorted.
func (g *Graph) Roots() []string {
	return g.roots
}

// MaxDepth returns the depth of the deepest node.
func (g *Graph) MaxDepth() int {
	return g.maxDepth
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.tags)
}

// IDs returns every node id, sorted.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.tags))
	for id := range g.tags {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IDsByDepthDesc returns node ids ordered deepest first, ties by id.
// Upward propagation processes nodes in this order.
func (g *Graph) IDsByDepthDesc() []string {
	ids := g.IDs()
	sort.SliceStable(ids, func(i, j int) bool {
		di, dj := g.depths[ids[i]], g.depths[ids[j]]
		if di != dj {
			return di > dj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// IDsByDepthAsc returns node ids ordered shallowest first, ties by id.
// Downward propagation processes nodes in this order.
func (g *Graph) IDsByDepthAsc() []string {
	ids := g.IDs()
	sort.SliceStable(ids, func(i, j int) bool {
		di, dj := g.depths[ids[i]], g.depths[ids[j]]
		if di != dj {
			return di < dj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// RootOf returns the id of the root of the branch containing the node.
func (g *Graph) RootOf(id string) string {
	cur := id
	for {
		tag := g.tags[cur]
		if tag == nil {
			return ""
		}
		if tag.ParentID == "" {
			return cur
		}
		cur = tag.ParentID
	}
}
