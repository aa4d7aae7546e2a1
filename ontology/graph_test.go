package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quivermath/quiver/errors"
)

func testTags() []*Tag {
	return []*Tag{
		{ID: "topic.calculus", Name: "Calculus", Kind: KindTopic},
		{ID: "subtopic.derivatives", Name: "Derivatives", Kind: KindSubtopic, ParentID: "topic.calculus"},
		{ID: "subtopic.limits", Name: "Limits", Kind: KindSubtopic, ParentID: "topic.calculus"},
		{ID: "skill.chain-rule", Name: "Chain Rule", Kind: KindSkill, ParentID: "subtopic.derivatives"},
		{ID: "topic.algebra", Name: "Algebra", Kind: KindTopic},
	}
}

func TestBuildGraph(t *testing.T) {
	g, err := BuildGraph(testTags())
	require.NoError(t, err)

	assert.Equal(t, 5, g.Len())
	assert.Equal(t, []string{"topic.algebra", "topic.calculus"}, g.Roots())
	assert.Equal(t, []string{"subtopic.derivatives", "subtopic.limits"}, g.Children("topic.calculus"))
	assert.Equal(t, "topic.calculus", g.Parent("subtopic.limits"))
	assert.Equal(t, "", g.Parent("topic.calculus"))

	assert.Equal(t, 0, g.Depth("topic.calculus"))
	assert.Equal(t, 1, g.Depth("subtopic.derivatives"))
	assert.Equal(t, 2, g.Depth("skill.chain-rule"))
	assert.Equal(t, 2, g.MaxDepth())

	assert.Equal(t, "topic.calculus", g.RootOf("skill.chain-rule"))
	assert.Equal(t, "topic.algebra", g.RootOf("topic.algebra"))
	assert.Equal(t, "", g.RootOf("nonexistent"))
}

func TestBuildGraphDuplicateID(t *testing.T) {
	tags := testTags()
	tags = append(tags, &Tag{ID: "topic.calculus", Name: "Calculus Again", Kind: KindTopic})

	_, err := BuildGraph(tags)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestBuildGraphMissingParent(t *testing.T) {
	tags := []*Tag{
		{ID: "subtopic.orphan", Name: "Orphan", Kind: KindSubtopic, ParentID: "topic.missing"},
	}

	_, err := BuildGraph(tags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing parent")
}

func TestBuildGraphCycle(t *testing.T) {
	tags := []*Tag{
		{ID: "a", Name: "A", Kind: KindTopic, ParentID: "b"},
		{ID: "b", Name: "B", Kind: KindTopic, ParentID: "c"},
		{ID: "c", Name: "C", Kind: KindTopic, ParentID: "a"},
	}

	_, err := BuildGraph(tags)
	require.Error(t, err)
	assert.True(t, errors.IsCyclicOntologyError(err))
}

func TestBuildGraphSelfCycle(t *testing.T) {
	tags := []*Tag{
		{ID: "a", Name: "A", Kind: KindTopic, ParentID: "a"},
	}

	_, err := BuildGraph(tags)
	require.Error(t, err)
	assert.True(t, errors.IsCyclicOntologyError(err))
}

func TestGraphDepthOrdering(t *testing.T) {
	g, err := BuildGraph(testTags())
	require.NoError(t, err)

	desc := g.IDsByDepthDesc()
	require.Len(t, desc, 5)
	assert.Equal(t, "skill.chain-rule", desc[0])
	// Shallower nodes come after deeper ones, ties break by id.
	assert.Equal(t, []string{"subtopic.derivatives", "subtopic.limits"}, desc[1:3])
	assert.Equal(t, []string{"topic.algebra", "topic.calculus"}, desc[3:])

	asc := g.IDsByDepthAsc()
	require.Len(t, asc, 5)
	assert.Equal(t, []string{"topic.algebra", "topic.calculus"}, asc[:2])
	assert.Equal(t, "skill.chain-rule", asc[4])
}

func TestGraphDeterministicOrdering(t *testing.T) {
	// Same tags in reversed insertion order produce identical views.
	tags := testTags()
	reversed := make([]*Tag, len(tags))
	for i, tag := range tags {
		reversed[len(tags)-1-i] = tag
	}

	g1, err := BuildGraph(tags)
	require.NoError(t, err)
	g2, err := BuildGraph(reversed)
	require.NoError(t, err)

	assert.Equal(t, g1.IDs(), g2.IDs())
	assert.Equal(t, g1.Roots(), g2.Roots())
	assert.Equal(t, g1.IDsByDepthDesc(), g2.IDsByDepthDesc())
	assert.Equal(t, g1.Children("topic.calculus"), g2.Children("topic.calculus"))
}
