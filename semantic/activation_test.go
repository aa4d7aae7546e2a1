package semantic

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/embedding"
	"github.com/quivermath/quiver/heuristics"
	qtesting "github.com/quivermath/quiver/internal/testing"
	"github.com/quivermath/quiver/logger"
	"github.com/quivermath/quiver/ontology"
)

func TestActivateDeterministic(t *testing.T) {
	stack := newTestStack(t)
	text := "Prove that the derivative of sin(x) is cos(x)"
	signals := heuristics.Extract(text)
	tuning := config.DefaultTuning()

	first, err := stack.engine.Activate("q1", text, signals, tuning)
	require.NoError(t, err)
	second, err := stack.engine.Activate("q1", text, signals, tuning)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for id, act := range first {
		assert.Equal(t, *act, *second[id], "node %s", id)
	}
}

func TestActivateProveQuestion(t *testing.T) {
	stack := newTestStack(t)
	text := "Prove that the derivative of sin(x) is cos(x)"

	acts, err := stack.engine.Activate("q1", text, heuristics.Extract(text), config.DefaultTuning())
	require.NoError(t, err)

	prove := acts["op.prove"]
	require.NotNil(t, prove)
	// One proof verb saturates justification, so the boost alone lifts the
	// node well past the strong-activation mark.
	assert.GreaterOrEqual(t, prove.Boost, 0.45)
	assert.GreaterOrEqual(t, prove.Final, 0.45)

	// The derivative vocabulary pulls calculus above the tag threshold,
	// mostly through upward flow from its subtopics.
	calculus := acts["topic.calculus"]
	require.NotNil(t, calculus)
	assert.GreaterOrEqual(t, calculus.Final, 0.30)
	assert.Greater(t, calculus.UpContribution, 0.0)

	// No computational verbs, no compute boost.
	assert.Zero(t, acts["op.compute"].Boost)
}

func TestActivateBoostTable(t *testing.T) {
	stack := newTestStack(t)
	tuning := config.DefaultTuning()

	cases := []struct {
		text  string
		tagID string
	}{
		{"Prove the statement holds for all n", "op.prove"},
		{"Compute the value of the expression", "op.compute"},
		{"Explain why the function is continuous", "op.explain"},
		{"Sketch the graph of the parabola", "op.graph"},
		{"First expand, then factor, then solve, finally verify each step", "skill.multi-step-reasoning"},
	}

	for _, tc := range cases {
		t.Run(tc.tagID, func(t *testing.T) {
			acts, err := stack.engine.Activate("", tc.text, heuristics.Extract(tc.text), tuning)
			require.NoError(t, err)
			assert.Greater(t, acts[tc.tagID].Boost, 0.0, "text %q", tc.text)
		})
	}
}

func TestSiblingSuppression(t *testing.T) {
	// A hand-built forest keeps the arithmetic checkable: one parent, two
	// children with controlled initial scores.
	tags := []*ontology.Tag{
		{ID: "parent", Name: "Parent", Kind: ontology.KindTopic},
		{ID: "parent.a", Name: "Alpha", Kind: ontology.KindSubtopic, ParentID: "parent"},
		{ID: "parent.b", Name: "Beta", Kind: ontology.KindSubtopic, ParentID: "parent"},
	}
	graph, err := ontology.BuildGraph(tags)
	require.NoError(t, err)

	e := &Engine{graph: graph}
	acts := map[string]*NodeActivation{
		"parent":   {TagID: "parent", Initial: 0.1, AfterSuppression: 0.1},
		"parent.a": {TagID: "parent.a", Initial: 0.8, AfterSuppression: 0.8},
		"parent.b": {TagID: "parent.b", Initial: 0.5, AfterSuppression: 0.5},
	}

	e.suppressSiblings(graph.IDs(), acts, 0.35)

	// Dominant sibling untouched, the other damped by (1 - lambda * max).
	assert.Equal(t, 0.8, acts["parent.a"].AfterSuppression)
	assert.InDelta(t, 0.5*(1-0.35*0.8), acts["parent.b"].AfterSuppression, 1e-6)
	assert.LessOrEqual(t, acts["parent.b"].AfterSuppression, acts["parent.b"].Initial)
}

func TestSiblingSuppressionBelowTrigger(t *testing.T) {
	tags := []*ontology.Tag{
		{ID: "parent", Name: "Parent", Kind: ontology.KindTopic},
		{ID: "parent.a", Name: "Alpha", Kind: ontology.KindSubtopic, ParentID: "parent"},
		{ID: "parent.b", Name: "Beta", Kind: ontology.KindSubtopic, ParentID: "parent"},
	}
	graph, err := ontology.BuildGraph(tags)
	require.NoError(t, err)

	e := &Engine{graph: graph}
	acts := map[string]*NodeActivation{
		"parent":   {TagID: "parent"},
		"parent.a": {TagID: "parent.a", Initial: 0.3, AfterSuppression: 0.3},
		"parent.b": {TagID: "parent.b", Initial: 0.2, AfterSuppression: 0.2},
	}

	e.suppressSiblings(graph.IDs(), acts, 0.35)

	// Max below 0.35: nothing happens.
	assert.Equal(t, 0.3, acts["parent.a"].AfterSuppression)
	assert.Equal(t, 0.2, acts["parent.b"].AfterSuppression)
}

func TestSiblingSuppressionTies(t *testing.T) {
	tags := []*ontology.Tag{
		{ID: "parent", Name: "Parent", Kind: ontology.KindTopic},
		{ID: "parent.a", Name: "Alpha", Kind: ontology.KindSubtopic, ParentID: "parent"},
		{ID: "parent.b", Name: "Beta", Kind: ontology.KindSubtopic, ParentID: "parent"},
	}
	graph, err := ontology.BuildGraph(tags)
	require.NoError(t, err)

	e := &Engine{graph: graph}
	acts := map[string]*NodeActivation{
		"parent":   {TagID: "parent"},
		"parent.a": {TagID: "parent.a", Initial: 0.6, AfterSuppression: 0.6},
		"parent.b": {TagID: "parent.b", Initial: 0.6, AfterSuppression: 0.6},
	}

	e.suppressSiblings(graph.IDs(), acts, 0.35)

	// Tied at the max: neither is suppressed.
	assert.Equal(t, 0.6, acts["parent.a"].AfterSuppression)
	assert.Equal(t, 0.6, acts["parent.b"].AfterSuppression)
}

func TestActivateScoresStayInRange(t *testing.T) {
	// Randomized ontologies and texts must never push any intermediate or
	// final score out of [0, 1].
	rng := rand.New(rand.NewSource(7))
	words := []string{"prove", "solve", "derivative", "fraction", "graph",
		"triangle", "limit", "integral", "prime", "explain", "therefore",
		"first", "then", "finally", "percent", "equation"}

	for trial := 0; trial < 10; trial++ {
		var tags []*ontology.Tag
		n := 5 + rng.Intn(15)
		for i := 0; i < n; i++ {
			tag := &ontology.Tag{
				ID:   fmt.Sprintf("node-%02d", i),
				Name: words[rng.Intn(len(words))] + fmt.Sprintf(" %d", i),
				Kind: ontology.KindTopic,
			}
			if i > 0 && rng.Float64() < 0.7 {
				tag.ParentID = fmt.Sprintf("node-%02d", rng.Intn(i))
			}
			tags = append(tags, tag)
		}
		graph, err := ontology.BuildGraph(tags)
		require.NoError(t, err)

		embStore := embedding.NewStore(qtesting.CreateTestDB(t), logger.Logger)
		engine, err := NewEngine(graph, embStore, logger.Logger)
		require.NoError(t, err)

		var text string
		for i := 0; i < 3+rng.Intn(10); i++ {
			text += words[rng.Intn(len(words))] + " "
		}

		tuning := config.DefaultTuning()
		tuning.SiblingLambda = 0.10 + rng.Float64()*0.50
		tuning.UpBeta = 0.30 + rng.Float64()*0.50
		tuning.DownGamma = 0.05 + rng.Float64()*0.35

		acts, err := engine.Activate("", text, heuristics.Extract(text), tuning)
		require.NoError(t, err)

		for id, act := range acts {
			for _, v := range []float64{act.Base, act.Initial, act.AfterSuppression, act.Final} {
				assert.GreaterOrEqual(t, v, 0.0, "node %s in trial %d", id, trial)
				assert.LessOrEqual(t, v, 1.0, "node %s in trial %d", id, trial)
			}
		}
	}
}
