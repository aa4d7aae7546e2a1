package semantic

import (
	"go.uber.org/zap"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/embedding"
	"github.com/quivermath/quiver/heuristics"
	"github.com/quivermath/quiver/internal/util"
	"github.com/quivermath/quiver/ontology"
)

// boostTable maps heuristic signals onto additive score boosts for specific
// ontology nodes. The weights are fixed analysis constants, not tuning
// parameters: tuning adjusts propagation, never the lexical evidence.
var boostTable = []struct {
	tagID  string
	weight float64
	signal func(heuristics.Signals) float64
}{
	{"op.prove", 0.45, func(s heuristics.Signals) float64 { return s.Justification }},
	{"op.compute", 0.40, func(s heuristics.Signals) float64 { return s.Computation }},
	{"op.explain", 0.35, func(s heuristics.Signals) float64 { return s.Explanation }},
	{"op.graph", 0.35, func(s heuristics.Signals) float64 { return s.Diagram }},
	{"skill.multi-step-reasoning", 0.45, func(s heuristics.Signals) float64 { return s.MultiStep }},
	{"skill.symbolic-manipulation", 0.30, func(s heuristics.Signals) float64 { return s.SymbolDensity }},
}

// suppressionTrigger is the sibling score above which the dominant sibling
// suppresses the rest.
const suppressionTrigger = 0.35

// Engine computes per-node activation scores for question text. It holds
// the ontology graph and the per-node vectors, both read-only after
// construction, so one engine may be shared across concurrent analyses.
type Engine struct {
	graph      *ontology.Graph
	embeddings *embedding.Store
	vectors    map[string][]float32
	logger     *zap.SugaredLogger
}

// NewEngine builds an engine for the given graph, ensuring an up-to-date
// embedding for every node descriptor and alias. Node vectors average the
// descriptor vector with the vectors of each alias.
func NewEngine(graph *ontology.Graph, embeddings *embedding.Store, logger *zap.SugaredLogger) (*Engine, error) {
	e := &Engine{
		graph:      graph,
		embeddings: embeddings,
		vectors:    make(map[string][]float32, graph.Len()),
		logger:     logger.Named("semantic.activation"),
	}

	for _, id := range graph.IDs() {
		tag := graph.Tag(id)

		rec, err := embeddings.Ensure(embedding.ScopeOntologyTag, id, embedding.ModelOntology, tag.DescriptorText())
		if err != nil {
			return nil, err
		}
		parts := [][]float32{rec.Vector}

		for _, alias := range tag.Aliases {
			aliasRec, err := embeddings.Ensure(embedding.ScopeOntologyAlias, id+"#"+alias, embedding.ModelOntology, alias)
			if err != nil {
				return nil, err
			}
			if len(aliasRec.Vector) == len(rec.Vector) {
				parts = append(parts, aliasRec.Vector)
			}
		}

		e.vectors[id] = embedding.Mean(parts)
	}

	e.logger.Debugw("Built activation engine", "count", graph.Len())
	return e, nil
}

// Activate runs the full scoring pipeline for one question text and returns
// per-node activation records keyed by tag id. Given identical text, graph,
// and tuning, the output is identical down to the last bit: every stage
// iterates nodes in sorted order and rounds where floats could drift.
func (e *Engine) Activate(questionID, text string, signals heuristics.Signals, tuning config.TuningConfig) (map[string]*NodeActivation, error) {
	qvec, err := e.questionVector(questionID, text)
	if err != nil {
		return nil, err
	}

	ids := e.graph.IDs()
	acts := make(map[string]*NodeActivation, len(ids))

	// Base similarity plus heuristic boost.
	for _, id := range ids {
		acts[id] = &NodeActivation{
			TagID: id,
			Depth: e.graph.Depth(id),
			Base:  util.Clamp01(embedding.Cosine(qvec, e.vectors[id])),
		}
	}
	for _, entry := range boostTable {
		if act, ok := acts[entry.tagID]; ok {
			act.Boost = util.Round6(act.Boost + entry.weight*entry.signal(signals))
		}
	}
	for _, id := range ids {
		act := acts[id]
		act.Initial = util.Clamp01(act.Base + act.Boost)
		act.AfterSuppression = act.Initial
	}

	e.suppressSiblings(ids, acts, tuning.SiblingLambda)

	// Upward pass, deepest first: child evidence implies parent relevance.
	score := make(map[string]float64, len(ids))
	for _, id := range ids {
		score[id] = acts[id].AfterSuppression
	}
	for _, id := range e.graph.IDsByDepthDesc() {
		// All of this node's children have been processed, so its own
		// accumulator is complete; clamp before it feeds the parent.
		score[id] = util.Clamp01(score[id])
		s := score[id]
		parent := e.graph.Parent(id)
		if s <= 0 || parent == "" {
			continue
		}
		contribution := tuning.UpBeta * s
		score[parent] += contribution
		acts[parent].UpContribution += contribution
	}

	// Downward pass, shallowest first: parents nudge children toward their
	// implied relevance with diminishing returns.
	for _, id := range e.graph.IDsByDepthAsc() {
		p := score[id]
		if p <= 0 {
			continue
		}
		for _, child := range e.graph.Children(id) {
			delta := tuning.DownGamma * p * (1 - score[child])
			score[child] += delta
			acts[child].DownDelta += delta
		}
	}

	for _, id := range ids {
		acts[id].Final = util.Round6(util.Clamp01(score[id]))
	}
	return acts, nil
}

// suppressSiblings damps non-maximal siblings when one clearly dominates.
// Ties at the max survive untouched.
func (e *Engine) suppressSiblings(ids []string, acts map[string]*NodeActivation, lambda float64) {
	for _, parent := range ids {
		children := e.graph.Children(parent)
		if len(children) < 2 {
			continue
		}

		max := 0.0
		for _, child := range children {
			if acts[child].Initial > max {
				max = acts[child].Initial
			}
		}
		if max < suppressionTrigger {
			continue
		}

		factor := 1 - lambda*max
		for _, child := range children {
			if acts[child].Initial < max {
				acts[child].AfterSuppression = util.Round6(acts[child].Initial * factor)
			}
		}
	}
}

// questionVector embeds the combined question text under the ontology
// model, caching by content hash when a question id is available.
func (e *Engine) questionVector(questionID, text string) ([]float32, error) {
	if questionID == "" {
		return embedding.Embed(text, embedding.ModelOntology).Vector, nil
	}
	rec, err := e.embeddings.Ensure(embedding.ScopeQuestion, questionID, embedding.ModelOntology, text)
	if err != nil {
		return nil, err
	}
	return rec.Vector, nil
}

// Graph exposes the engine's ontology graph to downstream stages.
func (e *Engine) Graph() *ontology.Graph {
	return e.graph
}

// FinalScores flattens activation records into a score map.
func FinalScores(acts map[string]*NodeActivation) map[string]float64 {
	scores := make(map[string]float64, len(acts))
	for id, act := range acts {
		scores[id] = act.Final
	}
	return scores
}
