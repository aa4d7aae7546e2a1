package semantic

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/quivermath/quiver/heuristics"
	"github.com/quivermath/quiver/internal/util"
	"github.com/quivermath/quiver/ontology"
)

// Difficulty bands, a fixed monotone bucketing of the score.
const (
	BandVeryEasy = "very_easy"
	BandEasy     = "easy"
	BandModerate = "moderate"
	BandHard     = "hard"
	BandVeryHard = "very_hard"
	BandOlympiad = "olympiad"
)

// Factor weights. conceptualDepth is derived from abstraction and
// reasoning, so it carries no weight of its own.
const (
	weightFoundationalDistance = 0.28
	weightAbstractionDepth     = 0.22
	weightReasoningChain       = 0.25
	weightPrerequisiteBreadth  = 0.15
	weightSymbolDensity        = 0.10
)

// Activation thresholds used by the factor and consistency rules.
const (
	depthActivation  = 0.35 // node counts toward abstraction depth
	branchActivation = 0.40 // node marks its branch as covered
	operationActive  = 0.35 // operation node counts as active
	strongActivation = 0.45 // prove / multi-step strongly active
	arithmeticStrong = 0.55 // arithmetic-heavy trigger
	maxBranches      = 6
)

// foundationalNodes are the ontology nodes treated as foundational when
// measuring distance from basic material.
var foundationalNodes = []string{
	"topic.arithmetic",
	"subtopic.integers",
	"subtopic.fractions",
	"subtopic.percentages",
}

var (
	connectorRe  = regexp.MustCompile(`(?i)\b(therefore|hence|thus|then|because|since|implies|so that|it follows)\b`)
	sentenceRe   = regexp.MustCompile(`[.!?;]+`)
	mathSymbolRe = regexp.MustCompile(`[+\-*/=^<>(){}\[\]|√∫∑∏π≤≥≠±×÷%]|\\[a-zA-Z]+`)
)

// Difficulty is the scored result before calibration.
type Difficulty struct {
	Score       float64
	Band        string
	Factors     DifficultyFactors
	Consistency []ConsistencyRecord
}

// ScoreDifficulty derives a raw difficulty score from final activations,
// heuristic signals, and the combined text. The factors are independent of
// how many tags cleared the selection threshold, so difficulty is defined
// even for an empty tag list.
func ScoreDifficulty(graph *ontology.Graph, final map[string]float64, signals heuristics.Signals, text string) Difficulty {
	factors := DifficultyFactors{
		FoundationalDistance: foundationalDistance(final),
		AbstractionDepth:     abstractionDepth(graph, final),
		ReasoningChain:       reasoningChain(text, signals),
		PrerequisiteBreadth:  prerequisiteBreadth(graph, final),
		SymbolDensity:        symbolDensity(text),
	}
	factors.ConceptualDepth = util.Round6(util.Clamp01(
		0.5*factors.AbstractionDepth + 0.5*factors.ReasoningChain))

	raw := weightFoundationalDistance*factors.FoundationalDistance +
		weightAbstractionDepth*factors.AbstractionDepth +
		weightReasoningChain*factors.ReasoningChain +
		weightPrerequisiteBreadth*factors.PrerequisiteBreadth +
		weightSymbolDensity*factors.SymbolDensity

	score, consistency := applyConsistencyRules(util.Clamp01(raw), final, factors)
	score = util.Round6(score)

	return Difficulty{
		Score:       score,
		Band:        Band(score),
		Factors:     factors,
		Consistency: consistency,
	}
}

// Band maps a difficulty score onto its band.
func Band(score float64) string {
	switch {
	case score < 0.18:
		return BandVeryEasy
	case score < 0.33:
		return BandEasy
	case score < 0.52:
		return BandModerate
	case score < 0.70:
		return BandHard
	case score < 0.84:
		return BandVeryHard
	default:
		return BandOlympiad
	}
}

// applyConsistencyRules enforces the floor and cap rules after the weighted
// sum. Each applied rule leaves an auditable record.
func applyConsistencyRules(score float64, final map[string]float64, factors DifficultyFactors) (float64, []ConsistencyRecord) {
	var records []ConsistencyRecord

	prove := final["op.prove"]
	multiStep := final["skill.multi-step-reasoning"]

	floor := func(rule string, target float64, detail string) {
		if score >= target {
			return
		}
		records = append(records, ConsistencyRecord{
			Rule:   rule,
			Delta:  util.Round6(target - score),
			Detail: detail,
		})
		score = target
	}

	if prove >= strongActivation && (multiStep >= strongActivation || factors.ReasoningChain >= 0.55) {
		floor("prove_multi_step_floor", 0.62,
			fmt.Sprintf("prove %.2f with multi-step %.2f / reasoning %.2f", prove, multiStep, factors.ReasoningChain))
	}
	if prove >= strongActivation {
		floor("prove_floor", 0.55, fmt.Sprintf("prove active at %.2f", prove))
	}
	if multiStep >= strongActivation {
		floor("multi_step_floor", 0.52, fmt.Sprintf("multi-step active at %.2f", multiStep))
	}

	arithmetic := 0.0
	for _, id := range foundationalNodes {
		if final[id] > arithmetic {
			arithmetic = final[id]
		}
	}
	if arithmetic >= arithmeticStrong &&
		final["op.compute"] >= operationActive &&
		prove < operationActive &&
		factors.AbstractionDepth < 0.25 &&
		score > 0.48 {
		records = append(records, ConsistencyRecord{
			Rule:   "arithmetic_cap",
			Delta:  util.Round6(0.48 - score),
			Detail: fmt.Sprintf("arithmetic %.2f, compute %.2f, abstraction %.2f", arithmetic, final["op.compute"], factors.AbstractionDepth),
		})
		score = 0.48
	}

	return score, records
}

// foundationalDistance is how far the question sits from foundational
// material: 1 minus the strongest foundational activation.
func foundationalDistance(final map[string]float64) float64 {
	max := 0.0
	for _, id := range foundationalNodes {
		if final[id] > max {
			max = final[id]
		}
	}
	return util.Round6(1 - max)
}

// abstractionDepth is the activation-weighted average relative depth of
// nodes scoring at least the depth threshold.
func abstractionDepth(graph *ontology.Graph, final map[string]float64) float64 {
	maxDepth := graph.MaxDepth()
	if maxDepth == 0 {
		return 0
	}

	var weighted, total float64
	for _, id := range graph.IDs() {
		score := final[id]
		if score < depthActivation {
			continue
		}
		weighted += score * float64(graph.Depth(id)) / float64(maxDepth)
		total += score
	}
	if total == 0 {
		return 0
	}
	return util.Round6(weighted / total)
}

// reasoningChain blends sentence-connector density with the multi-step
// heuristic signal.
func reasoningChain(text string, signals heuristics.Signals) float64 {
	sentences := len(sentenceRe.Split(strings.TrimSpace(text), -1))
	if sentences < 1 {
		sentences = 1
	}
	connectors := len(connectorRe.FindAllString(text, -1))
	density := util.Clamp01(float64(connectors) / float64(sentences) / 2)

	return util.Round6(util.Clamp01(0.5*density + 0.5*signals.MultiStep))
}

// prerequisiteBreadth is the fraction of top-level topic branches (up to
// six) containing at least one strongly activated node.
func prerequisiteBreadth(graph *ontology.Graph, final map[string]float64) float64 {
	branches := topicBranches(graph)
	if len(branches) == 0 {
		return 0
	}

	covered := make(map[string]bool)
	for _, id := range graph.IDs() {
		if final[id] < branchActivation {
			continue
		}
		root := graph.RootOf(id)
		if branches[root] {
			covered[root] = true
		}
	}

	denom := len(branches)
	if denom > maxBranches {
		denom = maxBranches
	}
	n := len(covered)
	if n > denom {
		n = denom
	}
	return util.Round6(float64(n) / float64(denom))
}

// topicBranches returns the topic-kind roots, capped at six in sorted id
// order. Operation and skill roots are scaffolding, not subject branches.
func topicBranches(graph *ontology.Graph) map[string]bool {
	var roots []string
	for _, id := range graph.Roots() {
		if tag := graph.Tag(id); tag != nil && tag.Kind == ontology.KindTopic {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	if len(roots) > maxBranches {
		roots = roots[:maxBranches]
	}

	set := make(map[string]bool, len(roots))
	for _, id := range roots {
		set[id] = true
	}
	return set
}

// symbolDensity measures math-symbol and LaTeX tokens against text length,
// on its own scale, separate from the heuristic extractor's signal.
func symbolDensity(text string) float64 {
	if text == "" {
		return 0
	}
	// Saturates at one symbol token per five characters.
	tokens := len(mathSymbolRe.FindAllString(text, -1))
	return util.Round6(util.Clamp01(float64(tokens) * 5 / float64(len(text))))
}
