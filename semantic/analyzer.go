package semantic

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/embedding"
	"github.com/quivermath/quiver/heuristics"
	"github.com/quivermath/quiver/ontology"
)

// Question is the analyzer's input. Text and Explanation may carry markup;
// both pass through the injected plain-text function before analysis.
type Question struct {
	ID          string
	Type        string
	Text        string
	Explanation string
}

// PlainTextFunc strips markup from rich question text. The host
// application provides it; tests pass the identity function.
type PlainTextFunc func(string) string

// Analyzer runs the full per-question pipeline: heuristics, activation,
// tag selection, difficulty scoring, caching, and override-checked apply.
type Analyzer struct {
	engine     *Engine
	store      *Store
	embeddings *embedding.Store
	plainText  PlainTextFunc
	defaults   config.TuningConfig
	logger     *zap.SugaredLogger
}

// NewAnalyzer wires an analyzer. defaults supply tuning values until the
// optimizer has written a tuning row.
func NewAnalyzer(engine *Engine, store *Store, embeddings *embedding.Store, plainText PlainTextFunc, defaults config.TuningConfig, logger *zap.SugaredLogger) *Analyzer {
	if plainText == nil {
		plainText = func(s string) string { return s }
	}
	return &Analyzer{
		engine:     engine,
		store:      store,
		embeddings: embeddings,
		plainText:  plainText,
		defaults:   defaults,
		logger:     logger.Named("semantic.analyzer"),
	}
}

// Analyze returns the question's analysis, serving a cached row when the
// input is unchanged and computing, persisting, and applying a new one
// otherwise. Blank input returns (nil, nil): no analysis is the designed
// outcome, not an error.
func (a *Analyzer) Analyze(q Question) (*Analysis, error) {
	combined := a.combinedText(q)
	if combined == "" {
		a.logger.Debugw("Skipping blank question", "question_id", q.ID)
		return nil, nil
	}

	hash := InputHash(AnalysisVersion, embedding.ModelOntology, q.Type, combined)
	if cached, err := a.store.GetCached(q.ID, embedding.ModelOntology, AnalysisVersion, hash); err != nil {
		return nil, err
	} else if cached != nil {
		a.logger.Debugw("Analysis cache hit", "question_id", q.ID, "analysis_id", cached.ID)
		return cached, nil
	}

	// Tuning is re-read at the start of every run so optimizer output
	// takes effect without a restart.
	tuning, err := a.store.LoadTuning(a.defaults)
	if err != nil {
		return nil, err
	}
	if !tuning.Enabled {
		tuning = a.defaults
	}

	signals := heuristics.Extract(combined)
	acts, err := a.engine.Activate(q.ID, combined, signals, tuning)
	if err != nil {
		return nil, err
	}
	final := FinalScores(acts)

	graph := a.engine.Graph()
	tags := SelectTags(graph, final, tuning.TagThreshold, DefaultTopK)
	difficulty := ScoreDifficulty(graph, final, signals, combined)

	analysis := &Analysis{
		QuestionID:      q.ID,
		InputHash:       hash,
		ModelID:         embedding.ModelOntology,
		AnalysisVersion: AnalysisVersion,
		Source:          SourceAI,
		Tags:            tags,
		DifficultyScore: difficulty.Score,
		DifficultyBand:  difficulty.Band,
		Factors:         difficulty.Factors,
		Consistency:     difficulty.Consistency,
		Rationale:       buildRationale(graph, signals, acts, difficulty),
	}
	if err := a.store.SaveAnalysis(analysis); err != nil {
		return nil, err
	}
	if err := a.store.ApplySemantics(analysis); err != nil {
		return nil, err
	}

	// Index the hybrid vector so the question shows up in similar-question
	// search. Failure here never loses the analysis itself.
	if q.ID != "" {
		if _, err := a.embeddings.Ensure(embedding.ScopeQuestion, q.ID, embedding.ModelHybrid, combined); err != nil {
			a.logger.Warnw("Failed to index hybrid embedding", "question_id", q.ID, "error", err)
		}
	}

	a.logger.Infow("Analyzed question",
		"question_id", q.ID,
		"tags", len(tags),
		"score", analysis.DifficultyScore,
		"band", analysis.DifficultyBand,
	)
	return analysis, nil
}

func (a *Analyzer) combinedText(q Question) string {
	text := strings.TrimSpace(a.plainText(q.Text))
	explanation := strings.TrimSpace(a.plainText(q.Explanation))
	if text == "" && explanation == "" {
		return ""
	}
	if explanation == "" {
		return text
	}
	if text == "" {
		return explanation
	}
	return text + "\n" + explanation
}

// buildRationale assembles the typed explanation sections persisted with
// an analysis.
func buildRationale(graph *ontology.Graph, signals heuristics.Signals, acts map[string]*NodeActivation, difficulty Difficulty) Rationale {
	heuristicValues := []SignalValue{
		{Name: "symbol_density", Value: signals.SymbolDensity},
		{Name: "computation", Value: signals.Computation},
		{Name: "justification", Value: signals.Justification},
		{Name: "explanation", Value: signals.Explanation},
		{Name: "multi_step", Value: signals.MultiStep},
		{Name: "diagram", Value: signals.Diagram},
	}

	var top []SignalValue
	for _, sv := range heuristicValues {
		if sv.Value > 0 {
			top = append(top, sv)
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Value > top[j].Value })

	var activated []NodeActivation
	for _, act := range acts {
		if act.Final > 0 {
			activated = append(activated, *act)
		}
	}
	sort.Slice(activated, func(i, j int) bool {
		if activated[i].Final != activated[j].Final {
			return activated[i].Final > activated[j].Final
		}
		return activated[i].TagID < activated[j].TagID
	})

	return Rationale{
		TopSignals:           top,
		ActivatedNodes:       activated,
		Hierarchy:            buildHierarchy(graph, acts),
		Heuristics:           heuristicValues,
		DifficultyComponents: difficulty.Factors,
		Consistency:          difficulty.Consistency,
	}
}

// buildHierarchy groups activated nodes by branch root, roots ordered by
// their strongest activation.
func buildHierarchy(graph *ontology.Graph, acts map[string]*NodeActivation) []HierarchyEntry {
	byRoot := make(map[string][]string)
	for _, id := range graph.IDs() {
		if act := acts[id]; act != nil && act.Final >= depthActivation {
			byRoot[graph.RootOf(id)] = append(byRoot[graph.RootOf(id)], id)
		}
	}

	entries := make([]HierarchyEntry, 0, len(byRoot))
	for root, nodes := range byRoot {
		score := 0.0
		if act := acts[root]; act != nil {
			score = act.Final
		}
		entries = append(entries, HierarchyEntry{RootID: root, RootScore: score, Nodes: nodes})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RootScore != entries[j].RootScore {
			return entries[i].RootScore > entries[j].RootScore
		}
		return entries[i].RootID < entries[j].RootID
	})
	return entries
}
