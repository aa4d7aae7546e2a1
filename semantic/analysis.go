// Package semantic implements the tagging and difficulty inference engine:
// ontology activation, tag selection, difficulty scoring, the analysis
// cache, corpus calibration, and the tuning optimizer.
package semantic

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AnalysisVersion invalidates every cached analysis when the algorithm
// changes. Bump it together with any change to the activation pipeline,
// the heuristic constants, or the difficulty rules.
const AnalysisVersion = 3

// Analysis sources.
const (
	SourceAI   = "ai"
	SourceUser = "user"
)

// TagAssignment is one selected ontology tag on a question.
type TagAssignment struct {
	TagID       string  `json:"tag_id"`
	TagName     string  `json:"tag_name"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
	Explanation string  `json:"explanation,omitempty"`
}

// NodeActivation records every intermediate score for one ontology node.
// The tuning optimizer reads these back to re-derive propagation constants.
type NodeActivation struct {
	TagID            string  `json:"tag_id"`
	Depth            int     `json:"depth"`
	Base             float64 `json:"base"`
	Boost            float64 `json:"boost"`
	Initial          float64 `json:"initial"`
	AfterSuppression float64 `json:"after_suppression"`
	UpContribution   float64 `json:"up_contribution"`
	DownDelta        float64 `json:"down_delta"`
	Final            float64 `json:"final"`
}

// DifficultyFactors are the scored components behind a difficulty score.
// ConceptualDepth is a derived composite, reported but not weighted.
type DifficultyFactors struct {
	FoundationalDistance float64 `json:"foundational_distance"`
	AbstractionDepth     float64 `json:"abstraction_depth"`
	ReasoningChain       float64 `json:"reasoning_chain"`
	PrerequisiteBreadth  float64 `json:"prerequisite_breadth"`
	SymbolDensity        float64 `json:"symbol_density"`
	ConceptualDepth      float64 `json:"conceptual_depth"`
}

// ConsistencyRecord is one applied floor or cap rule, kept for audit.
type ConsistencyRecord struct {
	Rule   string  `json:"rule"`
	Delta  float64 `json:"delta"`
	Detail string  `json:"detail"`
}

// HierarchyEntry summarizes one activated branch for the rationale.
type HierarchyEntry struct {
	RootID    string   `json:"root_id"`
	RootScore float64  `json:"root_score"`
	Nodes     []string `json:"nodes"`
}

// SignalValue is one named heuristic reading.
type SignalValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Rationale explains an analysis section by section. Every field is a
// concrete type so serialization is exhaustive and checked.
type Rationale struct {
	TopSignals           []SignalValue       `json:"top_signals"`
	ActivatedNodes       []NodeActivation    `json:"activated_nodes"`
	Hierarchy            []HierarchyEntry    `json:"hierarchy"`
	Heuristics           []SignalValue       `json:"heuristics"`
	DifficultyComponents DifficultyFactors   `json:"difficulty_components"`
	Consistency          []ConsistencyRecord `json:"consistency"`
}

// Analysis is one persisted semantic analysis of a question. AI-sourced
// rows are immutable except for the calibrator, which rewrites only
// DifficultyScore and DifficultyBand.
type Analysis struct {
	ID              string              `json:"id"`
	QuestionID      string              `json:"question_id"`
	InputHash       string              `json:"input_hash"`
	ModelID         string              `json:"model_id"`
	AnalysisVersion int                 `json:"analysis_version"`
	Source          string              `json:"source"`
	Tags            []TagAssignment     `json:"tags"`
	DifficultyScore float64             `json:"difficulty_score"`
	DifficultyBand  string              `json:"difficulty_band"`
	Factors         DifficultyFactors   `json:"difficulty_factors"`
	Consistency     []ConsistencyRecord `json:"consistency"`
	Rationale       Rationale           `json:"rationale"`
	CreatedAt       time.Time           `json:"created_at"`
}

// InputHash builds the cache key for one question's analysis input.
func InputHash(analysisVersion int, modelID, questionType, combinedText string) string {
	payload := fmt.Sprintf("%d::%s::%s::%s", analysisVersion, modelID, questionType, combinedText)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
