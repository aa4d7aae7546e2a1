package semantic

import (
	"go.uber.org/zap"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/embedding"
	"github.com/quivermath/quiver/internal/util"
)

// minTuningSamples is the smallest corpus the optimizer will act on.
const minTuningSamples = 5

// Threshold grid searched by the optimizer.
const (
	gridLow  = 0.20
	gridHigh = 0.60
	gridStep = 0.01
)

// TuningReport describes one optimizer run.
type TuningReport struct {
	Samples            int                 `json:"samples"`
	Updated            bool                `json:"updated"`
	Threshold          float64             `json:"threshold"`
	AvgTagsAtThreshold float64             `json:"avg_tags_at_threshold"`
	UpRatio            float64             `json:"up_ratio"`
	DownRatio          float64             `json:"down_ratio"`
	SuppressionRatio   float64             `json:"suppression_ratio"`
	Params             config.TuningConfig `json:"params"`
}

// Tuner re-derives tuning parameters from the activation records of past
// analyses. It only writes parameters for future runs; stored analyses are
// never touched.
type Tuner struct {
	store    *Store
	defaults config.TuningConfig
	logger   *zap.SugaredLogger
}

// NewTuner creates a tuning optimizer.
func NewTuner(store *Store, defaults config.TuningConfig, logger *zap.SugaredLogger) *Tuner {
	return &Tuner{store: store, defaults: defaults, logger: logger.Named("semantic.tuner")}
}

// Tune grid-searches the tag threshold toward the target average tag count
// and derives the propagation constants from observed score composition.
// Fewer than five usable samples leaves everything unchanged.
func (t *Tuner) Tune() (*TuningReport, error) {
	current, err := t.store.LoadTuning(t.defaults)
	if err != nil {
		return nil, err
	}

	samples, err := t.usableSamples()
	if err != nil {
		return nil, err
	}

	report := &TuningReport{Samples: len(samples), Params: current}
	if len(samples) < minTuningSamples {
		t.logger.Infow("Skipping tuning, not enough samples", "count", len(samples))
		return report, nil
	}

	report.Threshold, report.AvgTagsAtThreshold = t.searchThreshold(samples, current.TargetAvgTags)
	report.UpRatio, report.DownRatio, report.SuppressionRatio = observedRatios(samples)

	// Fixed linear maps from observed ratios into the clamped ranges.
	params := current
	params.TagThreshold = util.Clamp(report.Threshold, config.MinTagThreshold, config.MaxTagThreshold)
	params.UpBeta = util.Clamp(0.30+0.50*report.UpRatio, config.MinUpBeta, config.MaxUpBeta)
	params.DownGamma = util.Clamp(0.08+0.40*report.DownRatio, config.MinDownGamma, config.MaxDownGamma)
	params.SiblingLambda = util.Clamp(0.20+0.60*report.SuppressionRatio, config.MinSiblingLambda, config.MaxSiblingLambda)

	if err := t.store.SaveTuning(params); err != nil {
		return nil, err
	}
	report.Updated = true
	report.Params = params

	t.logger.Infow("Tuned parameters",
		"count", len(samples),
		"tag_threshold", params.TagThreshold,
		"up_beta", params.UpBeta,
		"down_gamma", params.DownGamma,
		"sibling_lambda", params.SiblingLambda,
	)
	return report, nil
}

// usableSamples returns the latest analysis per question that still carries
// activation records in its rationale.
func (t *Tuner) usableSamples() ([]*Analysis, error) {
	all, err := t.store.ListBySource(SourceAI, embedding.ModelOntology, AnalysisVersion)
	if err != nil {
		return nil, err
	}

	var samples []*Analysis
	seen := make(map[string]bool, len(all))
	for _, a := range all {
		if seen[a.QuestionID] {
			continue
		}
		seen[a.QuestionID] = true
		if len(a.Rationale.ActivatedNodes) > 0 {
			samples = append(samples, a)
		}
	}
	return samples, nil
}

// searchThreshold scans the candidate grid for the threshold whose average
// tag count sits closest to target. Ties go to the lower threshold.
func (t *Tuner) searchThreshold(samples []*Analysis, target float64) (float64, float64) {
	bestThreshold, bestAvg := gridLow, 0.0
	bestDiff := -1.0

	for i := 0; ; i++ {
		threshold := util.Round6(gridLow + float64(i)*gridStep)
		if threshold > gridHigh+1e-9 {
			break
		}

		total := 0
		for _, a := range samples {
			count := 0
			for _, node := range a.Rationale.ActivatedNodes {
				if node.Final >= threshold {
					count++
				}
			}
			if count > DefaultTopK {
				count = DefaultTopK
			}
			total += count
		}
		avg := float64(total) / float64(len(samples))

		diff := util.AbsFloat64(avg - target)
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			bestThreshold = threshold
			bestAvg = avg
		}
	}
	return bestThreshold, bestAvg
}

// observedRatios measures how much of the final scores came from upward
// flow, downward flow, and how much sibling suppression removed.
func observedRatios(samples []*Analysis) (up, down, suppression float64) {
	var sumFinal, sumUp, sumDown, sumInitial, sumSuppressed float64
	for _, a := range samples {
		for _, node := range a.Rationale.ActivatedNodes {
			sumFinal += node.Final
			sumUp += node.UpContribution
			sumDown += node.DownDelta
			sumInitial += node.Initial
			sumSuppressed += node.Initial - node.AfterSuppression
		}
	}

	if sumFinal > 0 {
		up = util.Clamp01(sumUp / sumFinal)
		down = util.Clamp01(sumDown / sumFinal)
	}
	if sumInitial > 0 {
		suppression = util.Clamp01(sumSuppressed / sumInitial)
	}
	return up, down, suppression
}
