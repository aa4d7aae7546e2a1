// Package heuristics extracts lexical signals from question text. Every
// signal is a pure function of the text, normalized to [0,1] by fixed
// divisors. The regex tables and divisors are part of the analysis
// contract: changing any of them shifts every stored score, so they are
// constants here rather than configuration.
package heuristics

import (
	"regexp"
	"strings"

	"github.com/quivermath/quiver/internal/util"
)

// Signals are the normalized lexical features consumed by the activation
// engine's boost table and the difficulty scorer.
type Signals struct {
	SymbolDensity float64 `json:"symbol_density"`
	Computation   float64 `json:"computation"`
	Justification float64 `json:"justification"`
	Explanation   float64 `json:"explanation"`
	MultiStep     float64 `json:"multi_step"`
	Diagram       float64 `json:"diagram"`
}

var (
	justificationRe = regexp.MustCompile(`(?i)\b(prove|justify|show that|demonstrate|verify|derive)\b`)
	computationRe   = regexp.MustCompile(`(?i)\b(compute|solve|calculate|simplify|evaluate|find)\b`)
	explanationRe   = regexp.MustCompile(`(?i)\b(explain|describe|interpret|discuss)\b`)
	diagramRe       = regexp.MustCompile(`(?i)\b(graph|plot|sketch|draw)\b`)
	multiStepRe     = regexp.MustCompile(`(?i)\b(first|then|next|finally|hence|therefore|thus|step|steps)\b`)

	// Numeric literals, including decimals and percent forms.
	numericExprRe = regexp.MustCompile(`[0-9]+(\.[0-9]+)?%?`)

	// LaTeX macros like \frac or \int count double in symbol density.
	latexMacroRe = regexp.MustCompile(`\\[a-zA-Z]+`)

	wordRe = regexp.MustCompile(`[a-zA-Z0-9]+`)
)

const mathSymbols = "+-*/=^<>()[]{}|√∫∑∏π≤≥≠±×÷"

// Extract computes all signals for one text. The divisors are small fixed
// constants: a single proof verb saturates justification, two verbs
// saturate the other verb signals, three numbers or three connectives
// saturate the count-based ones.
func Extract(text string) Signals {
	words := len(wordRe.FindAllString(text, -1))
	symbols := 0
	for _, r := range text {
		if strings.ContainsRune(mathSymbols, r) {
			symbols++
		}
	}
	latex := len(latexMacroRe.FindAllString(text, -1))

	verbCount := len(computationRe.FindAllString(text, -1))
	numberCount := len(numericExprRe.FindAllString(text, -1))
	computation := float64(verbCount) / 2
	if byNumbers := float64(numberCount) / 3; byNumbers > computation {
		computation = byNumbers
	}

	density := 0.0
	if words > 0 {
		density = (float64(symbols) + 2*float64(latex)) / float64(words) / 0.8
	}

	return Signals{
		SymbolDensity: util.Clamp01(density),
		Computation:   util.Clamp01(computation),
		Justification: util.Clamp01(float64(len(justificationRe.FindAllString(text, -1)))),
		Explanation:   util.Clamp01(float64(len(explanationRe.FindAllString(text, -1))) / 2),
		MultiStep:     util.Clamp01(float64(len(multiStepRe.FindAllString(text, -1))) / 3),
		Diagram:       util.Clamp01(float64(len(diagramRe.FindAllString(text, -1))) / 2),
	}
}
