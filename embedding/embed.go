// Package embedding generates deterministic pseudo-embeddings: fixed-length
// vectors derived from token hashes rather than model inference. The point
// is reproducibility, not semantic accuracy; the interface is stable so a
// real embedding backend can be substituted later without touching callers.
package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

const (
	// ModelOntology scores questions against ontology nodes.
	ModelOntology = "quiver-hash64-v1"
	// ModelHybrid feeds the vector index for similar-question search.
	ModelHybrid = "quiver-hash384-v1"
	// ModelEmpty is the sentinel model id for blank input text.
	ModelEmpty = "empty"

	DimsOntology = 64
	DimsHybrid   = 384
)

// Dims returns the vector length for a model id, 0 for unknown models.
func Dims(modelID string) int {
	switch modelID {
	case ModelOntology:
		return DimsOntology
	case ModelHybrid:
		return DimsHybrid
	default:
		return 0
	}
}

// Embedding is the result of embedding one text under one model.
type Embedding struct {
	ModelID string
	Dims    int
	Vector  []float32
}

// Embed is a pure function of (text, modelID): identical inputs always
// produce a bit-identical vector, across calls and across processes.
//
// Each token is hashed to a 32-bit seed (sha256 of modelID:token), the seed
// is expanded through a xorshift generator into dims floats in [-1, 1], and
// the per-token vectors are unit-normalized, averaged, and normalized again.
// Texts sharing tokens therefore land near each other, which is what lets
// cosine similarity against tag descriptors carry signal at all.
//
// Blank text returns an all-zero vector under the "empty" sentinel model.
func Embed(text, modelID string) Embedding {
	dims := Dims(modelID)
	if dims == 0 {
		dims = DimsOntology
	}

	if strings.TrimSpace(text) == "" {
		return Embedding{ModelID: ModelEmpty, Dims: dims, Vector: make([]float32, dims)}
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Embedding{ModelID: modelID, Dims: dims, Vector: make([]float32, dims)}
	}

	sum := make([]float64, dims)
	for _, token := range tokens {
		vec := tokenVector(modelID, token, dims)
		for i, v := range vec {
			sum[i] += v
		}
	}

	out := make([]float32, dims)
	inv := 1.0 / float64(len(tokens))
	for i, v := range sum {
		out[i] = float32(v * inv)
	}
	Normalize(out)
	return Embedding{ModelID: modelID, Dims: dims, Vector: out}
}

// tokenVector expands one token's hash seed into a unit vector.
func tokenVector(modelID, token string, dims int) []float64 {
	digest := sha256.Sum256([]byte(modelID + ":" + token))
	seed := binary.BigEndian.Uint32(digest[:4])

	// Offset guards against a zero xorshift state.
	state := uint64(seed) + 0x9E3779B97F4A7C15

	vec := make([]float64, dims)
	var norm float64
	for i := range vec {
		state ^= state >> 12
		state ^= state << 25
		state ^= state >> 27
		mixed := state * 2685821657736338717

		// Top 53 bits give a float in [0, 1), mapped to [-1, 1).
		vec[i] = float64(mixed>>11)/(1<<53)*2 - 1
		norm += vec[i] * vec[i]
	}

	if norm > 0 {
		inv := 1.0 / math.Sqrt(norm)
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "then": {}, "this": {},
	"to": {}, "was": {}, "were": {}, "what": {}, "which": {}, "with": {},
}

// Tokenize lowercases text, maps "%" to the word percent, collapses every
// numeric literal onto the shared token "num", drops stopwords and
// single-letter variables, and trims plural s. The rules are fixed:
// changing them changes every stored vector.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "%", " percent ")

	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		token := b.String()
		b.Reset()

		if isNumeric(token) {
			tokens = append(tokens, "num")
			return
		}
		// Single letters are variable names (x, y, n); they carry no
		// topical signal and drown out the words that do.
		if len(token) < 2 {
			return
		}
		if _, skip := stopwords[token]; skip {
			return
		}
		if len(token) > 3 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") {
			token = token[:len(token)-1]
		}
		tokens = append(tokens, token)
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
