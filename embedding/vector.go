package embedding

import (
	"encoding/binary"
	"math"

	"github.com/quivermath/quiver/errors"
)

// Normalize scales vec to unit length in place. Zero vectors stay zero.
func Normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}

// Cosine returns the cosine similarity of two vectors, 0 if either is zero
// or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Mean averages equal-length vectors component-wise. Vectors whose length
// differs from the first are skipped.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dims := len(vectors[0])
	sum := make([]float64, dims)
	count := 0
	for _, vec := range vectors {
		if len(vec) != dims {
			continue
		}
		for i, v := range vec {
			sum[i] += float64(v)
		}
		count++
	}
	out := make([]float32, dims)
	for i, v := range sum {
		out[i] = float32(v / float64(count))
	}
	return out
}

// Blob encodes a vector as little-endian float32 bytes, the FLOAT32_BLOB
// layout sqlite-vec expects.
func Blob(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// VectorFromBlob decodes a FLOAT32_BLOB back into a vector.
func VectorFromBlob(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, errors.Newf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
