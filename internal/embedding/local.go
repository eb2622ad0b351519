package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalProvider hashes word and bigram features into a fixed-size
// vector. It is deterministic and needs no network access; similar
// questions share tokens and therefore land near each other, which is
// enough for template reuse even if it is far from a learned model.
type LocalProvider struct {
	dims int
}

// NewLocalProvider creates a feature-hash provider with the given
// dimensionality.
func NewLocalProvider(dims int) *LocalProvider {
	if dims <= 0 {
		dims = 384
	}

	return &LocalProvider{dims: dims}
}

func (p *LocalProvider) Dimensions() int {
	return p.dims
}

// Embed produces an L2-normalized vector from hashed token features.
func (p *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dims)
	tokens := tokenize(text)

	for i, token := range tokens {
		addFeature(vec, token, 1.0)

		if i+1 < len(tokens) {
			addFeature(vec, token+" "+tokens[i+1], 0.5)
		}
	}

	normalize(vec)

	return vec, nil
}

// addFeature hashes the feature twice: once for the slot, once for the
// sign. Signed hashing keeps collisions from systematically inflating
// any single dimension.
func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	slot := int(sum % uint64(len(vec)))
	if (sum>>63)&1 == 1 {
		weight = -weight
	}

	vec[slot] += weight
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	if norm == 0 {
		return
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))

	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}

	return tokens
}
