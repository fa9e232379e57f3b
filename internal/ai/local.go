package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultLocalDimension = 384

type localConfig struct {
	Dimension int `json:"dimension"`
}

// localProvider embeds text by hashing word, bigram and character trigram features into a
// fixed number of buckets. It needs no network and is deterministic for a given dimension.
type localProvider struct {
	dimension int
}

func NewLocalProvider(dimension int) IEmbedProvider {
	if dimension <= 0 {
		dimension = DefaultLocalDimension
	}
	return &localProvider{dimension: dimension}
}

// NewLocalEmbedder returns the local embedder for the given dimension.
func NewLocalEmbedder(dimension int) IEmbedder {
	p := NewLocalProvider(dimension).(*localProvider)
	return NewEmbedder(p, localModelName(p.dimension))
}

func localModelName(dimension int) string {
	return fmt.Sprintf("local-hash-%d", dimension)
}

func (p *localProvider) Name() string {
	return "local"
}

func (p *localProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	_ = ctx
	_ = model
	_ = taskType
	vec := make([]float64, p.dimension)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		out := make([]float32, p.dimension)
		out[0] = 1
		return out, nil
	}
	for i, tok := range tokens {
		addFeature(vec, "w:"+tok, 1.0)
		if i > 0 {
			addFeature(vec, "b:"+tokens[i-1]+" "+tok, 0.5)
		}
		runes := []rune("#" + tok + "#")
		for j := 0; j+3 <= len(runes); j++ {
			addFeature(vec, "c:"+string(runes[j:j+3]), 0.25)
		}
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, p.dimension)
	if norm == 0 {
		out[0] = 1
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func addFeature(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := sum % uint64(len(vec))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func createLocalEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &localConfig{}
	if args != nil {
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
	}
	return NewLocalProvider(cfg.Dimension), nil
}

func init() {
	RegisterEmbed("local", createLocalEmbedFactory)
}
