// Package summarizer composes short answers from retrieved chunks.
package summarizer

import (
	"context"
	"math"
	"sort"
	"strings"

	"localrag/internal/retrieval"
)

// NoAnswer is returned when nothing was retrieved.
const NoAnswer = "No relevant passages were found in the indexed documents."

// frequencyWeight scales the corpus-frequency component of a sentence score so
// that it only breaks ties between sentences with equal query overlap.
const frequencyWeight = 0.1

// QueryComposer ranks the sentences of the retrieved chunks by how many query
// terms they contain, then by token frequency across the retrieved text.
type QueryComposer struct {
	maxSentences int
}

var _ retrieval.Composer = (*QueryComposer)(nil)

// NewQueryComposer keeps at most maxSentences sentences, 3 when unset.
func NewQueryComposer(maxSentences int) *QueryComposer {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &QueryComposer{maxSentences: maxSentences}
}

type candidate struct {
	text   string
	tokens []string
	order  int
	score  float64
}

// Compose returns the best sentences joined by spaces, in retrieval order.
// Sentences repeated by overlapping chunks are counted once.
func (c *QueryComposer) Compose(_ context.Context, query string, results []retrieval.SearchResult) (string, error) {
	var cands []candidate
	seen := make(map[string]struct{})
	for _, r := range results {
		for _, sent := range retrieval.Sentences(r.Chunk.Text) {
			if _, dup := seen[sent]; dup {
				continue
			}
			seen[sent] = struct{}{}
			cands = append(cands, candidate{text: sent, tokens: retrieval.Tokens(sent), order: len(cands)})
		}
	}
	if len(cands) == 0 {
		return NoAnswer, nil
	}

	freq := frequencies(cands)
	qset := retrieval.TokenSet(query)
	for i := range cands {
		cands[i].score = overlap(qset, cands[i].tokens) + frequencyWeight*freqScore(freq, cands[i].tokens)
	}

	ranked := make([]candidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	n := min(c.maxSentences, len(ranked))
	selected := ranked[:n]
	sort.Slice(selected, func(i, j int) bool { return selected[i].order < selected[j].order })

	out := make([]string, n)
	for i, s := range selected {
		out[i] = s.text
	}
	return strings.Join(out, " "), nil
}

// frequencies counts tokens over all candidates, normalized to the most
// frequent token.
func frequencies(cands []candidate) map[string]float64 {
	freq := map[string]float64{}
	maxF := 0.0
	for _, c := range cands {
		for _, tok := range c.tokens {
			freq[tok]++
			maxF = max(maxF, freq[tok])
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	return freq
}

// freqScore normalizes by sentence length to avoid a bias towards long
// sentences.
func freqScore(freq map[string]float64, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	s := 0.0
	for _, tok := range tokens {
		s += freq[tok]
	}
	return s / math.Sqrt(float64(len(tokens)))
}

func overlap(qset map[string]struct{}, tokens []string) float64 {
	hit := make(map[string]struct{})
	for _, tok := range tokens {
		if _, ok := qset[tok]; ok {
			hit[tok] = struct{}{}
		}
	}
	return float64(len(hit))
}
