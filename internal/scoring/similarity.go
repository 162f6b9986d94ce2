package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sekolahku/ujian-backend/internal/model"
)

// ErrGradingUnavailable is returned when automatic correction is requested
// for a question that is not configured for it.
var ErrGradingUnavailable = errors.New("auto-correction not available for this question")

// Similarity computes a [0,1] closeness score between a submitted essay
// answer and its expected reference text. Implementations must be
// deterministic and return exactly 1 for identical non-empty inputs.
type Similarity interface {
	Score(ctx context.Context, submitted, expected string) (float64, error)
}

// Corrector grades essay answers by similarity against the question's
// expected answer.
type Corrector struct {
	strategy Similarity
}

// NewCorrector creates a Corrector with the given strategy.
func NewCorrector(strategy Similarity) *Corrector {
	return &Corrector{strategy: strategy}
}

// AutoCorrect produces (similarity, points earned) for an essay answer.
// It fails with ErrGradingUnavailable when the question has auto-correction
// disabled or no expected answer configured.
func (c *Corrector) AutoCorrect(ctx context.Context, q *model.Question, submitted string) (float64, float64, error) {
	if q.QuestionType != model.QuestionTypeEssay {
		return 0, 0, fmt.Errorf("question %s is not an essay", q.ID)
	}
	if !q.AutoCorrection || q.ExpectedAnswer == nil || *q.ExpectedAnswer == "" {
		return 0, 0, ErrGradingUnavailable
	}

	sim, err := c.strategy.Score(ctx, submitted, *q.ExpectedAnswer)
	if err != nil {
		return 0, 0, fmt.Errorf("similarity: %w", err)
	}
	sim = clamp01(sim)
	return sim, q.Points * sim, nil
}

// ─── Lexical strategy ───────────────────────────────────────────────

// LexicalSimilarity is the default strategy: Jaccard overlap of normalized
// token sets. No external calls, stable across recomputation.
type LexicalSimilarity struct{}

// Score computes |A ∩ B| / |A ∪ B| over lowercased alphanumeric tokens.
func (LexicalSimilarity) Score(_ context.Context, submitted, expected string) (float64, error) {
	a := tokenSet(submitted)
	b := tokenSet(expected)
	if len(a) == 0 && len(b) == 0 {
		return 1, nil
	}
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}

	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union), nil
}

// tokenSet lowercases the text and splits it on any non-letter/non-digit rune.
func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		set[tok] = true
	}
	return set
}

// ─── Embedding strategy ─────────────────────────────────────────────

// EmbeddingSimilarity scores answers by cosine similarity of embeddings from
// an OpenAI-compatible endpoint. Cosine output is clamped to [0,1].
type EmbeddingSimilarity struct {
	api   *openai.Client
	model openai.EmbeddingModel
}

// NewEmbeddingSimilarity creates the embedding strategy. baseURL may point
// at any OpenAI-compatible server; empty uses the default endpoint.
func NewEmbeddingSimilarity(baseURL, apiKey, modelName string) *EmbeddingSimilarity {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &EmbeddingSimilarity{
		api:   openai.NewClientWithConfig(cfg),
		model: openai.EmbeddingModel(modelName),
	}
}

// Score embeds both texts in one request and returns their cosine similarity.
func (s *EmbeddingSimilarity) Score(ctx context.Context, submitted, expected string) (float64, error) {
	if submitted == expected {
		// Identity holds regardless of the embedding backend.
		return 1, nil
	}

	resp, err := s.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: s.model,
		Input: []string{submitted, expected},
	})
	if err != nil {
		return 0, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != 2 {
		return 0, fmt.Errorf("expected 2 embeddings, got %d", len(resp.Data))
	}

	return clamp01(cosine(resp.Data[0].Embedding, resp.Data[1].Embedding)), nil
}

func cosine(a, b []float32) float64 {
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

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
