package scoring

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sekolahku/ujian-backend/internal/model"
)

func TestLexicalIdentity(t *testing.T) {
	texts := []string{
		"fotosintesis mengubah cahaya menjadi energi",
		"x",
		"Satu, dua, tiga!",
	}
	var strat LexicalSimilarity
	for _, text := range texts {
		sim, err := strat.Score(context.Background(), text, text)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if sim != 1 {
			t.Errorf("similarity(%q, %q) = %v, want 1", text, text, sim)
		}
	}
}

func TestLexicalDeterministic(t *testing.T) {
	var strat LexicalSimilarity
	a := "proses fotosintesis membutuhkan cahaya matahari"
	b := "fotosintesis adalah proses pada tumbuhan"

	first, _ := strat.Score(context.Background(), a, b)
	for i := 0; i < 10; i++ {
		again, _ := strat.Score(context.Background(), a, b)
		if again != first {
			t.Fatalf("run %d: similarity changed from %v to %v", i, first, again)
		}
	}
}

func TestLexicalBoundedAndMonotone(t *testing.T) {
	var strat LexicalSimilarity
	expected := "air menguap karena panas matahari lalu mengembun menjadi awan"

	// Progressively less overlapping answers.
	answers := []string{
		"air menguap karena panas matahari lalu mengembun menjadi awan",
		"air menguap karena panas matahari",
		"air menguap",
		"tanah longsor di pegunungan",
	}

	prev := 1.1
	for _, ans := range answers {
		sim, err := strat.Score(context.Background(), ans, expected)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if sim < 0 || sim > 1 {
			t.Errorf("similarity(%q) = %v, out of [0,1]", ans, sim)
		}
		if sim > prev {
			t.Errorf("similarity(%q) = %v increased above %v despite less overlap", ans, sim, prev)
		}
		prev = sim
	}
}

func TestAutoCorrect(t *testing.T) {
	expected := "fotosintesis mengubah cahaya menjadi energi kimia"
	points := 10.0

	question := func(auto bool, ref *string) *model.Question {
		return &model.Question{
			ID:             uuid.New(),
			QuestionType:   model.QuestionTypeEssay,
			Points:         points,
			AutoCorrection: auto,
			ExpectedAnswer: ref,
		}
	}

	corrector := NewCorrector(LexicalSimilarity{})

	t.Run("identical answer earns full points", func(t *testing.T) {
		sim, earned, err := corrector.AutoCorrect(context.Background(), question(true, &expected), expected)
		if err != nil {
			t.Fatalf("AutoCorrect: %v", err)
		}
		if sim != 1 || earned != points {
			t.Errorf("got sim=%v earned=%v, want 1 and %v", sim, earned, points)
		}
	})

	t.Run("points scale with similarity", func(t *testing.T) {
		sim, earned, err := corrector.AutoCorrect(context.Background(), question(true, &expected), "fotosintesis mengubah cahaya")
		if err != nil {
			t.Fatalf("AutoCorrect: %v", err)
		}
		if !almostEqual(earned, points*sim) {
			t.Errorf("earned = %v, want points × similarity = %v", earned, points*sim)
		}
	})

	t.Run("disabled auto-correction", func(t *testing.T) {
		_, _, err := corrector.AutoCorrect(context.Background(), question(false, &expected), "apapun")
		if err != ErrGradingUnavailable {
			t.Errorf("err = %v, want ErrGradingUnavailable", err)
		}
	})

	t.Run("missing expected answer", func(t *testing.T) {
		_, _, err := corrector.AutoCorrect(context.Background(), question(true, nil), "apapun")
		if err != ErrGradingUnavailable {
			t.Errorf("err = %v, want ErrGradingUnavailable", err)
		}
	})
}

func TestCosine(t *testing.T) {
	if got := cosine([]float32{1, 0}, []float32{1, 0}); !almostEqual(got, 1) {
		t.Errorf("identical vectors: cosine = %v, want 1", got)
	}
	if got := cosine([]float32{1, 0}, []float32{0, 1}); !almostEqual(got, 0) {
		t.Errorf("orthogonal vectors: cosine = %v, want 0", got)
	}
	if got := cosine([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Errorf("mismatched lengths: cosine = %v, want 0", got)
	}
}
