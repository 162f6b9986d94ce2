package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sekolahku/ujian-backend/internal/model"
)

func TestRemaining(t *testing.T) {
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("full duration at start", func(t *testing.T) {
		got := Remaining(start, start, 60, nil)
		if got != 60*time.Minute {
			t.Errorf("remaining = %v, want 60m", got)
		}
	})

	t.Run("halfway through", func(t *testing.T) {
		got := Remaining(start.Add(30*time.Minute), start, 60, nil)
		if got != 30*time.Minute {
			t.Errorf("remaining = %v, want 30m", got)
		}
	})

	t.Run("floored at zero after deadline", func(t *testing.T) {
		got := Remaining(start.Add(2*time.Hour), start, 60, nil)
		if got != 0 {
			t.Errorf("remaining = %v, want 0", got)
		}
	})

	t.Run("monotonically non-increasing", func(t *testing.T) {
		prev := time.Duration(1<<62 - 1)
		for minutes := 0; minutes <= 90; minutes += 5 {
			now := start.Add(time.Duration(minutes) * time.Minute)
			got := Remaining(now, start, 60, nil)
			if got < 0 {
				t.Fatalf("remaining negative at +%dm: %v", minutes, got)
			}
			if got > prev {
				t.Fatalf("remaining increased at +%dm: %v > %v", minutes, got, prev)
			}
			prev = got
		}
	})

	t.Run("closing time caps the deadline", func(t *testing.T) {
		closesAt := start.Add(20 * time.Minute)
		got := Remaining(start.Add(10*time.Minute), start, 60, &closesAt)
		if got != 10*time.Minute {
			t.Errorf("remaining = %v, want 10m (capped by closes_at)", got)
		}
	})
}

func TestExamDeadlineClamp(t *testing.T) {
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	closesAt := start.Add(45 * time.Minute)
	exam := &model.Exam{DurationMinutes: 60, ClosesAt: &closesAt}

	if got := exam.Deadline(start); !got.Equal(closesAt) {
		t.Errorf("deadline = %v, want closes_at %v", got, closesAt)
	}

	open := &model.Exam{DurationMinutes: 60}
	if got := open.Deadline(start); !got.Equal(start.Add(time.Hour)) {
		t.Errorf("deadline = %v, want start + 60m", got)
	}
}

func essayQuestion() *model.Question {
	return &model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeEssay,
		Points:       10,
	}
}

func choiceQuestion() *model.Question {
	q := &model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeSingleChoice,
		Points:       2,
	}
	for i := 0; i < 3; i++ {
		q.Alternatives = append(q.Alternatives, model.Alternative{
			ID:         uuid.New(),
			QuestionID: q.ID,
			IsCorrect:  i == 0,
			OrderNum:   i,
		})
	}
	return q
}

func TestBuildAnswerTaggedUnion(t *testing.T) {
	enrollmentID := uuid.New()
	text := "uraian jawaban"

	t.Run("essay requires text", func(t *testing.T) {
		q := essayQuestion()
		ans, err := buildAnswer(enrollmentID, q, &model.SubmitAnswerRequest{QuestionID: q.ID, AnswerText: &text})
		if err != nil {
			t.Fatalf("buildAnswer: %v", err)
		}
		if ans.AnswerText == nil || *ans.AnswerText != text {
			t.Error("essay text not carried over")
		}
		if ans.CorrectionStatus != model.CorrectionPending {
			t.Errorf("correction = %s, want PENDING", ans.CorrectionStatus)
		}
	})

	t.Run("essay rejects missing text", func(t *testing.T) {
		q := essayQuestion()
		if _, err := buildAnswer(enrollmentID, q, &model.SubmitAnswerRequest{QuestionID: q.ID}); err != ErrValidation {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("essay rejects selections", func(t *testing.T) {
		q := essayQuestion()
		req := &model.SubmitAnswerRequest{QuestionID: q.ID, AnswerText: &text, SelectedAlternatives: []uuid.UUID{uuid.New()}}
		if _, err := buildAnswer(enrollmentID, q, req); err != ErrValidation {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("choice accepts own alternatives", func(t *testing.T) {
		q := choiceQuestion()
		req := &model.SubmitAnswerRequest{QuestionID: q.ID, SelectedAlternatives: []uuid.UUID{q.Alternatives[1].ID}}
		ans, err := buildAnswer(enrollmentID, q, req)
		if err != nil {
			t.Fatalf("buildAnswer: %v", err)
		}
		if len(ans.SelectedAlternatives) != 1 || ans.SelectedAlternatives[0] != q.Alternatives[1].ID {
			t.Error("selection not carried over")
		}
		if ans.CorrectionStatus != model.CorrectionNotApplicable {
			t.Errorf("correction = %s, want NOT_APPLICABLE", ans.CorrectionStatus)
		}
	})

	t.Run("choice rejects foreign alternative", func(t *testing.T) {
		q := choiceQuestion()
		req := &model.SubmitAnswerRequest{QuestionID: q.ID, SelectedAlternatives: []uuid.UUID{uuid.New()}}
		if _, err := buildAnswer(enrollmentID, q, req); err != ErrValidation {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("choice rejects text payload", func(t *testing.T) {
		q := choiceQuestion()
		req := &model.SubmitAnswerRequest{QuestionID: q.ID, AnswerText: &text, SelectedAlternatives: []uuid.UUID{q.Alternatives[0].ID}}
		if _, err := buildAnswer(enrollmentID, q, req); err != ErrValidation {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("choice rejects empty selection", func(t *testing.T) {
		q := choiceQuestion()
		if _, err := buildAnswer(enrollmentID, q, &model.SubmitAnswerRequest{QuestionID: q.ID}); err != ErrValidation {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("duplicate selections are deduplicated", func(t *testing.T) {
		q := choiceQuestion()
		id := q.Alternatives[0].ID
		req := &model.SubmitAnswerRequest{QuestionID: q.ID, SelectedAlternatives: []uuid.UUID{id, id, id}}
		ans, err := buildAnswer(enrollmentID, q, req)
		if err != nil {
			t.Fatalf("buildAnswer: %v", err)
		}
		if len(ans.SelectedAlternatives) != 1 {
			t.Errorf("selections = %d, want 1 after dedupe", len(ans.SelectedAlternatives))
		}
	})
}
