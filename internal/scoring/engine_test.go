package scoring

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/sekolahku/ujian-backend/internal/model"
)

func newChoiceQuestion(qType model.QuestionType, points float64, correct ...bool) *model.Question {
	q := &model.Question{
		ID:           uuid.New(),
		QuestionType: qType,
		Points:       points,
	}
	for i, isCorrect := range correct {
		q.Alternatives = append(q.Alternatives, model.Alternative{
			ID:         uuid.New(),
			QuestionID: q.ID,
			IsCorrect:  isCorrect,
			OrderNum:   i,
		})
	}
	return q
}

func answerWith(q *model.Question, indices ...int) *model.Answer {
	ans := &model.Answer{ID: uuid.New(), QuestionID: q.ID}
	for _, i := range indices {
		ans.SelectedAlternatives = append(ans.SelectedAlternatives, q.Alternatives[i].ID)
	}
	return ans
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreSingleChoice(t *testing.T) {
	// Correct alternative is index 1.
	q := newChoiceQuestion(model.QuestionTypeSingleChoice, 2, false, true, false)

	tests := []struct {
		name    string
		indices []int
		points  float64
		label   Label
	}{
		{"correct selection", []int{1}, 2, LabelCorrect},
		{"wrong selection", []int{0}, 0, LabelIncorrect},
		{"multiple selected", []int{0, 1}, 0, LabelIncorrect},
		{"all selected", []int{0, 1, 2}, 0, LabelIncorrect},
		{"nothing selected", nil, 0, LabelIncorrect},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ans *model.Answer
			if tc.indices != nil {
				ans = answerWith(q, tc.indices...)
			}
			got := Score(q, ans)
			if !got.Graded {
				t.Fatal("single choice must always grade synchronously")
			}
			if !almostEqual(got.Points, tc.points) {
				t.Errorf("points = %v, want %v", got.Points, tc.points)
			}
			if got.Label != tc.label {
				t.Errorf("label = %s, want %s", got.Label, tc.label)
			}
		})
	}
}

func TestScoreTrueFalse(t *testing.T) {
	q := newChoiceQuestion(model.QuestionTypeTrueFalse, 1, true, false)

	if got := Score(q, answerWith(q, 0)); !almostEqual(got.Points, 1) {
		t.Errorf("correct answer: points = %v, want 1", got.Points)
	}
	if got := Score(q, answerWith(q, 1)); !almostEqual(got.Points, 0) {
		t.Errorf("wrong answer: points = %v, want 0", got.Points)
	}
	if got := Score(q, answerWith(q, 0, 1)); !almostEqual(got.Points, 0) {
		t.Errorf("both selected: points = %v, want 0", got.Points)
	}
}

func TestScoreMultipleChoice(t *testing.T) {
	// Correct set is {0, 2} out of four alternatives.
	q := newChoiceQuestion(model.QuestionTypeMultipleChoice, 4, true, false, true, false)

	tests := []struct {
		name    string
		indices []int
		points  float64
		label   Label
	}{
		{"exact match", []int{0, 2}, 4, LabelCorrect},
		{"proper subset", []int{0}, 2, LabelPartial},
		{"other proper subset", []int{2}, 2, LabelPartial},
		{"subset plus incorrect", []int{0, 1}, 0, LabelIncorrect},
		{"full set plus incorrect", []int{0, 2, 3}, 0, LabelIncorrect},
		{"only incorrect", []int{1, 3}, 0, LabelIncorrect},
		{"nothing selected", nil, 0, LabelIncorrect},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ans *model.Answer
			if tc.indices != nil {
				ans = answerWith(q, tc.indices...)
			}
			got := Score(q, ans)
			if !almostEqual(got.Points, tc.points) {
				t.Errorf("points = %v, want %v", got.Points, tc.points)
			}
			if got.Label != tc.label {
				t.Errorf("label = %s, want %s", got.Label, tc.label)
			}
		})
	}
}

func TestScoreEssay(t *testing.T) {
	text := "jawaban siswa"
	q := &model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeEssay, Points: 10}

	got := Score(q, &model.Answer{QuestionID: q.ID, AnswerText: &text})
	if got.Graded {
		t.Error("essay answers must defer to the correction workflow")
	}
	if got.Correction != model.CorrectionPending {
		t.Errorf("correction = %s, want %s", got.Correction, model.CorrectionPending)
	}
	if got.Label != LabelPending {
		t.Errorf("label = %s, want %s", got.Label, LabelPending)
	}

	// Unanswered essays are closed out immediately with zero points.
	empty := Score(q, nil)
	if !empty.Graded || !almostEqual(empty.Points, 0) {
		t.Errorf("unanswered essay: graded=%v points=%v, want graded with 0", empty.Graded, empty.Points)
	}
	if empty.Correction != model.CorrectionNotApplicable {
		t.Errorf("unanswered essay correction = %s, want %s", empty.Correction, model.CorrectionNotApplicable)
	}
}

// Full-exam walkthrough: duration 60, single choice worth 2 (correct = A)
// and multiple choice worth 4 (correct = {A, C} of A..D).
func TestAggregateWorkedExamples(t *testing.T) {
	q1 := newChoiceQuestion(model.QuestionTypeSingleChoice, 2, true, false, false)
	q2 := newChoiceQuestion(model.QuestionTypeMultipleChoice, 4, true, false, true, false)
	questions := []model.Question{*q1, *q2}

	score := func(q *model.Question, ans *model.Answer) *model.Answer {
		res := Score(q, ans)
		ans.PointsEarned = &res.Points
		ans.CorrectionStatus = res.Correction
		return ans
	}

	t.Run("all correct", func(t *testing.T) {
		answers := map[uuid.UUID]*model.Answer{
			q1.ID: score(q1, answerWith(q1, 0)),
			q2.ID: score(q2, answerWith(q2, 0, 2)),
		}
		got := Aggregate(questions, answers)
		if !almostEqual(got.TotalPoints, 6) || !almostEqual(got.MaxPoints, 6) {
			t.Errorf("totals = %v/%v, want 6/6", got.TotalPoints, got.MaxPoints)
		}
		if !almostEqual(got.Percentage, 100) {
			t.Errorf("percentage = %v, want 100", got.Percentage)
		}
	})

	t.Run("wrong single, tainted multiple", func(t *testing.T) {
		answers := map[uuid.UUID]*model.Answer{
			q1.ID: score(q1, answerWith(q1, 1)),
			q2.ID: score(q2, answerWith(q2, 0, 1)),
		}
		got := Aggregate(questions, answers)
		if !almostEqual(got.TotalPoints, 0) {
			t.Errorf("total = %v, want 0", got.TotalPoints)
		}
		if !almostEqual(got.Percentage, 0) {
			t.Errorf("percentage = %v, want 0", got.Percentage)
		}
	})

	t.Run("empty exam has zero percentage", func(t *testing.T) {
		got := Aggregate(nil, nil)
		if got.Percentage != 0 {
			t.Errorf("percentage = %v, want 0 when max is 0", got.Percentage)
		}
	})
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		pct  float64
		want Tier
	}{
		{100, TierExcellent},
		{90, TierExcellent},
		{89.9, TierVeryGood},
		{80, TierVeryGood},
		{75, TierGood},
		{65, TierFair},
		{50, TierPoor},
		{39.9, TierFailing},
		{0, TierFailing},
	}
	for _, tc := range tests {
		if got := TierFor(tc.pct); got != tc.want {
			t.Errorf("TierFor(%v) = %s, want %s", tc.pct, got, tc.want)
		}
	}
}
