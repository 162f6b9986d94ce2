package scoring

import (
	"math"

	"github.com/google/uuid"
	"github.com/sekolahku/ujian-backend/internal/model"
)

// Label is the per-question correctness label shown on result views. It is
// always derived from the earned points, never recomputed independently.
type Label string

const (
	LabelCorrect   Label = "CORRECT"
	LabelPartial   Label = "PARTIAL"
	LabelIncorrect Label = "INCORRECT"
	LabelPending   Label = "PENDING"
)

// Result is the outcome of scoring one answer against its question.
type Result struct {
	// Points earned. Meaningless when Graded is false.
	Points float64
	// Graded is false for essay answers deferred to the correction workflow.
	Graded     bool
	Label      Label
	Correction model.CorrectionStatus
}

const epsilon = 1e-9

// Score applies the per-type grading rules. ans may be nil (unanswered).
// Essay answers are never scored here: they come back Graded=false with
// correction status PENDING and are handled by the correction workflow.
func Score(q *model.Question, ans *model.Answer) Result {
	if q.QuestionType == model.QuestionTypeEssay {
		if ans == nil || ans.AnswerText == nil || *ans.AnswerText == "" {
			// Nothing submitted: nothing to correct.
			return Result{Points: 0, Graded: true, Label: LabelIncorrect, Correction: model.CorrectionNotApplicable}
		}
		return Result{Graded: false, Label: LabelPending, Correction: model.CorrectionPending}
	}

	selected := map[uuid.UUID]bool{}
	if ans != nil {
		for _, id := range ans.SelectedAlternatives {
			selected[id] = true
		}
	}
	if len(selected) == 0 {
		return Result{Points: 0, Graded: true, Label: LabelIncorrect, Correction: model.CorrectionNotApplicable}
	}

	var points float64
	switch q.QuestionType {
	case model.QuestionTypeSingleChoice, model.QuestionTypeTrueFalse:
		points = scoreSingle(q, selected)
	case model.QuestionTypeMultipleChoice:
		points = scoreMultiple(q, selected)
	}

	return Result{
		Points:     points,
		Graded:     true,
		Label:      LabelForPoints(points, q.Points),
		Correction: model.CorrectionNotApplicable,
	}
}

// scoreSingle awards full points only when exactly one alternative is
// selected and it is the correct one. No partial credit.
func scoreSingle(q *model.Question, selected map[uuid.UUID]bool) float64 {
	if len(selected) != 1 {
		return 0
	}
	for _, alt := range q.Alternatives {
		if selected[alt.ID] {
			if alt.IsCorrect {
				return q.Points
			}
			return 0
		}
	}
	return 0
}

// scoreMultiple implements exact-match full credit with proportional partial
// credit for clean subsets. Selecting any incorrect alternative zeroes the
// question.
func scoreMultiple(q *model.Question, selected map[uuid.UUID]bool) float64 {
	correct := 0
	hit := 0
	for _, alt := range q.Alternatives {
		if alt.IsCorrect {
			correct++
			if selected[alt.ID] {
				hit++
			}
		} else if selected[alt.ID] {
			return 0
		}
	}
	if correct == 0 || hit == 0 {
		return 0
	}
	return q.Points * float64(hit) / float64(correct)
}

// LabelForPoints maps earned points to a label using the same thresholds the
// engine grades with.
func LabelForPoints(earned, max float64) Label {
	switch {
	case max > 0 && math.Abs(earned-max) < epsilon:
		return LabelCorrect
	case earned > epsilon:
		return LabelPartial
	default:
		return LabelIncorrect
	}
}

// LabelFor derives the display label for a stored answer. Pending correction
// dominates; otherwise the label follows points_earned.
func LabelFor(q *model.Question, ans *model.Answer) Label {
	if ans == nil {
		return LabelIncorrect
	}
	if ans.CorrectionStatus == model.CorrectionPending {
		return LabelPending
	}
	if ans.PointsEarned == nil {
		return LabelIncorrect
	}
	return LabelForPoints(*ans.PointsEarned, q.Points)
}

// Totals aggregates stored answers into exam-level numbers. Unanswered and
// pending questions contribute 0 to the total. Percentage is 0 when the exam
// carries no points at all.
type Totals struct {
	TotalPoints  float64 `json:"total_points"`
	MaxPoints    float64 `json:"max_points"`
	Percentage   float64 `json:"percentage"`
	AnswersCount int     `json:"answers_count"`
}

// Aggregate computes Totals over a question list and the answers keyed by
// question id.
func Aggregate(questions []model.Question, answers map[uuid.UUID]*model.Answer) Totals {
	var t Totals
	for i := range questions {
		q := &questions[i]
		t.MaxPoints += q.Points
		ans := answers[q.ID]
		if ans == nil {
			continue
		}
		t.AnswersCount++
		if ans.PointsEarned != nil {
			t.TotalPoints += *ans.PointsEarned
		}
	}
	if t.MaxPoints > 0 {
		t.Percentage = t.TotalPoints / t.MaxPoints * 100
	}
	return t
}

// Tier is the cosmetic performance band derived from a percentage. Display
// only — never used by grading decisions.
type Tier string

const (
	TierExcellent Tier = "EXCELLENT"
	TierVeryGood  Tier = "VERY_GOOD"
	TierGood      Tier = "GOOD"
	TierFair      Tier = "FAIR"
	TierPoor      Tier = "POOR"
	TierFailing   Tier = "FAILING"
)

// TierFor maps a percentage to its band: 90/80/70/60/40 cutoffs.
func TierFor(percentage float64) Tier {
	switch {
	case percentage >= 90:
		return TierExcellent
	case percentage >= 80:
		return TierVeryGood
	case percentage >= 70:
		return TierGood
	case percentage >= 60:
		return TierFair
	case percentage >= 40:
		return TierPoor
	default:
		return TierFailing
	}
}
