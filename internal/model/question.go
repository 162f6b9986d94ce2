package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

// Alternative is a selectable option of a non-essay question.
type Alternative struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
	IsCorrect  bool      `json:"is_correct"`
	OrderNum   int       `json:"order_num"`
}

// Question represents a single exam question.
//
// For SINGLE_CHOICE, MULTIPLE_CHOICE and TRUE_FALSE the Alternatives slice
// carries the options with their correctness flags. For ESSAY,
// ExpectedAnswer holds the optional reference text used by automatic
// correction, gated by AutoCorrection.
type Question struct {
	ID             uuid.UUID     `json:"id"`
	ExamID         uuid.UUID     `json:"exam_id"`
	QuestionText   string        `json:"question_text"`
	QuestionType   QuestionType  `json:"question_type"`
	Points         float64       `json:"points"`
	OrderNum       int           `json:"order_num"`
	Alternatives   []Alternative `json:"alternatives,omitempty"`
	ExpectedAnswer *string       `json:"expected_answer,omitempty"`
	AutoCorrection bool          `json:"auto_correction"`
}

// CorrectAlternativeIDs returns the ids of the alternatives flagged correct.
func (q *Question) CorrectAlternativeIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, alt := range q.Alternatives {
		if alt.IsCorrect {
			ids = append(ids, alt.ID)
		}
	}
	return ids
}

// HasAlternative reports whether the given id belongs to this question.
func (q *Question) HasAlternative(id uuid.UUID) bool {
	for _, alt := range q.Alternatives {
		if alt.ID == id {
			return true
		}
	}
	return false
}

// QuestionForStudent is a question stripped of correctness data, sent to
// students during an active session.
type QuestionForStudent struct {
	ID           uuid.UUID               `json:"id"`
	QuestionText string                  `json:"question_text"`
	QuestionType QuestionType            `json:"question_type"`
	Points       float64                 `json:"points"`
	OrderNum     int                     `json:"order_num"`
	Alternatives []AlternativeForStudent `json:"alternatives,omitempty"`
}

// AlternativeForStudent is an alternative without its correctness flag.
type AlternativeForStudent struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	OrderNum int       `json:"order_num"`
}

// ForStudent converts a question to its student-facing form.
func (q *Question) ForStudent() QuestionForStudent {
	out := QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Points:       q.Points,
		OrderNum:     q.OrderNum,
	}
	for _, alt := range q.Alternatives {
		out.Alternatives = append(out.Alternatives, AlternativeForStudent{
			ID:       alt.ID,
			Text:     alt.Text,
			OrderNum: alt.OrderNum,
		})
	}
	return out
}
