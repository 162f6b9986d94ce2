package model

import (
	"time"

	"github.com/google/uuid"
)

// CorrectionStatus tracks how an answer's score came to be.
type CorrectionStatus string

const (
	// CorrectionNotApplicable marks objective answers scored synchronously.
	CorrectionNotApplicable CorrectionStatus = "NOT_APPLICABLE"
	// CorrectionPending marks essay answers awaiting correction.
	CorrectionPending CorrectionStatus = "PENDING"
	// CorrectionAuto marks essay answers graded by the similarity corrector.
	CorrectionAuto CorrectionStatus = "AUTO_CORRECTED"
	// CorrectionManual marks answers graded by a human. Manual wins over
	// auto and survives recalculation; only an explicit recorrect
	// overwrites it.
	CorrectionManual CorrectionStatus = "MANUALLY_CORRECTED"
)

// Answer holds one student's answer to one question, keyed uniquely by
// (enrollment_id, question_id). The payload is a tagged union: AnswerText
// for essay questions, SelectedAlternatives for everything else — never
// both. Seq orders writes to the same question; stale writes lose.
type Answer struct {
	ID                   uuid.UUID        `json:"id"`
	EnrollmentID         uuid.UUID        `json:"enrollment_id"`
	QuestionID           uuid.UUID        `json:"question_id"`
	AnswerText           *string          `json:"answer_text,omitempty"`
	SelectedAlternatives []uuid.UUID      `json:"selected_alternatives,omitempty"`
	CorrectionStatus     CorrectionStatus `json:"correction_status"`
	PointsEarned         *float64         `json:"points_earned,omitempty"`
	Similarity           *float64         `json:"similarity,omitempty"`
	Feedback             *string          `json:"feedback,omitempty"`
	Seq                  int64            `json:"-"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// SubmitAnswerRequest is the payload for saving one answer. Exactly one of
// AnswerText / SelectedAlternatives must be present, matching the question's
// declared type.
type SubmitAnswerRequest struct {
	QuestionID           uuid.UUID   `json:"question_id" binding:"required"`
	AnswerText           *string     `json:"answer_text" binding:"omitempty,max=20000"`
	SelectedAlternatives []uuid.UUID `json:"selected_alternatives" binding:"omitempty,max=32"`
}

// ManualCorrectionRequest is the grader payload for overriding an answer's score.
type ManualCorrectionRequest struct {
	PointsEarned float64 `json:"points_earned" binding:"min=0"`
	Feedback     *string `json:"feedback" binding:"omitempty,max=5000"`
}

// RegradeRequest targets a whole exam or a single enrollment for
// recalculation or recorrection. Confirm is only consulted by the
// destructive recorrect path.
type RegradeRequest struct {
	ExamID       *uuid.UUID `json:"exam_id" binding:"omitempty"`
	EnrollmentID *uuid.UUID `json:"enrollment_id" binding:"omitempty"`
	Confirm      bool       `json:"confirm"`
}
