package model

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus enumerates enrollment states. Transitions are monotonic:
// NOT_STARTED → IN_PROGRESS → COMPLETED, never backward.
type EnrollmentStatus string

const (
	EnrollmentStatusNotStarted EnrollmentStatus = "NOT_STARTED"
	EnrollmentStatusInProgress EnrollmentStatus = "IN_PROGRESS"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
)

// Enrollment represents one student's attempt at one exam. StartedAt and
// FinishedAt are set exactly once, by the start and finish transitions.
type Enrollment struct {
	ID         uuid.UUID        `json:"id"`
	ExamID     uuid.UUID        `json:"exam_id"`
	StudentID  int              `json:"student_id"`
	Status     EnrollmentStatus `json:"status"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	TotalScore *float64         `json:"total_score,omitempty"`
}

// EnrollmentSnapshot is returned on start and status: everything a client
// needs to render or resume a session.
type EnrollmentSnapshot struct {
	Enrollment       Enrollment           `json:"enrollment"`
	RemainingSeconds float64              `json:"remaining_seconds"`
	Questions        []QuestionForStudent `json:"questions"`
	Answers          []Answer             `json:"answers"`
}

// FinishResult is the student-facing acknowledgment of a finished session.
// Essay auto-correction may still be running when this is returned.
type FinishResult struct {
	EnrollmentID uuid.UUID  `json:"enrollment_id"`
	TotalPoints  float64    `json:"total_points"`
	MaxPoints    float64    `json:"max_points"`
	AnswersCount int        `json:"answers_count"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
