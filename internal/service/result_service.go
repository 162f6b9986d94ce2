package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sekolahku/ujian-backend/internal/model"
	"github.com/sekolahku/ujian-backend/internal/repository"
	"github.com/sekolahku/ujian-backend/internal/scoring"
)

// QuestionResult is one question's row in a result view. The label is
// derived from points_earned with the engine's thresholds, never recomputed
// from the raw selections.
type QuestionResult struct {
	QuestionID       uuid.UUID              `json:"question_id"`
	OrderNum         int                    `json:"order_num"`
	QuestionType     model.QuestionType     `json:"question_type"`
	MaxPoints        float64                `json:"max_points"`
	PointsEarned     *float64               `json:"points_earned,omitempty"`
	Label            scoring.Label          `json:"label"`
	CorrectionStatus model.CorrectionStatus `json:"correction_status"`
	Similarity       *float64               `json:"similarity,omitempty"`
	Feedback         *string                `json:"feedback,omitempty"`
}

// EnrollmentResult is the full read-side projection of one finished attempt.
// The tier is cosmetic and carries no grading authority.
type EnrollmentResult struct {
	Enrollment model.Enrollment `json:"enrollment"`
	Questions  []QuestionResult `json:"questions"`
	Totals     scoring.Totals   `json:"totals"`
	Tier       scoring.Tier     `json:"tier"`
}

// ResultService is the pure read-side aggregator over the answer store and
// the scoring engine's stored outputs.
type ResultService struct {
	enrollRepo   *repository.EnrollmentRepository
	questionRepo *repository.QuestionRepository
	answerRepo   *repository.AnswerRepository
}

// NewResultService creates a new ResultService.
func NewResultService(
	enrollRepo *repository.EnrollmentRepository,
	questionRepo *repository.QuestionRepository,
	answerRepo *repository.AnswerRepository,
) *ResultService {
	return &ResultService{
		enrollRepo:   enrollRepo,
		questionRepo: questionRepo,
		answerRepo:   answerRepo,
	}
}

// Result projects one enrollment's stored grades into display form.
func (s *ResultService) Result(ctx context.Context, enrollmentID uuid.UUID) (*EnrollmentResult, error) {
	enrollment, err := s.enrollRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	questions, err := s.questionRepo.ListByExam(ctx, enrollment.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.answerRepo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	byQuestion := map[uuid.UUID]*model.Answer{}
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	result := &EnrollmentResult{Enrollment: *enrollment}
	for i := range questions {
		q := &questions[i]
		ans := byQuestion[q.ID]

		entry := QuestionResult{
			QuestionID:       q.ID,
			OrderNum:         q.OrderNum,
			QuestionType:     q.QuestionType,
			MaxPoints:        q.Points,
			Label:            scoring.LabelFor(q, ans),
			CorrectionStatus: model.CorrectionNotApplicable,
		}
		if ans != nil {
			entry.PointsEarned = ans.PointsEarned
			entry.CorrectionStatus = ans.CorrectionStatus
			entry.Similarity = ans.Similarity
			entry.Feedback = ans.Feedback
		}
		result.Questions = append(result.Questions, entry)
	}

	result.Totals = scoring.Aggregate(questions, byQuestion)
	result.Tier = scoring.TierFor(result.Totals.Percentage)
	return result, nil
}

// ResultOwnedBy is the student-facing variant: it refuses to project an
// enrollment owned by a different student.
func (s *ResultService) ResultOwnedBy(ctx context.Context, enrollmentID uuid.UUID, studentID int) (*EnrollmentResult, error) {
	result, err := s.Result(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if result.Enrollment.StudentID != studentID {
		return nil, ErrForbidden
	}
	return result, nil
}
