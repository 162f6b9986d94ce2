package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/sekolahku/ujian-backend/internal/model"
	"github.com/sekolahku/ujian-backend/internal/repository"
	"github.com/sekolahku/ujian-backend/internal/scoring"
)

// CorrectionService arbitrates manual, automatic and pending grading of
// answers. Manual corrections always win: only the explicit destructive
// recorrect path may overwrite them.
type CorrectionService struct {
	answerRepo   *repository.AnswerRepository
	questionRepo *repository.QuestionRepository
	enrollRepo   *repository.EnrollmentRepository
	corrector    *scoring.Corrector
	log          zerolog.Logger
}

// NewCorrectionService creates a new CorrectionService.
func NewCorrectionService(
	answerRepo *repository.AnswerRepository,
	questionRepo *repository.QuestionRepository,
	enrollRepo *repository.EnrollmentRepository,
	corrector *scoring.Corrector,
	log zerolog.Logger,
) *CorrectionService {
	return &CorrectionService{
		answerRepo:   answerRepo,
		questionRepo: questionRepo,
		enrollRepo:   enrollRepo,
		corrector:    corrector,
		log:          log.With().Str("component", "correction_service").Logger(),
	}
}

// ManualCorrect sets an answer's score by hand. Allowed from any prior
// correction state; the result is terminal for this grading pass.
func (s *CorrectionService) ManualCorrect(ctx context.Context, answerID uuid.UUID, points float64, feedback *string) (*model.Answer, error) {
	answer, question, err := s.load(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if points < 0 || points > question.Points {
		return nil, ErrValidation
	}

	if err := s.answerRepo.UpdateGrade(ctx, answerID, points, model.CorrectionManual, nil, feedback); err != nil {
		return nil, fmt.Errorf("update grade: %w", err)
	}
	if err := s.refreshTotal(ctx, answer.EnrollmentID); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("answer_id", answerID.String()).
		Float64("points", points).
		Msg("Answer corrected manually")
	return s.answerRepo.GetByID(ctx, answerID)
}

// AutoCorrectAnswer grades one essay answer with the similarity corrector.
// Refuses to touch a manually corrected answer unless force is set — force
// is the destructive recorrect path and overwrites the manual grade.
func (s *CorrectionService) AutoCorrectAnswer(ctx context.Context, answerID uuid.UUID, force bool) (*model.Answer, error) {
	answer, question, err := s.load(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if answer.CorrectionStatus == model.CorrectionManual && !force {
		return nil, ErrConfirmRequired
	}
	if answer.AnswerText == nil {
		return nil, ErrValidation
	}

	similarity, points, err := s.corrector.AutoCorrect(ctx, question, *answer.AnswerText)
	if err != nil {
		return nil, err
	}

	if err := s.answerRepo.UpdateGrade(ctx, answerID, points, model.CorrectionAuto, &similarity, nil); err != nil {
		return nil, fmt.Errorf("update grade: %w", err)
	}
	if err := s.refreshTotal(ctx, answer.EnrollmentID); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("answer_id", answerID.String()).
		Float64("similarity", similarity).
		Float64("points", points).
		Bool("forced", force).
		Msg("Answer auto-corrected")
	return s.answerRepo.GetByID(ctx, answerID)
}

// RegradeSummary reports what a batch regrade touched.
type RegradeSummary struct {
	Enrollments     int `json:"enrollments"`
	AnswersRegraded int `json:"answers_regraded"`
	ManualPreserved int `json:"manual_preserved"`
	EssaysPending   int `json:"essays_pending"`
}

// Recalculate regrades the targeted enrollments while PRESERVING every
// manually corrected answer: objective scores are recomputed, essay gaps
// are filled by auto-correction where available, manual grades stand.
func (s *CorrectionService) Recalculate(ctx context.Context, req *model.RegradeRequest) (*RegradeSummary, error) {
	return s.regrade(ctx, req, false)
}

// Recorrect destructively regrades the targeted enrollments, manual
// corrections included. The caller must set the confirm flag; without it
// the request is rejected before anything is touched.
func (s *CorrectionService) Recorrect(ctx context.Context, req *model.RegradeRequest) (*RegradeSummary, error) {
	if !req.Confirm {
		return nil, ErrConfirmRequired
	}
	return s.regrade(ctx, req, true)
}

func (s *CorrectionService) regrade(ctx context.Context, req *model.RegradeRequest, overwriteManual bool) (*RegradeSummary, error) {
	enrollments, err := s.targetEnrollments(ctx, req)
	if err != nil {
		return nil, err
	}

	summary := &RegradeSummary{}
	for i := range enrollments {
		enrollment := &enrollments[i]
		if enrollment.Status != model.EnrollmentStatusCompleted {
			continue
		}
		summary.Enrollments++
		if err := s.regradeEnrollment(ctx, enrollment, overwriteManual, summary); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func (s *CorrectionService) regradeEnrollment(ctx context.Context, enrollment *model.Enrollment, overwriteManual bool, summary *RegradeSummary) error {
	questions, err := s.questionRepo.ListByExam(ctx, enrollment.ExamID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.answerRepo.ListByEnrollment(ctx, enrollment.ID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}

	byQuestion := map[uuid.UUID]*model.Answer{}
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	for i := range questions {
		q := &questions[i]
		ans := byQuestion[q.ID]
		if ans == nil {
			continue
		}
		if ans.CorrectionStatus == model.CorrectionManual && !overwriteManual {
			summary.ManualPreserved++
			continue
		}

		if q.QuestionType == model.QuestionTypeEssay {
			_, err := s.AutoCorrectAnswer(ctx, ans.ID, overwriteManual)
			switch {
			case err == nil:
				summary.AnswersRegraded++
			case errors.Is(err, scoring.ErrGradingUnavailable):
				summary.EssaysPending++
			default:
				return fmt.Errorf("auto-correct answer %s: %w", ans.ID, err)
			}
			continue
		}

		res := scoring.Score(q, ans)
		if err := s.answerRepo.UpdateGrade(ctx, ans.ID, res.Points, res.Correction, nil, nil); err != nil {
			return fmt.Errorf("update grade: %w", err)
		}
		summary.AnswersRegraded++
	}

	return s.refreshTotal(ctx, enrollment.ID)
}

func (s *CorrectionService) targetEnrollments(ctx context.Context, req *model.RegradeRequest) ([]model.Enrollment, error) {
	switch {
	case req.EnrollmentID != nil:
		enrollment, err := s.enrollRepo.GetByID(ctx, *req.EnrollmentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return []model.Enrollment{*enrollment}, nil
	case req.ExamID != nil:
		return s.enrollRepo.ListByExam(ctx, *req.ExamID)
	default:
		return nil, ErrValidation
	}
}

// refreshTotal recomputes an enrollment's stored total from its answers.
func (s *CorrectionService) refreshTotal(ctx context.Context, enrollmentID uuid.UUID) error {
	enrollment, err := s.enrollRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("get enrollment: %w", err)
	}
	questions, err := s.questionRepo.ListByExam(ctx, enrollment.ExamID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.answerRepo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}

	byQuestion := map[uuid.UUID]*model.Answer{}
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}
	totals := scoring.Aggregate(questions, byQuestion)
	return s.enrollRepo.SetTotalScore(ctx, enrollmentID, totals.TotalPoints)
}

func (s *CorrectionService) load(ctx context.Context, answerID uuid.UUID) (*model.Answer, *model.Question, error) {
	answer, err := s.answerRepo.GetByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get answer: %w", err)
	}
	question, err := s.questionRepo.GetByID(ctx, answer.QuestionID)
	if err != nil {
		return nil, nil, fmt.Errorf("get question: %w", err)
	}
	return answer, question, nil
}
