package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sekolahku/ujian-backend/internal/config"
	"github.com/sekolahku/ujian-backend/internal/model"
	"github.com/sekolahku/ujian-backend/internal/repository"
	"github.com/sekolahku/ujian-backend/internal/scoring"
)

// EnrollmentService orchestrates the enrollment state machine. It is the
// only component that transitions an enrollment's status.
type EnrollmentService struct {
	enrollRepo   *repository.EnrollmentRepository
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	answerRepo   *repository.AnswerRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewEnrollmentService creates a new EnrollmentService.
func NewEnrollmentService(
	enrollRepo *repository.EnrollmentRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	answerRepo *repository.AnswerRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		enrollRepo:   enrollRepo,
		examRepo:     examRepo,
		questionRepo: questionRepo,
		answerRepo:   answerRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "enrollment_service").Logger(),
	}
}

// Remaining computes the authoritative remaining time of a session as a pure
// function of the clock, never from client-accumulated countdowns. Floored
// at zero.
func Remaining(now, startedAt time.Time, durationMinutes int, closesAt *time.Time) time.Duration {
	deadline := startedAt.Add(time.Duration(durationMinutes) * time.Minute)
	if closesAt != nil && closesAt.Before(deadline) {
		deadline = *closesAt
	}
	remaining := deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Start begins (or resumes) a student's attempt at an exam. Idempotent: if
// an enrollment already exists for this (student, exam), the existing
// session is returned with its saved answers — resuming, never restarting.
func (s *EnrollmentService) Start(ctx context.Context, examID uuid.UUID, studentID int) (*model.EnrollmentSnapshot, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	existing, err := s.enrollRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing enrollment: %w", err)
	}
	if existing != nil {
		// Resuming is also an entry point: a session whose deadline
		// already passed finishes here instead of coming back alive.
		if s.expired(existing, exam) {
			if _, err := s.finalize(ctx, exam, existing); err != nil {
				return nil, err
			}
			existing, err = s.enrollRepo.GetByID(ctx, existing.ID)
			if err != nil {
				return nil, fmt.Errorf("reload enrollment: %w", err)
			}
		}
		s.cacheStart(ctx, existing)
		return s.snapshot(ctx, exam, existing)
	}

	if !exam.OpenAt(time.Now()) {
		return nil, ErrExamNotAvailable
	}

	enrollment := &model.Enrollment{ExamID: examID, StudentID: studentID}
	if err := s.enrollRepo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start: someone else created the row first.
			existing, fetchErr := s.enrollRepo.GetByExamAndStudent(ctx, examID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			enrollment = existing
		} else {
			return nil, fmt.Errorf("create enrollment: %w", err)
		}
	}

	s.cacheStart(ctx, enrollment)
	return s.snapshot(ctx, exam, enrollment)
}

// Status returns the current session snapshot for its owner, finalizing the
// session first when the deadline has passed.
func (s *EnrollmentService) Status(ctx context.Context, enrollmentID uuid.UUID, studentID int) (*model.EnrollmentSnapshot, error) {
	enrollment, err := s.getOwned(ctx, enrollmentID, studentID)
	if err != nil {
		return nil, err
	}
	exam, err := s.examRepo.GetByID(ctx, enrollment.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if s.expired(enrollment, exam) {
		if _, err := s.finalize(ctx, exam, enrollment); err != nil {
			return nil, err
		}
		enrollment, err = s.enrollRepo.GetByID(ctx, enrollmentID)
		if err != nil {
			return nil, fmt.Errorf("reload enrollment: %w", err)
		}
	}

	return s.snapshot(ctx, exam, enrollment)
}

// SubmitAnswer upserts one answer for an in-progress session. Any attempt
// outside IN_PROGRESS, or past the deadline, fails with ErrInvalidState —
// the deadline is decided by the server clock, not by request arrival order.
func (s *EnrollmentService) SubmitAnswer(ctx context.Context, enrollmentID uuid.UUID, studentID int, req *model.SubmitAnswerRequest) (*model.Answer, error) {
	enrollment, err := s.getOwned(ctx, enrollmentID, studentID)
	if err != nil {
		return nil, err
	}
	exam, err := s.examRepo.GetByID(ctx, enrollment.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if enrollment.Status != model.EnrollmentStatusInProgress {
		return nil, ErrInvalidState
	}
	if s.expired(enrollment, exam) {
		// Timeout fires before the write is considered.
		if _, err := s.finalize(ctx, exam, enrollment); err != nil {
			return nil, err
		}
		return nil, ErrInvalidState
	}

	question, err := s.questionRepo.GetByID(ctx, req.QuestionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	if question.ExamID != enrollment.ExamID {
		return nil, ErrNotFound
	}

	answer, err := buildAnswer(enrollment.ID, question, req)
	if err != nil {
		return nil, err
	}
	answer.Seq = time.Now().UnixMicro()

	if err := s.answerRepo.Upsert(ctx, answer); err != nil {
		return nil, fmt.Errorf("upsert answer: %w", err)
	}

	// Mirror into the Redis hash for cheap resume, and let the autosave
	// worker fan the same payload out to any listeners. Cache failures are
	// not fatal: Postgres already has the write.
	s.mirrorAnswer(ctx, enrollment.ID, answer)

	return answer, nil
}

// QueueAnswer is the low-latency autosave path used by the WebSocket
// stream: the answer is validated, acknowledged from the Redis mirror, and
// persisted asynchronously by the autosave worker. The worker re-checks the
// enrollment status before writing, so a queued answer that races past the
// finish transition is rejected there.
func (s *EnrollmentService) QueueAnswer(ctx context.Context, enrollmentID uuid.UUID, studentID int, req *model.SubmitAnswerRequest) error {
	enrollment, err := s.getOwned(ctx, enrollmentID, studentID)
	if err != nil {
		return err
	}
	exam, err := s.examRepo.GetByID(ctx, enrollment.ExamID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if enrollment.Status != model.EnrollmentStatusInProgress || s.expired(enrollment, exam) {
		return ErrInvalidState
	}

	question, err := s.questionRepo.GetByID(ctx, req.QuestionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get question: %w", err)
	}
	if question.ExamID != enrollment.ExamID {
		return ErrNotFound
	}

	answer, err := buildAnswer(enrollment.ID, question, req)
	if err != nil {
		return err
	}
	answer.Seq = time.Now().UnixMicro()

	s.mirrorAnswer(ctx, enrollment.ID, answer)

	selected := make([]string, 0, len(answer.SelectedAlternatives))
	for _, id := range answer.SelectedAlternatives {
		selected = append(selected, id.String())
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"enrollment_id":         enrollment.ID.String(),
		"question_id":           question.ID.String(),
		"answer_text":           answer.AnswerText,
		"selected_alternatives": selected,
		"correction_status":     answer.CorrectionStatus,
		"seq":                   answer.Seq,
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue answer: %w", err)
	}
	return nil
}

// Finish transitions the session to COMPLETED and grades it. Idempotent:
// finishing an already-completed session returns the stored result without
// re-scoring. Concurrent finishers are serialized by a status CAS in the
// database; the loser observes the winner's result.
func (s *EnrollmentService) Finish(ctx context.Context, enrollmentID uuid.UUID, studentID int) (*model.FinishResult, error) {
	enrollment, err := s.getOwned(ctx, enrollmentID, studentID)
	if err != nil {
		return nil, err
	}
	exam, err := s.examRepo.GetByID(ctx, enrollment.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return s.finalize(ctx, exam, enrollment)
}

// FinishExpired finalizes a session whose deadline passed, regardless of
// owner. Used by background sweeps and the status path.
func (s *EnrollmentService) FinishExpired(ctx context.Context, enrollmentID uuid.UUID) (*model.FinishResult, error) {
	enrollment, err := s.enrollRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	exam, err := s.examRepo.GetByID(ctx, enrollment.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if enrollment.Status == model.EnrollmentStatusInProgress && !s.expired(enrollment, exam) {
		return nil, ErrInvalidState
	}
	return s.finalize(ctx, exam, enrollment)
}

// ─── internals ──────────────────────────────────────────────────────

func (s *EnrollmentService) getOwned(ctx context.Context, enrollmentID uuid.UUID, studentID int) (*model.Enrollment, error) {
	enrollment, err := s.enrollRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	if enrollment.StudentID != studentID {
		return nil, ErrForbidden
	}
	return enrollment, nil
}

func (s *EnrollmentService) expired(enrollment *model.Enrollment, exam *model.Exam) bool {
	if enrollment.Status != model.EnrollmentStatusInProgress || enrollment.StartedAt == nil {
		return false
	}
	return Remaining(time.Now(), *enrollment.StartedAt, exam.DurationMinutes, exam.ClosesAt) == 0
}

// finalize runs the completed-at-most-once transition and grades the
// session. Safe to call on an already-completed enrollment.
func (s *EnrollmentService) finalize(ctx context.Context, exam *model.Exam, enrollment *model.Enrollment) (*model.FinishResult, error) {
	won := false
	if enrollment.Status == model.EnrollmentStatusInProgress {
		finishedAt := time.Now()
		if enrollment.StartedAt != nil {
			// A timed-out session finishes at its deadline, not at
			// whatever later instant the trigger arrived.
			deadline := exam.Deadline(*enrollment.StartedAt)
			if finishedAt.After(deadline) {
				finishedAt = deadline
			}
		}

		var err error
		won, err = s.enrollRepo.CompleteIfInProgress(ctx, enrollment.ID, finishedAt)
		if err != nil {
			return nil, fmt.Errorf("complete enrollment: %w", err)
		}
		if won {
			if err := s.grade(ctx, exam, enrollment.ID); err != nil {
				return nil, err
			}
			// Autosave buffer is no longer needed once the session is
			// terminal.
			s.rdb.Del(ctx, config.CacheKey.EnrollmentAnswersKey(enrollment.ID.String()))
		}
	}

	if !won {
		// Losing the CAS means another finisher is grading right now.
		// Wait for its totals so we ack the completed result, not a
		// half-written one.
		s.awaitGrades(ctx, enrollment.ID)
	}
	return s.result(ctx, exam, enrollment.ID)
}

// awaitGrades blocks briefly until the enrollment's total score is stored.
// The grading winner writes total_score last, so a non-nil value means every
// objective answer row has been settled. Bounded: gives up after two seconds
// rather than holding the request hostage to a stuck winner.
func (s *EnrollmentService) awaitGrades(ctx context.Context, enrollmentID uuid.UUID) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		enrollment, err := s.enrollRepo.GetByID(ctx, enrollmentID)
		if err != nil || enrollment.TotalScore != nil {
			return
		}
		if time.Now().After(deadline) {
			s.log.Warn().Str("enrollment_id", enrollmentID.String()).Msg("Gave up waiting for concurrent grading to settle")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// grade scores every objective answer synchronously and queues essay
// answers for asynchronous auto-correction. The student's finish
// acknowledgment never waits for essay grading.
func (s *EnrollmentService) grade(ctx context.Context, exam *model.Exam, enrollmentID uuid.UUID) error {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.answerRepo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	byQuestion := answersByQuestion(answers)

	var updates []repository.GradeUpdate
	for i := range questions {
		q := &questions[i]
		ans := byQuestion[q.ID]
		if ans == nil {
			continue
		}
		res := scoring.Score(q, ans)
		if !res.Graded {
			s.enqueueEssay(ctx, enrollmentID, ans, q)
			continue
		}
		points := res.Points
		ans.PointsEarned = &points
		ans.CorrectionStatus = res.Correction
		updates = append(updates, repository.GradeUpdate{
			AnswerID: ans.ID,
			Points:   res.Points,
			Status:   res.Correction,
		})
	}

	if err := s.answerRepo.BulkUpdateGrades(ctx, updates); err != nil {
		return fmt.Errorf("bulk update grades: %w", err)
	}

	totals := scoring.Aggregate(questions, byQuestion)
	if err := s.enrollRepo.SetTotalScore(ctx, enrollmentID, totals.TotalPoints); err != nil {
		return fmt.Errorf("set total score: %w", err)
	}

	s.log.Info().
		Str("enrollment_id", enrollmentID.String()).
		Float64("total", totals.TotalPoints).
		Float64("max", totals.MaxPoints).
		Int("answers", totals.AnswersCount).
		Msg("Session graded")
	return nil
}

func (s *EnrollmentService) enqueueEssay(ctx context.Context, enrollmentID uuid.UUID, ans *model.Answer, q *model.Question) {
	if !q.AutoCorrection || q.ExpectedAnswer == nil || *q.ExpectedAnswer == "" {
		// Stays PENDING until a human grades it.
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"enrollment_id": enrollmentID.String(),
		"answer_id":     ans.ID.String(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.GradeEssaysQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Str("answer_id", ans.ID.String()).Msg("Enqueue essay grading failed")
	}
}

// result assembles the finish acknowledgment from stored answers only.
func (s *EnrollmentService) result(ctx context.Context, exam *model.Exam, enrollmentID uuid.UUID) (*model.FinishResult, error) {
	enrollment, err := s.enrollRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("reload enrollment: %w", err)
	}
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.answerRepo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	totals := scoring.Aggregate(questions, answersByQuestion(answers))
	return &model.FinishResult{
		EnrollmentID: enrollmentID,
		TotalPoints:  totals.TotalPoints,
		MaxPoints:    totals.MaxPoints,
		AnswersCount: totals.AnswersCount,
		FinishedAt:   enrollment.FinishedAt,
	}, nil
}

func (s *EnrollmentService) snapshot(ctx context.Context, exam *model.Exam, enrollment *model.Enrollment) (*model.EnrollmentSnapshot, error) {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.answerRepo.ListByEnrollment(ctx, enrollment.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	snap := &model.EnrollmentSnapshot{Enrollment: *enrollment, Answers: answers}
	for i := range questions {
		snap.Questions = append(snap.Questions, questions[i].ForStudent())
	}
	if enrollment.Status == model.EnrollmentStatusInProgress && enrollment.StartedAt != nil {
		remaining := s.remainingCached(ctx, enrollment, exam)
		snap.RemainingSeconds = remaining.Seconds()
	}
	return snap, nil
}

// remainingCached computes remaining time from the Redis-cached start
// instant, falling back to the enrollment row (and self-healing the cache)
// on a miss.
func (s *EnrollmentService) remainingCached(ctx context.Context, enrollment *model.Enrollment, exam *model.Exam) time.Duration {
	startedAt := *enrollment.StartedAt

	startKey := config.CacheKey.EnrollmentStartKey(enrollment.ID.String())
	val, err := s.rdb.Get(ctx, startKey).Result()
	switch {
	case err == nil:
		if unix, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
			startedAt = time.Unix(unix, 0)
		}
	case errors.Is(err, redis.Nil):
		_ = s.rdb.Set(ctx, startKey, startedAt.Unix(), 0)
	default:
		s.log.Warn().Err(err).Msg("Redis start-time lookup failed, using database value")
	}

	return Remaining(time.Now(), startedAt, exam.DurationMinutes, exam.ClosesAt)
}

func (s *EnrollmentService) cacheStart(ctx context.Context, enrollment *model.Enrollment) {
	if enrollment.StartedAt == nil {
		return
	}
	_ = s.rdb.Set(ctx, config.CacheKey.EnrollmentStartKey(enrollment.ID.String()), enrollment.StartedAt.Unix(), 0)
}

func (s *EnrollmentService) mirrorAnswer(ctx context.Context, enrollmentID uuid.UUID, answer *model.Answer) {
	raw, err := json.Marshal(answer)
	if err != nil {
		return
	}
	key := config.CacheKey.EnrollmentAnswersKey(enrollmentID.String())
	if err := s.rdb.HSet(ctx, key, answer.QuestionID.String(), raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("enrollment_id", enrollmentID.String()).Msg("Answer cache mirror failed")
	}
}

// buildAnswer validates the tagged-union payload against the question's
// declared type and shapes the row to persist.
func buildAnswer(enrollmentID uuid.UUID, q *model.Question, req *model.SubmitAnswerRequest) (*model.Answer, error) {
	answer := &model.Answer{
		EnrollmentID:     enrollmentID,
		QuestionID:       q.ID,
		CorrectionStatus: model.CorrectionNotApplicable,
	}

	if q.QuestionType == model.QuestionTypeEssay {
		if req.AnswerText == nil || *req.AnswerText == "" || len(req.SelectedAlternatives) > 0 {
			return nil, ErrValidation
		}
		answer.AnswerText = req.AnswerText
		answer.CorrectionStatus = model.CorrectionPending
		return answer, nil
	}

	if req.AnswerText != nil || len(req.SelectedAlternatives) == 0 {
		return nil, ErrValidation
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range req.SelectedAlternatives {
		if !q.HasAlternative(id) {
			return nil, ErrValidation
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		answer.SelectedAlternatives = append(answer.SelectedAlternatives, id)
	}
	return answer, nil
}

func answersByQuestion(answers []model.Answer) map[uuid.UUID]*model.Answer {
	byQuestion := make(map[uuid.UUID]*model.Answer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}
	return byQuestion
}
