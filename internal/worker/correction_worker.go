package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sekolahku/ujian-backend/internal/config"
	"github.com/sekolahku/ujian-backend/internal/scoring"
	"github.com/sekolahku/ujian-backend/internal/service"
)

const correctionPollTimeout = 1 * time.Second

// CorrectionWorker consumes grade_essays_queue and runs the similarity
// corrector on each queued essay answer. The student's finish acknowledgment
// never waits for this; grading lands whenever the queue is drained.
type CorrectionWorker struct {
	corrections *service.CorrectionService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewCorrectionWorker creates a new CorrectionWorker.
func NewCorrectionWorker(corrections *service.CorrectionService, rdb *redis.Client, log zerolog.Logger) *CorrectionWorker {
	return &CorrectionWorker{
		corrections: corrections,
		rdb:         rdb,
		log:         log.With().Str("component", "correction_worker").Logger(),
	}
}

type essayPayload struct {
	EnrollmentID string `json:"enrollment_id"`
	AnswerID     string `json:"answer_id"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *CorrectionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *CorrectionWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, correctionPollTimeout, config.WorkerKey.GradeEssaysQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload essayPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return
	}

	answerID, err := uuid.Parse(payload.AnswerID)
	if err != nil {
		w.log.Error().Err(err).Str("answer_id", payload.AnswerID).Msg("Invalid answer id")
		return
	}

	answer, err := w.corrections.AutoCorrectAnswer(ctx, answerID, false)
	switch {
	case err == nil:
		w.log.Info().
			Str("answer_id", payload.AnswerID).
			Float64("points", deref(answer.PointsEarned)).
			Msg("Essay auto-corrected")
	case errors.Is(err, service.ErrConfirmRequired):
		// A human graded it first; the manual score stands.
		w.log.Debug().Str("answer_id", payload.AnswerID).Msg("Skipping manually corrected answer")
	case errors.Is(err, scoring.ErrGradingUnavailable):
		w.log.Debug().Str("answer_id", payload.AnswerID).Msg("No expected answer configured, left pending")
	case errors.Is(err, service.ErrNotFound):
		w.log.Warn().Str("answer_id", payload.AnswerID).Msg("Queued answer no longer exists")
	case errors.Is(err, service.ErrValidation):
		w.log.Warn().Str("answer_id", payload.AnswerID).Msg("Queued answer has no text, dropped")
	default:
		w.log.Error().Err(err).Str("answer_id", payload.AnswerID).Msg("Auto-correction failed, requeueing")
		w.rdb.RPush(ctx, config.WorkerKey.GradeEssaysQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
