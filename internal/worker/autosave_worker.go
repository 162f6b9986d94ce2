package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sekolahku/ujian-backend/internal/config"
	"github.com/sekolahku/ujian-backend/internal/model"
)

// AutosaveWorker consumes persist_answers_queue and UPSERTs answers to
// PostgreSQL. The WebSocket autosave path acknowledges on the Redis write;
// this worker is the durable half of that pipeline.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
}

// AnswerPayload is the queued form of one autosaved answer.
type AnswerPayload struct {
	EnrollmentID string   `json:"enrollment_id"`
	QuestionID   string   `json:"question_id"`
	AnswerText   *string  `json:"answer_text,omitempty"`
	Selected     []string `json:"selected_alternatives,omitempty"`
	Correction   string   `json:"correction_status"`
	Seq          int64    `json:"seq"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload AnswerPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistAnswer(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Str("enrollment_id", payload.EnrollmentID).
			Str("question_id", payload.QuestionID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AutosaveWorker) persistAnswer(ctx context.Context, p *AnswerPayload) error {
	enrollmentID, err := uuid.Parse(p.EnrollmentID)
	if err != nil {
		return err
	}
	questionID, err := uuid.Parse(p.QuestionID)
	if err != nil {
		return err
	}

	// The hard cutoff: a queued write that raced past the finish
	// transition is rejected here and logged, never applied. The client
	// learned the session state from its next status poll.
	var status model.EnrollmentStatus
	if err := w.pool.QueryRow(ctx,
		`SELECT status FROM enrollments WHERE id = $1`, enrollmentID,
	).Scan(&status); err != nil {
		return err
	}
	if status != model.EnrollmentStatusInProgress {
		w.log.Warn().
			Str("enrollment_id", p.EnrollmentID).
			Str("question_id", p.QuestionID).
			Str("status", string(status)).
			Msg("Rejected autosave for non-active session")
		return nil
	}

	selected := make([]uuid.UUID, 0, len(p.Selected))
	for _, raw := range p.Selected {
		id, err := uuid.Parse(raw)
		if err != nil {
			return err
		}
		selected = append(selected, id)
	}

	// UPSERT with a seq guard: stale retries never clobber newer writes.
	_, err = w.pool.Exec(ctx,
		`INSERT INTO answers (enrollment_id, question_id, answer_text, selected_alternatives, correction_status, seq)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (enrollment_id, question_id) DO UPDATE
		 SET answer_text = EXCLUDED.answer_text,
		     selected_alternatives = EXCLUDED.selected_alternatives,
		     correction_status = EXCLUDED.correction_status,
		     seq = EXCLUDED.seq,
		     updated_at = NOW()
		 WHERE answers.seq <= EXCLUDED.seq`,
		enrollmentID, questionID, p.AnswerText, selected, p.Correction, p.Seq,
	)
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var payload AnswerPayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistAnswer(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
