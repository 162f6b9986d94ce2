package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sekolahku/ujian-backend/internal/model"
)

// AnswerRepository is the durable answer store: one row per
// (enrollment, question), last write wins per question.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

const answerColumns = `id, enrollment_id, question_id, answer_text, selected_alternatives,
	correction_status, points_earned, similarity, feedback, seq, updated_at`

// Upsert replaces any prior answer for the (enrollment, question) key.
// The seq guard applies same-question writes in submission order: a write
// carrying a lower seq than the stored row is a stale retry and is ignored,
// in which case the stored row is loaded back into a.
func (r *AnswerRepository) Upsert(ctx context.Context, a *model.Answer) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO answers (enrollment_id, question_id, answer_text, selected_alternatives, correction_status, seq)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (enrollment_id, question_id) DO UPDATE
		 SET answer_text = EXCLUDED.answer_text,
		     selected_alternatives = EXCLUDED.selected_alternatives,
		     correction_status = EXCLUDED.correction_status,
		     seq = EXCLUDED.seq,
		     updated_at = NOW()
		 WHERE answers.seq <= EXCLUDED.seq
		 RETURNING id, updated_at`,
		a.EnrollmentID, a.QuestionID, a.AnswerText, a.SelectedAlternatives, a.CorrectionStatus, a.Seq,
	).Scan(&a.ID, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Stale write lost to a newer seq; report the surviving row.
		current, getErr := r.Get(ctx, a.EnrollmentID, a.QuestionID)
		if getErr != nil {
			return getErr
		}
		*a = *current
		return nil
	}
	return err
}

// GetByID retrieves an answer by its id.
func (r *AnswerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Answer, error) {
	a := &model.Answer{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE id = $1`, id,
	).Scan(&a.ID, &a.EnrollmentID, &a.QuestionID, &a.AnswerText, &a.SelectedAlternatives,
		&a.CorrectionStatus, &a.PointsEarned, &a.Similarity, &a.Feedback, &a.Seq, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Get retrieves the answer for one (enrollment, question) key.
func (r *AnswerRepository) Get(ctx context.Context, enrollmentID, questionID uuid.UUID) (*model.Answer, error) {
	a := &model.Answer{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE enrollment_id = $1 AND question_id = $2`,
		enrollmentID, questionID,
	).Scan(&a.ID, &a.EnrollmentID, &a.QuestionID, &a.AnswerText, &a.SelectedAlternatives,
		&a.CorrectionStatus, &a.PointsEarned, &a.Similarity, &a.Feedback, &a.Seq, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByEnrollment retrieves all answers of one enrollment.
func (r *AnswerRepository) ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE enrollment_id = $1`, enrollmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.EnrollmentID, &a.QuestionID, &a.AnswerText, &a.SelectedAlternatives,
			&a.CorrectionStatus, &a.PointsEarned, &a.Similarity, &a.Feedback, &a.Seq, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// UpdateGrade writes the grading-path fields of one answer. Student-path
// fields (text, selections) are never touched here. A manual correction
// replaces the similarity outright (normally with NULL) so the stored score
// no longer claims a machine provenance it doesn't have.
func (r *AnswerRepository) UpdateGrade(ctx context.Context, id uuid.UUID, points float64, status model.CorrectionStatus, similarity *float64, feedback *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE answers
		 SET points_earned = $1, correction_status = $2,
		     similarity = CASE WHEN $2 = 'MANUALLY_CORRECTED' THEN $3::float8
		                       ELSE COALESCE($3::float8, similarity) END,
		     feedback = COALESCE($4, feedback),
		     updated_at = NOW()
		 WHERE id = $5`,
		points, status, similarity, feedback, id)
	return err
}

// GradeUpdate is one element of a bulk grading write.
type GradeUpdate struct {
	AnswerID uuid.UUID
	Points   float64
	Status   model.CorrectionStatus
}

// BulkUpdateGrades applies many grade writes in a single UNNEST statement.
// Used when finish() scores all objective answers of a session at once.
func (r *AnswerRepository) BulkUpdateGrades(ctx context.Context, updates []GradeUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(updates))
	points := make([]float64, 0, len(updates))
	statuses := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.AnswerID)
		points = append(points, u.Points)
		statuses = append(statuses, string(u.Status))
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE answers AS a
		 SET points_earned = t.points,
		     correction_status = t.status,
		     updated_at = NOW()
		 FROM (
			SELECT u.id, u.points, u.status
			FROM UNNEST($1::uuid[], $2::float8[], $3::text[]) AS u (id, points, status)
		 ) AS t
		 WHERE a.id = t.id`,
		ids, points, statuses,
	)
	return err
}
