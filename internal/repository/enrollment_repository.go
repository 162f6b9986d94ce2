package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sekolahku/ujian-backend/internal/model"
)

// EnrollmentRepository handles enrollment data access.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

const enrollmentColumns = `id, exam_id, student_id, status, started_at, finished_at, total_score`

// GetByID retrieves an enrollment by its id.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id,
	).Scan(&e.ID, &e.ExamID, &e.StudentID, &e.Status, &e.StartedAt, &e.FinishedAt, &e.TotalScore)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByExamAndStudent retrieves the enrollment for an exam-student pair.
func (r *EnrollmentRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID,
	).Scan(&e.ID, &e.ExamID, &e.StudentID, &e.Status, &e.StartedAt, &e.FinishedAt, &e.TotalScore)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts an IN_PROGRESS enrollment with started_at = now. The unique
// (exam_id, student_id) constraint makes concurrent starts race-safe: the
// loser scans no row and re-fetches the winner's enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *model.Enrollment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO enrollments (exam_id, student_id, status, started_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, status, started_at`,
		e.ExamID, e.StudentID, model.EnrollmentStatusInProgress,
	).Scan(&e.ID, &e.Status, &e.StartedAt)
}

// CompleteIfInProgress atomically transitions IN_PROGRESS → COMPLETED.
// Returns false when the enrollment was already completed (or missing), so
// concurrent finish attempts serialize: exactly one caller wins the CAS.
func (r *EnrollmentRepository) CompleteIfInProgress(ctx context.Context, id uuid.UUID, finishedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE enrollments
		 SET status = $1, finished_at = $2
		 WHERE id = $3 AND status = $4`,
		model.EnrollmentStatusCompleted, finishedAt, id, model.EnrollmentStatusInProgress,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetTotalScore stores the aggregated score after grading.
func (r *EnrollmentRepository) SetTotalScore(ctx context.Context, id uuid.UUID, score float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE enrollments SET total_score = $1 WHERE id = $2`, score, id)
	return err
}

// ListByExam retrieves all enrollments of one exam. Used by exam-wide
// recalculation and recorrection.
func (r *EnrollmentRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Enrollment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE exam_id = $1 ORDER BY started_at ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		var e model.Enrollment
		if err := rows.Scan(&e.ID, &e.ExamID, &e.StudentID, &e.Status, &e.StartedAt, &e.FinishedAt, &e.TotalScore); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}
