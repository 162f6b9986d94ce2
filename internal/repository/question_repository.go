package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sekolahku/ujian-backend/internal/model"
)

// QuestionRepository handles question and alternative data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves the ordered question list of an exam, alternatives
// included.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, question_type, points, order_num, expected_answer, auto_correction
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.QuestionType, &q.Points, &q.OrderNum, &q.ExpectedAnswer, &q.AutoCorrection); err != nil {
			return nil, err
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	altRows, err := r.pool.Query(ctx,
		`SELECT a.id, a.question_id, a.text, a.is_correct, a.order_num
		 FROM alternatives a
		 JOIN questions q ON a.question_id = q.id
		 WHERE q.exam_id = $1
		 ORDER BY a.order_num ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer altRows.Close()

	for altRows.Next() {
		var alt model.Alternative
		if err := altRows.Scan(&alt.ID, &alt.QuestionID, &alt.Text, &alt.IsCorrect, &alt.OrderNum); err != nil {
			return nil, err
		}
		if i, ok := index[alt.QuestionID]; ok {
			questions[i].Alternatives = append(questions[i].Alternatives, alt)
		}
	}
	return questions, altRows.Err()
}

// GetByID retrieves a single question with its alternatives.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, question_text, question_type, points, order_num, expected_answer, auto_correction
		 FROM questions
		 WHERE id = $1`, id,
	).Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.QuestionType, &q.Points, &q.OrderNum, &q.ExpectedAnswer, &q.AutoCorrection)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, text, is_correct, order_num
		 FROM alternatives
		 WHERE question_id = $1
		 ORDER BY order_num ASC`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var alt model.Alternative
		if err := rows.Scan(&alt.ID, &alt.QuestionID, &alt.Text, &alt.IsCorrect, &alt.OrderNum); err != nil {
			return nil, err
		}
		q.Alternatives = append(q.Alternatives, alt)
	}
	return q, rows.Err()
}
