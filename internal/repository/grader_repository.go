package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sekolahku/ujian-backend/internal/model"
)

// GraderRepository handles grader account data access.
type GraderRepository struct {
	pool *pgxpool.Pool
}

// NewGraderRepository creates a new GraderRepository.
func NewGraderRepository(pool *pgxpool.Pool) *GraderRepository {
	return &GraderRepository{pool: pool}
}

// Create inserts a new grader and fills in the generated ID.
func (r *GraderRepository) Create(ctx context.Context, g *model.Grader) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO graders (email, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		g.Email, g.Name, g.PasswordHash,
	).Scan(&g.ID, &g.CreatedAt)
}

// GetByEmail retrieves a grader by email.
func (r *GraderRepository) GetByEmail(ctx context.Context, email string) (*model.Grader, error) {
	g := &model.Grader{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at
		 FROM graders
		 WHERE email = $1`, email,
	).Scan(&g.ID, &g.Email, &g.Name, &g.PasswordHash, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}
