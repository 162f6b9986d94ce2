package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents an exam entity. An exam is immutable while sessions are
// active, except for ClosesAt which an operator may extend.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	OpensAt         *time.Time `json:"opens_at,omitempty"`
	ClosesAt        *time.Time `json:"closes_at,omitempty"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Deadline returns the absolute submission deadline for a session that
// started at the given instant: started + duration, additionally capped by
// the exam's closing time when one is set.
func (e *Exam) Deadline(startedAt time.Time) time.Time {
	deadline := startedAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
	if e.ClosesAt != nil && e.ClosesAt.Before(deadline) {
		deadline = *e.ClosesAt
	}
	return deadline
}

// OpenAt reports whether the exam accepts new enrollments at the given instant.
func (e *Exam) OpenAt(now time.Time) bool {
	if e.Status != ExamStatusPublished {
		return false
	}
	if e.OpensAt != nil && now.Before(*e.OpensAt) {
		return false
	}
	if e.ClosesAt != nil && now.After(*e.ClosesAt) {
		return false
	}
	return true
}
