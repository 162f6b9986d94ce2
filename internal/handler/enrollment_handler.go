package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sekolahku/ujian-backend/internal/middleware"
	"github.com/sekolahku/ujian-backend/internal/model"
	"github.com/sekolahku/ujian-backend/internal/response"
	"github.com/sekolahku/ujian-backend/internal/service"
	"github.com/sekolahku/ujian-backend/internal/validator"
)

// EnrollmentHandler handles student-facing exam session endpoints.
type EnrollmentHandler struct {
	enrollmentService *service.EnrollmentService
	resultService     *service.ResultService
}

// NewEnrollmentHandler creates a new EnrollmentHandler.
func NewEnrollmentHandler(
	enrollmentService *service.EnrollmentService,
	resultService *service.ResultService,
) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollmentService: enrollmentService,
		resultService:     resultService,
	}
}

// Start godoc
// POST /api/v1/enrollments/:exam_id/start
// Starts (or resumes) the student's session for an exam. Idempotent.
func (h *EnrollmentHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snapshot, err := h.enrollmentService.Start(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failEnrollment(c, err)
		return
	}

	response.Success(c, http.StatusOK, snapshot)
}

// Status godoc
// GET /api/v1/enrollments/:id/status
// Returns the session snapshot: status, remaining time, questions and saved
// answers. Covers page reloads.
func (h *EnrollmentHandler) Status(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	enrollmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snapshot, err := h.enrollmentService.Status(c.Request.Context(), enrollmentID, claims.UserID)
	if err != nil {
		failEnrollment(c, err)
		return
	}

	response.Success(c, http.StatusOK, snapshot)
}

// SubmitAnswer godoc
// POST /api/v1/enrollments/:id/answers
// Saves or overwrites the student's answer to one question.
func (h *EnrollmentHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	enrollmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.enrollmentService.SubmitAnswer(c.Request.Context(), enrollmentID, claims.UserID, &req)
	if err != nil {
		failEnrollment(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answer": answer})
}

// Finish godoc
// POST /api/v1/enrollments/:id/finish
// Finishes the session and triggers grading. Idempotent: a second call
// returns the already-computed result.
func (h *EnrollmentHandler) Finish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	enrollmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.enrollmentService.Finish(c.Request.Context(), enrollmentID, claims.UserID)
	if err != nil {
		failEnrollment(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Result godoc
// GET /api/v1/enrollments/:id/result
// Returns the per-question breakdown and totals for a completed session.
func (h *EnrollmentHandler) Result(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	enrollmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.resultService.ResultOwnedBy(c.Request.Context(), enrollmentID, claims.UserID)
	if err != nil {
		failEnrollment(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// failEnrollment maps service-layer sentinel errors to API error codes.
func failEnrollment(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrInvalidState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidState)
	case errors.Is(err, service.ErrValidation):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	case errors.Is(err, service.ErrConfirmRequired):
		response.Fail(c, http.StatusConflict, response.ErrConfirmRequired)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
