package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sekolahku/ujian-backend/internal/model"
	"github.com/sekolahku/ujian-backend/internal/response"
	"github.com/sekolahku/ujian-backend/internal/scoring"
	"github.com/sekolahku/ujian-backend/internal/service"
	"github.com/sekolahku/ujian-backend/internal/validator"
)

// CorrectionHandler handles grader-facing correction and regrade endpoints.
type CorrectionHandler struct {
	correctionService *service.CorrectionService
	resultService     *service.ResultService
}

// NewCorrectionHandler creates a new CorrectionHandler.
func NewCorrectionHandler(
	correctionService *service.CorrectionService,
	resultService *service.ResultService,
) *CorrectionHandler {
	return &CorrectionHandler{
		correctionService: correctionService,
		resultService:     resultService,
	}
}

// ManualCorrect godoc
// POST /api/v1/answers/:id/manual-correction
// Records a grader's score for an essay answer. Manual scores take
// precedence over any previous or future automatic correction.
func (h *CorrectionHandler) ManualCorrect(c *gin.Context) {
	answerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ManualCorrectionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.correctionService.ManualCorrect(c.Request.Context(), answerID, req.PointsEarned, req.Feedback)
	if err != nil {
		failCorrection(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answer": answer})
}

// AutoCorrect godoc
// POST /api/v1/answers/:id/auto-correct
// Runs similarity-based correction on a single essay answer on demand.
// Refuses to overwrite a manual correction unless force=true.
func (h *CorrectionHandler) AutoCorrect(c *gin.Context) {
	answerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	force := c.Query("force") == "true"

	answer, err := h.correctionService.AutoCorrectAnswer(c.Request.Context(), answerID, force)
	if err != nil {
		failCorrection(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answer": answer})
}

// Recalculate godoc
// POST /api/v1/results/recalculate
// Re-scores objective answers and refreshes totals, preserving manual
// corrections. Safe to run after fixing an answer key.
func (h *CorrectionHandler) Recalculate(c *gin.Context) {
	var req model.RegradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	summary, err := h.correctionService.Recalculate(c.Request.Context(), &req)
	if err != nil {
		failCorrection(c, err)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// Recorrect godoc
// POST /api/v1/results/recorrect
// Destructive regrade: discards manual corrections and re-runs both
// objective scoring and essay auto-correction. Requires confirm=true.
func (h *CorrectionHandler) Recorrect(c *gin.Context) {
	var req model.RegradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	summary, err := h.correctionService.Recorrect(c.Request.Context(), &req)
	if err != nil {
		failCorrection(c, err)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// Result godoc
// GET /api/v1/grader/enrollments/:id/result
// Projects any enrollment's result for grading review, regardless of owner.
// Graders use this to inspect an attempt after a correction or regrade.
func (h *CorrectionHandler) Result(c *gin.Context) {
	enrollmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.resultService.Result(c.Request.Context(), enrollmentID)
	if err != nil {
		failCorrection(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// failCorrection maps correction errors to API error codes.
func failCorrection(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrValidation):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	case errors.Is(err, service.ErrConfirmRequired):
		response.Fail(c, http.StatusConflict, response.ErrConfirmRequired)
	case errors.Is(err, service.ErrInvalidState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidState)
	case errors.Is(err, scoring.ErrGradingUnavailable):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrGradingUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
