package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sekolahku/ujian-backend/internal/middleware"
	"github.com/sekolahku/ujian-backend/internal/model"
	"github.com/sekolahku/ujian-backend/internal/service"
	ws "github.com/sekolahku/ujian-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the WebSocket session stream: low-latency autosave
// plus an in-channel finish action.
type WSHandler struct {
	enrollmentService *service.EnrollmentService
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(enrollmentService *service.EnrollmentService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		enrollmentService: enrollmentService,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/enrollments/:id/stream
// Upgrades to WebSocket for real-time answer autosave during a session.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	enrollmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enrollment ID"})
		return
	}

	// Verify ownership and state before upgrading, so a rejected client
	// gets a proper HTTP status instead of an immediate close frame.
	if _, err := h.enrollmentService.Status(c.Request.Context(), enrollmentID, claims.UserID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no active session for this enrollment"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	studentID := claims.UserID

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("enrollment_id", enrollmentID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, enrollmentID, studentID, &msg)
		case ws.ActionFinish:
			h.handleFinish(conn, wsLog, enrollmentID, studentID)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "UNKNOWN_ACTION", "unknown action: "+string(msg.Action))
		}
	}
}

// handleAutosave validates the answer and queues it for persistence.
func (h *WSHandler) handleAutosave(conn *websocket.Conn, enrollmentID uuid.UUID, studentID int, msg *ws.RequestPayload) {
	ctx := context.Background()

	if msg.QuestionID == nil {
		ws.WriteError(conn, "VALIDATION_ERROR", "question_id is required")
		return
	}

	req := model.SubmitAnswerRequest{
		QuestionID:           *msg.QuestionID,
		AnswerText:           msg.AnswerText,
		SelectedAlternatives: msg.SelectedAlternatives,
	}

	if err := h.enrollmentService.QueueAnswer(ctx, enrollmentID, studentID, &req); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			ws.WriteError(conn, "VALIDATION_ERROR", "answer does not match the question type")
		case errors.Is(err, service.ErrInvalidState):
			ws.WriteError(conn, "INVALID_STATE", "session is not in progress")
		case errors.Is(err, service.ErrNotFound):
			ws.WriteError(conn, "NOT_FOUND", "question not found in this exam")
		default:
			h.log.Error().Err(err).Int("student_id", studentID).Msg("Autosave error")
			ws.WriteError(conn, "INTERNAL_ERROR", "save failed")
		}
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: *msg.QuestionID})
}

// handleFinish finishes the session over the socket and reports totals.
func (h *WSHandler) handleFinish(conn *websocket.Conn, wsLog zerolog.Logger, enrollmentID uuid.UUID, studentID int) {
	ctx := context.Background()

	result, err := h.enrollmentService.Finish(ctx, enrollmentID, studentID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Finish over WebSocket failed")
		ws.WriteError(conn, "INTERNAL_ERROR", "finish failed")
		return
	}

	wsLog.Info().
		Float64("total_points", result.TotalPoints).
		Int("answers_count", result.AnswersCount).
		Msg("Session finished over WebSocket")

	ws.WriteTyped(conn, ws.FinishedResponse{
		Event:        ws.EventFinished,
		TotalPoints:  result.TotalPoints,
		MaxPoints:    result.MaxPoints,
		AnswersCount: result.AnswersCount,
	})
}
