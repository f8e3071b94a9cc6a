package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liezira/simutbk-backend/internal/engine"
	"github.com/liezira/simutbk-backend/internal/middleware"
	"github.com/liezira/simutbk-backend/internal/model"
	"github.com/liezira/simutbk-backend/internal/response"
	"github.com/liezira/simutbk-backend/internal/service"
	"github.com/liezira/simutbk-backend/internal/validator"
)

// AttemptHandler handles the attempt lifecycle endpoints.
type AttemptHandler struct {
	attempts *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

// Start godoc
// POST /api/v1/attempts
// Redeems an exam token and starts a new attempt in countdown.
func (h *AttemptHandler) Start(c *gin.Context) {
	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.attempts.Start(c.Request.Context(), req.Token)
	if err != nil {
		h.failStart(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

func (h *AttemptHandler) failStart(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTokenNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrTokenInvalid)
	case errors.Is(err, service.ErrTokenExpired):
		response.Fail(c, http.StatusGone, response.ErrTokenExpired)
	case errors.Is(err, service.ErrTokenUsed):
		response.Fail(c, http.StatusConflict, response.ErrTokenUsed)
	case errors.Is(err, service.ErrAttemptAlreadyLive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptActive)
	case errors.Is(err, service.ErrBatteryNotLoaded):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrBatteryNotLoaded)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// State godoc
// GET /api/v1/attempts/me
// Returns the rendering snapshot for the authenticated attempt.
func (h *AttemptHandler) State(c *gin.Context) {
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	state, err := h.attempts.State(attemptID)
	if err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SectionQuestions godoc
// GET /api/v1/attempts/me/questions
// Returns the current section's question list for the navigator grid.
func (h *AttemptHandler) SectionQuestions(c *gin.Context) {
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	questions, err := h.attempts.SectionQuestions(attemptID)
	if err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// Answer godoc
// POST /api/v1/attempts/me/answer
// Records one input on the current question.
func (h *AttemptHandler) Answer(c *gin.Context) {
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.attempts.Answer(attemptID, req.Value)
	if err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// Advance godoc
// POST /api/v1/attempts/me/advance
// Moves the attempt past the current question.
func (h *AttemptHandler) Advance(c *gin.Context) {
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	state, err := h.attempts.Advance(attemptID)
	if err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// Integrity godoc
// POST /api/v1/attempts/me/integrity
// Reports one browser watcher event.
func (h *AttemptHandler) Integrity(c *gin.Context) {
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	var req model.IntegrityEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.attempts.Integrity(c.Request.Context(), attemptID, req.EventType)
	if err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// Result godoc
// GET /api/v1/attempts/me/result
// Returns the terminal screen payload with the best-effort leaderboard.
func (h *AttemptHandler) Result(c *gin.Context) {
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	resp, err := h.attempts.Result(c.Request.Context(), attemptID)
	if err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

func (h *AttemptHandler) attemptID(c *gin.Context) (string, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return "", false
	}
	return claims.AttemptID, true
}

func (h *AttemptHandler) failLifecycle(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, engine.ErrSessionEnded):
		response.Fail(c, http.StatusConflict, response.ErrAttemptFinished)
	case errors.Is(err, engine.ErrNotInPhase):
		response.Fail(c, http.StatusConflict, response.ErrWrongPhase)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
