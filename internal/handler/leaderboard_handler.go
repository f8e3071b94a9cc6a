package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liezira/simutbk-backend/internal/response"
	"github.com/liezira/simutbk-backend/internal/service"
)

// LeaderboardHandler serves the public ranked window.
type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboard *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// Top godoc
// GET /api/v1/leaderboard
// Returns the current ranked window. Names only; no token codes leak here.
func (h *LeaderboardHandler) Top(c *gin.Context) {
	rows, err := h.leaderboard.Top(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"leaderboard": rows})
}
