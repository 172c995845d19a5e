package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chatdesk/cmd/gateway/dto"
	"chatdesk/coordinator"
	"chatdesk/models"
)

// ListSessionsHandler godoc
// @Summary      세션 목록 조회
// @Description  백엔드에서 세션 목록(최근 수정 순)을 다시 읽어옵니다. 실패하면 마지막 목록을 반환합니다.
// @Tags         sessions
// @Produce      json
// @Success      200  {array}  models.Session
// @Router       /sessions [get]
func ListSessionsHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := coord.LoadSessions(c.Request.Context()); err != nil {
			_ = c.Error(err)
		}
		c.JSON(http.StatusOK, coord.Snapshot().Sessions)
	}
}

// CreateSessionHandler godoc
// @Summary      세션 생성
// @Description  새 세션을 만들고 현재 세션으로 전환합니다.
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateSessionRequest  false  "mode"
// @Success      201   {object}  models.Session
// @Failure      400   {object}  dto.ErrorResponseDTO
// @Failure      502   {object}  dto.ErrorResponseDTO
// @Router       /sessions [post]
func CreateSessionHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.CreateSessionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
				return
			}
		}
		mode, ok := parseMode(req.Mode)
		if !ok {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_mode"})
			return
		}

		sess, err := coord.CreateSession(c.Request.Context(), mode)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sess)
	}
}

// SelectSessionHandler godoc
// @Summary      세션 전환
// @Description  세션을 현재 세션으로 만들고 대화 내역을 불러옵니다.
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "세션 ID"
// @Success      200  {object}  events.Snapshot
// @Failure      400  {object}  dto.ErrorResponseDTO
// @Router       /sessions/{id}/select [post]
func SelectSessionHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := coord.SelectSession(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, coord.Snapshot())
	}
}

func parseMode(s string) (models.SessionMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(models.ModeGeneral):
		return models.ModeGeneral, true
	case string(models.ModeDocument), models.ModeDocument.Wire():
		return models.ModeDocument, true
	default:
		return "", false
	}
}
