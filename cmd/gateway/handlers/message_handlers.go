package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatdesk/cmd/gateway/dto"
	"chatdesk/coordinator"
)

// ListMessagesHandler godoc
// @Summary      타임라인 조회
// @Description  현재 세션의 타임라인(전송 대기/실패 메시지 포함)을 조회합니다.
// @Tags         messages
// @Produce      json
// @Success      200  {array}  models.Message
// @Router       /messages [get]
func ListMessagesHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.Snapshot().Messages)
	}
}

// SendMessageHandler godoc
// @Summary      메시지 전송
// @Description  현재 세션에 메시지를 보냅니다. 현재 세션이 없으면 일반 세션을 먼저 만듭니다.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        body  body      dto.SendMessageRequest  true  "message"
// @Success      200   {object}  models.Message  "assistant 응답"
// @Failure      400   {object}  dto.ErrorResponseDTO
// @Failure      502   {object}  dto.ErrorResponseDTO
// @Router       /messages [post]
func SendMessageHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
			return
		}
		reply, err := coord.SendMessage(c.Request.Context(), req.Message)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reply)
	}
}
