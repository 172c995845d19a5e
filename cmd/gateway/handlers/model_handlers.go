package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatdesk/cmd/gateway/dto"
	"chatdesk/coordinator"
)

// ListModelsHandler godoc
// @Summary      모델 목록 조회
// @Description  백엔드에서 모델 목록을 다시 읽어옵니다. 실패하면 마지막으로 읽은 목록을 반환합니다.
// @Tags         models
// @Produce      json
// @Success      200  {array}  models.Model
// @Router       /models [get]
func ListModelsHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := coord.LoadModels(c.Request.Context()); err != nil {
			_ = c.Error(err)
		}
		c.JSON(http.StatusOK, coord.Snapshot().Models)
	}
}

// SelectModelHandler godoc
// @Summary      모델 선택
// @Description  이후 채팅/생성 요청에 사용할 모델을 선택합니다.
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      dto.SelectModelRequest  true  "model"
// @Success      200   {object}  dto.MessageResponseDTO
// @Failure      400   {object}  dto.ErrorResponseDTO
// @Router       /models/selected [put]
func SelectModelHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.SelectModelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
			return
		}
		if err := coord.SelectModel(c.Request.Context(), req.ModelID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.MessageResponseDTO{Message: "model selected"})
	}
}
