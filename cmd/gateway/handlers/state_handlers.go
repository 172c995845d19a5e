package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatdesk/cmd/gateway/dto"
	"chatdesk/coordinator"
)

// HealthHandler godoc
// @Summary      헬스 체크
// @Description  게이트웨이와 백엔드 상태를 확인합니다.
// @Tags         system
// @Produce      json
// @Success      200  {object}  dto.HealthResponseDTO
// @Failure      503  {object}  dto.HealthResponseDTO
// @Router       /health [get]
func HealthHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		resp, err := coord.Health(ctx)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, dto.HealthResponseDTO{Status: "degraded", Backend: "down"})
			return
		}
		c.JSON(http.StatusOK, dto.HealthResponseDTO{Status: "ok", Backend: resp.Status})
	}
}

// GetStateHandler godoc
// @Summary      상태 스냅샷 조회
// @Description  세션 목록, 현재 세션, 타임라인, 모델 목록, busy 여부를 한 번에 조회합니다.
// @Tags         state
// @Produce      json
// @Success      200  {object}  events.Snapshot
// @Router       /state [get]
func GetStateHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.Snapshot())
	}
}
