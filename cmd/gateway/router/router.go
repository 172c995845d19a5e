package router

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"chatdesk/cmd/gateway/handlers"
	"chatdesk/cmd/gateway/middleware"
	"chatdesk/cmd/gateway/stream"
	"chatdesk/config"
	"chatdesk/coordinator"
	_ "chatdesk/docs"
	"chatdesk/eventbus"
)

// New는 View 용 HTTP 표면을 구성한다. 브라우저 View 를 위해 CORS 로 감싼 핸들러를 반환한다.
func New(coord *coordinator.Coordinator, bus eventbus.EventBus, cfg config.GatewayConfig) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestTrace())

	// Health check
	r.GET("/health", handlers.HealthHandler(coord))

	// Swagger
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// v1 routes
	api := r.Group("/api/v1")
	{
		api.GET("/state", handlers.GetStateHandler(coord))

		api.GET("/models", handlers.ListModelsHandler(coord))
		api.PUT("/models/selected", handlers.SelectModelHandler(coord))

		api.GET("/sessions", handlers.ListSessionsHandler(coord))
		api.POST("/sessions", handlers.CreateSessionHandler(coord))
		api.POST("/sessions/:id/select", handlers.SelectSessionHandler(coord))

		api.GET("/messages", handlers.ListMessagesHandler(coord))
		api.POST("/messages", handlers.SendMessageHandler(coord))

		api.POST("/documents", handlers.UploadDocumentHandler(coord))
		api.POST("/qa", handlers.GenerateQAHandler(coord))
		api.POST("/research", handlers.ResearchHandler(coord))
		api.POST("/translate", handlers.TranslateHandler(coord))

		api.GET("/events", gin.WrapH(stream.NewHandler(bus, coord.Snapshot, wsOrigins(cfg.CORSOrigins))))
	}

	return cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-Span-Id"},
	}).Handler(r)
}

// wsOrigins는 CORS origin 목록을 websocket 의 host 패턴으로 바꾼다.
func wsOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
