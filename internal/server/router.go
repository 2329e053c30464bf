package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gbacskai/docflow4-sub002/internal/handlers"
	"github.com/gbacskai/docflow4-sub002/internal/middleware"
)

type RouterConfig struct {
	// TracingService, when non-empty, turns on per-request trace spans
	// under that service name.
	TracingService      string
	AuthMiddleware      *middleware.AuthMiddleware
	ProjectHandler      *handlers.ProjectHandler
	DocumentHandler     *handlers.DocumentHandler
	DocumentTypeHandler *handlers.DocumentTypeHandler
	WorkflowHandler     *handlers.WorkflowHandler
	ChatHandler         *handlers.ChatHandler
	UserHandler         *handlers.UserHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	if cfg.TracingService != "" {
		router.Use(otelgin.Middleware(cfg.TracingService))
	}

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:4200",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Projects
	api.POST("/projects", cfg.ProjectHandler.Create)
	api.GET("/projects", cfg.ProjectHandler.List)
	api.GET("/projects/:id", cfg.ProjectHandler.Get)
	api.PUT("/projects/:id", cfg.ProjectHandler.Update)
	api.GET("/projects/:id/versions", cfg.ProjectHandler.Versions)
	api.GET("/projects/:id/matrix", cfg.ProjectHandler.Matrix)
	api.POST("/projects/:id/cascade", cfg.ProjectHandler.Cascade)

	// Documents
	api.POST("/documents", cfg.DocumentHandler.Create)
	api.GET("/documents", cfg.DocumentHandler.ListByProject)
	api.GET("/documents/:id", cfg.DocumentHandler.Get)
	api.PUT("/documents/:id", cfg.DocumentHandler.Update)
	api.GET("/documents/:id/versions", cfg.DocumentHandler.Versions)
	api.GET("/documents/:id/schema", cfg.DocumentHandler.Schema)

	// Document types
	api.POST("/document-types", cfg.DocumentTypeHandler.Create)
	api.GET("/document-types", cfg.DocumentTypeHandler.List)
	api.GET("/document-types/:id", cfg.DocumentTypeHandler.Get)
	api.PUT("/document-types/:id", cfg.DocumentTypeHandler.Update)

	// Workflows
	api.POST("/workflows", cfg.WorkflowHandler.Create)
	api.GET("/workflows", cfg.WorkflowHandler.List)
	api.GET("/workflows/:id", cfg.WorkflowHandler.Get)
	api.PUT("/workflows/:id", cfg.WorkflowHandler.Update)
	api.POST("/workflows/check-rules", cfg.WorkflowHandler.CheckRules)

	// Chat (CRUD only, no realtime transport)
	api.POST("/chat/rooms", cfg.ChatHandler.CreateRoom)
	api.GET("/chat/rooms", cfg.ChatHandler.ListRooms)
	api.POST("/chat/rooms/:id/messages", cfg.ChatHandler.PostMessage)
	api.GET("/chat/rooms/:id/messages", cfg.ChatHandler.ListMessages)

	// User
	api.GET("/user", cfg.UserHandler.GetMe)
	api.PUT("/user", cfg.UserHandler.UpdateMe)

	return router
}
