package main

import (
	"context"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gbacskai/docflow4-sub002/internal/db"
	"github.com/gbacskai/docflow4-sub002/internal/engine"
	"github.com/gbacskai/docflow4-sub002/internal/handlers"
	"github.com/gbacskai/docflow4-sub002/internal/middleware"
	"github.com/gbacskai/docflow4-sub002/internal/observability"
	"github.com/gbacskai/docflow4-sub002/internal/pkg/dbctx"
	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/server"
	"github.com/gbacskai/docflow4-sub002/internal/services"
	"github.com/gbacskai/docflow4-sub002/internal/stream"
	"github.com/gbacskai/docflow4-sub002/internal/utils"
	"github.com/gbacskai/docflow4-sub002/internal/versioning"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "", log)
	redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
	seedFile := utils.GetEnv("SEED_FILE", "", log)
	maxIterations := utils.GetEnvAsInt("CASCADE_MAX_ITERATIONS", 10, log)
	cascadeTimeout := utils.GetEnvAsDuration("CASCADE_TIMEOUT_SECONDS", 30*time.Second, log)
	reconcilePageSize := utils.GetEnvAsInt("RECONCILE_PAGE_SIZE", 25, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	recordRepo := repos.NewRecordRepo(thePG, log)

	// Change-event bus
	log.Info("Setting up change-event bus from main...")
	var bus stream.Bus
	if redisAddr != "" {
		bus, err = stream.NewRedisBus(log)
		if err != nil {
			log.Warn("Redis bus init failed, falling back to in-process bus", "error", err)
		}
	}
	if bus == nil {
		bus = stream.NewChannelBus(log, 256)
	}
	defer bus.Close()

	// Version writer + reconciler
	writer := versioning.NewWriter(thePG, log, recordRepo, bus)
	reconciler := versioning.NewReconciler(log, recordRepo, reconcilePageSize)
	reconcilerCtx, stopReconciler := context.WithCancel(context.Background())
	defer stopReconciler()
	if err := reconciler.Start(reconcilerCtx, bus); err != nil {
		log.Error("Could not start reconciler", "error", err)
		os.Exit(1)
	}
	// Clean up anything whose change event was lost while we were down.
	if _, err := reconciler.Sweep(reconcilerCtx); err != nil {
		log.Warn("Startup reconciliation sweep failed", "error", err)
	}

	// Workflow engine
	var locker engine.ProjectLocker
	if redisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: redisAddr, DialTimeout: 5 * time.Second})
		if pingErr := rdb.Ping(context.Background()).Err(); pingErr == nil {
			locker = engine.NewRedisLocker(rdb, time.Minute)
		} else {
			log.Warn("Redis locker unavailable, using local locks", "error", pingErr)
			_ = rdb.Close()
		}
	}
	if locker == nil {
		locker = engine.NewLocalLocker()
	}
	workflowEngine := engine.NewEngine(log, recordRepo, writer, locker, maxIterations, cascadeTimeout)

	// Services
	log.Info("Setting up Services from main...")
	docTypeService := services.NewDocumentTypeService(thePG, log, recordRepo, writer)
	workflowService := services.NewWorkflowService(thePG, log, recordRepo, writer)
	projectService := services.NewProjectService(thePG, log, recordRepo, writer, workflowEngine)
	documentService := services.NewDocumentService(thePG, log, recordRepo, writer, workflowEngine, docTypeService)
	chatService := services.NewChatService(thePG, log, recordRepo, writer)
	userService := services.NewUserService(thePG, log, recordRepo, writer)

	if seedFile != "" {
		seedService := services.NewSeedService(thePG, log, docTypeService, workflowService)
		if err := seedService.ApplyFile(dbctx.Background(), seedFile); err != nil {
			log.Warn("Seed file apply failed", "path", seedFile, "error", err)
		}
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	projectHandler := handlers.NewProjectHandler(projectService)
	documentHandler := handlers.NewDocumentHandler(documentService)
	docTypeHandler := handlers.NewDocumentTypeHandler(docTypeService)
	workflowHandler := handlers.NewWorkflowHandler(workflowService)
	chatHandler := handlers.NewChatHandler(chatService)
	userHandler := handlers.NewUserHandler(userService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware, err := middleware.NewAuthMiddleware(log, jwtSecretKey)
	if err != nil {
		log.Error("Auth middleware init failed, set JWT_SECRET_KEY", "error", err)
		os.Exit(1)
	}

	// Tracing
	tracingService := ""
	if observability.Enabled() {
		tracingService = "docflow"
		shutdownTracing := observability.InitTracing(context.Background(), log, observability.Config{
			ServiceName: tracingService,
			Environment: logMode,
			Version:     utils.GetEnv("SERVICE_VERSION", "", log),
		})
		if shutdownTracing != nil {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(ctx); err != nil {
					log.Warn("Tracing shutdown failed", "error", err)
				}
			}()
		}
	}

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		TracingService:      tracingService,
		AuthMiddleware:      authMiddleware,
		ProjectHandler:      projectHandler,
		DocumentHandler:     documentHandler,
		DocumentTypeHandler: docTypeHandler,
		WorkflowHandler:     workflowHandler,
		ChatHandler:         chatHandler,
		UserHandler:         userHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
