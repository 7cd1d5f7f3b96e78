package main

import (
  "context"
  "fmt"
  "os"
  "time"
  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/observability"
  "github.com/showforge/preprod-backend/internal/utils"
  "github.com/showforge/preprod-backend/internal/db"
  "github.com/showforge/preprod-backend/internal/clients/redis"
  "github.com/showforge/preprod-backend/internal/repos"
  "github.com/showforge/preprod-backend/internal/services"
  "github.com/showforge/preprod-backend/internal/handlers"
  "github.com/showforge/preprod-backend/internal/middleware"
  "github.com/showforge/preprod-backend/internal/server"
  "github.com/showforge/preprod-backend/internal/sse"
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

  // Tracing
  otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
    ServiceName: "preprod-backend",
    Environment: utils.GetEnv("APP_ENV", "development", log),
    Version:     utils.GetEnv("APP_VERSION", "dev", log),
  })
  if otelShutdown != nil {
    defer func() {
      ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
      defer cancel()
      _ = otelShutdown(ctx)
    }()
  }

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  bibleRepo := repos.NewSeriesBibleRepo(thePG, log)
  episodeRepo := repos.NewEpisodeRepo(thePG, log)
  arcRepo := repos.NewArcRepo(thePG, log)
  runRepo := repos.NewGenerationRunRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)
  var sseBus redis.SSEBus
  if bus, busErr := redis.NewSSEBus(log); busErr != nil {
    log.Warn("Redis SSE bus unavailable, running single-instance", "error", busErr)
  } else {
    sseBus = bus
    if err := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
      log.Warn("Redis SSE forwarder failed to start", "error", err)
      _ = sseBus.Close()
      sseBus = nil
    }
  }
  emitter := services.NewSSEEmitter(log, sseHub, sseBus)

  // Services
  log.Info("Setting up Services from main...")
  aiClient, err := services.NewAIClient(log)
  if err != nil {
    log.Error("Could not init AIClient", "error", err)
    os.Exit(1)
  }
  arcDocService := services.NewArcDocumentService(thePG, log, arcRepo, emitter)
  episodeService := services.NewEpisodeService(thePG, log, episodeRepo, emitter)
  genService, err := services.NewArcGenerationService(thePG, log, runRepo, arcDocService, aiClient, emitter)
  if err != nil {
    log.Error("Could not init ArcGenerationService", "error", err)
    os.Exit(1)
  }
  sessionService := services.NewArcSessionService(thePG, log, bibleRepo, episodeService, arcDocService, genService)

  // Handlers
  log.Info("Setting up handlers from main...")
  arcHandler := handlers.NewArcHandler(arcDocService, sessionService)
  episodeHandler := handlers.NewEpisodeHandler(episodeService)
  generationHandler := handlers.NewGenerationHandler(bibleRepo, episodeService, arcDocService, genService)
  realtimeHandler := handlers.NewRealtimeHandler(log, sseHub)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    AuthMiddleware:    authMiddleware,
    ArcHandler:        arcHandler,
    EpisodeHandler:    episodeHandler,
    GenerationHandler: generationHandler,
    RealtimeHandler:   realtimeHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Fatal("Server exited", "error", err)
  }
}
