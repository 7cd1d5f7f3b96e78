package server

import (
  "github.com/gin-gonic/gin"
  "github.com/gin-contrib/cors"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
  "github.com/showforge/preprod-backend/internal/handlers"
  "github.com/showforge/preprod-backend/internal/middleware"
)

type RouterConfig struct {
  AuthMiddleware    *middleware.AuthMiddleware
  ArcHandler        *handlers.ArcHandler
  EpisodeHandler    *handlers.EpisodeHandler
  GenerationHandler *handlers.GenerationHandler
  RealtimeHandler   *handlers.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))
  router.Use(otelgin.Middleware("preprod-backend"))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)

// ===============
// || Protected ||
// ===============
  protected := router.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  // SSE
  protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
  protected.POST("/sse/subscribe", cfg.RealtimeHandler.SSESubscribe)
  protected.POST("/sse/unsubscribe", cfg.RealtimeHandler.SSEUnsubscribe)

  api := protected.Group("/api")
  // Episodes
  api.GET("/series/:seriesId/episodes/:episodeNumber", cfg.EpisodeHandler.GetEpisode)
  api.PUT("/series/:seriesId/episodes/:episodeNumber/sections/:section", cfg.EpisodeHandler.PutSection)
  // Arc session
  api.POST("/series/:seriesId/arcs/session", cfg.ArcHandler.OpenSession)
  api.POST("/arcs/:id/session", cfg.ArcHandler.OpenSessionByArc)
  // Arc document
  api.GET("/arcs/:id", cfg.ArcHandler.GetArc)
  api.PATCH("/arcs/:id/sections", cfg.ArcHandler.PatchSections)
  api.PATCH("/arcs/:id/sections/:section", cfg.ArcHandler.PatchSection)
  api.POST("/arcs/:id/locations/select", cfg.ArcHandler.SelectSuggestion)
  api.PUT("/arcs/:id/locations/groups", cfg.ArcHandler.UpdateLocationGroups)
  // Generation
  api.POST("/arcs/:id/generate", cfg.GenerationHandler.Generate)
  api.POST("/arcs/:id/regenerate", cfg.GenerationHandler.Regenerate)
  api.GET("/arcs/:id/generation", cfg.GenerationHandler.GetLatestRun)
  api.POST("/arcs/:id/locations/generate", cfg.GenerationHandler.GenerateLocations)
  api.POST("/arcs/:id/questionnaire", cfg.GenerationHandler.GenerateQuestionnaire)

  return router
}
