package handlers

import (
  "encoding/json"
  "errors"
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/showforge/preprod-backend/internal/preprod"
  "github.com/showforge/preprod-backend/internal/repos"
  "github.com/showforge/preprod-backend/internal/services"
  "github.com/showforge/preprod-backend/internal/types"
)

type GenerationHandler struct {
  bibleRepo repos.SeriesBibleRepo
  episodes  services.EpisodeService
  arcDoc    services.ArcDocumentService
  gen       services.ArcGenerationService
}

func NewGenerationHandler(
  bibleRepo repos.SeriesBibleRepo,
  episodes services.EpisodeService,
  arcDoc services.ArcDocumentService,
  gen services.ArcGenerationService,
) *GenerationHandler {
  return &GenerationHandler{bibleRepo: bibleRepo, episodes: episodes, arcDoc: arcDoc, gen: gen}
}

// loadArcContext assembles everything generation needs: the arc row, its
// series bible and the decoded documents of its member episodes.
func (h *GenerationHandler) loadArcContext(c *gin.Context, arcID uuid.UUID) (*types.SeriesBible, *types.ArcPreProduction, map[int]*preprod.EpisodeDoc, error) {
  ctx := c.Request.Context()
  arc, err := h.arcDoc.GetArc(ctx, arcID)
  if err != nil {
    return nil, nil, nil, err
  }
  if arc == nil {
    return nil, nil, nil, fmt.Errorf("arc %s not found", arcID)
  }
  bible, err := h.bibleRepo.GetBySeriesID(ctx, nil, arc.SeriesID)
  if err != nil {
    return nil, nil, nil, err
  }
  var nums []int
  if len(arc.EpisodeNumbers) > 0 {
    if err := json.Unmarshal(arc.EpisodeNumbers, &nums); err != nil {
      return nil, nil, nil, fmt.Errorf("decode arc episode numbers: %w", err)
    }
  }
  docs, err := h.episodes.LoadEpisodeDocs(ctx, arc.SeriesID, nums)
  if err != nil {
    return nil, nil, nil, err
  }
  return bible, arc, docs, nil
}

// POST /api/arcs/:id/generate
//
// Kicks off a Mode A auto-generation run and returns the queued run row;
// progress arrives over the arc's SSE channel.
func (h *GenerationHandler) Generate(c *gin.Context) {
  actorID, ok := actorFrom(c)
  if !ok {
    return
  }
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  bible, arc, docs, err := h.loadArcContext(c, arcID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "load_arc_failed", err)
    return
  }
  run, err := h.gen.StartAutoGenerate(c.Request.Context(), bible, arc, docs, actorID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "start_generation_failed", err)
    return
  }
  c.JSON(http.StatusAccepted, gin.H{"run": run})
}

// POST /api/arcs/:id/regenerate
//
// Body: {"sections": ["casting", "budget"], "applyPartial": true}. Runs the
// selected sections concurrently and reports a per-section error map.
func (h *GenerationHandler) Regenerate(c *gin.Context) {
  actorID, ok := actorFrom(c)
  if !ok {
    return
  }
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  var req struct {
    Sections     []string `json:"sections"`
    ApplyPartial *bool    `json:"applyPartial"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || len(req.Sections) == 0 {
    RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("sections array required"))
    return
  }
  applyPartial := true
  if req.ApplyPartial != nil {
    applyPartial = *req.ApplyPartial
  }
  bible, arc, docs, err := h.loadArcContext(c, arcID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "load_arc_failed", err)
    return
  }
  res, err := h.gen.Regenerate(c.Request.Context(), bible, arc, docs, req.Sections, applyPartial, actorID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "regenerate_failed", err)
    return
  }
  RespondOK(c, gin.H{
    "run":            res.Run,
    "sections":       res.Sections,
    "section_errors": res.SectionErrors,
  })
}

// GET /api/arcs/:id/generation
func (h *GenerationHandler) GetLatestRun(c *gin.Context) {
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  run, err := h.gen.LatestRun(c.Request.Context(), arcID)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "load_generation_run_failed", err)
    return
  }
  // run is nil when no generation has ever run for this arc
  RespondOK(c, gin.H{"run": run})
}

// POST /api/arcs/:id/locations/generate
//
// Streams generation progress to the caller as SSE frames and persists the
// result (new pending options) when generation succeeds.
func (h *GenerationHandler) GenerateLocations(c *gin.Context) {
  actorID, ok := actorFrom(c)
  if !ok {
    return
  }
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  bible, arc, docs, err := h.loadArcContext(c, arcID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "load_arc_failed", err)
    return
  }

  c.Writer.Header().Set("Content-Type", "text/event-stream")
  c.Writer.Header().Set("Cache-Control", "no-cache")
  c.Writer.Header().Set("Connection", "keep-alive")
  c.Writer.Header().Set("X-Accel-Buffering", "no")
  flusher, flushable := c.Writer.(http.Flusher)

  send := func(p services.LocationProgress) {
    raw, mErr := json.Marshal(p)
    if mErr != nil {
      return
    }
    fmt.Fprintf(c.Writer, "data: %s\n\n", raw)
    if flushable {
      flusher.Flush()
    }
  }

  doc, err := h.gen.GenerateLocations(c.Request.Context(), bible, arc, docs, send)
  if err != nil {
    // The error frame was already streamed by the progress callback.
    return
  }
  if err := h.arcDoc.ApplySections(c.Request.Context(), arcID, map[string]any{types.SectionLocations: doc}, actorID); err != nil {
    send(services.LocationProgress{Type: "error", Message: err.Error()})
  }
}

// POST /api/arcs/:id/questionnaire
func (h *GenerationHandler) GenerateQuestionnaire(c *gin.Context) {
  if _, ok := actorFrom(c); !ok {
    return
  }
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  bible, arc, docs, err := h.loadArcContext(c, arcID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "load_arc_failed", err)
    return
  }
  out, err := h.gen.GenerateQuestionnaire(c.Request.Context(), bible, arc, docs)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "generate_questionnaire_failed", err)
    return
  }
  RespondOK(c, out)
}
