package handlers

import (
  "encoding/json"
  "net/http"
  "strconv"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/showforge/preprod-backend/internal/services"
)

type EpisodeHandler struct {
  episodes services.EpisodeService
}

func NewEpisodeHandler(episodes services.EpisodeService) *EpisodeHandler {
  return &EpisodeHandler{episodes: episodes}
}

func episodeParams(c *gin.Context) (uuid.UUID, int, bool) {
  seriesID, err := uuid.Parse(c.Param("seriesId"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_series_id", err)
    return uuid.Nil, 0, false
  }
  num, err := strconv.Atoi(c.Param("episodeNumber"))
  if err != nil || num < 1 {
    RespondError(c, http.StatusBadRequest, "invalid_episode_number", err)
    return uuid.Nil, 0, false
  }
  return seriesID, num, true
}

// GET /api/series/:seriesId/episodes/:episodeNumber
func (h *EpisodeHandler) GetEpisode(c *gin.Context) {
  seriesID, num, ok := episodeParams(c)
  if !ok {
    return
  }
  ep, err := h.episodes.GetEpisode(c.Request.Context(), seriesID, num)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "load_episode_failed", err)
    return
  }
  if ep == nil {
    RespondError(c, http.StatusNotFound, "episode_not_found", nil)
    return
  }
  RespondOK(c, gin.H{"episode": ep})
}

// PUT /api/series/:seriesId/episodes/:episodeNumber/sections/:section
//
// Body is the raw section payload. Creates the episode row on first write.
func (h *EpisodeHandler) PutSection(c *gin.Context) {
  actorID, ok := actorFrom(c)
  if !ok {
    return
  }
  seriesID, num, ok := episodeParams(c)
  if !ok {
    return
  }
  section := c.Param("section")
  var payload json.RawMessage
  if err := c.ShouldBindJSON(&payload); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", err)
    return
  }
  if err := h.episodes.UpsertSection(c.Request.Context(), seriesID, actorID, num, section, payload); err != nil {
    RespondError(c, http.StatusBadRequest, "put_section_failed", err)
    return
  }
  RespondOK(c, gin.H{"updated": section})
}
