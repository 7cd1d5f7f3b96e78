package handlers

import (
  "encoding/json"
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/showforge/preprod-backend/internal/preprod"
  "github.com/showforge/preprod-backend/internal/requestdata"
  "github.com/showforge/preprod-backend/internal/services"
)

type ArcHandler struct {
  arcDoc  services.ArcDocumentService
  session services.ArcSessionService
}

func NewArcHandler(arcDoc services.ArcDocumentService, session services.ArcSessionService) *ArcHandler {
  return &ArcHandler{arcDoc: arcDoc, session: session}
}

func actorFrom(c *gin.Context) (uuid.UUID, bool) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.ActorID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return uuid.Nil, false
  }
  return rd.ActorID, true
}

func arcIDFrom(c *gin.Context) (uuid.UUID, bool) {
  arcID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_arc_id", err)
    return uuid.Nil, false
  }
  return arcID, true
}

// GET /api/arcs/:id
func (h *ArcHandler) GetArc(c *gin.Context) {
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  arc, err := h.arcDoc.GetArc(c.Request.Context(), arcID)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "load_arc_failed", err)
    return
  }
  if arc == nil {
    RespondError(c, http.StatusNotFound, "arc_not_found", nil)
    return
  }
  RespondOK(c, gin.H{"arc": arc})
}

// POST /api/series/:seriesId/arcs/:arcIndex/session
//
// Opens the arc workspace: loads episodes, runs the one-time aggregation
// fill and, when the arc is entirely empty, kicks off auto-generation.
func (h *ArcHandler) OpenSession(c *gin.Context) {
  actorID, ok := actorFrom(c)
  if !ok {
    return
  }
  seriesID, err := uuid.Parse(c.Param("seriesId"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_series_id", err)
    return
  }
  var req struct {
    ArcIndex int `json:"arcIndex"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", err)
    return
  }
  state, err := h.session.Open(c.Request.Context(), seriesID, req.ArcIndex, actorID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "open_session_failed", err)
    return
  }
  RespondOK(c, gin.H{
    "arc":                         state.Arc,
    "episode_numbers":             state.EpisodeNumbers,
    "auto_generate_started":       state.AutoGenerateStarted,
    "run":                         state.Run,
    "suggest_setup_questionnaire": state.SuggestSetupQuestionnaire,
  })
}

// POST /api/arcs/:id/session
//
// Same as OpenSession but addressed by an existing arc document.
func (h *ArcHandler) OpenSessionByArc(c *gin.Context) {
  actorID, ok := actorFrom(c)
  if !ok {
    return
  }
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  arc, err := h.arcDoc.GetArc(c.Request.Context(), arcID)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "load_arc_failed", err)
    return
  }
  if arc == nil {
    RespondError(c, http.StatusNotFound, "arc_not_found", nil)
    return
  }
  state, err := h.session.Open(c.Request.Context(), arc.SeriesID, arc.ArcIndex, actorID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "open_session_failed", err)
    return
  }
  RespondOK(c, gin.H{
    "arc":                         state.Arc,
    "episode_numbers":             state.EpisodeNumbers,
    "auto_generate_started":       state.AutoGenerateStarted,
    "run":                         state.Run,
    "suggest_setup_questionnaire": state.SuggestSetupQuestionnaire,
  })
}

// PATCH /api/arcs/:id/sections/:section
//
// Body is the raw section payload; replaces that one column.
func (h *ArcHandler) PatchSection(c *gin.Context) {
  actorID, ok := actorFrom(c)
  if !ok {
    return
  }
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  section := c.Param("section")
  var payload json.RawMessage
  if err := c.ShouldBindJSON(&payload); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", err)
    return
  }
  if err := h.arcDoc.ApplySections(c.Request.Context(), arcID, map[string]any{section: payload}, actorID); err != nil {
    RespondError(c, http.StatusBadRequest, "patch_section_failed", err)
    return
  }
  RespondOK(c, gin.H{"updated": section})
}

// PATCH /api/arcs/:id/sections
//
// Body: {"sections": {"casting": {...}, "budget": {...}}}. A shallow merge;
// each named section replaces its column wholesale.
func (h *ArcHandler) PatchSections(c *gin.Context) {
  actorID, ok := actorFrom(c)
  if !ok {
    return
  }
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  var req struct {
    Sections map[string]json.RawMessage `json:"sections"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || len(req.Sections) == 0 {
    RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("sections object required"))
    return
  }
  sections := make(map[string]any, len(req.Sections))
  for name, raw := range req.Sections {
    sections[name] = raw
  }
  if err := h.arcDoc.ApplySections(c.Request.Context(), arcID, sections, actorID); err != nil {
    RespondError(c, http.StatusBadRequest, "patch_sections_failed", err)
    return
  }
  RespondOK(c, gin.H{"updated": len(sections)})
}

// POST /api/arcs/:id/locations/select
//
// Body: {"groupId": "...", "suggestionId": "..."}. Recomputes the cost
// rollup and returns the updated locations document.
func (h *ArcHandler) SelectSuggestion(c *gin.Context) {
  actorID, ok := actorFrom(c)
  if !ok {
    return
  }
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  var req struct {
    GroupID      string `json:"groupId"`
    SuggestionID string `json:"suggestionId"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.GroupID == "" || req.SuggestionID == "" {
    RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("groupId and suggestionId required"))
    return
  }
  doc, err := h.arcDoc.SelectSuggestion(c.Request.Context(), arcID, req.GroupID, req.SuggestionID, actorID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "select_suggestion_failed", err)
    return
  }
  RespondOK(c, gin.H{"locations": doc})
}

// PUT /api/arcs/:id/locations/groups
//
// Replaces the location groups wholesale (used when the user accepts
// pending options or edits groups by hand); the rollup is recomputed.
func (h *ArcHandler) UpdateLocationGroups(c *gin.Context) {
  actorID, ok := actorFrom(c)
  if !ok {
    return
  }
  arcID, ok := arcIDFrom(c)
  if !ok {
    return
  }
  var req struct {
    LocationGroups []preprod.LocationGroup `json:"locationGroups"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request", err)
    return
  }
  doc, err := h.arcDoc.UpdateLocationGroups(c.Request.Context(), arcID, req.LocationGroups, actorID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "update_location_groups_failed", err)
    return
  }
  RespondOK(c, gin.H{"locations": doc})
}
