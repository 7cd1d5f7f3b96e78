package preprod

import (
  "sort"
  "strings"
)

// Aggregators fold per-episode documents into arc-level summaries. They are
// pure: no I/O, no mutation of their inputs, and they treat absent or
// malformed sub-documents as empty collections. Episodes are always visited
// in ascending episode-number order so results are deterministic.

func sortedEpisodeNumbers(episodes map[int]*EpisodeDoc) []int {
  nums := make([]int, 0, len(episodes))
  for n := range episodes {
    nums = append(nums, n)
  }
  sort.Ints(nums)
  return nums
}

func castKey(m CastMember) string {
  if k := strings.ToLower(strings.TrimSpace(m.CharacterName)); k != "" {
    return "character:" + k
  }
  if k := strings.ToLower(strings.TrimSpace(m.ActorName)); k != "" {
    return "actor:" + k
  }
  return "id:" + m.ID
}

// AggregateCasting unions cast entries across episodes, keyed by normalized
// character name (falling back to actor name, then id). On conflicting
// fields the highest episode number wins, except that a later blank field
// never erases an earlier value. Each member records its source episodes.
func AggregateCasting(episodes map[int]*EpisodeDoc) *CastingDoc {
  merged := map[string]*CastMember{}
  order := []string{}

  for _, num := range sortedEpisodeNumbers(episodes) {
    ep := episodes[num]
    if ep == nil || ep.Casting == nil {
      continue
    }
    for _, member := range ep.Casting.CastMembers {
      key := castKey(member)
      if key == "id:" {
        // No usable identity at all; keep it, but it can never merge.
        key = "anon:" + strings.ToLower(member.Role) + member.Notes
      }
      existing, ok := merged[key]
      if !ok {
        clone := member
        clone.Episodes = []int{num}
        merged[key] = &clone
        order = append(order, key)
        continue
      }
      mergeCastMember(existing, member)
      existing.Episodes = appendEpisode(existing.Episodes, num)
    }
  }

  if len(order) == 0 {
    return &CastingDoc{CastMembers: []CastMember{}}
  }
  out := make([]CastMember, 0, len(order))
  for _, key := range order {
    out = append(out, *merged[key])
  }
  return &CastingDoc{CastMembers: out}
}

// mergeCastMember applies last-write-wins per field: incoming comes from a
// higher episode number, so its non-empty fields overwrite.
func mergeCastMember(dst *CastMember, src CastMember) {
  if src.ID != "" {
    dst.ID = src.ID
  }
  if strings.TrimSpace(src.CharacterName) != "" {
    dst.CharacterName = src.CharacterName
  }
  if strings.TrimSpace(src.ActorName) != "" {
    dst.ActorName = src.ActorName
  }
  if src.Role != "" {
    dst.Role = src.Role
  }
  if src.DayRate != 0 {
    dst.DayRate = src.DayRate
  }
  if src.Notes != "" {
    dst.Notes = src.Notes
  }
}

func appendEpisode(eps []int, num int) []int {
  for _, e := range eps {
    if e == num {
      return eps
    }
  }
  return append(eps, num)
}

var equipmentCategories = []string{"camera", "lighting", "audio", "grip", "other"}

func normalizeCategory(c string) string {
  c = strings.ToLower(strings.TrimSpace(c))
  for _, known := range equipmentCategories {
    if c == known {
      return c
    }
  }
  return "other"
}

// NormalizeEquipment converts either historical schema into the categorized
// form: legacy flat items are routed by their category field (default
// "other"). The input is not modified.
func NormalizeEquipment(doc *EquipmentDoc) *EquipmentDoc {
  out := &EquipmentDoc{}
  if doc == nil {
    return out
  }
  byCat := map[string]*[]EquipmentItem{
    "camera":   &out.Camera,
    "lighting": &out.Lighting,
    "audio":    &out.Audio,
    "grip":     &out.Grip,
    "other":    &out.Other,
  }
  add := func(cat string, item EquipmentItem) {
    item.Category = cat
    bucket := byCat[cat]
    *bucket = append(*bucket, item)
  }
  for _, item := range doc.Camera {
    add("camera", item)
  }
  for _, item := range doc.Lighting {
    add("lighting", item)
  }
  for _, item := range doc.Audio {
    add("audio", item)
  }
  for _, item := range doc.Grip {
    add("grip", item)
  }
  for _, item := range doc.Other {
    add("other", item)
  }
  for _, item := range doc.Items {
    add(normalizeCategory(item.Category), item)
  }
  return out
}

// AggregateEquipment unions equipment across episodes after normalizing
// each episode's schema. Items deduplicate by category + normalized name;
// quantities take the per-episode maximum (gear is reused across episodes,
// not accumulated).
func AggregateEquipment(episodes map[int]*EpisodeDoc) *EquipmentDoc {
  merged := map[string]*EquipmentItem{}
  order := []string{}

  mergeItem := func(cat string, item EquipmentItem) {
    key := cat + "|" + strings.ToLower(strings.TrimSpace(item.Name))
    existing, ok := merged[key]
    if !ok {
      clone := item
      clone.Category = cat
      merged[key] = &clone
      order = append(order, key)
      return
    }
    if item.Quantity > existing.Quantity {
      existing.Quantity = item.Quantity
    }
    if existing.RentalSource == "" {
      existing.RentalSource = item.RentalSource
    }
    if existing.DailyCost == 0 {
      existing.DailyCost = item.DailyCost
    }
  }

  for _, num := range sortedEpisodeNumbers(episodes) {
    ep := episodes[num]
    if ep == nil || ep.Equipment == nil {
      continue
    }
    norm := NormalizeEquipment(ep.Equipment)
    for _, item := range norm.Camera {
      mergeItem("camera", item)
    }
    for _, item := range norm.Lighting {
      mergeItem("lighting", item)
    }
    for _, item := range norm.Audio {
      mergeItem("audio", item)
    }
    for _, item := range norm.Grip {
      mergeItem("grip", item)
    }
    for _, item := range norm.Other {
      mergeItem("other", item)
    }
  }

  out := &EquipmentDoc{}
  for _, key := range order {
    item := *merged[key]
    switch item.Category {
    case "camera":
      out.Camera = append(out.Camera, item)
    case "lighting":
      out.Lighting = append(out.Lighting, item)
    case "audio":
      out.Audio = append(out.Audio, item)
    case "grip":
      out.Grip = append(out.Grip, item)
    default:
      out.Other = append(out.Other, item)
    }
  }
  return out
}

func permitKey(p PermitRecord) string {
  return strings.ToLower(strings.TrimSpace(p.Type)) + "|" + strings.ToLower(strings.TrimSpace(p.Jurisdiction))
}

// AggregatePermits unions permit records across episodes by permit type +
// jurisdiction. A permit is filed once per arc, so the first episode that
// mentions it wins on conflicting fields; later episodes only extend the
// episode list.
func AggregatePermits(episodes map[int]*EpisodeDoc) *PermitsDoc {
  merged := map[string]*PermitRecord{}
  order := []string{}

  for _, num := range sortedEpisodeNumbers(episodes) {
    ep := episodes[num]
    if ep == nil || ep.Permits == nil {
      continue
    }
    for _, p := range ep.Permits.Permits {
      key := permitKey(p)
      if existing, ok := merged[key]; ok {
        existing.Episodes = appendEpisode(existing.Episodes, num)
        continue
      }
      clone := p
      clone.Episodes = []int{num}
      merged[key] = &clone
      order = append(order, key)
    }
  }

  out := make([]PermitRecord, 0, len(order))
  for _, key := range order {
    out = append(out, *merged[key])
  }
  return &PermitsDoc{Permits: out}
}

// AggregateScenes flattens every episode's breakdown scenes into one list,
// each scene tagged with its source episode. Episodes without a breakdown
// contribute nothing.
func AggregateScenes(episodes map[int]*EpisodeDoc) []TaggedScene {
  out := []TaggedScene{}
  for _, num := range sortedEpisodeNumbers(episodes) {
    ep := episodes[num]
    if ep == nil || ep.ScriptBreakdown == nil {
      continue
    }
    for _, scene := range ep.ScriptBreakdown.Scenes {
      out = append(out, TaggedScene{Scene: scene, EpisodeNumber: num})
    }
  }
  return out
}
