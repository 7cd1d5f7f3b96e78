package preprod

// Cost rollup for location groups. The rollup is derived state: it is
// recomputed from scratch after every mutation that could affect cost and
// never patched incrementally, so it cannot drift from its inputs.

// resolveCost resolves one cost field through the fallback chain:
// suggestion.costBreakdown -> suggestion flat field -> group.costEstimate -> 0.
// A present zero stops the chain; only absence falls through.
func resolveCost(nested *float64, flat *float64, estimate *float64) float64 {
  switch {
  case nested != nil:
    return clampCost(*nested)
  case flat != nil:
    return clampCost(*flat)
  case estimate != nil:
    return clampCost(*estimate)
  default:
    return 0
  }
}

func resolveInsurance(nested *bool, flat *bool, estimate *bool) bool {
  switch {
  case nested != nil:
    return *nested
  case flat != nil:
    return *flat
  case estimate != nil:
    return *estimate
  default:
    return false
  }
}

// clampCost floors negative inputs at zero so bad data can never reduce a
// total.
func clampCost(v float64) float64 {
  if v < 0 {
    return 0
  }
  return v
}

func suggestionEntry(group LocationGroup, s ShootingLocationSuggestion) CostRollupEntry {
  var cb CostFields
  if s.CostBreakdown != nil {
    cb = *s.CostBreakdown
  }
  var est CostFields
  if group.CostEstimate != nil {
    est = *group.CostEstimate
  }
  entry := CostRollupEntry{
    LocationID:           group.ID,
    SelectedSuggestionID: s.ID,
    DayRate:              resolveCost(cb.DayRate, s.EstimatedCost, est.DayRate),
    PermitCost:           resolveCost(cb.PermitCost, s.PermitCost, est.PermitCost),
    DepositAmount:        resolveCost(cb.DepositAmount, s.DepositAmount, est.DepositAmount),
    InsuranceRequired:    resolveInsurance(cb.InsuranceRequired, s.InsuranceRequired, est.InsuranceRequired),
  }
  // Insurance is a flag, not a cost line item.
  entry.Total = entry.DayRate + entry.PermitCost + entry.DepositAmount
  return entry
}

// selectEntry picks the rollup entry for a group: the explicitly selected
// suggestion when it still exists, otherwise the cheapest suggestion with
// ties broken by source order. A group without suggestions contributes an
// entry priced from its own cost estimate (or zeros).
func selectEntry(group LocationGroup) CostRollupEntry {
  suggestions := group.ShootingLocationSuggestions
  if len(suggestions) == 0 {
    return suggestionEntry(group, ShootingLocationSuggestion{})
  }
  if group.SelectedSuggestionID != "" {
    for _, s := range suggestions {
      if s.ID == group.SelectedSuggestionID {
        return suggestionEntry(group, s)
      }
    }
    // Dangling selection falls through to cheapest.
  }
  best := suggestionEntry(group, suggestions[0])
  for _, s := range suggestions[1:] {
    candidate := suggestionEntry(group, s)
    if candidate.Total < best.Total {
      best = candidate
    }
  }
  return best
}

// ComputeCostRollup derives the per-location and arc-total estimates for a
// set of location groups. Deterministic and side-effect free; callers must
// persist the result after every selection change or cost edit.
func ComputeCostRollup(groups []LocationGroup) CostRollup {
  rollup := CostRollup{PerLocation: make([]CostRollupEntry, 0, len(groups))}
  for _, group := range groups {
    entry := selectEntry(group)
    rollup.PerLocation = append(rollup.PerLocation, entry)
    rollup.ArcTotal += entry.Total
  }
  return rollup
}
