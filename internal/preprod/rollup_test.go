package preprod

import (
	"encoding/json"
	"math/rand"
	"testing"
)

func f(v float64) *float64 { return &v }
func b(v bool) *bool       { return &v }

func TestComputeCostRollupPicksCheapestWithoutSelection(t *testing.T) {
	group := LocationGroup{
		ID: "loc-1",
		ShootingLocationSuggestions: []ShootingLocationSuggestion{
			{ID: "a", CostBreakdown: &CostFields{DayRate: f(100)}},
			{ID: "b", CostBreakdown: &CostFields{DayRate: f(150)}},
			{ID: "c", CostBreakdown: &CostFields{DayRate: f(80)}},
		},
	}
	rollup := ComputeCostRollup([]LocationGroup{group})
	if len(rollup.PerLocation) != 1 {
		t.Fatalf("perLocation: want=1 got=%d", len(rollup.PerLocation))
	}
	entry := rollup.PerLocation[0]
	if entry.SelectedSuggestionID != "c" || entry.Total != 80 {
		t.Fatalf("cheapest suggestion should win: %+v", entry)
	}
	if rollup.ArcTotal != 80 {
		t.Fatalf("arcTotal: want=80 got=%v", rollup.ArcTotal)
	}
}

func TestComputeCostRollupTieBreakBySourceOrder(t *testing.T) {
	group := LocationGroup{
		ID: "loc-1",
		ShootingLocationSuggestions: []ShootingLocationSuggestion{
			{ID: "first", CostBreakdown: &CostFields{DayRate: f(200)}},
			{ID: "second", CostBreakdown: &CostFields{DayRate: f(200)}},
		},
	}
	rollup := ComputeCostRollup([]LocationGroup{group})
	if got := rollup.PerLocation[0].SelectedSuggestionID; got != "first" {
		t.Fatalf("exact tie must keep source order, got %q", got)
	}
}

func TestComputeCostRollupHonorsSelection(t *testing.T) {
	group := LocationGroup{
		ID:                   "loc-1",
		SelectedSuggestionID: "b",
		ShootingLocationSuggestions: []ShootingLocationSuggestion{
			{ID: "a", CostBreakdown: &CostFields{DayRate: f(80)}},
			{ID: "b", CostBreakdown: &CostFields{DayRate: f(150), PermitCost: f(25), DepositAmount: f(10)}},
		},
	}
	rollup := ComputeCostRollup([]LocationGroup{group})
	entry := rollup.PerLocation[0]
	if entry.SelectedSuggestionID != "b" {
		t.Fatalf("explicit selection ignored: %+v", entry)
	}
	if entry.Total != 185 {
		t.Fatalf("total = dayRate+permit+deposit, want=185 got=%v", entry.Total)
	}
}

func TestComputeCostRollupDanglingSelectionFallsBackToCheapest(t *testing.T) {
	group := LocationGroup{
		ID:                   "loc-1",
		SelectedSuggestionID: "gone",
		ShootingLocationSuggestions: []ShootingLocationSuggestion{
			{ID: "a", CostBreakdown: &CostFields{DayRate: f(120)}},
			{ID: "b", CostBreakdown: &CostFields{DayRate: f(90)}},
		},
	}
	rollup := ComputeCostRollup([]LocationGroup{group})
	if got := rollup.PerLocation[0].SelectedSuggestionID; got != "b" {
		t.Fatalf("dangling selection should fall back to cheapest, got %q", got)
	}
}

func TestComputeCostRollupFallbackPrecedence(t *testing.T) {
	cases := []struct {
		name       string
		suggestion ShootingLocationSuggestion
		estimate   *CostFields
		wantDay    float64
		wantPermit float64
		wantIns    bool
	}{
		{
			name: "nested_beats_flat_and_estimate",
			suggestion: ShootingLocationSuggestion{
				ID:            "s",
				CostBreakdown: &CostFields{DayRate: f(100), PermitCost: f(5)},
				EstimatedCost: f(999),
				PermitCost:    f(999),
			},
			estimate:   &CostFields{DayRate: f(888)},
			wantDay:    100,
			wantPermit: 5,
		},
		{
			name: "flat_beats_estimate",
			suggestion: ShootingLocationSuggestion{
				ID:            "s",
				EstimatedCost: f(70),
			},
			estimate:   &CostFields{DayRate: f(888), PermitCost: f(30)},
			wantDay:    70,
			wantPermit: 30,
		},
		{
			name: "nested_zero_stops_chain",
			suggestion: ShootingLocationSuggestion{
				ID:            "s",
				CostBreakdown: &CostFields{DayRate: f(0)},
				EstimatedCost: f(500),
			},
			wantDay: 0,
		},
		{
			name:       "all_absent_defaults_zero_false",
			suggestion: ShootingLocationSuggestion{ID: "s"},
		},
		{
			name: "insurance_from_estimate",
			suggestion: ShootingLocationSuggestion{
				ID: "s",
			},
			estimate: &CostFields{InsuranceRequired: b(true)},
			wantIns:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			group := LocationGroup{
				ID:                          "loc",
				CostEstimate:                tc.estimate,
				ShootingLocationSuggestions: []ShootingLocationSuggestion{tc.suggestion},
			}
			entry := ComputeCostRollup([]LocationGroup{group}).PerLocation[0]
			if entry.DayRate != tc.wantDay {
				t.Errorf("dayRate: want=%v got=%v", tc.wantDay, entry.DayRate)
			}
			if entry.PermitCost != tc.wantPermit {
				t.Errorf("permitCost: want=%v got=%v", tc.wantPermit, entry.PermitCost)
			}
			if entry.InsuranceRequired != tc.wantIns {
				t.Errorf("insurance: want=%v got=%v", tc.wantIns, entry.InsuranceRequired)
			}
		})
	}
}

func TestComputeCostRollupClampsNegatives(t *testing.T) {
	group := LocationGroup{
		ID: "loc-1",
		ShootingLocationSuggestions: []ShootingLocationSuggestion{
			{ID: "s", CostBreakdown: &CostFields{DayRate: f(-500), PermitCost: f(40), DepositAmount: f(-1)}},
		},
	}
	rollup := ComputeCostRollup([]LocationGroup{group})
	entry := rollup.PerLocation[0]
	if entry.DayRate != 0 || entry.DepositAmount != 0 {
		t.Fatalf("negative costs must clamp to zero: %+v", entry)
	}
	if entry.Total != 40 || rollup.ArcTotal != 40 {
		t.Fatalf("totals must never go negative: total=%v arcTotal=%v", entry.Total, rollup.ArcTotal)
	}
}

// Random sequences of selection changes and cost edits must never desync
// arcTotal from the per-location sum.
func TestComputeCostRollupInvariantUnderRandomMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	groups := make([]LocationGroup, 0, 5)
	for g := 0; g < 5; g++ {
		group := LocationGroup{ID: string(rune('a' + g))}
		for s := 0; s < 4; s++ {
			group.ShootingLocationSuggestions = append(group.ShootingLocationSuggestions, ShootingLocationSuggestion{
				ID:            group.ID + "-" + string(rune('0'+s)),
				CostBreakdown: &CostFields{DayRate: f(float64(rng.Intn(2000) - 200))},
			})
		}
		groups = append(groups, group)
	}

	for step := 0; step < 200; step++ {
		g := rng.Intn(len(groups))
		switch rng.Intn(3) {
		case 0:
			suggestions := groups[g].ShootingLocationSuggestions
			groups[g].SelectedSuggestionID = suggestions[rng.Intn(len(suggestions))].ID
		case 1:
			groups[g].SelectedSuggestionID = ""
		default:
			s := rng.Intn(len(groups[g].ShootingLocationSuggestions))
			groups[g].ShootingLocationSuggestions[s].CostBreakdown = &CostFields{
				DayRate:       f(float64(rng.Intn(3000) - 500)),
				PermitCost:    f(float64(rng.Intn(500) - 100)),
				DepositAmount: f(float64(rng.Intn(800) - 100)),
			}
		}

		rollup := ComputeCostRollup(groups)
		var sum float64
		for _, entry := range rollup.PerLocation {
			if entry.Total < 0 {
				t.Fatalf("step %d: negative total %v", step, entry.Total)
			}
			sum += entry.Total
		}
		if rollup.ArcTotal != sum {
			t.Fatalf("step %d: arcTotal=%v != sum=%v", step, rollup.ArcTotal, sum)
		}
	}
}

// Persisting a rollup and recomputing from the same groups after a JSON
// round trip must produce an identical rollup.
func TestComputeCostRollupDeterministicAcrossRoundTrip(t *testing.T) {
	groups := []LocationGroup{
		{
			ID:                   "warehouse",
			SelectedSuggestionID: "w2",
			CostEstimate:         &CostFields{PermitCost: f(75)},
			ShootingLocationSuggestions: []ShootingLocationSuggestion{
				{ID: "w1", EstimatedCost: f(300)},
				{ID: "w2", CostBreakdown: &CostFields{DayRate: f(450), DepositAmount: f(200)}},
			},
		},
		{
			ID: "diner",
			ShootingLocationSuggestions: []ShootingLocationSuggestion{
				{ID: "d1", CostBreakdown: &CostFields{DayRate: f(600), InsuranceRequired: b(true)}},
			},
		},
	}

	first := ComputeCostRollup(groups)

	raw, err := json.Marshal(groups)
	if err != nil {
		t.Fatalf("marshal groups: %v", err)
	}
	var reloaded []LocationGroup
	if err := json.Unmarshal(raw, &reloaded); err != nil {
		t.Fatalf("unmarshal groups: %v", err)
	}

	second := ComputeCostRollup(reloaded)

	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	if string(firstJSON) != string(secondJSON) {
		t.Fatalf("rollup not deterministic:\nfirst:  %s\nsecond: %s", firstJSON, secondJSON)
	}
	if first.ArcTotal != 725+600 {
		t.Fatalf("arcTotal: want=1325 got=%v", first.ArcTotal)
	}
}
