package testfleet

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/stratowatch/internal/domain/atmosphere"
	"github.com/okian/stratowatch/internal/domain/model"
	"github.com/okian/stratowatch/internal/domain/scoring"
	"github.com/okian/stratowatch/internal/domain/types"
)

// Mismatch describes one difference between the service and the local
// computation.
type Mismatch struct {
	Where string
	Want  string
	Got   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: want %s, got %s", m.Where, m.Want, m.Got)
}

// VerifyFleet compares a service report for batch with local scoring.
// offset is the position of batch[0] in the generated fleet and only labels
// mismatches.
func VerifyFleet(scorer *scoring.Scorer, batch []model.TrackedObject, offset int, got types.FleetReport, tol float64) []Mismatch {
	outcomes := scorer.ScoreFleet(batch)
	want := types.NewFleetReport(outcomes, scoring.Summarize(outcomes))

	var out []Mismatch
	add := func(where, w, g string) {
		out = append(out, Mismatch{Where: where, Want: w, Got: g})
	}

	if len(got.Results) != len(want.Results) {
		add(fmt.Sprintf("batch@%d results", offset), fmt.Sprint(len(want.Results)), fmt.Sprint(len(got.Results)))
		return out
	}
	for i, w := range want.Results {
		g := got.Results[i]
		where := fmt.Sprintf("batch@%d result %s", offset, w.ID)
		switch {
		case g.ID != w.ID:
			add(where+" id", w.ID, g.ID)
		case g.Classification != w.Classification:
			add(where+" classification", string(w.Classification), string(g.Classification))
		case !within(g.DeviationPct, w.DeviationPct, tol):
			add(where+" deviation_pct", fmt.Sprintf("%.6f", w.DeviationPct), fmt.Sprintf("%.6f", g.DeviationPct))
		case !within(g.DivergenceKm, w.DivergenceKm, tol):
			add(where+" divergence_km", fmt.Sprintf("%.6f", w.DivergenceKm), fmt.Sprintf("%.6f", g.DivergenceKm))
		case fmt.Sprint(g.Flags) != fmt.Sprint(w.Flags):
			add(where+" flags", fmt.Sprint(w.Flags), fmt.Sprint(g.Flags))
		}
	}

	if len(got.Errors) != len(want.Errors) {
		add(fmt.Sprintf("batch@%d errors", offset), fmt.Sprint(len(want.Errors)), fmt.Sprint(len(got.Errors)))
		return out
	}
	for i, w := range want.Errors {
		if got.Errors[i].Index != w.Index {
			add(fmt.Sprintf("batch@%d error %d index", offset, i), fmt.Sprint(w.Index), fmt.Sprint(got.Errors[i].Index))
		}
	}

	if got.Health.Anomalous != want.Health.Anomalous || got.Health.Invalid != want.Health.Invalid {
		add(fmt.Sprintf("batch@%d health", offset),
			fmt.Sprintf("anomalous=%d invalid=%d", want.Health.Anomalous, want.Health.Invalid),
			fmt.Sprintf("anomalous=%d invalid=%d", got.Health.Anomalous, got.Health.Invalid))
	}
	return out
}

// VerifyProfile compares a service profile with the local profiler.
func VerifyProfile(profiler *atmosphere.Profiler, levels []model.SoundingLevel, got types.ProfileReport, tol float64) []Mismatch {
	want := profiler.BuildProfile(levels)

	var out []Mismatch
	if len(got.Levels) != len(want.Levels) {
		return append(out, Mismatch{Where: "profile levels", Want: fmt.Sprint(len(want.Levels)), Got: fmt.Sprint(len(got.Levels))})
	}
	for i, w := range want.Levels {
		g := got.Levels[i]
		if g.PressureHPa != w.PressureHPa || !within(g.DeviationC, w.DeviationC, tol) || g.Anomalous != w.Anomalous {
			out = append(out, Mismatch{
				Where: fmt.Sprintf("profile level %d", i),
				Want:  fmt.Sprintf("%.1f hPa dev %.3f", w.PressureHPa, w.DeviationC),
				Got:   fmt.Sprintf("%.1f hPa dev %.3f", g.PressureHPa, g.DeviationC),
			})
		}
	}
	if !within(got.MeanDeviationC, want.MeanDeviationC, tol) {
		out = append(out, Mismatch{Where: "profile mean", Want: fmt.Sprintf("%.3f", want.MeanDeviationC), Got: fmt.Sprintf("%.3f", got.MeanDeviationC)})
	}
	return out
}

// VerifyBoardOrder checks that entries are ranked by deviation descending,
// then ID ascending, with competition ranks.
func VerifyBoardOrder(entries []types.Entry) []Mismatch {
	var out []Mismatch
	ordered := sort.SliceIsSorted(entries, func(i, j int) bool {
		if entries[i].DeviationPct != entries[j].DeviationPct {
			return entries[i].DeviationPct > entries[j].DeviationPct
		}
		return entries[i].ID < entries[j].ID
	})
	if !ordered {
		out = append(out, Mismatch{Where: "board order", Want: "deviation desc, id asc", Got: "unordered"})
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		want := i + 1
		if cur.DeviationPct == prev.DeviationPct {
			want = prev.Rank
		}
		if cur.Rank != want {
			out = append(out, Mismatch{Where: "board rank " + cur.ID, Want: fmt.Sprint(want), Got: fmt.Sprint(cur.Rank)})
		}
	}
	return out
}

func within(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
