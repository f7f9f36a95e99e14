package signal

import (
	"sort"

	"github.com/navid-fn/ladder/internal/model"
)

// MatchSupportLines pairs eligible same-type pivots into new opportunities
// and marks the consumed pivots supported, mutating the pivot slice in
// place. Matching is idempotent: pivots already referenced by an existing
// opportunity stay consumed, and an emitted opportunity is suppressed if one
// with the same (asset, start, support line) key is already known.
//
// A pair (i, j) of unsupported pivots of the same type is eligible when no
// unsupported pivot of that type lies strictly between them, the time gap is
// within maxTimeframe, and the relative price difference is within
// tolerance. Pivots are processed in ascending timestamp order; the time gap
// only grows with later candidates, so the scan for one i stops at the first
// gap violation.
func MatchSupportLines(pivots []model.PivotPoint, existing []model.Opportunity, tolerance float64, maxTimeframe int64) []model.Opportunity {
	if len(pivots) < 2 {
		return nil
	}

	known := make(map[opportunityKey]struct{}, len(existing))
	for _, o := range existing {
		known[opportunityKey{o.Asset, o.Start, o.SupportLine}] = struct{}{}
	}

	order := make([]int, len(pivots))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pivots[order[a]].Timestamp < pivots[order[b]].Timestamp
	})

	var out []model.Opportunity
	for _, target := range []model.PivotType{model.PivotLow, model.PivotHigh} {
		idx := make([]int, 0, len(order))
		for _, i := range order {
			if pivots[i].Type == target {
				idx = append(idx, i)
			}
		}

		for a := 0; a < len(idx); a++ {
			i := idx[a]
			if pivots[i].IsSupported {
				continue
			}
			if pivots[i].Price == 0 {
				continue
			}
			for b := a + 1; b < len(idx); b++ {
				j := idx[b]
				if pivots[j].IsSupported {
					// Already consumed; does not block a later pair.
					continue
				}
				if pivots[j].Timestamp-pivots[i].Timestamp > maxTimeframe {
					break
				}
				diff := pivots[j].Price - pivots[i].Price
				if diff < 0 {
					diff = -diff
				}
				if diff/pivots[i].Price > tolerance {
					// j is unsupported and now sits between i and any later
					// candidate, so i cannot pair past it.
					break
				}

				pivots[i].IsSupported = true
				pivots[j].IsSupported = true
				opp := model.Opportunity{
					Asset:       pivots[i].Asset,
					SupportLine: (pivots[i].Price + pivots[j].Price) / 2,
					Start:       pivots[j].Timestamp,
					End:         pivots[j].Timestamp + maxTimeframe,
					Action:      model.ActionNone,
				}
				key := opportunityKey{opp.Asset, opp.Start, opp.SupportLine}
				if _, ok := known[key]; !ok {
					known[key] = struct{}{}
					out = append(out, opp)
				}
				break
			}
		}
	}
	return out
}

type opportunityKey struct {
	asset       string
	start       int64
	supportLine float64
}
