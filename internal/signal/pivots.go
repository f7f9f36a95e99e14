// Package signal holds the pure analytical stages of the engine: pivot
// detection, support/resistance matching, and opportunity extrema tracking.
// Every function here is deterministic over its inputs and has no side
// effects beyond the slices it is handed; persistence and broker calls
// belong to the caller.
package signal

import (
	"fmt"
	"sort"

	"github.com/navid-fn/ladder/internal/model"
)

// PivotResult classifies what a detector pass found, for the caller's
// branching.
type PivotResult string

const (
	FoundNone PivotResult = "none"
	FoundHigh PivotResult = "high"
	FoundLow  PivotResult = "low"
	FoundBoth PivotResult = "both"
)

// UpdatePivots scans an ordered bar window (newest last) and appends newly
// confirmed pivots to the pivot list, keeping it sorted by timestamp.
//
// A bar at index i is a pivot low iff its low is <= every neighbour's low in
// [i-window, i+window], and a pivot high iff its high is >= every
// neighbour's high in the same range; a bar may be both. Edge bars without a
// full neighbourhood on both sides are not evaluated. Only candidates at or
// after (latest stored pivot timestamp - 2 bar intervals) are scanned, which
// bounds recomputation while still tolerating late-arriving bars.
//
// Undersized input is a no-op reporting FoundNone. A malformed bar fails
// with a data-shape error and nothing is appended.
func UpdatePivots(bars []model.Bar, pivots *[]model.PivotPoint, window int, barInterval int64) (PivotResult, error) {
	if window <= 0 {
		return FoundNone, fmt.Errorf("pivot window must be positive, got %d", window)
	}
	if len(bars) < 2*window+1 {
		return FoundNone, nil
	}
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return FoundNone, err
		}
	}

	var cutoff int64
	seen := make(map[pivotKey]struct{}, len(*pivots))
	for _, p := range *pivots {
		if p.Timestamp > cutoff {
			cutoff = p.Timestamp
		}
		seen[pivotKey{p.Timestamp, p.Type}] = struct{}{}
	}
	if cutoff > 0 {
		cutoff -= 2 * barInterval
	}

	foundHigh, foundLow := false, false
	for i := window; i < len(bars)-window; i++ {
		bar := bars[i]
		if bar.Timestamp < cutoff {
			continue
		}
		isHigh, isLow := true, true
		for j := i - window; j <= i+window; j++ {
			if bars[j].High > bar.High {
				isHigh = false
			}
			if bars[j].Low < bar.Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			if appendPivot(pivots, seen, bar.Asset, bar.Timestamp, bar.High, i, model.PivotHigh) {
				foundHigh = true
			}
		}
		if isLow {
			if appendPivot(pivots, seen, bar.Asset, bar.Timestamp, bar.Low, i, model.PivotLow) {
				foundLow = true
			}
		}
	}

	sort.SliceStable(*pivots, func(a, b int) bool {
		return (*pivots)[a].Timestamp < (*pivots)[b].Timestamp
	})

	switch {
	case foundHigh && foundLow:
		return FoundBoth, nil
	case foundHigh:
		return FoundHigh, nil
	case foundLow:
		return FoundLow, nil
	default:
		return FoundNone, nil
	}
}

type pivotKey struct {
	ts  int64
	typ model.PivotType
}

func appendPivot(pivots *[]model.PivotPoint, seen map[pivotKey]struct{}, asset string, ts int64, price float64, pos int, typ model.PivotType) bool {
	key := pivotKey{ts, typ}
	if _, ok := seen[key]; ok {
		return false
	}
	seen[key] = struct{}{}
	*pivots = append(*pivots, model.PivotPoint{
		Asset:     asset,
		Timestamp: ts,
		Type:      typ,
		Price:     price,
		Position:  pos,
	})
	return true
}
