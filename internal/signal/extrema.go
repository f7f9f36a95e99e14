package signal

import (
	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/internal/trend"
)

// TrackExtrema extends each open opportunity's validity window and fills in
// its breakout extrema, mutating the opportunity slice in place. Pivots must
// be sorted by ascending timestamp.
//
// In a bullish regime a low pivot inside the window that undercuts the
// support line by breakthroughPct becomes the candidate minimum; recording
// one extends the window end by timeExtension and advances the extrema
// timestamp, and the nearest preceding high pivot becomes the relative
// pivot. Once a minimum exists, the first high pivot inside the window whose
// price exceeds the relative pivot fixes the maximum and the range is
// complete. The bearish branch is the structural mirror with the high/low
// and minimum/maximum roles swapped.
//
// An opportunity whose window lapses without a qualifying range simply stays
// open and stale; expiry is the caller's retention policy.
func TrackExtrema(pivots []model.PivotPoint, opps []model.Opportunity, tr trend.Trend, breakthroughPct float64, timeExtension int64) {
	if tr != trend.Bullish && tr != trend.Bearish {
		return
	}
	for k := range opps {
		opp := &opps[k]
		if !opp.Open() || rangeComplete(opp, tr) {
			continue
		}
		from := opp.Start
		if opp.ExtremaTimestamp > from {
			from = opp.ExtremaTimestamp
		}
		for i := range pivots {
			p := &pivots[i]
			if p.Timestamp < from || p.Timestamp > opp.End {
				continue
			}
			if tr == trend.Bullish {
				if done := stepBullish(pivots, i, opp, breakthroughPct, timeExtension); done {
					break
				}
			} else {
				if done := stepBearish(pivots, i, opp, breakthroughPct, timeExtension); done {
					break
				}
			}
		}
	}
}

func rangeComplete(opp *model.Opportunity, tr trend.Trend) bool {
	if tr == trend.Bullish {
		return opp.Maximum != 0
	}
	return opp.Minimum != 0 && opp.Maximum != 0
}

// stepBullish advances one opportunity over pivot i; it reports true once
// the range is fixed and the scan can stop.
func stepBullish(pivots []model.PivotPoint, i int, opp *model.Opportunity, breakthroughPct float64, timeExtension int64) bool {
	p := &pivots[i]
	switch p.Type {
	case model.PivotLow:
		if p.Price < opp.SupportLine*(1-breakthroughPct) {
			opp.Minimum = p.Price
			opp.RelativePivot = precedingPrice(pivots, i, model.PivotHigh)
			opp.End += timeExtension
			opp.ExtremaTimestamp = p.Timestamp
		}
	case model.PivotHigh:
		if opp.Minimum != 0 && opp.RelativePivot > 0 && p.Price > opp.RelativePivot {
			opp.Maximum = p.Price
			opp.ExtremaTimestamp = p.Timestamp
			return true
		}
	}
	return false
}

func stepBearish(pivots []model.PivotPoint, i int, opp *model.Opportunity, breakthroughPct float64, timeExtension int64) bool {
	p := &pivots[i]
	switch p.Type {
	case model.PivotHigh:
		if p.Price > opp.SupportLine*(1+breakthroughPct) {
			opp.Maximum = p.Price
			opp.RelativePivot = precedingPrice(pivots, i, model.PivotLow)
			opp.End += timeExtension
			opp.ExtremaTimestamp = p.Timestamp
		}
	case model.PivotLow:
		if opp.Maximum != 0 && opp.RelativePivot > 0 && p.Price < opp.RelativePivot {
			opp.Minimum = p.Price
			opp.ExtremaTimestamp = p.Timestamp
			return true
		}
	}
	return false
}

// precedingPrice returns the price of the nearest pivot of the wanted type
// strictly before index i, or 0 when there is none.
func precedingPrice(pivots []model.PivotPoint, i int, typ model.PivotType) float64 {
	for j := i - 1; j >= 0; j-- {
		if pivots[j].Type == typ {
			return pivots[j].Price
		}
	}
	return 0
}
