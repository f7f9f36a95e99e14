package signal

import (
	"testing"

	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/internal/trend"
)

func highPivot(ts int64, price float64) model.PivotPoint {
	return model.PivotPoint{Asset: "BTC", Timestamp: ts, Type: model.PivotHigh, Price: price}
}

func openOpportunity(support float64, start, end int64) model.Opportunity {
	return model.Opportunity{
		Asset:       "BTC",
		SupportLine: support,
		Start:       start,
		End:         end,
		Action:      model.ActionNone,
	}
}

func TestTrackExtremaBullishRange(t *testing.T) {
	pivots := []model.PivotPoint{
		highPivot(900, 105),  // preceding high, becomes the relative pivot
		lowPivot(1200, 99.5), // undercuts 100*(1-0.002)
		highPivot(1500, 106), // exceeds the relative pivot
	}
	opps := []model.Opportunity{openOpportunity(100, 1000, 3000)}

	TrackExtrema(pivots, opps, trend.Bullish, 0.002, 500)

	opp := opps[0]
	if opp.Minimum != 99.5 {
		t.Errorf("Expected minimum 99.5, got %v", opp.Minimum)
	}
	if opp.RelativePivot != 105 {
		t.Errorf("Expected relative pivot 105, got %v", opp.RelativePivot)
	}
	if opp.Maximum != 106 {
		t.Errorf("Expected maximum 106, got %v", opp.Maximum)
	}
	if opp.End != 3500 {
		t.Errorf("Expected end extended to 3500, got %d", opp.End)
	}
	if opp.ExtremaTimestamp != 1500 {
		t.Errorf("Expected extrema timestamp 1500, got %d", opp.ExtremaTimestamp)
	}
	if !opp.Matured() {
		t.Error("Expected a completed range to be matured")
	}
}

func TestTrackExtremaDeeperMinimumUpdates(t *testing.T) {
	pivots := []model.PivotPoint{
		highPivot(900, 105),
		lowPivot(1200, 99.5),
		lowPivot(1400, 99.0), // deeper, replaces the minimum
		highPivot(1500, 106),
	}
	opps := []model.Opportunity{openOpportunity(100, 1000, 3000)}

	TrackExtrema(pivots, opps, trend.Bullish, 0.002, 500)

	opp := opps[0]
	if opp.Minimum != 99.0 {
		t.Errorf("Expected minimum 99.0, got %v", opp.Minimum)
	}
	if opp.Maximum != 106 {
		t.Errorf("Expected maximum 106, got %v", opp.Maximum)
	}
	if opp.End != 4000 {
		t.Errorf("Expected end extended twice to 4000, got %d", opp.End)
	}
}

func TestTrackExtremaNoBreakthrough(t *testing.T) {
	pivots := []model.PivotPoint{
		highPivot(900, 105),
		lowPivot(1200, 99.9), // above the breakthrough threshold 99.8
	}
	opps := []model.Opportunity{openOpportunity(100, 1000, 3000)}

	TrackExtrema(pivots, opps, trend.Bullish, 0.002, 500)

	opp := opps[0]
	if opp.Minimum != 0 || opp.Maximum != 0 {
		t.Errorf("Expected untouched extrema, got %+v", opp)
	}
	if opp.End != 3000 {
		t.Errorf("Expected end unchanged, got %d", opp.End)
	}
}

func TestTrackExtremaMaximumNeedsHigherHigh(t *testing.T) {
	pivots := []model.PivotPoint{
		highPivot(900, 105),
		lowPivot(1200, 99.5),
		highPivot(1500, 104), // below the relative pivot, not a maximum
	}
	opps := []model.Opportunity{openOpportunity(100, 1000, 3000)}

	TrackExtrema(pivots, opps, trend.Bullish, 0.002, 500)

	if opps[0].Maximum != 0 {
		t.Errorf("Expected no maximum, got %v", opps[0].Maximum)
	}
	if opps[0].Matured() {
		t.Error("Expected an incomplete range to not be matured")
	}
}

func TestTrackExtremaVolatileIsNoop(t *testing.T) {
	pivots := []model.PivotPoint{
		highPivot(900, 105),
		lowPivot(1200, 99.5),
	}
	opps := []model.Opportunity{openOpportunity(100, 1000, 3000)}

	TrackExtrema(pivots, opps, trend.Volatile, 0.002, 500)

	if opps[0].Minimum != 0 || opps[0].End != 3000 {
		t.Errorf("Expected no mutation in a volatile regime, got %+v", opps[0])
	}
}

func TestTrackExtremaSkipsActionedOpportunities(t *testing.T) {
	pivots := []model.PivotPoint{
		highPivot(900, 105),
		lowPivot(1200, 99.5),
	}
	opp := openOpportunity(100, 1000, 3000)
	opp.Action = model.ActionBuy
	opps := []model.Opportunity{opp}

	TrackExtrema(pivots, opps, trend.Bullish, 0.002, 500)

	if opps[0].Minimum != 0 {
		t.Errorf("Expected actioned opportunity untouched, got %+v", opps[0])
	}
}

func TestTrackExtremaBearishMirror(t *testing.T) {
	pivots := []model.PivotPoint{
		lowPivot(900, 95),     // preceding low, becomes the relative pivot
		highPivot(1200, 100.5), // clears 100*(1+0.002)
		lowPivot(1500, 94),    // undercuts the relative pivot
	}
	opps := []model.Opportunity{openOpportunity(100, 1000, 3000)}

	TrackExtrema(pivots, opps, trend.Bearish, 0.002, 500)

	opp := opps[0]
	if opp.Maximum != 100.5 {
		t.Errorf("Expected maximum 100.5, got %v", opp.Maximum)
	}
	if opp.RelativePivot != 95 {
		t.Errorf("Expected relative pivot 95, got %v", opp.RelativePivot)
	}
	if opp.Minimum != 94 {
		t.Errorf("Expected minimum 94, got %v", opp.Minimum)
	}
	if opp.End != 3500 {
		t.Errorf("Expected end extended to 3500, got %d", opp.End)
	}
}
