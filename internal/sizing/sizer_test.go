package sizing

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/internal/venue"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func maturedOpportunity() model.Opportunity {
	return model.Opportunity{
		Asset:       "BTC",
		SupportLine: 100,
		Start:       1000,
		End:         3000,
		Minimum:     99,
		Maximum:     109,
		Action:      model.ActionNone,
	}
}

var testPair = venue.PairInfo{PricePrecision: 2, AmountPrecision: 3}

func approx(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestEnterPlacesLadderedTrade(t *testing.T) {
	paper := venue.NewPaperVenue(map[string]float64{QuoteAsset: 10_000})
	sizer := NewSizer(paper, 0.1, testLogger())
	opp := maturedOpportunity()

	trade, err := sizer.Enter(context.Background(), &opp, testPair)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if trade == nil {
		t.Fatal("Expected a trade")
	}

	if opp.Action != model.ActionBuy {
		t.Errorf("Expected action %q, got %q", model.ActionBuy, opp.Action)
	}

	placed := paper.Placed()
	if len(placed) != 1 {
		t.Fatalf("Expected 1 order placed, got %d", len(placed))
	}
	order := placed[0]
	if order.Side != venue.SideBuy || order.Type != venue.TypeLimit {
		t.Errorf("Expected a LIMIT BUY, got %s %s", order.Type, order.Side)
	}
	// entry = 99 + 0.618 * 10 rounded to 2 decimals
	if !approx(order.Price, 105.18, 1e-9) {
		t.Errorf("Expected entry price 105.18, got %v", order.Price)
	}
	// qty = 10000 * 0.1 / 105.18 rounded to 3 decimals
	if !approx(order.Quantity, 9.508, 1e-3) {
		t.Errorf("Expected quantity around 9.508, got %v", order.Quantity)
	}

	if trade.OrderID != order.OrderID {
		t.Errorf("Expected trade keyed by the entry order id")
	}
	if trade.Entry != 0 {
		t.Errorf("Expected entry flag 0, got %d", trade.Entry)
	}
	if len(trade.TPOrderIDs) != 0 {
		t.Errorf("Expected no TP orders yet, got %v", trade.TPOrderIDs)
	}

	wantProfit := []float64{10, 16.18, 26.18}
	for i, want := range wantProfit {
		if !approx(trade.ProfitLevel[i], want, 1e-9) {
			t.Errorf("ProfitLevel[%d]: expected %v, got %v", i, want, trade.ProfitLevel[i])
		}
	}
	wantStop := []float64{99.5, 105.18, 10}
	for i, want := range wantStop {
		if !approx(trade.StopLoss[i], want, 1e-9) {
			t.Errorf("StopLoss[%d]: expected %v, got %v", i, want, trade.StopLoss[i])
		}
	}
}

func TestEnterSkipsUnmaturedOpportunity(t *testing.T) {
	paper := venue.NewPaperVenue(map[string]float64{QuoteAsset: 10_000})
	sizer := NewSizer(paper, 0.1, testLogger())
	opp := maturedOpportunity()
	opp.Maximum = 0 // range incomplete

	trade, err := sizer.Enter(context.Background(), &opp, testPair)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if trade != nil {
		t.Error("Expected no trade for an unmatured opportunity")
	}
	if len(paper.Placed()) != 0 {
		t.Error("Expected no orders placed")
	}
}

func TestEnterSkipsActionedOpportunity(t *testing.T) {
	paper := venue.NewPaperVenue(map[string]float64{QuoteAsset: 10_000})
	sizer := NewSizer(paper, 0.1, testLogger())
	opp := maturedOpportunity()
	opp.Action = model.ActionBuy

	trade, err := sizer.Enter(context.Background(), &opp, testPair)
	if err != nil || trade != nil {
		t.Errorf("Expected a no-op, got trade=%v err=%v", trade, err)
	}
}

func TestEnterFailureResetsAction(t *testing.T) {
	paper := venue.NewPaperVenue(map[string]float64{QuoteAsset: 10_000})
	paper.FailNextPlacements(1)
	sizer := NewSizer(paper, 0.1, testLogger())
	opp := maturedOpportunity()

	trade, err := sizer.Enter(context.Background(), &opp, testPair)
	if err == nil {
		t.Fatal("Expected an error from the failed placement")
	}
	if trade != nil {
		t.Error("Expected no trade on failure")
	}
	if opp.Action != model.ActionNone {
		t.Errorf("Expected action reset to %q, got %q", model.ActionNone, opp.Action)
	}
}

func TestEnterInsufficientBalance(t *testing.T) {
	paper := venue.NewPaperVenue(map[string]float64{QuoteAsset: 0})
	sizer := NewSizer(paper, 0.1, testLogger())
	opp := maturedOpportunity()

	trade, err := sizer.Enter(context.Background(), &opp, testPair)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if trade != nil {
		t.Error("Expected no trade with an empty balance")
	}
	if !opp.Open() {
		t.Error("Expected opportunity to stay open for a later retry")
	}
}
