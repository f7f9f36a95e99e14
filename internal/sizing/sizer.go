// Package sizing converts a matured opportunity's breakout range into an
// entry order and, on acceptance, a trade with its precomputed
// take-profit/stop-loss ladder.
package sizing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/internal/venue"
)

// entryRetracement places the entry 61.8% of the way from the breakout
// minimum toward the maximum.
const entryRetracement = 0.618

// QuoteAsset is the balance drawn on for entries.
const QuoteAsset = "USD"

// Sizer sizes and submits entry orders against the venue.
type Sizer struct {
	venue    venue.Venue
	fraction float64
	logger   *logrus.Logger
}

// NewSizer builds a Sizer committing the given fraction of the free quote
// balance per entry.
func NewSizer(v venue.Venue, fraction float64, logger *logrus.Logger) *Sizer {
	return &Sizer{venue: v, fraction: fraction, logger: logger}
}

// Enter attempts to open a position for a matured opportunity. On success
// the opportunity's action becomes BUY, which is terminal: it will never
// produce another trade. On any failure the action is left at N/A so a
// future cycle may retry, and no trade is returned.
//
// An opportunity that is not matured (maximum <= minimum, or no range yet)
// is skipped without error.
func (s *Sizer) Enter(ctx context.Context, opp *model.Opportunity, pair venue.PairInfo) (*model.Trade, error) {
	if !opp.Open() || !opp.Matured() {
		return nil, nil
	}

	priceRange := opp.Maximum - opp.Minimum
	entry := round(opp.Minimum+entryRetracement*priceRange, pair.PricePrecision)
	if entry <= 0 {
		return nil, nil
	}

	balance, err := s.venue.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("sizing %s: balance: %w", opp.Asset, err)
	}
	free := balance.Free[QuoteAsset]
	qty := round(free*s.fraction/entry, pair.AmountPrecision)
	if qty <= 0 {
		s.logger.Warnf("[Sizer] %s: free %s %.2f too small for an entry at %.4f", opp.Asset, QuoteAsset, free, entry)
		return nil, nil
	}

	placed, err := s.venue.PlaceOrder(ctx, venue.OrderRequest{
		Asset:    opp.Asset,
		Side:     venue.SideBuy,
		Type:     venue.TypeLimit,
		Quantity: qty,
		Price:    entry,
	})
	if err != nil {
		// No order means no state change; the opportunity stays eligible.
		opp.Action = model.ActionNone
		return nil, fmt.Errorf("sizing %s: entry order: %w", opp.Asset, err)
	}

	opp.Action = model.ActionBuy
	trade := &model.Trade{
		Asset:       opp.Asset,
		OrderID:     placed.OrderID,
		Quantity:    qty,
		ProfitLevel: []float64{priceRange, priceRange * 1.618, priceRange * 2.618},
		StopLoss: []float64{
			(opp.Minimum + opp.SupportLine) / 2,
			opp.Minimum + priceRange*entryRetracement,
			priceRange,
		},
		TPOrderIDs: []string{},
		Entry:      0,
		Timestamp:  placed.CreateTime,
	}
	s.logger.Infof("[Sizer] %s: LIMIT BUY %v @ %v accepted, order %s", opp.Asset, qty, entry, placed.OrderID)
	return trade, nil
}

func round(v float64, precision int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(precision).Float64()
	return f
}
