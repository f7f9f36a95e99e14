package model

// LadderSize is the number of take-profit/stop-loss rungs every trade
// carries for its whole lifetime. Consumed rungs are zeroed in place, never
// removed, so index i always refers to rung i of the original ladder and
// stays aligned with TPOrderIDs[i].
const LadderSize = 3

// Trade is an entered position managed rung by rung until fully closed.
// Persisted keyed by OrderID (the entry order).
//
// Entry is 0 until the three take-profit orders have been placed, then 1.
// TPOrderIDs holds at most LadderSize broker order ids; an empty string
// marks a leg whose placement failed and is simply never queried.
type Trade struct {
	Asset       string    `gorm:"column:asset" json:"asset"`
	OrderID     string    `gorm:"column:order_id;primaryKey" json:"order_id"`
	Quantity    float64   `gorm:"column:quantity;type:Float64" json:"quantity"`
	StopLoss    []float64 `gorm:"column:stop_loss;type:String;serializer:json" json:"stop_loss"`
	ProfitLevel []float64 `gorm:"column:profit_level;type:String;serializer:json" json:"profit_level"`
	TPOrderIDs  []string  `gorm:"column:tp_order_ids;type:String;serializer:json" json:"tp_order_ids"`
	Entry       int       `gorm:"column:entry" json:"entry"`
	Timestamp   int64     `gorm:"column:timestamp" json:"timestamp"`
	UpdatedAt   int64     `gorm:"column:updated_at" json:"-"`
}

func (Trade) TableName() string {
	return "trades"
}

func (Trade) TableOptions() string {
	return "ENGINE = ReplacingMergeTree(updated_at) ORDER BY (order_id)"
}

// Remaining counts the rungs not yet consumed.
func (t *Trade) Remaining() int {
	n := 0
	for _, p := range t.ProfitLevel {
		if p != 0 {
			n++
		}
	}
	return n
}

// Closed reports whether every rung has been consumed. Closed trades are
// kept in storage for audit but excluded from active processing.
func (t *Trade) Closed() bool {
	return t.Entry == 1 && t.Remaining() == 0
}

// ActiveStop returns the stop price guarding the next unconsumed rung from
// the end of the ladder: with all rungs live that is StopLoss[0], after one
// fill StopLoss[1], and so on.
func (t *Trade) ActiveStop() (float64, bool) {
	idx := LadderSize - t.Remaining()
	if idx < 0 || idx >= len(t.StopLoss) {
		return 0, false
	}
	return t.StopLoss[idx], true
}

// RemainFraction maps the number of live rungs to the share of the original
// quantity still held: 3→100%, 2→50%, 1→25%, 0→0%.
func RemainFraction(remaining int) float64 {
	switch remaining {
	case 3:
		return 1.00
	case 2:
		return 0.50
	case 1:
		return 0.25
	default:
		return 0.00
	}
}
