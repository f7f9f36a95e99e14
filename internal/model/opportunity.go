package model

// Action marks what the sizer did with an opportunity. An opportunity is
// open while the action is still ActionNone and becomes immutable once an
// order has been placed for it.
type Action string

const (
	ActionNone Action = "N/A"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Opportunity is a candidate trade setup anchored to a support/resistance
// line built from two same-type pivots. The extrema tracker fills in
// Minimum/Maximum once price action produces a qualifying breakout range.
// Unique per (asset, start, support_line).
type Opportunity struct {
	Asset            string  `gorm:"column:asset;primaryKey" json:"asset"`
	Start            int64   `gorm:"column:start_time;primaryKey" json:"start"`
	SupportLine      float64 `gorm:"column:support_line;primaryKey;type:Float64" json:"support_line"`
	Minimum          float64 `gorm:"column:minimum;type:Float64" json:"minimum"`
	Maximum          float64 `gorm:"column:maximum;type:Float64" json:"maximum"`
	RelativePivot    float64 `gorm:"column:relative_pivot;type:Float64" json:"relative_pivot"`
	Action           Action  `gorm:"column:action;type:String" json:"action"`
	End              int64   `gorm:"column:end_time" json:"end"`
	ExtremaTimestamp int64   `gorm:"column:extrema_timestamp" json:"extrema_timestamp"`
	UpdatedAt        int64   `gorm:"column:updated_at" json:"-"`
}

func (Opportunity) TableName() string {
	return "opportunities"
}

func (Opportunity) TableOptions() string {
	return "ENGINE = ReplacingMergeTree(updated_at) ORDER BY (asset, start_time, support_line)"
}

// Open reports whether the opportunity is still tracked by the signal
// pipeline.
func (o *Opportunity) Open() bool {
	return o.Action == ActionNone
}

// Matured reports whether the breakout range is complete and valid, i.e.
// the opportunity is eligible for sizing.
func (o *Opportunity) Matured() bool {
	return o.Minimum > 0 && o.Maximum > o.Minimum
}
