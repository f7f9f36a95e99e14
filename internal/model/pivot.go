package model

// PivotType distinguishes local highs from local lows.
type PivotType string

const (
	PivotHigh PivotType = "high"
	PivotLow  PivotType = "low"
)

// PivotPoint is a confirmed local price extremum. A pivot is unique per
// (asset, timestamp, type) and is never deleted; IsSupported flips to true
// once the matcher consumes it into an opportunity.
type PivotPoint struct {
	Asset       string    `gorm:"column:asset;primaryKey" json:"asset"`
	Timestamp   int64     `gorm:"column:timestamp;primaryKey" json:"timestamp"`
	Type        PivotType `gorm:"column:pivot_type;primaryKey;type:String" json:"type"`
	Price       float64   `gorm:"column:price;type:Float64" json:"price"`
	Position    int       `gorm:"column:position" json:"position"`
	IsSupported bool      `gorm:"column:is_supported" json:"is_supported"`
	UpdatedAt   int64     `gorm:"column:updated_at" json:"-"`
}

func (PivotPoint) TableName() string {
	return "pivots"
}

func (PivotPoint) TableOptions() string {
	return "ENGINE = ReplacingMergeTree(updated_at) ORDER BY (asset, timestamp, pivot_type)"
}
