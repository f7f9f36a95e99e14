// Package venue abstracts the order-execution backend the engine trades
// against. The engine only ever sees the typed results defined here; wire
// formats stay inside the concrete clients.
//
// Two implementations exist:
//   - Client: signed HTTP client for the exchange REST API
//   - PaperVenue: in-memory venue for dry runs and tests
package venue

import "context"

// Side is the side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType selects execution style.
type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
)

// OrderStatus is the normalized lifecycle state of a broker order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// OrderRequest describes one order to place. Price is ignored for market
// orders.
type OrderRequest struct {
	Asset    string
	Side     Side
	Type     OrderType
	Quantity float64
	Price    float64
}

// PlacedOrder is the typed acknowledgement of an accepted order.
type PlacedOrder struct {
	OrderID    string
	Asset      string
	Side       Side
	Type       OrderType
	Quantity   float64
	Price      float64
	CreateTime int64
}

// Balance maps asset codes to free amounts.
type Balance struct {
	Free map[string]float64
}

// PairInfo carries the venue's rounding rules for one trading pair.
type PairInfo struct {
	PricePrecision  int32
	AmountPrecision int32
}

// ExchangeInfo is the venue's market catalogue.
type ExchangeInfo struct {
	Running bool
	Pairs   map[string]PairInfo
}

// Venue is the minimal surface the engine needs to execute. All calls may
// fail transiently; callers must treat a failed call as "no state change
// occurred" and leave retry/backoff to the implementation.
type Venue interface {
	Name() string
	GetBalance(ctx context.Context) (Balance, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (PlacedOrder, error)
	CancelOrder(ctx context.Context, orderID string) error
	QueryOrder(ctx context.Context, orderID string) (OrderStatus, error)
	GetExchangeInfo(ctx context.Context) (ExchangeInfo, error)
}
