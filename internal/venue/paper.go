package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperVenue simulates execution in memory. Orders are accepted immediately
// and stay PENDING until a test (or dry-run harness) marks them filled. It
// never touches the network.
type PaperVenue struct {
	mu         sync.Mutex
	free       map[string]float64
	pairs      map[string]PairInfo
	orders     map[string]*paperOrder
	placedLog  []PlacedOrder
	cancelled  []string
	failPlaces int
}

type paperOrder struct {
	req    OrderRequest
	status OrderStatus
}

func NewPaperVenue(free map[string]float64) *PaperVenue {
	if free == nil {
		free = map[string]float64{}
	}
	return &PaperVenue{
		free:   free,
		pairs:  map[string]PairInfo{},
		orders: map[string]*paperOrder{},
	}
}

func (p *PaperVenue) Name() string { return "paper" }

func (p *PaperVenue) GetBalance(ctx context.Context) (Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := make(map[string]float64, len(p.free))
	for k, v := range p.free {
		free[k] = v
	}
	return Balance{Free: free}, nil
}

func (p *PaperVenue) PlaceOrder(ctx context.Context, req OrderRequest) (PlacedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPlaces > 0 {
		p.failPlaces--
		return PlacedOrder{}, fmt.Errorf("paper venue: simulated placement failure")
	}
	if req.Quantity <= 0 {
		return PlacedOrder{}, fmt.Errorf("paper venue: quantity must be positive")
	}
	placed := PlacedOrder{
		OrderID:    uuid.New().String(),
		Asset:      req.Asset,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Price:      req.Price,
		CreateTime: time.Now().UnixMilli(),
	}
	status := StatusPending
	if req.Type == TypeMarket {
		status = StatusFilled
	}
	p.orders[placed.OrderID] = &paperOrder{req: req, status: status}
	p.placedLog = append(p.placedLog, placed)
	return placed, nil
}

func (p *PaperVenue) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("paper venue: unknown order %s", orderID)
	}
	if o.status == StatusPending {
		o.status = StatusCancelled
	}
	p.cancelled = append(p.cancelled, orderID)
	return nil
}

func (p *PaperVenue) QueryOrder(ctx context.Context, orderID string) (OrderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return "", fmt.Errorf("paper venue: unknown order %s", orderID)
	}
	return o.status, nil
}

func (p *PaperVenue) GetExchangeInfo(ctx context.Context) (ExchangeInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pairs := make(map[string]PairInfo, len(p.pairs))
	for k, v := range p.pairs {
		pairs[k] = v
	}
	return ExchangeInfo{Running: true, Pairs: pairs}, nil
}

// SetPair registers precision rules for an asset.
func (p *PaperVenue) SetPair(asset string, info PairInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs[asset] = info
}

// MarkFilled transitions a pending order to FILLED.
func (p *PaperVenue) MarkFilled(orderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.orders[orderID]; ok {
		o.status = StatusFilled
	}
}

// FailNextPlacements makes the next n PlaceOrder calls fail, for exercising
// partial-ladder paths.
func (p *PaperVenue) FailNextPlacements(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPlaces = n
}

// Placed returns every accepted order in placement order.
func (p *PaperVenue) Placed() []PlacedOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlacedOrder, len(p.placedLog))
	copy(out, p.placedLog)
	return out
}

// Cancelled returns the ids passed to CancelOrder.
func (p *PaperVenue) Cancelled() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.cancelled))
	copy(out, p.cancelled)
	return out
}
