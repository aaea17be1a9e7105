package pricing

import (
	"errors"
	"math"

	"tezbuild/internal"
)

// LumberInput carries everything a supplier rule needs to build a lumber
// cost schedule. PackSize 0 means the bundle size could not be resolved;
// such items get a single-unit tier at the largest possible surcharge and
// never a volume break.
type LumberInput struct {
	BasePrice   float64
	BoardFeet   float64
	Length      float64
	FingerJoint bool
	PackSize    int
}

type SheetInput struct {
	BasePrice  float64
	SquareFeet float64
	PackSize   int
	// PiecePrice is the per-piece price column some suppliers quote for
	// panels sold individually; nil when absent or unparsable.
	PiecePrice *float64
}

var (
	ErrNoSheetRule     = errors.New("supplier has no sheet good pricing rule")
	ErrNoPackOrPiece   = errors.New("missing packSize and pcPrice")
	ErrUnknownSupplier = errors.New("no pricing rule for supplier")
)

// Strategy computes the per-unit cost tiers for one supplier. Tiers come
// back ordered ascending by MinQty with the single-unit tier first;
// downstream consumers rely on that ordering.
type Strategy interface {
	LumberCosts(in LumberInput) ([]internal.PriceTier, error)
	SheetCosts(in SheetInput) ([]internal.PriceTier, error)
	// Markup is the multiplier from cost to sell price. 1 means the
	// supplier's items are sold at cost.
	Markup() float64
}

// Registry maps supplier id to its pricing strategy. Adding a supplier is a
// registry entry, not a normalizer change.
type Registry map[string]Strategy

func DefaultRegistry() Registry {
	return Registry{
		internal.SupplierRRT:   rrt{},
		internal.SupplierBXYL:  bxyl{},
		internal.SupplierGSPSK: gspsk{},
	}
}

func (r Registry) ForSupplier(id string) (Strategy, error) {
	s, ok := r[id]
	if !ok {
		return nil, ErrUnknownSupplier
	}
	return s, nil
}

// Schedule pairs the cost tiers with the derived sell-price tiers.
type Schedule struct {
	Costs  []internal.PriceTier
	Prices []internal.PriceTier
}

// Lumber computes the full cost/price schedule for a lumber item under the
// given supplier's rule, with every amount rounded to 5 decimal places.
func (r Registry) Lumber(supplierID string, in LumberInput) (Schedule, error) {
	s, err := r.ForSupplier(supplierID)
	if err != nil {
		return Schedule{}, err
	}
	costs, err := s.LumberCosts(in)
	if err != nil {
		return Schedule{}, err
	}
	return buildSchedule(costs, s.Markup()), nil
}

func (r Registry) Sheet(supplierID string, in SheetInput) (Schedule, error) {
	s, err := r.ForSupplier(supplierID)
	if err != nil {
		return Schedule{}, err
	}
	costs, err := s.SheetCosts(in)
	if err != nil {
		return Schedule{}, err
	}
	return buildSchedule(costs, s.Markup()), nil
}

func buildSchedule(costs []internal.PriceTier, markup float64) Schedule {
	out := Schedule{
		Costs:  make([]internal.PriceTier, 0, len(costs)),
		Prices: make([]internal.PriceTier, 0, len(costs)),
	}
	for _, tier := range costs {
		cost := round5(tier.Amount)
		out.Costs = append(out.Costs, internal.PriceTier{Amount: cost, MinQty: tier.MinQty})
		out.Prices = append(out.Prices, internal.PriceTier{Amount: round5(cost * markup), MinQty: tier.MinQty})
	}
	return out
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

func halfPack(packSize int) int {
	return int(math.Ceil(float64(packSize) / 2))
}

// rrt quotes lumber in $/BDFT with stacked multiplicative adders. Its
// computed costs are also its sell prices.
type rrt struct{}

func (rrt) Markup() float64 { return 1 }

func (rrt) LumberCosts(in LumberInput) ([]internal.PriceTier, error) {
	unit := in.BasePrice * in.BoardFeet
	if in.PackSize <= 0 {
		// Unknown pack size: largest adder forever, no break.
		return []internal.PriceTier{
			{Amount: unit * 1.25 * 1.1 * 1.15, MinQty: 1},
		}, nil
	}
	return []internal.PriceTier{
		{Amount: unit * 1.25 * 1.1 * 1.15, MinQty: 1},
		{Amount: unit * 1.25 * 1.1, MinQty: halfPack(in.PackSize)},
		{Amount: unit * 1.25, MinQty: in.PackSize},
	}, nil
}

func (rrt) SheetCosts(SheetInput) ([]internal.PriceTier, error) {
	return nil, ErrNoSheetRule
}

// bxyl quotes in $/1000 BDFT (lumber) and $/1000 sq ft (sheet goods) with
// flat adders per tier.
type bxyl struct{}

func (bxyl) Markup() float64 { return 1.1 }

func (bxyl) LumberCosts(in LumberInput) ([]internal.PriceTier, error) {
	unit := in.BasePrice * in.BoardFeet
	if in.PackSize <= 0 {
		return []internal.PriceTier{
			{Amount: (unit + 150) / 1000, MinQty: 1},
		}, nil
	}
	firstAdder := 150.0
	if in.FingerJoint && in.Length > 240 {
		// Finger-jointed long stock carries a reduced single-unit adder.
		firstAdder = 100
	}
	return []internal.PriceTier{
		{Amount: (unit + firstAdder) / 1000, MinQty: 1},
		{Amount: (unit + 75) / 1000, MinQty: halfPack(in.PackSize)},
		{Amount: unit / 1000, MinQty: in.PackSize},
	}, nil
}

func (bxyl) SheetCosts(in SheetInput) ([]internal.PriceTier, error) {
	if in.PackSize <= 0 {
		if in.PiecePrice == nil {
			return nil, ErrNoPackOrPiece
		}
		return []internal.PriceTier{
			{Amount: *in.PiecePrice * in.SquareFeet / 1000, MinQty: 1},
		}, nil
	}
	if in.PiecePrice == nil {
		// Some panels are only sold by the pack.
		return []internal.PriceTier{
			{Amount: in.BasePrice * in.SquareFeet / 1000, MinQty: in.PackSize},
		}, nil
	}
	return []internal.PriceTier{
		{Amount: *in.PiecePrice * in.SquareFeet / 1000, MinQty: 1},
		{Amount: in.BasePrice * in.SquareFeet / 1000, MinQty: in.PackSize},
	}, nil
}

// gspsk covers Great Southern / Panasofkee. Adders are placeholders until
// the mill confirms its real break schedule.
type gspsk struct{}

func (gspsk) Markup() float64 { return 1.1 }

func (gspsk) LumberCosts(in LumberInput) ([]internal.PriceTier, error) {
	unit := in.BasePrice * in.BoardFeet
	if in.PackSize <= 0 {
		return []internal.PriceTier{
			{Amount: (unit + 150) / 1000, MinQty: 1},
		}, nil
	}
	return []internal.PriceTier{
		{Amount: (unit + 150) / 1000, MinQty: 1},
		{Amount: (unit + 75) / 1000, MinQty: halfPack(in.PackSize)},
		{Amount: unit / 1000, MinQty: in.PackSize},
	}, nil
}

func (gspsk) SheetCosts(in SheetInput) ([]internal.PriceTier, error) {
	unit := in.BasePrice * in.SquareFeet
	if in.PackSize <= 0 {
		return []internal.PriceTier{
			{Amount: (unit + 250) / 1000, MinQty: 1},
		}, nil
	}
	return []internal.PriceTier{
		{Amount: (unit + 250) / 1000, MinQty: 1},
		{Amount: unit / 1000, MinQty: in.PackSize},
	}, nil
}
