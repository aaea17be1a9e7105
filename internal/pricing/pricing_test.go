package pricing

import (
	"errors"
	"math"
	"testing"

	"tezbuild/internal"
)

func fp(v float64) *float64 { return &v }

func TestRRTLumberSchedule(t *testing.T) {
	reg := DefaultRegistry()
	in := LumberInput{BasePrice: 0.50, BoardFeet: 2 * 4 * 96.0 / 144, PackSize: 208}

	sched, err := reg.Lumber(internal.SupplierRRT, in)
	if err != nil {
		t.Fatal(err)
	}
	if len(sched.Costs) != 3 {
		t.Fatalf("tiers = %d, want 3", len(sched.Costs))
	}

	unit := in.BasePrice * in.BoardFeet
	want := []internal.PriceTier{
		{Amount: round5(unit * 1.25 * 1.1 * 1.15), MinQty: 1},
		{Amount: round5(unit * 1.25 * 1.1), MinQty: 104},
		{Amount: round5(unit * 1.25), MinQty: 208},
	}
	for i, tier := range sched.Costs {
		if tier != want[i] {
			t.Fatalf("tier %d = %+v, want %+v", i, tier, want[i])
		}
	}

	// RRT sells at cost.
	for i := range sched.Costs {
		if sched.Prices[i] != sched.Costs[i] {
			t.Fatalf("price tier %d = %+v, want cost %+v", i, sched.Prices[i], sched.Costs[i])
		}
	}
}

func TestUnknownPackSizeGetsSingleTier(t *testing.T) {
	reg := DefaultRegistry()
	for _, supplier := range []string{internal.SupplierRRT, internal.SupplierBXYL, internal.SupplierGSPSK} {
		sched, err := reg.Lumber(supplier, LumberInput{BasePrice: 400, BoardFeet: 5})
		if err != nil {
			t.Fatalf("%s: %v", supplier, err)
		}
		if len(sched.Costs) != 1 || sched.Costs[0].MinQty != 1 {
			t.Fatalf("%s: got %+v, want one single-unit tier", supplier, sched.Costs)
		}
	}
}

func TestVolumeDiscountNeverInverts(t *testing.T) {
	reg := DefaultRegistry()
	cases := []struct {
		name     string
		supplier string
		in       LumberInput
	}{
		{"rrt", internal.SupplierRRT, LumberInput{BasePrice: 0.62, BoardFeet: 4, PackSize: 128}},
		{"bxyl", internal.SupplierBXYL, LumberInput{BasePrice: 410, BoardFeet: 6, PackSize: 96}},
		{"bxyl fj long", internal.SupplierBXYL, LumberInput{BasePrice: 410, BoardFeet: 8, Length: 288, FingerJoint: true, PackSize: 64}},
		{"gspsk", internal.SupplierGSPSK, LumberInput{BasePrice: 385, BoardFeet: 5.25, PackSize: 208}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sched, err := reg.Lumber(tc.supplier, tc.in)
			if err != nil {
				t.Fatal(err)
			}
			for i := 1; i < len(sched.Costs); i++ {
				if sched.Costs[i].Amount > sched.Costs[i-1].Amount {
					t.Fatalf("tier %d cost %v exceeds tier %d cost %v", i, sched.Costs[i].Amount, i-1, sched.Costs[i-1].Amount)
				}
				if sched.Costs[i].MinQty <= sched.Costs[i-1].MinQty {
					t.Fatalf("tier thresholds not ascending: %+v", sched.Costs)
				}
			}
		})
	}
}

func TestBXYLFingerJointLongAdder(t *testing.T) {
	reg := DefaultRegistry()
	base := LumberInput{BasePrice: 400, BoardFeet: 10, PackSize: 64}

	std, err := reg.Lumber(internal.SupplierBXYL, base)
	if err != nil {
		t.Fatal(err)
	}

	fj := base
	fj.FingerJoint = true
	fj.Length = 288
	long, err := reg.Lumber(internal.SupplierBXYL, fj)
	if err != nil {
		t.Fatal(err)
	}

	wantStd := round5((400*10 + 150) / 1000.0)
	wantFJ := round5((400*10 + 100) / 1000.0)
	if std.Costs[0].Amount != wantStd {
		t.Fatalf("standard single-unit cost = %v, want %v", std.Costs[0].Amount, wantStd)
	}
	if long.Costs[0].Amount != wantFJ {
		t.Fatalf("fj long single-unit cost = %v, want %v", long.Costs[0].Amount, wantFJ)
	}

	// Finger joint under 240in gets the standard adder.
	fj.Length = 192
	short, err := reg.Lumber(internal.SupplierBXYL, fj)
	if err != nil {
		t.Fatal(err)
	}
	if short.Costs[0].Amount != wantStd {
		t.Fatalf("fj short single-unit cost = %v, want %v", short.Costs[0].Amount, wantStd)
	}
}

func TestBXYLSheetCombinations(t *testing.T) {
	reg := DefaultRegistry()
	sqft := 32.0

	t.Run("piece and pack", func(t *testing.T) {
		sched, err := reg.Sheet(internal.SupplierBXYL, SheetInput{BasePrice: 500, SquareFeet: sqft, PackSize: 44, PiecePrice: fp(620)})
		if err != nil {
			t.Fatal(err)
		}
		want := []internal.PriceTier{
			{Amount: round5(620 * sqft / 1000), MinQty: 1},
			{Amount: round5(500 * sqft / 1000), MinQty: 44},
		}
		for i := range want {
			if sched.Costs[i] != want[i] {
				t.Fatalf("tier %d = %+v, want %+v", i, sched.Costs[i], want[i])
			}
		}
	})

	t.Run("pack only", func(t *testing.T) {
		sched, err := reg.Sheet(internal.SupplierBXYL, SheetInput{BasePrice: 500, SquareFeet: sqft, PackSize: 44})
		if err != nil {
			t.Fatal(err)
		}
		if len(sched.Costs) != 1 || sched.Costs[0].MinQty != 44 {
			t.Fatalf("got %+v, want single pack tier", sched.Costs)
		}
	})

	t.Run("piece only", func(t *testing.T) {
		sched, err := reg.Sheet(internal.SupplierBXYL, SheetInput{BasePrice: 500, SquareFeet: sqft, PiecePrice: fp(620)})
		if err != nil {
			t.Fatal(err)
		}
		if len(sched.Costs) != 1 || sched.Costs[0].MinQty != 1 {
			t.Fatalf("got %+v, want single piece tier", sched.Costs)
		}
	})

	t.Run("neither", func(t *testing.T) {
		_, err := reg.Sheet(internal.SupplierBXYL, SheetInput{BasePrice: 500, SquareFeet: sqft})
		if !errors.Is(err, ErrNoPackOrPiece) {
			t.Fatalf("err = %v, want ErrNoPackOrPiece", err)
		}
	})
}

func TestGSPSKSheetSchedule(t *testing.T) {
	reg := DefaultRegistry()
	sched, err := reg.Sheet(internal.SupplierGSPSK, SheetInput{BasePrice: 480, SquareFeet: 32, PackSize: 66})
	if err != nil {
		t.Fatal(err)
	}
	want := []internal.PriceTier{
		{Amount: round5((480*32 + 250) / 1000.0), MinQty: 1},
		{Amount: round5(480 * 32 / 1000.0), MinQty: 66},
	}
	for i := range want {
		if sched.Costs[i] != want[i] {
			t.Fatalf("tier %d = %+v, want %+v", i, sched.Costs[i], want[i])
		}
	}

	// 10% markup applies everywhere except RRT.
	for i := range sched.Costs {
		wantPrice := round5(sched.Costs[i].Amount * 1.1)
		if sched.Prices[i].Amount != wantPrice {
			t.Fatalf("price %d = %v, want %v", i, sched.Prices[i].Amount, wantPrice)
		}
	}
}

func TestRRTHasNoSheetRule(t *testing.T) {
	reg := DefaultRegistry()
	_, err := reg.Sheet(internal.SupplierRRT, SheetInput{BasePrice: 500, SquareFeet: 32, PackSize: 44})
	if !errors.Is(err, ErrNoSheetRule) {
		t.Fatalf("err = %v, want ErrNoSheetRule", err)
	}
}

func TestRoundingToFiveDecimals(t *testing.T) {
	got := round5(1.0 / 3.0)
	if math.Abs(got-0.33333) > 1e-12 {
		t.Fatalf("round5(1/3) = %v", got)
	}
}
