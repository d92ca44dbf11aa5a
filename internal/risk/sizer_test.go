package risk

import (
	"math"
	"testing"
)

func TestNewSizer_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"unknown method", Config{Method: "martingale"}},
		{"fixed without amount", Config{Method: MethodFixed}},
		{"fraction zero", Config{Method: MethodBalanceFraction, BalanceFraction: 0}},
		{"fraction above one", Config{Method: MethodBalanceFraction, BalanceFraction: 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSizer(tc.cfg); err == nil {
				t.Errorf("expected error for %+v", tc.cfg)
			}
		})
	}
}

func TestExposure_FixedMethod(t *testing.T) {
	s, err := NewSizer(Config{Method: MethodFixed, FixedAmountUSD: 250})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Exposure(99999); got != 250 {
		t.Errorf("fixed exposure must ignore balance, got %v", got)
	}
}

func TestExposure_BalanceFraction(t *testing.T) {
	s, err := NewSizer(Config{Method: MethodBalanceFraction, BalanceFraction: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Exposure(5000); got != 500 {
		t.Errorf("expected 10%% of balance, got %v", got)
	}
}

func TestQuantity_RoundsToLotStep(t *testing.T) {
	s, err := NewSizer(Config{Method: MethodFixed, FixedAmountUSD: 1000, LotStep: 0.001})
	if err != nil {
		t.Fatal(err)
	}

	// 1000 / 104500 = 0.009569..., rounds to 0.010
	qty, err := s.Quantity(1000, 104500)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(qty-0.010) > 1e-9 {
		t.Errorf("expected 0.010, got %v", qty)
	}
}

func TestQuantity_AppliesLeverage(t *testing.T) {
	s, err := NewSizer(Config{Method: MethodFixed, FixedAmountUSD: 100, Leverage: 10, LotStep: 0.001})
	if err != nil {
		t.Fatal(err)
	}
	qty, err := s.Quantity(100, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(qty-1.0) > 1e-9 {
		t.Errorf("expected 1.0 with 10x leverage, got %v", qty)
	}
	if got := s.Notional(100); got != 1000 {
		t.Errorf("expected leveraged notional 1000, got %v", got)
	}
}

func TestQuantity_EnforcesMinimumLot(t *testing.T) {
	s, err := NewSizer(Config{Method: MethodFixed, FixedAmountUSD: 5, LotStep: 0.001, MinLot: 0.01})
	if err != nil {
		t.Fatal(err)
	}
	qty, err := s.Quantity(5, 104500) // raw 0.0000478
	if err != nil {
		t.Fatal(err)
	}
	if qty != 0.01 {
		t.Errorf("expected minimum lot 0.01, got %v", qty)
	}
}

func TestQuantity_RejectsInvalidPrice(t *testing.T) {
	s, err := NewSizer(Config{Method: MethodFixed, FixedAmountUSD: 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Quantity(100, 0); err == nil {
		t.Error("expected error for zero price")
	}
	if _, err := s.Quantity(100, -5); err == nil {
		t.Error("expected error for negative price")
	}
}
