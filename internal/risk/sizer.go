// Package risk handles position sizing and entry eligibility limits.
package risk

import (
	"fmt"
	"math"
)

// Sizing methods.
const (
	MethodFixed           = "fixed"            // fixed USD exposure per trade
	MethodBalanceFraction = "balance_fraction" // fraction of account balance
)

// Config holds sizing configuration.
type Config struct {
	Method          string  `json:"method"`           // "fixed" or "balance_fraction"
	FixedAmountUSD  float64 `json:"fixed_amount_usd"` // exposure when Method == "fixed"
	BalanceFraction float64 `json:"balance_fraction"` // exposure share when Method == "balance_fraction"
	Leverage        float64 `json:"leverage"`         // notional multiplier
	LotStep         float64 `json:"lot_step"`         // quantity rounding step
	MinLot          float64 `json:"min_lot"`          // exchange minimum quantity
}

// Sizer turns the configured exposure into an order quantity.
type Sizer struct {
	cfg Config
}

// NewSizer validates the config and creates a sizer.
func NewSizer(cfg Config) (*Sizer, error) {
	if cfg.Leverage <= 0 {
		cfg.Leverage = 1
	}
	if cfg.LotStep <= 0 {
		cfg.LotStep = 0.001
	}
	if cfg.MinLot <= 0 {
		cfg.MinLot = cfg.LotStep
	}
	switch cfg.Method {
	case MethodFixed:
		if cfg.FixedAmountUSD <= 0 {
			return nil, fmt.Errorf("risk: fixed sizing needs a positive fixed_amount_usd")
		}
	case MethodBalanceFraction:
		if cfg.BalanceFraction <= 0 || cfg.BalanceFraction > 1 {
			return nil, fmt.Errorf("risk: balance_fraction must be in (0, 1], got %v", cfg.BalanceFraction)
		}
	default:
		return nil, fmt.Errorf("risk: unknown sizing method %q", cfg.Method)
	}
	return &Sizer{cfg: cfg}, nil
}

// Exposure returns the unleveraged USD exposure for the trade given the
// current account balance.
func (s *Sizer) Exposure(balance float64) float64 {
	if s.cfg.Method == MethodBalanceFraction {
		return balance * s.cfg.BalanceFraction
	}
	return s.cfg.FixedAmountUSD
}

// Leverage returns the configured leverage multiplier.
func (s *Sizer) Leverage() float64 {
	return s.cfg.Leverage
}

// Quantity converts exposure and price into an order quantity: leveraged
// notional divided by price, rounded to the lot step, never below the
// exchange minimum.
func (s *Sizer) Quantity(exposure, price float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("risk: invalid price %v", price)
	}
	qty := exposure * s.cfg.Leverage / price
	qty = math.Round(qty/s.cfg.LotStep) * s.cfg.LotStep
	if qty < s.cfg.MinLot {
		qty = s.cfg.MinLot
	}
	return qty, nil
}

// Notional returns the leveraged notional for a fill.
func (s *Sizer) Notional(exposure float64) float64 {
	return exposure * s.cfg.Leverage
}
