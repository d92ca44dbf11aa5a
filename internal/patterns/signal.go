package patterns

// Kind identifies a detected anomaly class.
type Kind string

const (
	KindMomentumChase  Kind = "momentum_chase"
	KindStopHunting    Kind = "stop_hunting"
	KindIcebergOrders  Kind = "iceberg_orders"
	KindLiquiditySweep Kind = "liquidity_sweep"
)

// Signal is the output of one heuristic. Direction is the direction of the
// detected move (+1 up, -1 down); the contrarian entry trades against it.
// The zero Signal means nothing fired.
type Signal struct {
	Kind              Kind    `json:"kind"`
	Direction         int     `json:"direction"`
	Confidence        float64 `json:"confidence"`
	ExpectedReversion float64 `json:"expected_reversion"`
}

// Fired reports whether the signal carries a detected pattern.
func (s Signal) Fired() bool {
	return s.Kind != ""
}
