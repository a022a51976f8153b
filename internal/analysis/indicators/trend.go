package indicators

import talib "github.com/markcheno/go-talib"

// CalculateEWM calculates an exponentially weighted mean seeded at the first value,
// so every position carries a value: out[0] = values[0],
// out[i] = a*values[i] + (1-a)*out[i-1] with a = 2/(span+1).
func CalculateEWM(values []float64, span int) []float64 {
	if len(values) == 0 || span <= 0 {
		return nil
	}

	result := make([]float64, len(values))
	alpha := 2.0 / float64(span+1)

	result[0] = values[0]
	for i := 1; i < len(values); i++ {
		result[i] = alpha*values[i] + (1-alpha)*result[i-1]
	}

	return result
}

// Flavour selects how the MACD series are smoothed.
type Flavour int

const (
	// FlavourEWM seeds every average at the first bar; values exist from bar 0.
	FlavourEWM Flavour = iota
	// FlavourTalib uses ta-lib's SMA-seeded MACD; bars inside the lookback are zero.
	FlavourTalib
)

// Momentum holds the three oscillator series, one value per input bar.
type Momentum struct {
	DIF  []float64
	DEA  []float64
	Hist []float64
}

// At returns the three values at bar i.
func (m Momentum) At(i int) (dif, dea, hist float64) {
	return m.DIF[i], m.DEA[i], m.Hist[i]
}

// MACD calculates Moving Average Convergence Divergence.
// Hist is reported as 2*(DIF-DEA).
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
	flavour      Flavour
}

// NewMACD creates a MACD indicator using exponentially weighted means seeded at the first bar.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
		flavour:      FlavourEWM,
	}
}

// NewTalibMACD creates a MACD indicator computed by ta-lib.
func NewTalibMACD(fast, slow, signal int) *MACD {
	m := NewMACD(fast, slow, signal)
	m.flavour = FlavourTalib
	return m
}

// Period is the number of bars before the ta-lib flavour produces values.
func (m *MACD) Period() int {
	return m.slowPeriod + m.signalPeriod - 1
}

// Compute runs the oscillator on a close series.
func (m *MACD) Compute(closes []float64) (Momentum, error) {
	if m.fastPeriod <= 0 || m.slowPeriod <= 0 || m.signalPeriod <= 0 {
		return Momentum{}, ErrInvalidPeriod
	}
	if len(closes) == 0 {
		return Momentum{}, ErrInsufficientData
	}

	if m.flavour == FlavourTalib {
		return m.computeTalib(closes), nil
	}

	fast := CalculateEWM(closes, m.fastPeriod)
	slow := CalculateEWM(closes, m.slowPeriod)

	dif := make([]float64, len(closes))
	for i := range closes {
		dif[i] = fast[i] - slow[i]
	}
	dea := CalculateEWM(dif, m.signalPeriod)

	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = 2 * (dif[i] - dea[i])
	}

	return Momentum{DIF: dif, DEA: dea, Hist: hist}, nil
}

func (m *MACD) computeTalib(closes []float64) Momentum {
	n := len(closes)
	if n < m.Period() {
		return Momentum{
			DIF:  make([]float64, n),
			DEA:  make([]float64, n),
			Hist: make([]float64, n),
		}
	}

	dif, dea, h := talib.Macd(closes, m.fastPeriod, m.slowPeriod, m.signalPeriod)
	hist := make([]float64, n)
	for i := range h {
		hist[i] = 2 * h[i]
	}
	return Momentum{DIF: dif, DEA: dea, Hist: hist}
}
