package indicator

import "math"

// Indicator map keys attached to merged records.
const (
	KeySMA20           = "sma_20"
	KeySMA50           = "sma_50"
	KeySMA200          = "sma_200"
	KeyEMA12           = "ema_12"
	KeyEMA26           = "ema_26"
	KeyRSI14           = "rsi_14"
	KeyMACD            = "macd"
	KeyMACDSignal      = "macd_signal"
	KeyMACDHist        = "macd_hist"
	KeyBollingerUpper  = "bb_upper"
	KeyBollingerMiddle = "bb_middle"
	KeyBollingerLower  = "bb_lower"
	KeyVolatility30    = "volatility_30"
)

// Calculator derives the standard indicator set from a close-price series,
// oldest first. An indicator whose warmup exceeds the series is simply
// omitted; storage never sees NaN.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Compute(assetID string, closes []float64) map[string]float64 {
	if len(closes) == 0 {
		return nil
	}
	out := make(map[string]float64, 13)
	put := func(key string, v float64) {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[key] = v
		}
	}

	put(KeySMA20, SMA(closes, 20))
	put(KeySMA50, SMA(closes, 50))
	put(KeySMA200, SMA(closes, 200))

	if ema := EMASeries(closes, 12); len(ema) > 0 {
		put(KeyEMA12, ema[len(ema)-1])
	}
	if ema := EMASeries(closes, 26); len(ema) > 0 {
		put(KeyEMA26, ema[len(ema)-1])
	}

	if rsi := RSISeries(closes, 14); len(rsi) > 0 {
		put(KeyRSI14, rsi[len(rsi)-1])
	}

	if macd, signal := MACDSeries(closes, 12, 26, 9); len(macd) > 0 {
		last := len(macd) - 1
		put(KeyMACD, macd[last])
		put(KeyMACDSignal, signal[last])
		put(KeyMACDHist, macd[last]-signal[last])
	}

	if middle, upper, lower := BollingerSeries(closes, 20, 2); len(middle) > 0 {
		last := len(middle) - 1
		put(KeyBollingerMiddle, middle[last])
		put(KeyBollingerUpper, upper[last])
		put(KeyBollingerLower, lower[last])
	}

	put(KeyVolatility30, Volatility(closes, 30))

	if len(out) == 0 {
		return nil
	}
	return out
}
