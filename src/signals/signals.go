// Package signals computes the technical indicators the strategy monitor
// trades on. All arithmetic is decimal so indicator thresholds compare
// exactly against configured bounds.
package signals

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotEnoughData means the close series is shorter than the indicator's
// warm-up window.
var ErrNotEnoughData = errors.New("not enough data points")

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
	one     = decimal.NewFromInt(1)
)

// div is decimal division at a fixed precision high enough that threshold
// comparisons (30/70 bands, signal crossings) are stable.
func div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, 12)
}

// sma is the simple average of values.
func sma(values []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return div(sum, decimal.NewFromInt(int64(len(values))))
}

// emaSeries returns the EMA of closes for the given period, one value per
// input from index period-1 onward. The first EMA value is the SMA seed.
func emaSeries(closes []decimal.Decimal, period int) []decimal.Decimal {
	multiplier := div(two, decimal.NewFromInt(int64(period)+1))

	out := make([]decimal.Decimal, 0, len(closes)-period+1)
	ema := sma(closes[:period])
	out = append(out, ema)

	for _, close := range closes[period:] {
		ema = close.Sub(ema).Mul(multiplier).Add(ema)
		out = append(out, ema)
	}
	return out
}

// RSI computes the relative strength index over the close series using
// Wilder smoothing. Needs at least period+1 closes.
func RSI(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if len(closes) < period+1 {
		return decimal.Zero, ErrNotEnoughData
	}

	avgGain := decimal.Zero
	avgLoss := decimal.Zero
	for i := 1; i <= period; i++ {
		change := closes[i].Sub(closes[i-1])
		if change.IsPositive() {
			avgGain = avgGain.Add(change)
		} else {
			avgLoss = avgLoss.Add(change.Neg())
		}
	}

	periodDec := decimal.NewFromInt(int64(period))
	avgGain = div(avgGain, periodDec)
	avgLoss = div(avgLoss, periodDec)

	smoothing := periodDec.Sub(one)
	for i := period + 1; i < len(closes); i++ {
		change := closes[i].Sub(closes[i-1])

		gain := decimal.Zero
		loss := decimal.Zero
		if change.IsPositive() {
			gain = change
		} else {
			loss = change.Neg()
		}

		avgGain = div(avgGain.Mul(smoothing).Add(gain), periodDec)
		avgLoss = div(avgLoss.Mul(smoothing).Add(loss), periodDec)
	}

	if avgLoss.IsZero() {
		return hundred, nil
	}

	rs := div(avgGain, avgLoss)
	return hundred.Sub(div(hundred, one.Add(rs))), nil
}

// MACDResult holds the last value of each MACD component.
type MACDResult struct {
	Line      decimal.Decimal
	Signal    decimal.Decimal
	Histogram decimal.Decimal
}

// Bullish reports whether the MACD line sits above its signal line.
func (m MACDResult) Bullish() bool {
	return m.Line.GreaterThan(m.Signal)
}

// MACD computes moving average convergence/divergence over the close
// series. Needs at least slow+signal-1 closes.
func MACD(closes []decimal.Decimal, fast, slow, signal int) (MACDResult, error) {
	if fast >= slow {
		return MACDResult{}, errors.New("fast period must be shorter than slow period")
	}
	if len(closes) < slow+signal-1 {
		return MACDResult{}, ErrNotEnoughData
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	// align the fast series to the slow one; both end at the last close
	offset := len(fastEMA) - len(slowEMA)
	line := make([]decimal.Decimal, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset].Sub(slowEMA[i])
	}

	signalEMA := emaSeries(line, signal)

	last := MACDResult{
		Line:   line[len(line)-1],
		Signal: signalEMA[len(signalEMA)-1],
	}
	last.Histogram = last.Line.Sub(last.Signal)
	return last, nil
}
