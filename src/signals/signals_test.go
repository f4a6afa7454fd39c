package signals_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tradesim/src/signals"
)

func closesFromInts(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func linearCloses(start, step int64, n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		out[i] = decimal.NewFromInt(start + step*int64(i))
	}
	return out
}

func TestRSINotEnoughData(t *testing.T) {
	_, err := signals.RSI(closesFromInts(1, 2, 3), 14)
	require.ErrorIs(t, err, signals.ErrNotEnoughData)
}

func TestRSIMonotonicSeries(t *testing.T) {
	// straight up: no losses at all, RSI pegs at 100
	rsi, err := signals.RSI(linearCloses(100, 1, 30), 14)
	require.NoError(t, err)
	require.True(t, rsi.Equal(decimal.NewFromInt(100)), "got %s", rsi)

	// straight down: no gains, RSI pegs at 0
	rsi, err = signals.RSI(linearCloses(100, -1, 30), 14)
	require.NoError(t, err)
	require.True(t, rsi.IsZero(), "got %s", rsi)
}

func TestRSIAlternatingSeries(t *testing.T) {
	// equal-sized gains and losses keep RSI at the midline
	closes := make([]decimal.Decimal, 0, 30)
	for i := 0; i < 15; i++ {
		closes = append(closes, decimal.NewFromInt(100), decimal.NewFromInt(101))
	}

	rsi, err := signals.RSI(closes, 14)
	require.NoError(t, err)

	require.True(t, rsi.GreaterThan(decimal.NewFromInt(40)), "got %s", rsi)
	require.True(t, rsi.LessThan(decimal.NewFromInt(60)), "got %s", rsi)
}

func TestRSIOversoldAfterDrop(t *testing.T) {
	// a sustained sell-off drives RSI below the 30 band
	closes := linearCloses(200, -3, 40)
	rsi, err := signals.RSI(closes, 14)
	require.NoError(t, err)
	require.True(t, rsi.LessThan(decimal.NewFromInt(30)), "got %s", rsi)
}

func TestMACDNotEnoughData(t *testing.T) {
	_, err := signals.MACD(linearCloses(100, 1, 20), 12, 26, 9)
	require.ErrorIs(t, err, signals.ErrNotEnoughData)
}

func TestMACDRejectsInvertedPeriods(t *testing.T) {
	_, err := signals.MACD(linearCloses(100, 1, 60), 26, 12, 9)
	require.Error(t, err)
}

func TestMACDTrendDirection(t *testing.T) {
	// in a steady uptrend the fast EMA leads the slow one: line > 0
	up, err := signals.MACD(linearCloses(100, 2, 60), 12, 26, 9)
	require.NoError(t, err)
	require.True(t, up.Line.IsPositive(), "line %s", up.Line)

	down, err := signals.MACD(linearCloses(300, -2, 60), 12, 26, 9)
	require.NoError(t, err)
	require.True(t, down.Line.IsNegative(), "line %s", down.Line)
	require.False(t, down.Bullish())
}

func TestMACDBullishCrossAfterReversal(t *testing.T) {
	// a long decline followed by a sharp rally lifts the line above its
	// slower signal
	closes := linearCloses(300, -2, 50)
	closes = append(closes, linearCloses(200, 5, 15)...)

	res, err := signals.MACD(closes, 12, 26, 9)
	require.NoError(t, err)
	require.True(t, res.Bullish(), "line %s signal %s", res.Line, res.Signal)
	require.True(t, res.Histogram.IsPositive())
}

func TestMACDHistogramIdentity(t *testing.T) {
	res, err := signals.MACD(linearCloses(100, 1, 60), 12, 26, 9)
	require.NoError(t, err)
	require.True(t, res.Histogram.Equal(res.Line.Sub(res.Signal)))
}
