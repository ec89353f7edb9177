package indicators

// SMA is the mean of the last period values, or 0 when there are fewer.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// RSI computes an unsmoothed Relative Strength Index over the last period
// changes. A window with no losses reads 100.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 0
	}

	var gain, loss float64
	tail := values[len(values)-period-1:]
	for i := 1; i < len(tail); i++ {
		switch d := tail[i] - tail[i-1]; {
		case d > 0:
			gain += d
		case d < 0:
			loss -= d
		}
	}

	if loss == 0 {
		return 100
	}
	return 100 - 100/(1+gain/loss)
}
