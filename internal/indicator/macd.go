package indicator

// MACD returns the MACD line (fast EMA minus slow EMA of closes) and its
// signal line (EMA of the MACD line over signalSpan).
func MACD(closes []float64, fastSpan, slowSpan, signalSpan int) (macd, signal []float64) {
	fast := EMA(closes, fastSpan)
	slow := EMA(closes, slowSpan)

	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}

	return macd, EMA(macd, signalSpan)
}
