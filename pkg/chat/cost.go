package chat

const (
	inputUSDPerMillion  = 3.0
	outputUSDPerMillion = 15.0
	usdToGBP            = 0.79
)

// CostGBP estimates the model cost of one exchange in pounds sterling.
func CostGBP(inputTokens, outputTokens int64) float64 {
	usd := (float64(inputTokens)*inputUSDPerMillion + float64(outputTokens)*outputUSDPerMillion) / 1_000_000
	return usd * usdToGBP
}
