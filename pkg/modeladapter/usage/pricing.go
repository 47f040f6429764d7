package usage

// Pricing holds per-1000-token prices in USD.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Cost returns the USD cost of tc under p.
func (p Pricing) Cost(tc TokenCount) float64 {
	return float64(tc.InputTokens)/1000*p.InputPer1K + float64(tc.OutputTokens)/1000*p.OutputPer1K
}
