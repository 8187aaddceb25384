package model

// PoolActivatedData is the decoded PoolActivated event payload.
type PoolActivatedData struct {
	PoolID         string `json:"pool_id"`
	PremiumRateBps uint32 `json:"premium_rate_bps"`
	ILToleranceBps uint32 `json:"il_tolerance_bps"`
}

// PositionOpenedData is the decoded PositionOpened event payload. Big integer
// fields are string-encoded so JSON round-trips never lose precision.
type PositionOpenedData struct {
	PoolID       string `json:"pool_id"`
	Provider     string `json:"provider"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
}

// PositionModifiedData is the decoded PositionModified event payload.
type PositionModifiedData struct {
	PoolID         string `json:"pool_id"`
	Provider       string `json:"provider"`
	LiquidityDelta string `json:"liquidity_delta"`
}

// PositionClosedData is the decoded PositionClosed event payload.
type PositionClosedData struct {
	PoolID       string `json:"pool_id"`
	Provider     string `json:"provider"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
}

// PremiumCollectedData is the decoded PremiumCollected event payload.
type PremiumCollectedData struct {
	PoolID   string `json:"pool_id"`
	Notional string `json:"notional"`
}
