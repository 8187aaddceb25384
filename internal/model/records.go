package model

import "encoding/json"

// HookEvent is a decoded hook lifecycle event enriched with log context.
type HookEvent struct {
	ChainID     uint64      `json:"chain_id"`
	BlockNumber uint64      `json:"block_number"`
	BlockHash   string      `json:"block_hash"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
	Address     string      `json:"address"`
	EventName   string      `json:"event_name"`
	Timestamp   uint64      `json:"timestamp"`
	Decoded     interface{} `json:"decoded"`
}

// HookEventRecord is the JSON form of HookEvent used for replay, with the
// payload kept raw until the event name selects a concrete type.
type HookEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
}

// PayoutInstruction is the outbound transfer order produced by a settlement.
// The integration layer executes the actual asset transfer.
type PayoutInstruction struct {
	PoolID   string `json:"pool_id"`
	Provider string `json:"provider"`
	Amount   string `json:"amount"`
	ILBps    uint64 `json:"il_bps"`
	TxHash   string `json:"tx_hash,omitempty"`
}

// PremiumCredited reports a reserve credit for transparency logging.
type PremiumCredited struct {
	PoolID string `json:"pool_id"`
	Amount string `json:"amount"`
	TxHash string `json:"tx_hash,omitempty"`
}

// PositionRecord is the persisted view of a position's entry state.
type PositionRecord struct {
	PoolID         string `json:"pool_id"`
	Provider       string `json:"provider"`
	EntrySqrtPrice string `json:"entry_sqrt_price"`
	EntryAmount0   string `json:"entry_amount0"`
	EntryAmount1   string `json:"entry_amount1"`
	OpenedAt       uint64 `json:"opened_at"`
}

// DecodeError records a log line the decoder or the engine rejected.
type DecodeError struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}
