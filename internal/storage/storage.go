package storage

import "github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/model"

// EventSink stores decoded hook events for replay.
type EventSink interface {
	PutEvents(events []*model.HookEvent) error
}

// PayoutSink stores payout instructions for the transfer executor.
type PayoutSink interface {
	PutPayouts(payouts []model.PayoutInstruction) error
}

// PremiumSink stores premium credit notifications.
type PremiumSink interface {
	PutPremiums(premiums []model.PremiumCredited) error
}

// ErrorSink stores logs the decoder or the engine rejected.
type ErrorSink interface {
	PutErrors(errors []model.DecodeError) error
}
