package hook

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/model"
)

// Decoder converts raw hook contract logs into typed lifecycle events.
type Decoder struct {
	events      abi.ABI
	topicToName map[string]string
}

// NewDecoder builds a decoder for the hook's lifecycle events.
func NewDecoder() (*Decoder, error) {
	events, err := EventsABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(events.Events))
	for name, event := range events.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}

	return &Decoder{events: events, topicToName: topicToName}, nil
}

// CanDecode checks if the topic0 belongs to a hook lifecycle event.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a HookEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.HookEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	var decoded interface{}
	var err error
	switch name {
	case "PoolActivated":
		decoded, err = d.decodePoolActivated(log)
	case "PositionOpened":
		decoded, err = d.decodePositionOpened(log)
	case "PositionModified":
		decoded, err = d.decodePositionModified(log)
	case "PositionClosed":
		decoded, err = d.decodePositionClosed(log)
	case "PremiumCollected":
		decoded, err = d.decodePremiumCollected(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}

	return &model.HookEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
	}, nil
}

func (d *Decoder) decodePoolActivated(log model.LogRecord) (model.PoolActivatedData, error) {
	event := d.events.Events["PoolActivated"]
	topics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.PoolActivatedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PoolActivatedData{}, err
	}
	if len(values) != 2 {
		return model.PoolActivatedData{}, fmt.Errorf("unexpected pool activated values: %d", len(values))
	}

	rate, err := asBps(values[0])
	if err != nil {
		return model.PoolActivatedData{}, err
	}
	tolerance, err := asBps(values[1])
	if err != nil {
		return model.PoolActivatedData{}, err
	}

	return model.PoolActivatedData{
		PoolID:         topics[0].Hex(),
		PremiumRateBps: rate,
		ILToleranceBps: tolerance,
	}, nil
}

func (d *Decoder) decodePositionOpened(log model.LogRecord) (model.PositionOpenedData, error) {
	event := d.events.Events["PositionOpened"]
	topics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.PositionOpenedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PositionOpenedData{}, err
	}
	if len(values) != 3 {
		return model.PositionOpenedData{}, fmt.Errorf("unexpected position opened values: %d", len(values))
	}

	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PositionOpenedData{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.PositionOpenedData{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.PositionOpenedData{}, err
	}

	return model.PositionOpenedData{
		PoolID:       topics[0].Hex(),
		Provider:     common.BytesToAddress(topics[1].Bytes()).Hex(),
		SqrtPriceX96: sqrtPrice.String(),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
	}, nil
}

func (d *Decoder) decodePositionModified(log model.LogRecord) (model.PositionModifiedData, error) {
	event := d.events.Events["PositionModified"]
	topics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.PositionModifiedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PositionModifiedData{}, err
	}
	if len(values) != 1 {
		return model.PositionModifiedData{}, fmt.Errorf("unexpected position modified values: %d", len(values))
	}

	delta, err := asBigInt(values[0])
	if err != nil {
		return model.PositionModifiedData{}, err
	}

	return model.PositionModifiedData{
		PoolID:         topics[0].Hex(),
		Provider:       common.BytesToAddress(topics[1].Bytes()).Hex(),
		LiquidityDelta: delta.String(),
	}, nil
}

func (d *Decoder) decodePositionClosed(log model.LogRecord) (model.PositionClosedData, error) {
	event := d.events.Events["PositionClosed"]
	topics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.PositionClosedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PositionClosedData{}, err
	}
	if len(values) != 3 {
		return model.PositionClosedData{}, fmt.Errorf("unexpected position closed values: %d", len(values))
	}

	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PositionClosedData{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.PositionClosedData{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.PositionClosedData{}, err
	}

	return model.PositionClosedData{
		PoolID:       topics[0].Hex(),
		Provider:     common.BytesToAddress(topics[1].Bytes()).Hex(),
		SqrtPriceX96: sqrtPrice.String(),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
	}, nil
}

func (d *Decoder) decodePremiumCollected(log model.LogRecord) (model.PremiumCollectedData, error) {
	event := d.events.Events["PremiumCollected"]
	topics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.PremiumCollectedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PremiumCollectedData{}, err
	}
	if len(values) != 1 {
		return model.PremiumCollectedData{}, fmt.Errorf("unexpected premium collected values: %d", len(values))
	}

	notional, err := asBigInt(values[0])
	if err != nil {
		return model.PremiumCollectedData{}, err
	}

	return model.PremiumCollectedData{
		PoolID:   topics[0].Hex(),
		Notional: notional.String(),
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := 0
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexedCount++
		}
	}
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}

	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	out, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T", value)
	}
	return out, nil
}

func asBps(value interface{}) (uint32, error) {
	out, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if !out.IsUint64() || out.Uint64() > 1<<24 {
		return 0, fmt.Errorf("bps out of range: %s", out)
	}
	return uint32(out.Uint64()), nil
}
