package factory

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"curveScope/internal/model"
)

// ErrMalformedLog marks a factory log that is missing a field the pipeline
// cannot default. Decode errors wrap it so callers can branch with errors.Is.
var ErrMalformedLog = errors.New("malformed factory log")

// Event names emitted by the factory contract.
const (
	EventTokenCreated   = "TokenCreated"
	EventTokenPurchased = "TokenPurchased"
	EventTokenSold      = "TokenSold"
)

// DecodedEvent is the outcome of decoding one factory log. Trade events
// carry a Transaction; creation events carry a Token descriptor.
type DecodedEvent struct {
	Name        string
	Transaction *model.TransactionRecord
	Token       *model.Token
}

// Decoder decodes launchpad factory logs into normalized records.
type Decoder struct {
	abi         abi.ABI
	topicToName map[common.Hash]string
}

// NewDecoder builds a Decoder from the factory ABI.
func NewDecoder() (*Decoder, error) {
	factoryABI, err := ABI()
	if err != nil {
		return nil, err
	}

	topicToName := map[common.Hash]string{
		factoryABI.Events[EventTokenCreated].ID:   EventTokenCreated,
		factoryABI.Events[EventTokenPurchased].ID: EventTokenPurchased,
		factoryABI.Events[EventTokenSold].ID:      EventTokenSold,
	}

	return &Decoder{abi: factoryABI, topicToName: topicToName}, nil
}

// Topics returns the topic0 hashes of every supported event, in the order
// used by log filters.
func (d *Decoder) Topics() []common.Hash {
	factoryABI := d.abi
	return []common.Hash{
		factoryABI.Events[EventTokenCreated].ID,
		factoryABI.Events[EventTokenPurchased].ID,
		factoryABI.Events[EventTokenSold].ID,
	}
}

// CanDecode reports whether the log's topic0 belongs to a supported event.
func (d *Decoder) CanDecode(log types.Log) bool {
	if len(log.Topics) == 0 {
		return false
	}
	_, ok := d.topicToName[log.Topics[0]]
	return ok
}

// Decode converts a factory log into a DecodedEvent. timestamp is the block
// time of the log. Missing token address or price fails hard; display-only
// string fields default to empty.
func (d *Decoder) Decode(log types.Log, timestamp uint64) (DecodedEvent, error) {
	if len(log.Topics) == 0 {
		return DecodedEvent{}, fmt.Errorf("%w: no topics", ErrMalformedLog)
	}
	name, ok := d.topicToName[log.Topics[0]]
	if !ok {
		return DecodedEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	switch name {
	case EventTokenCreated:
		token, err := d.decodeCreated(log, timestamp)
		if err != nil {
			return DecodedEvent{}, err
		}
		return DecodedEvent{Name: name, Token: token}, nil
	case EventTokenPurchased:
		record, err := d.decodeTrade(log, timestamp, EventTokenPurchased)
		if err != nil {
			return DecodedEvent{}, err
		}
		return DecodedEvent{Name: name, Transaction: record}, nil
	case EventTokenSold:
		record, err := d.decodeTrade(log, timestamp, EventTokenSold)
		if err != nil {
			return DecodedEvent{}, err
		}
		return DecodedEvent{Name: name, Transaction: record}, nil
	default:
		return DecodedEvent{}, fmt.Errorf("unsupported event: %s", name)
	}
}

func (d *Decoder) decodeCreated(log types.Log, timestamp uint64) (*model.Token, error) {
	event := d.abi.Events[EventTokenCreated]

	var indexed struct {
		TokenAddress common.Address
		Creator      common.Address
	}
	if err := parseIndexed(&indexed, event, log.Topics); err != nil {
		return nil, err
	}
	if indexed.TokenAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero token address", ErrMalformedLog)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", ErrMalformedLog, event.Name, err)
	}
	if len(values) != 8 {
		return nil, fmt.Errorf("%w: unexpected created values: %d", ErrMalformedLog, len(values))
	}

	// Name and symbol are required for a usable descriptor; the social and
	// description fields default to empty when absent.
	nameField, err := asString(values[0])
	if err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrMalformedLog, err)
	}
	symbol, err := asString(values[1])
	if err != nil {
		return nil, fmt.Errorf("%w: symbol: %v", ErrMalformedLog, err)
	}
	initialSupply := ""
	if supply, err := asBigInt(values[7]); err == nil {
		initialSupply = supply.String()
	}

	return &model.Token{
		Address:       normalizeAddress(indexed.TokenAddress),
		Creator:       normalizeAddress(indexed.Creator),
		Name:          nameField,
		Symbol:        symbol,
		Description:   stringOrEmpty(values[2]),
		ImageURL:      stringOrEmpty(values[3]),
		TwitterLink:   stringOrEmpty(values[4]),
		TelegramLink:  stringOrEmpty(values[5]),
		WebsiteLink:   stringOrEmpty(values[6]),
		InitialSupply: initialSupply,
		CreatedAt:     time.Unix(int64(timestamp), 0).UTC(),
	}, nil
}

func (d *Decoder) decodeTrade(log types.Log, timestamp uint64, eventName string) (*model.TransactionRecord, error) {
	event := d.abi.Events[eventName]

	var indexed struct {
		Counterparty common.Address
		TokenAddress common.Address
	}
	// Both trade events lay out (counterparty, tokenAddress) in topics 1-2.
	if err := parseIndexed(&indexed, event, log.Topics); err != nil {
		return nil, err
	}
	if indexed.TokenAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero token address", ErrMalformedLog)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", ErrMalformedLog, event.Name, err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("%w: unexpected %s values: %d", ErrMalformedLog, eventName, len(values))
	}

	quote, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("%w: quote amount: %v", ErrMalformedLog, err)
	}
	base, err := asBigInt(values[1])
	if err != nil {
		return nil, fmt.Errorf("%w: base amount: %v", ErrMalformedLog, err)
	}
	price, err := asBigInt(values[2])
	if err != nil {
		return nil, fmt.Errorf("%w: price per token: %v", ErrMalformedLog, err)
	}
	if price == nil || price.Sign() == 0 {
		return nil, fmt.Errorf("%w: missing price per token", ErrMalformedLog)
	}

	eventType := model.EventPurchased
	if eventName == EventTokenSold {
		eventType = model.EventSold
	}

	return &model.TransactionRecord{
		EventType:       eventType,
		TokenAddress:    normalizeAddress(indexed.TokenAddress),
		Counterparty:    normalizeAddress(indexed.Counterparty),
		BaseAmount:      base.String(),
		QuoteAmount:     quote.String(),
		PricePerToken:   price.String(),
		TransactionHash: strings.ToLower(log.TxHash.Hex()),
		BlockNumber:     log.BlockNumber,
		LogIndex:        uint64(log.Index),
		Timestamp:       time.Unix(int64(timestamp), 0).UTC(),
	}, nil
}

func parseIndexed(out interface{}, event abi.Event, topics []common.Hash) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("%w: expected %d topics, got %d", ErrMalformedLog, len(indexed)+1, len(topics))
	}
	if err := abi.ParseTopics(out, indexed, topics[1:]); err != nil {
		return fmt.Errorf("%w: parse topics: %v", ErrMalformedLog, err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func asBigInt(value interface{}) (*big.Int, error) {
	out, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected *big.Int, got %T", value)
	}
	return out, nil
}

func asString(value interface{}) (string, error) {
	out, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", value)
	}
	return out, nil
}

func stringOrEmpty(value interface{}) string {
	out, _ := value.(string)
	return out
}

func normalizeAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
