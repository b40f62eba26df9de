package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order (buy or sell).
// The zero value is unset and never sent to a venue.
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase a contract.
	SideBuy OrderSide = iota + 1
	// SideSell indicates an order to sell a contract.
	SideSell
)

// String returns the string representation of the order side ("BUY" or "SELL").
func (s OrderSide) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseOrderSide parses "BUY" or "SELL" in either case.
func ParseOrderSide(s string) (OrderSide, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return 0, fmt.Errorf("unknown order side %q", s)
	}
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
// It accepts both uppercase and lowercase formats.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	v, err := ParseOrderSide(unquote(data))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// OrderType represents the type of order to place on an exchange.
// The zero value is unset and never sent to a venue.
type OrderType int

// Order type constants define how a futures order is executed.
const (
	// TypeMarket executes immediately at the best available price.
	TypeMarket OrderType = iota + 1
	// TypeLimit executes at a specified price or better.
	TypeLimit
	// TypeStop places a limit order once the stop price is reached.
	TypeStop
	// TypeStopMarket places a market order once the stop price is reached.
	TypeStopMarket
	// TypeTakeProfit places a limit order once the target price is reached.
	TypeTakeProfit
	// TypeTakeProfitMarket places a market order once the target price is reached.
	TypeTakeProfitMarket
	// TypeTrailingStopMarket follows the price by a callback rate.
	TypeTrailingStopMarket
)

var orderTypeNames = [...]string{"UNKNOWN", "MARKET", "LIMIT", "STOP", "STOP_MARKET", "TAKE_PROFIT", "TAKE_PROFIT_MARKET", "TRAILING_STOP_MARKET"}

// String returns the string representation of the order type.
func (t OrderType) String() string {
	if t <= 0 || int(t) >= len(orderTypeNames) {
		return orderTypeNames[0]
	}
	return orderTypeNames[t]
}

// ParseOrderType parses a venue order type name in either case.
func ParseOrderType(s string) (OrderType, error) {
	upper := strings.ToUpper(s)
	for i := 1; i < len(orderTypeNames); i++ {
		if orderTypeNames[i] == upper {
			return OrderType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown order type %q", s)
}

// MarshalJSON implements json.Marshaler for OrderType.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderType.
// It accepts both uppercase and lowercase formats.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	v, err := ParseOrderType(unquote(data))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// OrderStatus represents the current state of an order.
type OrderStatus int

// Order status constants define the lifecycle state of an order.
const (
	// StatusNew indicates the order has been accepted by the exchange.
	StatusNew OrderStatus = iota
	// StatusPartiallyFilled indicates the order has been partially filled.
	StatusPartiallyFilled
	// StatusFilled indicates the order has been completely filled.
	StatusFilled
	// StatusCanceled indicates the order has been canceled.
	StatusCanceled
	// StatusRejected indicates the order was rejected by the exchange.
	StatusRejected
	// StatusExpired indicates the order has expired.
	StatusExpired
)

var orderStatusNames = [...]string{"NEW", "PARTIALLY_FILLED", "FILLED", "CANCELED", "REJECTED", "EXPIRED"}

// String returns the string representation of the order status.
func (s OrderStatus) String() string {
	if s < 0 || int(s) >= len(orderStatusNames) {
		return "UNKNOWN"
	}
	return orderStatusNames[s]
}

// ParseOrderStatus parses a canonical status name in either case.
func ParseOrderStatus(s string) (OrderStatus, error) {
	upper := strings.ToUpper(s)
	for i, name := range orderStatusNames {
		if name == upper {
			return OrderStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", s)
}

// IsTerminal returns true if the order is in a terminal state (no further changes possible).
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusRejected || s == StatusExpired
}

// MarshalJSON implements json.Marshaler for OrderStatus.
func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderStatus.
// It accepts both uppercase and lowercase formats.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	v, err := ParseOrderStatus(unquote(data))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// TimeInForce defines how long an order remains active.
type TimeInForce int

// Time in force constants define order lifetime behavior.
const (
	// GTC (Good Till Canceled) keeps the order active until filled or canceled.
	GTC TimeInForce = iota
	// IOC (Immediate Or Cancel) requires immediate execution; unfilled portion is canceled.
	IOC
	// FOK (Fill Or Kill) requires complete immediate execution or cancellation.
	FOK
	// GTX (Good Till Crossing) is a post-only order.
	GTX
	// GTD (Good Till Date) is canceled by the venue at a set time.
	GTD
)

var timeInForceNames = [...]string{"GTC", "IOC", "FOK", "GTX", "GTD"}

// String returns the string representation of time in force.
func (t TimeInForce) String() string {
	if t < 0 || int(t) >= len(timeInForceNames) {
		return "UNKNOWN"
	}
	return timeInForceNames[t]
}

// ParseTimeInForce parses a time in force name in either case.
func ParseTimeInForce(s string) (TimeInForce, error) {
	upper := strings.ToUpper(s)
	for i, name := range timeInForceNames {
		if name == upper {
			return TimeInForce(i), nil
		}
	}
	return 0, fmt.Errorf("unknown time in force %q", s)
}

// MarshalJSON implements json.Marshaler for TimeInForce.
func (t TimeInForce) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for TimeInForce.
// It accepts both uppercase and lowercase formats.
func (t *TimeInForce) UnmarshalJSON(data []byte) error {
	v, err := ParseTimeInForce(unquote(data))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func unquote(data []byte) string {
	return strings.Trim(string(data), `"`)
}

// SymbolInfo describes a tradable contract.
type SymbolInfo struct {
	// Symbol is the venue contract identifier (e.g., "BTCUSDT").
	Symbol string `json:"symbol"`
	// Pair is the underlying pair, identical to Symbol for perpetuals.
	Pair string `json:"pair"`
	// ContractType is e.g. "PERPETUAL" or "CURRENT_QUARTER".
	ContractType string `json:"contract_type"`
	// Status is the trading status, e.g. "TRADING".
	Status            string      `json:"status"`
	BaseAsset         string      `json:"base_asset"`
	QuoteAsset        string      `json:"quote_asset"`
	MarginAsset       string      `json:"margin_asset"`
	PricePrecision    int         `json:"price_precision"`
	QuantityPrecision int         `json:"quantity_precision"`
	TickSize          apd.Decimal `json:"tick_size"`
	StepSize          apd.Decimal `json:"step_size"`
	MinQty            apd.Decimal `json:"min_qty"`
}

// Ticker holds the best bid and ask of a symbol.
type Ticker struct {
	// Symbol is the contract identifier.
	Symbol string `json:"symbol"`
	// Bid is the highest price a buyer is willing to pay.
	Bid apd.Decimal `json:"bid"`
	// BidQty is the quantity available at Bid.
	BidQty apd.Decimal `json:"bid_qty"`
	// Ask is the lowest price a seller is willing to accept.
	Ask apd.Decimal `json:"ask"`
	// AskQty is the quantity available at Ask.
	AskQty apd.Decimal `json:"ask_qty"`
	// Timestamp is the venue time of the quote.
	Timestamp time.Time `json:"timestamp"`
}

// Order represents an exchange order with all its details.
// It tracks the order from submission through execution to completion.
type Order struct {
	// ID is the exchange-assigned order identifier.
	ID string `json:"id"`
	// ClientOrderID is the client-assigned order identifier.
	ClientOrderID string `json:"client_order_id"`
	// Symbol is the contract for this order.
	Symbol string `json:"symbol"`
	// Side indicates whether this is a buy or sell order.
	Side OrderSide `json:"side"`
	// Type defines how the order executes (market, limit, etc.).
	Type OrderType `json:"type"`
	// Price is the limit price for limit orders.
	Price apd.Decimal `json:"price"`
	// Quantity is the total order quantity.
	Quantity apd.Decimal `json:"quantity"`
	// FilledQuantity is the amount that has been executed.
	FilledQuantity apd.Decimal `json:"filled_quantity"`
	// RemainingQty is the unfilled portion of the order.
	RemainingQty apd.Decimal `json:"remaining_quantity"`
	// Status is the current state of the order.
	Status OrderStatus `json:"status"`
	// TimeInForce defines how long the order remains active.
	TimeInForce TimeInForce `json:"time_in_force"`
	// CreatedAt is when the order was submitted.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the order was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Balance represents account balance for a single asset.
type Balance struct {
	// Asset is the margin asset symbol (e.g., "USDT").
	Asset string `json:"asset"`
	// Free is the balance available for new positions and orders.
	Free apd.Decimal `json:"free"`
	// Locked is the wallet balance not currently available (wallet minus available).
	Locked apd.Decimal `json:"locked"`
}

// Kline represents a candlestick/OHLCV data point for a time period.
type Kline struct {
	// Symbol is the contract for this kline.
	Symbol string `json:"symbol"`
	// OpenTime is the start of the candlestick period.
	OpenTime time.Time `json:"open_time"`
	// Open is the price at the start of the period.
	Open apd.Decimal `json:"open"`
	// High is the highest price during the period.
	High apd.Decimal `json:"high"`
	// Low is the lowest price during the period.
	Low apd.Decimal `json:"low"`
	// Close is the price at the end of the period.
	Close apd.Decimal `json:"close"`
	// Volume is the total traded volume during the period.
	Volume apd.Decimal `json:"volume"`
}

// Timestamp returns the open time in Unix milliseconds, as the venue reports it.
func (k Kline) Timestamp() int64 {
	return k.OpenTime.UnixMilli()
}

// OrderBookLevel represents a single price level in the order book.
type OrderBookLevel struct {
	// Price is the limit price for this level.
	Price apd.Decimal `json:"price"`
	// Quantity is the total quantity available at this price.
	Quantity apd.Decimal `json:"quantity"`
}

// OrderBook represents a depth snapshot for a contract.
// Levels keep the venue ordering: best price first on both sides.
type OrderBook struct {
	// Symbol is the contract for this order book.
	Symbol string `json:"symbol"`
	// Bids are buy levels, highest price first.
	Bids []OrderBookLevel `json:"bids"`
	// Asks are sell levels, lowest price first.
	Asks []OrderBookLevel `json:"asks"`
	// Timestamp is when this snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}
