package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"

	"swapline/pkg/core"
)

// decoder keeps JSON numbers as json.Number so large ids and timestamps
// survive decoding into loosely typed shapes.
var decoder = sonic.Config{UseNumber: true}.Froze()

// rawOrderBook represents the depth response from Binance futures.
type rawOrderBook struct {
	LastUpdateID    int64      `json:"lastUpdateId"`
	EventTime       int64      `json:"E"`
	TransactionTime int64      `json:"T"`
	Bids            [][]string `json:"bids"`
	Asks            [][]string `json:"asks"`
}

// rawBookTicker represents the best bid/ask response.
type rawBookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
	Time     int64  `json:"time"`
}

// rawKline is one positional kline row:
// [openTime, open, high, low, close, volume, closeTime, ...].
type rawKline []any

// rawAssetBalance is one entry of the account assets array.
type rawAssetBalance struct {
	Asset            string `json:"asset"`
	WalletBalance    string `json:"walletBalance"`
	AvailableBalance string `json:"availableBalance"`
}

// rawAccount represents the futures account response.
type rawAccount struct {
	Assets []rawAssetBalance `json:"assets"`
}

// rawOrder represents an order as returned by the order endpoints.
type rawOrder struct {
	OrderID       orderID `json:"orderId"`
	Symbol        string  `json:"symbol"`
	Status        string  `json:"status"`
	ClientOrderID string  `json:"clientOrderId"`
	Price         string  `json:"price"`
	OrigQty       string  `json:"origQty"`
	ExecutedQty   string  `json:"executedQty"`
	TimeInForce   string  `json:"timeInForce"`
	Type          string  `json:"type"`
	Side          string  `json:"side"`
	Time          int64   `json:"time"`
	UpdateTime    int64   `json:"updateTime"`
}

type rawFilter struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"`
	StepSize   string `json:"stepSize"`
	MinQty     string `json:"minQty"`
}

type rawSymbol struct {
	Symbol            string      `json:"symbol"`
	Pair              string      `json:"pair"`
	ContractType      string      `json:"contractType"`
	Status            string      `json:"status"`
	BaseAsset         string      `json:"baseAsset"`
	QuoteAsset        string      `json:"quoteAsset"`
	MarginAsset       string      `json:"marginAsset"`
	PricePrecision    int         `json:"pricePrecision"`
	QuantityPrecision int         `json:"quantityPrecision"`
	Filters           []rawFilter `json:"filters"`
}

type rawExchangeInfo struct {
	Symbols []rawSymbol `json:"symbols"`
}

type rawServerTime struct {
	ServerTime int64 `json:"serverTime"`
}

type rawListenKey struct {
	ListenKey string `json:"listenKey"`
}

// orderID accepts the venue order id as a JSON number or string and keeps
// its literal digits.
type orderID string

func (id *orderID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	if s != "" {
		if _, err := strconv.ParseUint(s, 10, 64); err != nil {
			return fmt.Errorf("order id %q is not an unsigned integer", s)
		}
	}
	*id = orderID(s)
	return nil
}

var errEmptyOrderID = errors.New("response carries no order id")

// Normalizer converts Binance futures payloads to canonical core types.
// The body-taking methods decode and convert; the Normalize* methods are
// the pure conversion stage.
type Normalizer struct{}

// NewNormalizer creates a new Normalizer instance.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func decode(what string, body []byte, v any) error {
	if err := decoder.Unmarshal(body, v); err != nil {
		return core.NewDecodeError(ExchangeName, what, body, err)
	}
	return nil
}

// OrderBook decodes a depth response.
func (n *Normalizer) OrderBook(body []byte, symbol string) (*core.OrderBook, error) {
	var raw rawOrderBook
	if err := decode("order book", body, &raw); err != nil {
		return nil, err
	}
	ob, err := n.NormalizeOrderBook(&raw, symbol)
	if err != nil {
		return nil, core.NewDecodeError(ExchangeName, "order book", body, err)
	}
	return ob, nil
}

// Ticker decodes a book ticker response.
func (n *Normalizer) Ticker(body []byte) (*core.Ticker, error) {
	var raw rawBookTicker
	if err := decode("ticker", body, &raw); err != nil {
		return nil, err
	}
	t, err := n.NormalizeTicker(&raw)
	if err != nil {
		return nil, core.NewDecodeError(ExchangeName, "ticker", body, err)
	}
	return t, nil
}

// Klines decodes a klines response.
func (n *Normalizer) Klines(body []byte, symbol string) ([]core.Kline, error) {
	var raw []rawKline
	if err := decode("klines", body, &raw); err != nil {
		return nil, err
	}
	klines, err := n.NormalizeKlines(raw, symbol)
	if err != nil {
		return nil, core.NewDecodeError(ExchangeName, "klines", body, err)
	}
	return klines, nil
}

// Balance decodes an account response and picks out asset. An asset absent
// from the account is a not-found error, never a zero balance.
func (n *Normalizer) Balance(body []byte, asset string) (*core.Balance, error) {
	var raw rawAccount
	if err := decode("account", body, &raw); err != nil {
		return nil, err
	}

	for i := range raw.Assets {
		if raw.Assets[i].Asset != asset {
			continue
		}
		b, err := n.NormalizeBalance(&raw.Assets[i])
		if err != nil {
			return nil, core.NewDecodeError(ExchangeName, "account", body, err)
		}
		return b, nil
	}

	return nil, core.NewNotFoundError(ExchangeName, fmt.Sprintf("asset %s not found", asset))
}

// Order decodes a single order response.
func (n *Normalizer) Order(body []byte) (*core.Order, error) {
	var raw rawOrder
	if err := decode("order", body, &raw); err != nil {
		return nil, err
	}
	o, err := n.NormalizeOrder(&raw)
	if err != nil {
		return nil, core.NewDecodeError(ExchangeName, "order", body, err)
	}
	return o, nil
}

// Orders decodes an order list response.
func (n *Normalizer) Orders(body []byte) ([]core.Order, error) {
	var raw []rawOrder
	if err := decode("orders", body, &raw); err != nil {
		return nil, err
	}
	orders, err := n.NormalizeOrders(raw)
	if err != nil {
		return nil, core.NewDecodeError(ExchangeName, "orders", body, err)
	}
	return orders, nil
}

// OrderID decodes an order creation response down to its canonical id.
func (n *Normalizer) OrderID(body []byte) (string, error) {
	var raw rawOrder
	if err := decode("order result", body, &raw); err != nil {
		return "", err
	}
	if raw.OrderID == "" {
		return "", core.NewDecodeError(ExchangeName, "order result", body, errEmptyOrderID)
	}
	return string(raw.OrderID), nil
}

// Symbols decodes an exchange info response.
func (n *Normalizer) Symbols(body []byte) ([]core.SymbolInfo, error) {
	var raw rawExchangeInfo
	if err := decode("exchange info", body, &raw); err != nil {
		return nil, err
	}
	symbols, err := n.NormalizeSymbols(raw.Symbols)
	if err != nil {
		return nil, core.NewDecodeError(ExchangeName, "exchange info", body, err)
	}
	return symbols, nil
}

// ServerTime decodes the venue clock response.
func (n *Normalizer) ServerTime(body []byte) (time.Time, error) {
	var raw rawServerTime
	if err := decode("server time", body, &raw); err != nil {
		return time.Time{}, err
	}
	if raw.ServerTime <= 0 {
		return time.Time{}, core.NewDecodeError(ExchangeName, "server time", body, errors.New("missing serverTime"))
	}
	return time.UnixMilli(raw.ServerTime), nil
}

// ListenKey decodes a user stream creation response.
func (n *Normalizer) ListenKey(body []byte) (string, error) {
	var raw rawListenKey
	if err := decode("listen key", body, &raw); err != nil {
		return "", err
	}
	if raw.ListenKey == "" {
		return "", core.NewDecodeError(ExchangeName, "listen key", body, errors.New("empty listenKey"))
	}
	return raw.ListenKey, nil
}

// NormalizeOrderBook converts a depth snapshot, keeping the venue level order.
func (n *Normalizer) NormalizeOrderBook(data *rawOrderBook, symbol string) (*core.OrderBook, error) {
	orderBook := &core.OrderBook{
		Symbol:    symbol,
		Timestamp: firstTime(data.TransactionTime, data.EventTime),
	}

	bids, err := n.normalizeOrderBookLevels(data.Bids)
	if err != nil {
		return nil, fmt.Errorf("normalize bids: %w", err)
	}
	orderBook.Bids = bids

	asks, err := n.normalizeOrderBookLevels(data.Asks)
	if err != nil {
		return nil, fmt.Errorf("normalize asks: %w", err)
	}
	orderBook.Asks = asks

	return orderBook, nil
}

func (n *Normalizer) normalizeOrderBookLevels(levels [][]string) ([]core.OrderBookLevel, error) {
	result := make([]core.OrderBookLevel, 0, len(levels))

	for i, level := range levels {
		if len(level) < 2 {
			return nil, fmt.Errorf("level %d has %d elements", i, len(level))
		}

		var obl core.OrderBookLevel
		if err := requireDecimal(&obl.Price, level[0]); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}

		if err := requireDecimal(&obl.Quantity, level[1]); err != nil {
			return nil, fmt.Errorf("parse quantity: %w", err)
		}

		result = append(result, obl)
	}

	return result, nil
}

// NormalizeTicker converts a book ticker.
func (n *Normalizer) NormalizeTicker(data *rawBookTicker) (*core.Ticker, error) {
	ticker := &core.Ticker{
		Symbol:    data.Symbol,
		Timestamp: firstTime(data.Time),
	}

	fields := []struct {
		name string
		dest *apd.Decimal
		src  string
	}{
		{"bidPrice", &ticker.Bid, data.BidPrice},
		{"bidQty", &ticker.BidQty, data.BidQty},
		{"askPrice", &ticker.Ask, data.AskPrice},
		{"askQty", &ticker.AskQty, data.AskQty},
	}
	for _, f := range fields {
		if err := requireDecimal(f.dest, f.src); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}

	return ticker, nil
}

// NormalizeKline converts one positional kline row. Every numeric field may
// be a JSON number or a numeric string.
func (n *Normalizer) NormalizeKline(data rawKline, symbol string) (*core.Kline, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("insufficient kline data elements: %d", len(data))
	}

	openTime, err := int64FromAny(data[0])
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}

	kline := &core.Kline{
		Symbol:   symbol,
		OpenTime: time.UnixMilli(openTime),
	}

	fields := []struct {
		name string
		dest *apd.Decimal
	}{
		{"open", &kline.Open},
		{"high", &kline.High},
		{"low", &kline.Low},
		{"close", &kline.Close},
		{"volume", &kline.Volume},
	}
	for i, f := range fields {
		if err := decimalFromAny(f.dest, data[i+1]); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}

	return kline, nil
}

// NormalizeKlines converts multiple kline rows.
func (n *Normalizer) NormalizeKlines(data []rawKline, symbol string) ([]core.Kline, error) {
	klines := make([]core.Kline, 0, len(data))
	for i, k := range data {
		kline, err := n.NormalizeKline(k, symbol)
		if err != nil {
			return nil, fmt.Errorf("normalize kline %d: %w", i, err)
		}
		klines = append(klines, *kline)
	}
	return klines, nil
}

// NormalizeBalance converts one asset entry; Locked is wallet minus available.
func (n *Normalizer) NormalizeBalance(data *rawAssetBalance) (*core.Balance, error) {
	var wallet apd.Decimal
	balance := &core.Balance{Asset: data.Asset}

	if err := requireDecimal(&balance.Free, data.AvailableBalance); err != nil {
		return nil, fmt.Errorf("parse availableBalance: %w", err)
	}
	if err := requireDecimal(&wallet, data.WalletBalance); err != nil {
		return nil, fmt.Errorf("parse walletBalance: %w", err)
	}
	if _, err := apd.BaseContext.Sub(&balance.Locked, &wallet, &balance.Free); err != nil {
		return nil, fmt.Errorf("calculate locked: %w", err)
	}

	return balance, nil
}

// NormalizeOrder converts a Binance order to a canonical Order.
// It calculates the remaining quantity from total and filled quantities.
// Price and executedQty may be absent; every other field must be present
// and known.
func (n *Normalizer) NormalizeOrder(data *rawOrder) (*core.Order, error) {
	if data.OrderID == "" {
		return nil, errEmptyOrderID
	}

	order := &core.Order{
		ID:            string(data.OrderID),
		ClientOrderID: data.ClientOrderID,
		Symbol:        data.Symbol,
	}

	var err error
	if order.Side, err = core.ParseOrderSide(data.Side); err != nil {
		return nil, err
	}
	if order.Type, err = core.ParseOrderType(data.Type); err != nil {
		return nil, err
	}
	if order.Status, err = parseOrderStatus(data.Status); err != nil {
		return nil, err
	}
	if order.TimeInForce, err = core.ParseTimeInForce(data.TimeInForce); err != nil {
		return nil, err
	}

	if err := parseDecimal(&order.Price, data.Price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if err := requireDecimal(&order.Quantity, data.OrigQty); err != nil {
		return nil, fmt.Errorf("parse origQty: %w", err)
	}
	if err := parseDecimal(&order.FilledQuantity, data.ExecutedQty); err != nil {
		return nil, fmt.Errorf("parse executedQty: %w", err)
	}

	if data.Time > 0 {
		order.CreatedAt = time.UnixMilli(data.Time)
	}

	if data.UpdateTime > 0 {
		order.UpdatedAt = time.UnixMilli(data.UpdateTime)
	}

	if _, err := apd.BaseContext.Sub(&order.RemainingQty, &order.Quantity, &order.FilledQuantity); err != nil {
		return nil, fmt.Errorf("calculate remaining: %w", err)
	}

	return order, nil
}

// NormalizeOrders converts multiple Binance orders to canonical Orders.
func (n *Normalizer) NormalizeOrders(data []rawOrder) ([]core.Order, error) {
	orders := make([]core.Order, 0, len(data))
	for i := range data {
		order, err := n.NormalizeOrder(&data[i])
		if err != nil {
			return nil, fmt.Errorf("normalize order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// NormalizeSymbols converts exchange info symbols, reading tick and lot
// sizes from the PRICE_FILTER and LOT_SIZE filters.
func (n *Normalizer) NormalizeSymbols(data []rawSymbol) ([]core.SymbolInfo, error) {
	symbols := make([]core.SymbolInfo, 0, len(data))
	for _, s := range data {
		info := core.SymbolInfo{
			Symbol:            s.Symbol,
			Pair:              s.Pair,
			ContractType:      s.ContractType,
			Status:            s.Status,
			BaseAsset:         s.BaseAsset,
			QuoteAsset:        s.QuoteAsset,
			MarginAsset:       s.MarginAsset,
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
		}

		for _, f := range s.Filters {
			var err error
			switch f.FilterType {
			case "PRICE_FILTER":
				err = parseDecimal(&info.TickSize, f.TickSize)
			case "LOT_SIZE":
				if err = parseDecimal(&info.StepSize, f.StepSize); err == nil {
					err = parseDecimal(&info.MinQty, f.MinQty)
				}
			}
			if err != nil {
				return nil, fmt.Errorf("symbol %s filter %s: %w", s.Symbol, f.FilterType, err)
			}
		}

		symbols = append(symbols, info)
	}
	return symbols, nil
}

func firstTime(millis ...int64) time.Time {
	for _, ms := range millis {
		if ms > 0 {
			return time.UnixMilli(ms)
		}
	}
	return time.Now()
}

var errMissingField = errors.New("missing value")

// requireDecimal is parseDecimal for fields the venue always sends.
func requireDecimal(dest *apd.Decimal, s string) error {
	if s == "" {
		return errMissingField
	}
	return parseDecimal(dest, s)
}

// parseDecimal leaves dest zero when s is empty.
func parseDecimal(dest *apd.Decimal, s string) error {
	if s == "" {
		*dest = apd.Decimal{}
		return nil
	}

	_, _, err := apd.BaseContext.SetString(dest, s)
	if err != nil {
		return fmt.Errorf("set decimal from string: %w", err)
	}

	return nil
}

// decimalFromAny accepts the shapes a numeric field takes in loosely typed
// payloads: a numeric string, a json.Number, or a float64.
func decimalFromAny(dest *apd.Decimal, val any) error {
	switch v := val.(type) {
	case string:
		if v == "" {
			return errors.New("empty numeric string")
		}
		return parseDecimal(dest, v)
	case json.Number:
		return parseDecimal(dest, v.String())
	case float64:
		return parseDecimal(dest, strconv.FormatFloat(v, 'f', -1, 64))
	case int64:
		dest.SetInt64(v)
		return nil
	default:
		return fmt.Errorf("unsupported type for decimal: %T", val)
	}
}

// int64FromAny is the integer counterpart of decimalFromAny. Exponent forms
// are accepted; a fractional value is an error.
func int64FromAny(val any) (int64, error) {
	var d apd.Decimal
	if err := decimalFromAny(&d, val); err != nil {
		return 0, err
	}
	return d.Int64()
}

// parseOrderStatus maps venue statuses onto the canonical set. The
// liquidation statuses are working orders placed by the venue's
// insurance fund or ADL engine.
func parseOrderStatus(s string) (core.OrderStatus, error) {
	switch s {
	case "NEW_INSURANCE", "NEW_ADL":
		return core.StatusNew, nil
	case "EXPIRED_IN_MATCH":
		return core.StatusExpired, nil
	default:
		return core.ParseOrderStatus(s)
	}
}
