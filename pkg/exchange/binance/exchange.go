package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	httpClient "swapline/internal/http"
	"swapline/pkg/core"
	"swapline/pkg/exchange"
)

var _ exchange.Exchange = (*Swap)(nil)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(decimalValue, apd.Decimal{})
	return v
}

// decimalValue lets numeric tags such as gt=0 apply to apd.Decimal fields.
func decimalValue(field reflect.Value) any {
	d, ok := field.Interface().(apd.Decimal)
	if !ok {
		return nil
	}
	f, err := d.Float64()
	if err != nil {
		return nil
	}
	return f
}

var errNilOrderQuery = errors.New("nil order query")

// Swap implements exchange.Exchange for Binance USDⓈ-M perpetual futures.
// It is safe for concurrent use; credentials and host are fixed at construction.
type Swap struct {
	config     *core.Config
	creds      core.Credentials
	httpClient *httpClient.Client
	protocol   core.Protocol
	normalizer *Normalizer
	clock      Clock
	logger     zerolog.Logger
}

// Option is a functional option for configuring the Swap binding.
type Option func(*Options)

// Options holds configuration options for the Swap binding.
type Options struct {
	Logger   zerolog.Logger
	Clock    Clock
	Registry prometheus.Registerer
}

// WithLogger returns an option that sets the logger for the exchange.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithClock replaces the timestamp source of signed requests.
func WithClock(c Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

// WithMetrics registers request metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registry = reg
	}
}

// New creates a Swap binding for config.Host with config's credentials.
func New(config *core.Config, opts ...Option) (*Swap, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	options := &Options{
		Logger: zerolog.Nop(),
		Clock:  SystemClock{},
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.Logger.With().Str("exchange", ExchangeName).Logger()
	if config.LogLevel != "" {
		level, err := zerolog.ParseLevel(config.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		logger = logger.Level(level)
	}

	var metrics *httpClient.Metrics
	if options.Registry != nil {
		m, err := httpClient.NewMetrics(options.Registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		metrics = m
	}

	creds := config.Creds()

	client, err := httpClient.NewClient(&httpClient.Config{
		Exchange:  ExchangeName,
		BaseURL:   config.Host,
		Timeout:   config.Timeout,
		UserAgent: config.UserAgent,
		APIKey:    creds.APIKey,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	return &Swap{
		config:     config,
		creds:      creds,
		httpClient: client,
		protocol:   NewProtocol(),
		normalizer: NewNormalizer(),
		clock:      options.Clock,
		logger:     logger,
	}, nil
}

// Register builds a Swap binding and adds it to container under its name.
func Register(container *exchange.Container, config *core.Config, opts ...Option) (*Swap, error) {
	swap, err := New(config, opts...)
	if err != nil {
		return nil, err
	}
	container.Register(swap)
	return swap, nil
}

// Name returns the exchange identifier "binance".
func (e *Swap) Name() string {
	return ExchangeName
}

// Close releases the HTTP client. Calls made afterwards fail.
func (e *Swap) Close() error {
	return e.httpClient.Close()
}

// GetOrderBook retrieves up to depth levels per side; depth <= 0 leaves the
// venue default.
func (e *Swap) GetOrderBook(ctx context.Context, symbol string, depth int) (*core.OrderBook, error) {
	params := core.Params{"symbol": symbol}
	if depth > 0 {
		params["limit"] = strconv.Itoa(depth)
	}

	body, err := e.call(ctx, core.OpGetOrderBook, params)
	if err != nil {
		return nil, err
	}
	return e.normalizer.OrderBook(body, symbol)
}

// GetTicker retrieves the best bid and ask for symbol.
func (e *Swap) GetTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	body, err := e.call(ctx, core.OpGetTicker, core.Params{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	return e.normalizer.Ticker(body)
}

// GetKlines retrieves candles of the given period, e.g. "1m" or "4h".
func (e *Swap) GetKlines(ctx context.Context, symbol, period string, limit int) ([]core.Kline, error) {
	params := core.Params{
		"symbol":   symbol,
		"interval": period,
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	body, err := e.call(ctx, core.OpGetKlines, params)
	if err != nil {
		return nil, err
	}
	return e.normalizer.Klines(body, symbol)
}

// GetBalance returns the futures wallet balance of asset.
func (e *Swap) GetBalance(ctx context.Context, asset string) (*core.Balance, error) {
	body, err := e.call(ctx, core.OpGetBalance, nil)
	if err != nil {
		return nil, err
	}
	return e.normalizer.Balance(body, asset)
}

// CreateOrder places a GTC order and returns the venue order id. A zero
// price is left out so market orders pass.
func (e *Swap) CreateOrder(ctx context.Context, req *exchange.OrderRequest) (string, error) {
	if err := validate.Struct(req); err != nil {
		return "", core.NewBadRequestError(ExchangeName, err)
	}

	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}

	params := core.Params{
		"symbol":           req.Symbol,
		"side":             req.Side.String(),
		"type":             req.Type.String(),
		"timeInForce":      core.GTC.String(),
		"quantity":         formatDecimal(&req.Quantity),
		"newClientOrderId": clientOrderID,
	}
	if !req.Price.IsZero() {
		params["price"] = formatDecimal(&req.Price)
	}

	body, err := e.call(ctx, core.OpPlaceOrder, params)
	if err != nil {
		return "", err
	}

	id, err := e.normalizer.OrderID(body)
	if err != nil {
		return "", err
	}

	e.logger.Info().
		Str("symbol", req.Symbol).
		Str("order_id", id).
		Str("client_order_id", clientOrderID).
		Msg("order created")
	return id, nil
}

// Cancel asks the venue to cancel one order.
func (e *Swap) Cancel(ctx context.Context, query *exchange.OrderQuery) (bool, error) {
	params, err := orderParams(query)
	if err != nil {
		return false, err
	}

	if _, err := e.call(ctx, core.OpCancelOrder, params); err != nil {
		return false, err
	}
	return true, nil
}

// CancelAll asks the venue to cancel every open order on symbol.
func (e *Swap) CancelAll(ctx context.Context, symbol string) (bool, error) {
	if _, err := e.call(ctx, core.OpCancelAllOrders, core.Params{"symbol": symbol}); err != nil {
		return false, err
	}
	return true, nil
}

// GetOrder retrieves the current state of one order.
func (e *Swap) GetOrder(ctx context.Context, query *exchange.OrderQuery) (*core.Order, error) {
	params, err := orderParams(query)
	if err != nil {
		return nil, err
	}

	body, err := e.call(ctx, core.OpGetOrder, params)
	if err != nil {
		return nil, err
	}
	return e.normalizer.Order(body)
}

// GetOpenOrders lists open orders on symbol, or on every symbol when empty.
func (e *Swap) GetOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	body, err := e.call(ctx, core.OpGetOpenOrders, core.Params{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	return e.normalizer.Orders(body)
}

// GetHistoryOrders is not offered by this binding and always fails with an
// unsupported error.
func (e *Swap) GetHistoryOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	_, err := e.call(ctx, core.OpGetOrderHistory, core.Params{"symbol": symbol})
	if err == nil {
		err = core.NewUnsupportedError(ExchangeName, core.OpGetOrderHistory)
	}
	return nil, err
}

// GetSymbols lists the contracts the venue trades.
func (e *Swap) GetSymbols(ctx context.Context) ([]core.SymbolInfo, error) {
	body, err := e.call(ctx, core.OpGetSymbols, nil)
	if err != nil {
		return nil, err
	}
	return e.normalizer.Symbols(body)
}

// ServerTime returns the venue clock. Pair it with OffsetClock to correct
// local skew.
func (e *Swap) ServerTime(ctx context.Context) (time.Time, error) {
	body, err := e.call(ctx, core.OpGetServerTime, nil)
	if err != nil {
		return time.Time{}, err
	}
	return e.normalizer.ServerTime(body)
}

// StartUserStream opens a user data stream and returns its listen key.
func (e *Swap) StartUserStream(ctx context.Context) (string, error) {
	body, err := e.call(ctx, core.OpStartUserStream, nil)
	if err != nil {
		return "", err
	}
	return e.normalizer.ListenKey(body)
}

// KeepAliveUserStream extends the validity of listenKey.
func (e *Swap) KeepAliveUserStream(ctx context.Context, listenKey string) error {
	_, err := e.call(ctx, core.OpKeepAliveUserStream, core.Params{paramListenKey: listenKey})
	return err
}

// CloseUserStream invalidates listenKey.
func (e *Swap) CloseUserStream(ctx context.Context, listenKey string) error {
	_, err := e.call(ctx, core.OpCloseUserStream, core.Params{paramListenKey: listenKey})
	return err
}

func orderParams(query *exchange.OrderQuery) (core.Params, error) {
	if query == nil {
		return nil, core.NewBadRequestError(ExchangeName, errNilOrderQuery)
	}
	if err := validate.Struct(query); err != nil {
		return nil, core.NewBadRequestError(ExchangeName, err)
	}

	params := core.Params{"orderId": query.OrderID}
	if query.Symbol != "" {
		params["symbol"] = query.Symbol
	}
	return params, nil
}

// call builds, signs when the route requires it, and dispatches op.
func (e *Swap) call(ctx context.Context, op core.Operation, params core.Params) ([]byte, error) {
	req, err := e.protocol.BuildRequest(op, params)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("op", op.String()).
		Str("method", req.Method).
		Str("path", req.Path).
		Bool("signed", req.RequireAuth).
		Msg("dispatch")

	var body []byte
	if req.RequireAuth {
		body, err = e.doSigned(ctx, req)
	} else {
		body, err = e.doPublic(ctx, req)
	}
	if err != nil {
		return nil, enrichAPIError(err)
	}
	return body, nil
}

func (e *Swap) doPublic(ctx context.Context, req *core.Request) ([]byte, error) {
	switch req.Method {
	case http.MethodGet:
		return e.httpClient.Get(ctx, req.Path, req.Query.Encode())
	case http.MethodPost:
		return e.httpClient.Post(ctx, req.Path, req.Body)
	case http.MethodPut:
		return e.httpClient.Put(ctx, req.Path, req.Body)
	case http.MethodDelete:
		return e.httpClient.Delete(ctx, req.Path, req.Body)
	default:
		return nil, fmt.Errorf("unsupported method %s for %s", req.Method, req.Operation)
	}
}

func (e *Swap) doSigned(ctx context.Context, req *core.Request) ([]byte, error) {
	query, err := BuildSignedQuery(req.Query, e.config.RecvWindow, e.clock)
	if err != nil {
		return nil, err
	}
	signed := SignQuery(query, e.creds.SecretKey)

	switch req.Method {
	case http.MethodGet:
		return e.httpClient.GetSigned(ctx, req.Path, signed)
	case http.MethodPost:
		return e.httpClient.PostSigned(ctx, req.Path, signed)
	case http.MethodDelete:
		return e.httpClient.DeleteSigned(ctx, req.Path, signed)
	default:
		return nil, fmt.Errorf("unsupported signed method %s for %s", req.Method, req.Operation)
	}
}
