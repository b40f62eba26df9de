package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"

	"swapline/pkg/core"
)

const (
	ProductionURL = "https://fapi.binance.com"
	TestnetURL    = "https://testnet.binancefuture.com"
)

// ExchangeName identifies the binding in errors, logs and containers.
const ExchangeName = "binance"

const (
	pathDepth         = "/fapi/v1/depth"
	pathBookTicker    = "/fapi/v1/ticker/bookTicker"
	pathKlines        = "/fapi/v1/klines"
	pathAccount       = "/fapi/v2/account"
	pathOrder         = "/fapi/v1/order"
	pathAllOpenOrders = "/fapi/v1/allOpenOrders"
	pathOpenOrders    = "/fapi/v1/openOrders"
	pathExchangeInfo  = "/fapi/v1/exchangeInfo"
	pathTime          = "/fapi/v1/time"
	pathListenKey     = "/fapi/v1/listenKey"
)

const (
	paramRecvWindow = "recvWindow"
	paramTimestamp  = "timestamp"
	paramSignature  = "signature"
	paramListenKey  = "listenKey"
)

type route struct {
	method   string
	path     string
	auth     bool
	required []string
}

var routes = map[core.Operation]route{
	core.OpGetOrderBook:        {http.MethodGet, pathDepth, false, []string{"symbol"}},
	core.OpGetTicker:           {http.MethodGet, pathBookTicker, false, []string{"symbol"}},
	core.OpGetKlines:           {http.MethodGet, pathKlines, false, []string{"symbol", "interval"}},
	core.OpGetBalance:          {http.MethodGet, pathAccount, true, nil},
	core.OpPlaceOrder:          {http.MethodPost, pathOrder, true, []string{"symbol", "side", "type", "quantity"}},
	core.OpCancelOrder:         {http.MethodDelete, pathOrder, true, []string{"orderId"}},
	core.OpCancelAllOrders:     {http.MethodDelete, pathAllOpenOrders, true, []string{"symbol"}},
	core.OpGetOrder:            {http.MethodGet, pathOrder, true, []string{"orderId"}},
	core.OpGetOpenOrders:       {http.MethodGet, pathOpenOrders, true, nil},
	core.OpGetSymbols:          {http.MethodGet, pathExchangeInfo, false, nil},
	core.OpGetServerTime:       {http.MethodGet, pathTime, false, nil},
	core.OpStartUserStream:     {http.MethodPost, pathListenKey, false, nil},
	core.OpKeepAliveUserStream: {http.MethodPut, pathListenKey, false, []string{paramListenKey}},
	core.OpCloseUserStream:     {http.MethodDelete, pathListenKey, false, []string{paramListenKey}},
}

var _ core.Protocol = (*Protocol)(nil)

// Protocol maps operations onto USDⓈ-M futures endpoints.
type Protocol struct{}

// NewProtocol creates a new Binance futures protocol instance.
func NewProtocol() *Protocol {
	return &Protocol{}
}

// Name returns the protocol identifier "binance".
func (p *Protocol) Name() string {
	return ExchangeName
}

// SupportedOperations returns the operations BuildRequest accepts.
// OpGetOrderHistory is deliberately absent.
func (p *Protocol) SupportedOperations() []core.Operation {
	ops := make([]core.Operation, 0, len(routes))
	for op := core.OpGetOrderBook; op <= core.OpCloseUserStream; op++ {
		if _, ok := routes[op]; ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// BuildRequest constructs the request for op. Session-key operations carry
// their key as a form body; every other parameter goes to the query.
func (p *Protocol) BuildRequest(op core.Operation, params core.Params) (*core.Request, error) {
	rt, ok := routes[op]
	if !ok {
		return nil, core.NewUnsupportedError(ExchangeName, op)
	}

	for _, key := range rt.required {
		if params[key] == "" {
			return nil, core.NewBadRequestError(ExchangeName, fmt.Errorf("missing required parameter: %s", key))
		}
	}

	req := core.NewRequest(op, rt.method, rt.path).SetRequireAuth(rt.auth)

	switch op {
	case core.OpKeepAliveUserStream, core.OpCloseUserStream:
		req.SetBody(core.Params{paramListenKey: params[paramListenKey]}.Encode())
	default:
		for k, v := range params {
			if v != "" {
				req.SetQuery(k, v)
			}
		}
	}

	return req, nil
}

// BuildSignedQuery returns the canonical query for params with recvWindow
// and timestamp injected. params itself is left untouched. An unavailable
// clock aborts the request with a clock error.
func BuildSignedQuery(params core.Params, recvWindow int64, clock Clock) (string, error) {
	ts, err := clock.NowMillis()
	if err != nil {
		return "", core.NewClockError(ExchangeName, err)
	}

	working := params.Clone()
	working[paramRecvWindow] = strconv.FormatInt(recvWindow, 10)
	working[paramTimestamp] = strconv.FormatInt(ts, 10)

	return working.Encode(), nil
}

// SignQuery appends the signature of query to it.
func SignQuery(query, secret string) string {
	return query + "&" + paramSignature + "=" + Sign(secret, query)
}

// Sign returns the lowercase hex HMAC-SHA256 of query keyed by secret.
func Sign(secret, query string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// formatDecimal renders d in plain notation, never with an exponent.
func formatDecimal(d *apd.Decimal) string {
	return d.Text('f')
}

type binanceAPIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// enrichAPIError attaches the venue code and message carried by an error
// body. The error stays an API error whatever the body says.
func enrichAPIError(err error) error {
	exErr, ok := err.(*core.ExchangeError)
	if !ok || exErr.Type != core.ErrorTypeAPI || exErr.Body == "" {
		return err
	}

	var apiErr binanceAPIError
	if sonic.UnmarshalString(exErr.Body, &apiErr) != nil || apiErr.Code == 0 {
		return err
	}

	exErr.Code = string(mapBinanceErrorCode(apiErr.Code, exErr.StatusCode))
	exErr.Message = fmt.Sprintf("%s: code=%d msg=%s", exErr.Message, apiErr.Code, apiErr.Msg)
	return exErr
}

func mapBinanceErrorCode(code, status int) core.ErrorCode {
	switch code {
	case -1003, -1015:
		return core.ErrCodeRateLimit
	case -1021:
		return core.ErrCodeTimestamp
	case -1002, -1022, -2014, -2015:
		return core.ErrCodeAuth
	case -1121:
		return core.ErrCodeInvalidSymbol
	case -2011, -2013:
		return core.ErrCodeOrderNotFound
	case -2018, -2019:
		return core.ErrCodeInsufficientFunds
	}

	switch {
	case code <= -1100 && code > -1200:
		return core.ErrCodeBadRequest
	case code <= -2000 && code > -5000:
		return core.ErrCodeInvalidOrder
	case status >= http.StatusInternalServerError:
		return core.ErrCodeServerError
	default:
		return core.ErrCodeBadRequest
	}
}
