package binance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapline/pkg/core"
	"swapline/pkg/exchange"
)

const (
	testKey    = "test-api-key"
	testSecret = "test-secret"
	testNow    = int64(1700000000000)
)

type hit struct {
	method      string
	path        string
	rawQuery    string
	body        string
	apiKey      string
	contentType string
}

// fakeVenue answers by "METHOD /path" and records every request.
type fakeVenue struct {
	mu        sync.Mutex
	hits      []hit
	responses map[string]string
	status    int
}

func (f *fakeVenue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.hits = append(f.hits, hit{
		method:      r.Method,
		path:        r.URL.Path,
		rawQuery:    r.URL.RawQuery,
		body:        string(body),
		apiKey:      r.Header.Get("X-MBX-APIKEY"),
		contentType: r.Header.Get("Content-Type"),
	})
	status := f.status
	response, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	if !ok && status == http.StatusOK {
		status = http.StatusNotFound
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

func (f *fakeVenue) last(t *testing.T) hit {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.hits)
	return f.hits[len(f.hits)-1]
}

func (f *fakeVenue) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hits)
}

func newTestSwap(t *testing.T, venue *fakeVenue, creds *core.Credentials, opts ...Option) *Swap {
	t.Helper()

	srv := httptest.NewServer(venue)
	t.Cleanup(srv.Close)

	config := core.DefaultConfig(ExchangeName, srv.URL).WithCredentials(creds)
	opts = append([]Option{WithClock(fixedClock(testNow)), WithLogger(zerolog.Nop())}, opts...)

	swap, err := New(config, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = swap.Close() })

	return swap
}

// assertSigned checks that the query ends with a signature over everything
// before it.
func assertSigned(t *testing.T, rawQuery, secret string) url.Values {
	t.Helper()

	payload, sig, ok := strings.Cut(rawQuery, "&signature=")
	require.True(t, ok, "query %q carries no signature", rawQuery)
	assert.Regexp(t, hexSignature, sig)
	assert.Equal(t, Sign(secret, payload), sig)

	values, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	assert.Equal(t, "5000", values.Get("recvWindow"))
	assert.Equal(t, "1700000000000", values.Get("timestamp"))
	return values
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(core.DefaultConfig(ExchangeName, ""))
	assert.Error(t, err)

	config := core.DefaultConfig(ExchangeName, ProductionURL)
	config.RecvWindow = 0
	_, err = New(config)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	swap, err := New(core.DefaultConfig(ExchangeName, TestnetURL))
	require.NoError(t, err)
	defer swap.Close()

	assert.Equal(t, "binance", swap.Name())
	assert.IsType(t, SystemClock{}, swap.clock)
}

func TestRegister(t *testing.T) {
	container := exchange.NewContainer()

	swap, err := Register(container, core.DefaultConfig(ExchangeName, TestnetURL))
	require.NoError(t, err)

	got, err := container.Get(ExchangeName)
	require.NoError(t, err)
	assert.Same(t, swap, got)

	require.NoError(t, container.Close())
}

func TestSwap_GetOrderBook(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"GET /fapi/v1/depth": `{"lastUpdateId":1,"E":1700000000001,"T":1700000000000,
			"bids":[["100.1","2"],["100.0","1"]],"asks":[["100.2","3"]]}`,
	}}
	swap := newTestSwap(t, venue, nil)

	ob, err := swap.GetOrderBook(context.Background(), "BTCUSDT", 5)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", ob.Symbol)
	require.Len(t, ob.Bids, 2)
	assert.Equal(t, "100.1", ob.Bids[0].Price.String())
	assert.Equal(t, "100.2", ob.Asks[0].Price.String())

	h := venue.last(t)
	assert.Equal(t, http.MethodGet, h.method)
	assert.Equal(t, "limit=5&symbol=BTCUSDT", h.rawQuery)
	assert.Empty(t, h.apiKey)
	assert.NotContains(t, h.rawQuery, "signature")
}

func TestSwap_GetTicker(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"GET /fapi/v1/ticker/bookTicker": `{"symbol":"BTCUSDT","bidPrice":"100.1","bidQty":"2","askPrice":"100.2","askQty":"3","time":1700000000000}`,
	}}
	swap := newTestSwap(t, venue, nil)

	ticker, err := swap.GetTicker(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "100.1", ticker.Bid.String())
	assert.Equal(t, "100.2", ticker.Ask.String())
	assert.Equal(t, "symbol=BTCUSDT", venue.last(t).rawQuery)
}

func TestSwap_GetKlines(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"GET /fapi/v1/klines": `[[1620000000000,"100.5","101.0","99.8","100.9","12.3",1620000059999,"0",1,"0","0","0"]]`,
	}}
	swap := newTestSwap(t, venue, nil)

	klines, err := swap.GetKlines(context.Background(), "BTCUSDT", "1m", 1)
	require.NoError(t, err)
	require.Len(t, klines, 1)
	assert.Equal(t, int64(1620000000000), klines[0].Timestamp())
	assert.Equal(t, "12.3", klines[0].Volume.String())
	assert.Equal(t, "interval=1m&limit=1&symbol=BTCUSDT", venue.last(t).rawQuery)
}

func TestSwap_GetKlinesRequiresPeriod(t *testing.T) {
	venue := &fakeVenue{}
	swap := newTestSwap(t, venue, nil)

	_, err := swap.GetKlines(context.Background(), "BTCUSDT", "", 10)
	assert.True(t, core.IsBadRequest(err))
	assert.Zero(t, venue.count())
}

func TestSwap_GetBalance(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"GET /fapi/v2/account": `{"assets":[{"asset":"USDT","walletBalance":"150","availableBalance":"100"}]}`,
	}}
	swap := newTestSwap(t, venue, &core.Credentials{APIKey: testKey, SecretKey: testSecret})

	b, err := swap.GetBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, "100", b.Free.String())
	assert.Equal(t, "50", b.Locked.String())

	h := venue.last(t)
	assert.Equal(t, testKey, h.apiKey)
	assert.Equal(t, "recvWindow=5000&timestamp=1700000000000&signature="+Sign(testSecret, "recvWindow=5000&timestamp=1700000000000"), h.rawQuery)
	assertSigned(t, h.rawQuery, testSecret)

	_, err = swap.GetBalance(context.Background(), "BTC")
	assert.True(t, core.IsNotFound(err))
}

func TestSwap_CreateOrder(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"POST /fapi/v1/order": `{"orderId":3948174629,"symbol":"BTCUSDT","status":"NEW","clientOrderId":"my-id"}`,
	}}
	swap := newTestSwap(t, venue, &core.Credentials{APIKey: testKey, SecretKey: testSecret})

	price, _, _ := apd.NewFromString("30000.5")
	qty, _, _ := apd.NewFromString("1E-3")

	id, err := swap.CreateOrder(context.Background(), &exchange.OrderRequest{
		Symbol:        "BTCUSDT",
		Side:          core.SideBuy,
		Type:          core.TypeLimit,
		Price:         *price,
		Quantity:      *qty,
		ClientOrderID: "my-id",
	})
	require.NoError(t, err)
	assert.Equal(t, "3948174629", id)

	h := venue.last(t)
	assert.Equal(t, http.MethodPost, h.method)
	assert.Equal(t, "/fapi/v1/order", h.path)
	assert.Equal(t, testKey, h.apiKey)
	assert.Empty(t, h.body)

	values := assertSigned(t, h.rawQuery, testSecret)
	assert.Equal(t, "BTCUSDT", values.Get("symbol"))
	assert.Equal(t, "BUY", values.Get("side"))
	assert.Equal(t, "LIMIT", values.Get("type"))
	assert.Equal(t, "GTC", values.Get("timeInForce"))
	assert.Equal(t, "30000.5", values.Get("price"))
	assert.Equal(t, "0.001", values.Get("quantity"))
	assert.Equal(t, "my-id", values.Get("newClientOrderId"))
}

func TestSwap_CreateOrderGeneratesClientID(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"POST /fapi/v1/order": `{"orderId":"1"}`,
	}}
	swap := newTestSwap(t, venue, &core.Credentials{})

	qty, _, _ := apd.NewFromString("2")
	_, err := swap.CreateOrder(context.Background(), &exchange.OrderRequest{
		Symbol:   "ETHUSDT",
		Side:     core.SideSell,
		Type:     core.TypeMarket,
		Quantity: *qty,
	})
	require.NoError(t, err)

	values, err := url.ParseQuery(venue.last(t).rawQuery)
	require.NoError(t, err)
	assert.Len(t, values.Get("newClientOrderId"), 36)
	assert.False(t, values.Has("price"))
	assert.Equal(t, "GTC", values.Get("timeInForce"))
}

func TestSwap_CreateOrderValidation(t *testing.T) {
	venue := &fakeVenue{}
	swap := newTestSwap(t, venue, nil)

	qty, _, _ := apd.NewFromString("1")
	negative, _, _ := apd.NewFromString("-1")

	tests := []struct {
		name string
		req  *exchange.OrderRequest
	}{
		{"empty", &exchange.OrderRequest{}},
		{"nil", nil},
		{"missing side", &exchange.OrderRequest{Symbol: "BTCUSDT", Type: core.TypeMarket, Quantity: *qty}},
		{"missing type", &exchange.OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Quantity: *qty}},
		{"missing quantity", &exchange.OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeMarket}},
		{"negative quantity", &exchange.OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeMarket, Quantity: *negative}},
		{"negative price", &exchange.OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeLimit, Quantity: *qty, Price: *negative}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := swap.CreateOrder(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, core.IsBadRequest(err))
		})
	}
	assert.Zero(t, venue.count())
}

func TestSwap_Cancel(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"DELETE /fapi/v1/order": `{"orderId":42,"status":"CANCELED"}`,
	}}
	swap := newTestSwap(t, venue, &core.Credentials{APIKey: testKey, SecretKey: testSecret})

	ok, err := swap.Cancel(context.Background(), &exchange.OrderQuery{Symbol: "BTCUSDT", OrderID: "42"})
	require.NoError(t, err)
	assert.True(t, ok)

	h := venue.last(t)
	assert.Equal(t, http.MethodDelete, h.method)
	values := assertSigned(t, h.rawQuery, testSecret)
	assert.Equal(t, "42", values.Get("orderId"))
	assert.Equal(t, "BTCUSDT", values.Get("symbol"))

	_, err = swap.Cancel(context.Background(), &exchange.OrderQuery{Symbol: "BTCUSDT"})
	assert.True(t, core.IsBadRequest(err))

	_, err = swap.Cancel(context.Background(), nil)
	assert.True(t, core.IsBadRequest(err))
}

func TestSwap_CancelUnknownOrderIsError(t *testing.T) {
	venue := &fakeVenue{
		status:    http.StatusBadRequest,
		responses: map[string]string{"DELETE /fapi/v1/order": `{"code":-2011,"msg":"Unknown order sent."}`},
	}
	swap := newTestSwap(t, venue, &core.Credentials{APIKey: testKey, SecretKey: testSecret})

	ok, err := swap.Cancel(context.Background(), &exchange.OrderQuery{OrderID: "1"})
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, core.IsAPIError(err))
	assert.True(t, core.IsErrorCode(err, core.ErrCodeOrderNotFound))
}

func TestSwap_CancelAllIsRepeatable(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"DELETE /fapi/v1/allOpenOrders": `{"code":200,"msg":"The operation of cancel all open order is done."}`,
	}}
	swap := newTestSwap(t, venue, &core.Credentials{APIKey: testKey, SecretKey: testSecret})

	for range 2 {
		ok, err := swap.CancelAll(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	assert.Equal(t, 2, venue.count())
	values := assertSigned(t, venue.last(t).rawQuery, testSecret)
	assert.Equal(t, "BTCUSDT", values.Get("symbol"))
}

func TestSwap_GetOrder(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"GET /fapi/v1/order": orderBody,
	}}
	swap := newTestSwap(t, venue, &core.Credentials{APIKey: testKey, SecretKey: testSecret})

	o, err := swap.GetOrder(context.Background(), &exchange.OrderQuery{Symbol: "BTCUSDT", OrderID: "22542179"})
	require.NoError(t, err)
	assert.Equal(t, "22542179", o.ID)
	assert.Equal(t, core.StatusPartiallyFilled, o.Status)

	values := assertSigned(t, venue.last(t).rawQuery, testSecret)
	assert.Equal(t, "22542179", values.Get("orderId"))
}

func TestSwap_GetOpenOrders(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"GET /fapi/v1/openOrders": "[" + orderBody + "]",
	}}
	swap := newTestSwap(t, venue, &core.Credentials{APIKey: testKey, SecretKey: testSecret})

	orders, err := swap.GetOpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, "BTCUSDT", assertSigned(t, venue.last(t).rawQuery, testSecret).Get("symbol"))

	_, err = swap.GetOpenOrders(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, assertSigned(t, venue.last(t).rawQuery, testSecret).Has("symbol"))
}

func TestSwap_GetHistoryOrdersUnsupported(t *testing.T) {
	venue := &fakeVenue{}
	swap := newTestSwap(t, venue, nil)

	orders, err := swap.GetHistoryOrders(context.Background(), "BTCUSDT")
	assert.Nil(t, orders)
	assert.True(t, core.IsUnsupported(err))
	assert.Zero(t, venue.count())
}

func TestSwap_EmptyCredentialsSurfaceAsAPIError(t *testing.T) {
	venue := &fakeVenue{
		status:    http.StatusUnauthorized,
		responses: map[string]string{"GET /fapi/v2/account": `{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`},
	}
	swap := newTestSwap(t, venue, nil)

	_, err := swap.GetBalance(context.Background(), "USDT")
	require.Error(t, err)
	assert.True(t, core.IsAPIError(err))
	assert.True(t, core.IsErrorCode(err, core.ErrCodeAuth))

	var exErr *core.ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, http.StatusUnauthorized, exErr.StatusCode)

	h := venue.last(t)
	assert.Empty(t, h.apiKey)
	assertSigned(t, h.rawQuery, "")
}

func TestSwap_NonOKWithEmptyBody(t *testing.T) {
	venue := &fakeVenue{status: http.StatusServiceUnavailable}
	swap := newTestSwap(t, venue, nil)

	_, err := swap.GetTicker(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.True(t, core.IsAPIError(err))
}

func TestSwap_DecodeError(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"GET /fapi/v1/ticker/bookTicker": `{"symbol":"BTCUSDT","bidPrice":"abc"}`,
	}}
	swap := newTestSwap(t, venue, nil)

	_, err := swap.GetTicker(context.Background(), "BTCUSDT")
	assert.True(t, core.IsDecodeError(err))
}

func TestSwap_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host := srv.URL
	srv.Close()

	swap, err := New(core.DefaultConfig(ExchangeName, host).WithTimeout(time.Second))
	require.NoError(t, err)
	defer swap.Close()

	_, err = swap.GetTicker(context.Background(), "BTCUSDT")
	assert.True(t, core.IsTransportError(err))
}

func TestSwap_ClockErrorSendsNothing(t *testing.T) {
	venue := &fakeVenue{}
	broken := ClockFunc(func() (int64, error) { return 0, errors.New("clock unavailable") })
	swap := newTestSwap(t, venue, &core.Credentials{APIKey: testKey, SecretKey: testSecret}, WithClock(broken))

	_, err := swap.CancelAll(context.Background(), "BTCUSDT")
	assert.True(t, core.IsClockError(err))
	assert.Zero(t, venue.count())
}

func TestSwap_ClosedClient(t *testing.T) {
	venue := &fakeVenue{}
	swap := newTestSwap(t, venue, nil)
	require.NoError(t, swap.Close())

	_, err := swap.GetTicker(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, core.ErrClientClosed)
	assert.Zero(t, venue.count())
}

func TestSwap_Symbols(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"GET /fapi/v1/exchangeInfo": `{"symbols":[{"symbol":"BTCUSDT","contractType":"PERPETUAL","filters":[{"filterType":"PRICE_FILTER","tickSize":"0.10"}]}]}`,
	}}
	swap := newTestSwap(t, venue, nil)

	symbols, err := swap.GetSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "0.10", symbols[0].TickSize.String())
	assert.Empty(t, venue.last(t).rawQuery)
}

func TestSwap_ServerTime(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"GET /fapi/v1/time": `{"serverTime":1499827319559}`,
	}}
	swap := newTestSwap(t, venue, nil)

	ts, err := swap.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1499827319559), ts.UnixMilli())
}

func TestSwap_UserStream(t *testing.T) {
	venue := &fakeVenue{responses: map[string]string{
		"POST /fapi/v1/listenKey":   `{"listenKey":"abc123"}`,
		"PUT /fapi/v1/listenKey":    `{}`,
		"DELETE /fapi/v1/listenKey": `{}`,
	}}
	swap := newTestSwap(t, venue, &core.Credentials{APIKey: testKey, SecretKey: testSecret})
	ctx := context.Background()

	key, err := swap.StartUserStream(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)

	h := venue.last(t)
	assert.Equal(t, http.MethodPost, h.method)
	assert.Equal(t, testKey, h.apiKey)
	assert.Empty(t, h.body)
	assert.Empty(t, h.rawQuery)

	require.NoError(t, swap.KeepAliveUserStream(ctx, key))
	h = venue.last(t)
	assert.Equal(t, http.MethodPut, h.method)
	assert.Equal(t, "listenKey=abc123", h.body)
	assert.Equal(t, "application/x-www-form-urlencoded", h.contentType)
	assert.Equal(t, testKey, h.apiKey)
	assert.NotContains(t, h.rawQuery, "signature")

	require.NoError(t, swap.CloseUserStream(ctx, key))
	h = venue.last(t)
	assert.Equal(t, http.MethodDelete, h.method)
	assert.Equal(t, "listenKey=abc123", h.body)
	assert.Equal(t, "application/x-www-form-urlencoded", h.contentType)

	err = swap.KeepAliveUserStream(ctx, "")
	assert.True(t, core.IsBadRequest(err))
}

func TestSwap_WithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	venue := &fakeVenue{responses: map[string]string{
		"GET /fapi/v1/time": `{"serverTime":1499827319559}`,
	}}
	swap := newTestSwap(t, venue, nil, WithMetrics(reg))

	_, err := swap.ServerTime(context.Background())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "swapline_http_requests_total")
	assert.Contains(t, names, "swapline_http_request_duration_seconds")

	_, err = New(core.DefaultConfig(ExchangeName, TestnetURL), WithMetrics(reg))
	assert.Error(t, err, "registering twice must fail")
}
