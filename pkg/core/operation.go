package core

// Operation represents a type of action that can be performed on an exchange.
type Operation int

// Operation constants define all exchange operations known to the capability interface.
const (
	// OpGetOrderBook retrieves the current order book depth.
	OpGetOrderBook Operation = iota
	// OpGetTicker retrieves the best bid/ask for a symbol.
	OpGetTicker
	// OpGetKlines retrieves candlestick/OHLCV data.
	OpGetKlines
	// OpGetBalance retrieves the balance of one asset.
	OpGetBalance
	// OpPlaceOrder submits a new order to the exchange.
	OpPlaceOrder
	// OpCancelOrder cancels an existing order.
	OpCancelOrder
	// OpCancelAllOrders cancels every open order of a symbol.
	OpCancelAllOrders
	// OpGetOrder retrieves details of a specific order.
	OpGetOrder
	// OpGetOpenOrders retrieves all open orders.
	OpGetOpenOrders
	// OpGetOrderHistory retrieves historical orders.
	OpGetOrderHistory
	// OpGetSymbols retrieves tradable contract metadata.
	OpGetSymbols
	// OpGetServerTime retrieves the venue clock.
	OpGetServerTime
	// OpStartUserStream creates a user data stream session key.
	OpStartUserStream
	// OpKeepAliveUserStream extends a user data stream session key.
	OpKeepAliveUserStream
	// OpCloseUserStream closes a user data stream session key.
	OpCloseUserStream
)

var operationNames = [...]string{
	"GET_ORDER_BOOK",
	"GET_TICKER",
	"GET_KLINES",
	"GET_BALANCE",
	"PLACE_ORDER",
	"CANCEL_ORDER",
	"CANCEL_ALL_ORDERS",
	"GET_ORDER",
	"GET_OPEN_ORDERS",
	"GET_ORDER_HISTORY",
	"GET_SYMBOLS",
	"GET_SERVER_TIME",
	"START_USER_STREAM",
	"KEEPALIVE_USER_STREAM",
	"CLOSE_USER_STREAM",
}

// String returns the string representation of the operation.
func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return "UNKNOWN"
	}
	return operationNames[o]
}
