package exchange

import (
	"context"

	"github.com/cockroachdb/apd/v3"

	"swapline/pkg/core"
)

// Exchange is the venue-neutral contract every derivatives binding satisfies.
// Calls block until the venue answers or ctx ends. A call either returns a
// normalized value or a single *core.ExchangeError; nothing is retried.
type Exchange interface {
	Name() string

	GetOrderBook(ctx context.Context, symbol string, depth int) (*core.OrderBook, error)
	GetTicker(ctx context.Context, symbol string) (*core.Ticker, error)
	GetKlines(ctx context.Context, symbol, period string, limit int) ([]core.Kline, error)

	GetBalance(ctx context.Context, asset string) (*core.Balance, error)

	// CreateOrder places a good-till-cancel order and returns the venue order id.
	CreateOrder(ctx context.Context, req *OrderRequest) (string, error)
	// Cancel and CancelAll report whether the venue accepted the request,
	// not whether the orders are gone.
	Cancel(ctx context.Context, query *OrderQuery) (bool, error)
	CancelAll(ctx context.Context, symbol string) (bool, error)
	GetOrder(ctx context.Context, query *OrderQuery) (*core.Order, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]core.Order, error)
	GetHistoryOrders(ctx context.Context, symbol string) ([]core.Order, error)

	Close() error
}

// OrderRequest contains the parameters required to place a new order.
// Side, Type and a positive Quantity are required. Price and Quantity are
// sent as given; tick and lot sizes are the caller's concern.
type OrderRequest struct {
	Symbol        string         `validate:"required"`
	Side          core.OrderSide `validate:"required"`
	Type          core.OrderType `validate:"required"`
	Price         apd.Decimal    `validate:"gte=0"`
	Quantity      apd.Decimal    `validate:"gt=0"`
	ClientOrderID string
}

// OrderQuery identifies one order. OrderID is the identity; Symbol is sent
// along when set.
type OrderQuery struct {
	Symbol  string
	OrderID string `validate:"required"`
}
