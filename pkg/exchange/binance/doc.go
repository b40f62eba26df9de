// Package binance binds the Binance USDⓈ-M futures REST API to the
// exchange.Exchange contract.
//
// The package includes:
//   - Protocol: operation routing, canonical queries and HMAC-SHA256 signing
//   - Normalizer: two-stage decoding of venue payloads into core types
//   - Swap: the capability implementation plus listen key management
//
// Example usage:
//
//	cfg := core.DefaultConfig(binance.ExchangeName, binance.TestnetURL).
//		WithCredentials(&core.Credentials{APIKey: key, SecretKey: secret})
//	swap, err := binance.New(cfg)
//	book, err := swap.GetOrderBook(ctx, "BTCUSDT", 20)
package binance
