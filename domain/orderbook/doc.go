// Package orderbook holds the matching domain: orders, trades and the
// per-symbol book of resting liquidity.
//
// Bids and asks are ordered trees of price levels. Inside a level orders
// queue in arrival order, which is the price-time priority contract. An id
// index gives O(1) lookup and removal. Nothing here is safe for concurrent
// use; the engine goroutine is the single writer.
package orderbook
