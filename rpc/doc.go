// Package rpc is a JSON-RPC 2.0 client for substrate nodes over websocket.
//
// Requests are multiplexed over a single connection. Subscriptions
// (author_submitAndWatchExtrinsic, chain_subscribeNewHeads) are registered by
// the reader goroutine before their confirmation is handed to the caller, so
// notifications that immediately follow the confirmation are never lost.
package rpc
