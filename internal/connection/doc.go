// Package connection implements the Live Trade Streamer.
//
// The streamer keeps one websocket open to the market data feed, performs the
// authenticate-then-subscribe handshake, and writes every accepted trade's
// price to market_data as it arrives. Its lifecycle is an explicit state
// machine (see Transition):
//
//	Disconnected -> Connecting -> Authenticating -> Subscribed -> Streaming
//	                    ^                                           |
//	                    +------------ Reconnecting <----------------+
//
// Any state moves to ShuttingDown on cancellation; ShuttingDown is terminal.
// Trades that arrive before the subscription is confirmed are rejected.
//
// A single goroutine owns the state, the websocket client, the backoff, and
// the watchdog. The client runs its own read and keepalive goroutines and
// hands frames over a channel.
package connection
