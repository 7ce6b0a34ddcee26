// Package api exposes the wallet session and the sale contract over REST,
// and streams session snapshots over WebSocket.
package api
