// Package web3 holds the chain-facing building blocks shared by the wallet
// session manager and the sale gateway: network definitions loaded from
// YAML, the transaction request shape submitted through a wallet provider,
// pending transaction tracking, and conversion between human token amounts
// and base units.
package web3
