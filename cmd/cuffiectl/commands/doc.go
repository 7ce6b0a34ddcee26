// Package commands defines the cuffiectl CLI, a thin client of the cuffied
// REST API.
//
// Commands
//
//   - status      Print the wallet session
//   - connect     Connect (or reconnect) the wallet
//   - disconnect  Close the wallet session
//   - price       Read the current sale price
//   - vested      Read the vested amount of the selected account
//   - finished    Read when vesting finishes for the selected account
//   - allowance   Read the stablecoin allowance granted to the sale contract
//   - balance     Read the stablecoin balance of the selected account
//   - max-amount  Read the per-account purchase cap
//   - window      Read the sale start and end timestamps
//   - whitelisted Check whether the selected account is whitelisted
//   - paused      Check whether the sale is paused
//   - approve     Approve the sale contract to spend stablecoins
//   - buy         Buy tokens with stablecoins
//   - claim       Claim unlocked tokens
//   - txs         List submitted transactions
package commands
