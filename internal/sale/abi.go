package sale

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// saleABIJSON 是代币销售合约 ABI 中网关会用到的部分。
const saleABIJSON = `[
{"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"BuymyCuffies","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[],"name":"Max_Amount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"claimBoughtAmount","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[],"name":"endDate","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"paused","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"startDate","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"version","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"vestedCuffies_BNBprice","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"vested_Amount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"vestingFinishedAt","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"_address","type":"address"}],"name":"whitelisted","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"}
]`

// stableABIJSON 是 BEP-20 稳定币合约 ABI 中网关会用到的部分。
const stableABIJSON = `[
{"constant":true,"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"address","name":"spender","type":"address"}],"name":"allowance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":false,"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"},
{"constant":true,"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"}
]`

// 合约方法名。
const (
	MethodBuy          = "BuymyCuffies"
	MethodClaim        = "claimBoughtAmount"
	MethodApprove      = "approve"
	MethodAllowance    = "allowance"
	MethodBalanceOf    = "balanceOf"
	MethodPrice        = "vestedCuffies_BNBprice"
	MethodVestedAmount = "vested_Amount"
	MethodVestingEnd   = "vestingFinishedAt"
	MethodStartDate    = "startDate"
	MethodEndDate      = "endDate"
	MethodMaxAmount    = "Max_Amount"
	MethodWhitelisted  = "whitelisted"
	MethodPaused       = "paused"
)

var (
	saleABI   = mustParseABI("sale", saleABIJSON)
	stableABI = mustParseABI("stable", stableABIJSON)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("解析 %s 合约 ABI 失败: %v", name, err))
	}
	return parsed
}
