package web3

import (
	"fmt"
	"math/big"
	"strings"

	xerrors "cuffie-gateway/internal/errors"
)

// DefaultDecimals is the precision of BUSD and most BEP-20 tokens.
const DefaultDecimals uint8 = 18

// ToBaseUnits converts a human readable decimal amount such as "10" or
// "0.25" into the token's smallest denomination (amount × 10^decimals).
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "金额不能为空")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "金额不能为负数")
	}
	amount = strings.TrimPrefix(amount, "+")

	parts := strings.SplitN(amount, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("无法解析金额 %q", amount))
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("无法解析金额 %q", amount))
	}
	if len(fracPart) > int(decimals) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("金额 %q 的小数位超过 %d 位", amount, decimals))
	}

	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))
	digits := strings.TrimLeft(intPart+fracPart, "0")
	if digits == "" {
		return new(big.Int), nil
	}
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("无法解析金额 %q", amount))
	}
	return value, nil
}

// FromBaseUnits renders a base-unit value as a decimal string without
// trailing fractional zeros.
func FromBaseUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}

	digits := new(big.Int).Abs(value).String()
	if pad := int(decimals) + 1 - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	split := len(digits) - int(decimals)
	intPart, fracPart := digits[:split], strings.TrimRight(digits[split:], "0")

	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if value.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// Scale returns 10^decimals.
func Scale(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
