package sale

import (
	xerrors "cuffie-gateway/internal/errors"
)

const (
	// CodeWrongNetwork 表示钱包所在链与网关要求的链不一致。
	CodeWrongNetwork xerrors.Code = "WRONG_NETWORK"
	// CodeInsufficientAllowance 表示稳定币授权额度低于购买金额。
	CodeInsufficientAllowance xerrors.Code = "INSUFFICIENT_ALLOWANCE"
)

// insufficientAllowanceMessage 沿用销售页面一直展示给用户的提示文案。
// 文案提到 gas，实际触发条件是授权额度不足。
const insufficientAllowanceMessage = "Your account has not enough BNB and BUSD for gas fee."

func init() {
	xerrors.Register(CodeWrongNetwork, xerrors.Attributes{
		Message:  "wallet connected to the wrong network",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeInsufficientAllowance, xerrors.Attributes{
		Message:  "stablecoin allowance below requested amount",
		Severity: xerrors.SeverityInfo,
	})
}
