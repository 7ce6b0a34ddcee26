package wallet

import (
	xerrors "cuffie-gateway/internal/errors"
)

const (
	CodeProviderUnavailable xerrors.Code = "PROVIDER_UNAVAILABLE"
	CodeConnectorNotFound   xerrors.Code = "CONNECTOR_NOT_FOUND"
	CodeConnectRejected     xerrors.Code = "CONNECT_REJECTED"
)

var (
	// ErrProviderUnavailable 表示当前没有已连接的钱包。
	ErrProviderUnavailable = xerrors.New(CodeProviderUnavailable, "wallet provider unavailable")
	// ErrConnectRejected 表示选择器没有给出可用的连接方式。
	ErrConnectRejected = xerrors.New(CodeConnectRejected, "wallet connection rejected")
)

func init() {
	xerrors.Register(CodeProviderUnavailable, xerrors.Attributes{
		Message:  "wallet provider unavailable",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeConnectorNotFound, xerrors.Attributes{
		Message:  "wallet connector not registered",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeConnectRejected, xerrors.Attributes{
		Message:  "wallet connection rejected",
		Severity: xerrors.SeverityInfo,
	})
}
