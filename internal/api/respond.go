package api

import (
	"encoding/json"
	"errors"
	"net/http"

	xerrors "cuffie-gateway/internal/errors"
	"cuffie-gateway/internal/sale"
	"cuffie-gateway/internal/wallet"
)

// ErrorResponse 是所有失败响应的 JSON 结构。
type ErrorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
	// Retryable 表示相同请求稍后重试可能成功。
	Retryable bool `json:"retryable,omitempty"`
}

// statusFor 将统一错误码映射为 HTTP 状态码。无法识别的错误与 UPSTREAM_FAILURE 视为上游失败。
func statusFor(err error) int {
	switch xerrors.CodeOf(err) {
	case sale.CodeWrongNetwork:
		return http.StatusConflict
	case sale.CodeInsufficientAllowance:
		return http.StatusPaymentRequired
	case wallet.CodeProviderUnavailable:
		return http.StatusPreconditionFailed
	case xerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case wallet.CodeConnectorNotFound:
		return http.StatusNotFound
	case wallet.CodeConnectRejected:
		return http.StatusConflict
	case xerrors.CodeStorageFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{
		Code:      string(xerrors.CodeOf(err)),
		Message:   err.Error(),
		Retryable: xerrors.RetryableError(err),
	}
	if coded, ok := xerrors.From(err); ok {
		resp.Message = coded.Message()
		resp.Metadata = coded.Metadata()
	}
	if status >= http.StatusInternalServerError {
		switch xerrors.SeverityOf(err) {
		case xerrors.SeverityCritical:
			s.log.Error("请求处理失败", "code", resp.Code, "error", err)
		default:
			s.log.Warn("请求处理失败", "code", resp.Code, "error", err)
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) writeBadRequest(w http.ResponseWriter, message string) {
	s.writeError(w, xerrors.New(xerrors.CodeInvalidArgument, message))
}

var errNotConfigured = errors.New("服务未初始化")
