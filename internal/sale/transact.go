package sale

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	xerrors "cuffie-gateway/internal/errors"
	"cuffie-gateway/internal/storage/mysql"
	"cuffie-gateway/internal/wallet"
	"cuffie-gateway/internal/web3"
	"cuffie-gateway/pkg/logger"
)

// ApproveBusd 授权销售合约从当前账户划转 amount 个稳定币。amount 为人类可读单位。
func (g *Gateway) ApproveBusd(ctx context.Context, amount string) (*web3.PendingTransaction, error) {
	value, err := web3.ToBaseUnits(amount, g.cfg.StableDecimals)
	if err != nil {
		return nil, err
	}
	data, err := stableABI.Pack(MethodApprove, g.cfg.SaleAddress, value)
	if err != nil {
		return nil, fmt.Errorf("编码 approve 调用失败: %w", err)
	}
	return g.contractCall(ctx, g.cfg.StableAddress, MethodApprove, data, amount)
}

// BuyMyCuffies 用 amount 个稳定币购买代币。提交前会重新查询授权额度，额度不足时
// 直接失败，不会估算 gas 也不会提交交易。
func (g *Gateway) BuyMyCuffies(ctx context.Context, amount string) (*web3.PendingTransaction, error) {
	value, err := web3.ToBaseUnits(amount, g.cfg.StableDecimals)
	if err != nil {
		return nil, err
	}

	// 查询最新的授权额度。
	allowed, err := g.Allowance(ctx)
	if err != nil {
		return nil, err
	}
	if value.Cmp(allowed) > 0 {
		return nil, xerrors.New(CodeInsufficientAllowance, insufficientAllowanceMessage,
			xerrors.WithMetadata("allowance", allowed.String()),
			xerrors.WithMetadata("required", value.String()))
	}

	data, err := saleABI.Pack(MethodBuy, value)
	if err != nil {
		return nil, fmt.Errorf("编码 %s 调用失败: %w", MethodBuy, err)
	}
	return g.contractCall(ctx, g.cfg.SaleAddress, MethodBuy, data, amount)
}

// ClaimBoughtAmount 领取已解锁的代币。
func (g *Gateway) ClaimBoughtAmount(ctx context.Context) (*web3.PendingTransaction, error) {
	data, err := saleABI.Pack(MethodClaim)
	if err != nil {
		return nil, fmt.Errorf("编码 %s 调用失败: %w", MethodClaim, err)
	}
	return g.contractCall(ctx, g.cfg.SaleAddress, MethodClaim, data, "")
}

// contractCall 是所有写操作共用的提交流程：校验会话与链 ID，从只读节点获取
// gas price，由钱包估算 gas 并提交交易。
func (g *Gateway) contractCall(ctx context.Context, to common.Address, method string, data []byte, amount string) (pending *web3.PendingTransaction, err error) {
	defer func() {
		if g.observer != nil {
			g.observer.ObserveSubmission(method, err)
		}
	}()

	// 重新读取会话，确认钱包仍然可用。
	info := g.session.AccountInfo()
	provider := info.Provider
	if provider == nil {
		return nil, wallet.ErrProviderUnavailable
	}

	// 校验钱包所在的链。
	chainID, err := provider.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	required := new(big.Int).SetUint64(g.cfg.ChainID)
	if chainID == nil || chainID.Cmp(required) != 0 {
		actual := "unknown"
		if chainID != nil {
			actual = chainID.String()
		}
		return nil, xerrors.New(CodeWrongNetwork, fmt.Sprintf("Wallet is not connected to %s", g.networkLabel()),
			xerrors.WithMetadata("required_chain_id", required.String()),
			xerrors.WithMetadata("actual_chain_id", actual))
	}

	if info.SelectedAccount == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "当前会话没有选中的钱包账户")
	}

	// gas price 始终来自固定的只读节点。
	gasPrice, err := g.reader.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	req := web3.TransactionRequest{
		From:     *info.SelectedAccount,
		To:       to,
		GasPrice: gasPrice,
		Data:     data,
	}
	gas, err := provider.EstimateGas(ctx, req)
	if err != nil {
		return nil, err
	}
	req.Gas = gas

	hash, err := provider.SendTransaction(ctx, req)
	if err != nil {
		return nil, err
	}

	logger.Audit().Info("交易已提交",
		slog.String("method", method),
		slog.String("network", g.cfg.Network),
		slog.String("from", req.From.Hex()),
		slog.String("to", req.To.Hex()),
		slog.String("hash", hash.Hex()),
		slog.String("gas", strconv.FormatUint(gas, 10)),
		slog.String("amount", amount),
	)
	g.record(ctx, method, req, hash, amount)

	return web3.NewPendingTransaction(hash, method, req, provider), nil
}

// record 写入交易账本。交易已经广播，写入失败只记录日志。
func (g *Gateway) record(ctx context.Context, method string, req web3.TransactionRequest, hash common.Hash, amount string) {
	if g.ledger == nil {
		return
	}
	record := mysql.TransactionRecord{
		Method:   method,
		Network:  g.cfg.Network,
		ChainID:  g.cfg.ChainID,
		From:     req.From.Hex(),
		To:       req.To.Hex(),
		Hash:     hash.Hex(),
		GasPrice: req.GasPrice.String(),
		Gas:      req.Gas,
		Amount:   amount,
	}
	if err := g.ledger.Save(ctx, record); err != nil {
		g.log.Warn("写入交易账本失败", slog.String("hash", hash.Hex()), slog.Any("error", err))
	}
}
