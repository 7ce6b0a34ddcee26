// Package sale 封装与代币销售合约和稳定币合约的全部交互：只读查询、
// 交易组装与提交。
package sale

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	xerrors "cuffie-gateway/internal/errors"
	"cuffie-gateway/internal/storage/mysql"
	"cuffie-gateway/internal/wallet"
	"cuffie-gateway/internal/web3"
	"cuffie-gateway/pkg/logger"
)

// Session 提供当前钱包会话的快照，*wallet.Manager 满足该接口。
type Session interface {
	AccountInfo() wallet.AccountInfo
}

// Observer 接收合约调用与交易提交的结果，用于指标统计。
type Observer interface {
	ObserveContractCall(method string, err error)
	ObserveSubmission(method string, err error)
}

// Config 固定网关所面向的链与两个合约。
type Config struct {
	Network        string
	ChainID        uint64
	SaleAddress    common.Address
	StableAddress  common.Address
	StableDecimals uint8
	Description    string
}

// ConfigFromNetwork 根据网络定义构造网关配置。
func ConfigFromNetwork(name string, def web3.NetworkDefinition) Config {
	return Config{
		Network:        name,
		ChainID:        def.ChainID,
		SaleAddress:    def.Sale(),
		StableAddress:  def.Stable(),
		StableDecimals: def.StableDecimals,
		Description:    def.Description,
	}
}

// Gateway 是钱包会话与链上合约之间的唯一入口。
type Gateway struct {
	cfg      Config
	session  Session
	reader   web3.ChainReader
	ledger   mysql.TransactionRepository
	observer Observer
	log      *slog.Logger
}

// Option 定义可选的 Gateway 配置。
type Option func(*Gateway)

// WithLedger 配置交易账本，提交成功的交易会写入其中。
func WithLedger(repo mysql.TransactionRepository) Option {
	return func(g *Gateway) {
		g.ledger = repo
	}
}

// WithObserver 配置指标观察者。
func WithObserver(observer Observer) Option {
	return func(g *Gateway) {
		g.observer = observer
	}
}

// NewGateway 创建网关。reader 必须指向固定的只读节点。
func NewGateway(cfg Config, session Session, reader web3.ChainReader, opts ...Option) (*Gateway, error) {
	// 验证必要的组件是否已配置。
	if session == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置钱包会话")
	}
	if reader == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置只读链客户端")
	}
	if cfg.ChainID == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置目标链 ID")
	}
	if cfg.StableDecimals == 0 {
		cfg.StableDecimals = web3.DefaultDecimals
	}

	g := &Gateway{
		cfg:     cfg,
		session: session,
		reader:  reader,
		log:     logger.Named("sale"),
	}
	// 应用可选配置。
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Config 返回网关配置的副本。
func (g *Gateway) Config() Config {
	return g.cfg
}

// GetVestCuffies 查询当前的销售价格。
func (g *Gateway) GetVestCuffies(ctx context.Context) (*big.Int, error) {
	return g.readUint(ctx, g.cfg.SaleAddress, saleABI, MethodPrice)
}

// GetVestedAmount 查询当前账户已锁仓的代币数量。
func (g *Gateway) GetVestedAmount(ctx context.Context) (*big.Int, error) {
	account, err := g.selectedAccount()
	if err != nil {
		return nil, err
	}
	return g.readUint(ctx, g.cfg.SaleAddress, saleABI, MethodVestedAmount, account)
}

// GetVestingFinishedAt 查询当前账户锁仓结束的时间戳。
func (g *Gateway) GetVestingFinishedAt(ctx context.Context) (*big.Int, error) {
	account, err := g.selectedAccount()
	if err != nil {
		return nil, err
	}
	return g.readUint(ctx, g.cfg.SaleAddress, saleABI, MethodVestingEnd, account)
}

// Allowance 查询当前账户授权给销售合约的稳定币额度（最小单位）。
func (g *Gateway) Allowance(ctx context.Context) (*big.Int, error) {
	account, err := g.selectedAccount()
	if err != nil {
		return nil, err
	}
	return g.readUint(ctx, g.cfg.StableAddress, stableABI, MethodAllowance, account, g.cfg.SaleAddress)
}

// BusdBalance 查询当前账户的稳定币余额（最小单位）。
func (g *Gateway) BusdBalance(ctx context.Context) (*big.Int, error) {
	account, err := g.selectedAccount()
	if err != nil {
		return nil, err
	}
	return g.readUint(ctx, g.cfg.StableAddress, stableABI, MethodBalanceOf, account)
}

// Window 是销售开始与结束的 Unix 时间戳。
type Window struct {
	Start *big.Int `json:"start"`
	End   *big.Int `json:"end"`
}

// SaleWindow 查询销售时间窗口。
func (g *Gateway) SaleWindow(ctx context.Context) (Window, error) {
	start, err := g.readUint(ctx, g.cfg.SaleAddress, saleABI, MethodStartDate)
	if err != nil {
		return Window{}, err
	}
	end, err := g.readUint(ctx, g.cfg.SaleAddress, saleABI, MethodEndDate)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

// MaxAmount 查询单个账户的购买上限。
func (g *Gateway) MaxAmount(ctx context.Context) (*big.Int, error) {
	return g.readUint(ctx, g.cfg.SaleAddress, saleABI, MethodMaxAmount)
}

// IsWhitelisted 查询当前账户是否在白名单中。
func (g *Gateway) IsWhitelisted(ctx context.Context) (bool, error) {
	account, err := g.selectedAccount()
	if err != nil {
		return false, err
	}
	return g.readBool(ctx, g.cfg.SaleAddress, saleABI, MethodWhitelisted, account)
}

// IsPaused 查询销售合约是否处于暂停状态。
func (g *Gateway) IsPaused(ctx context.Context) (bool, error) {
	return g.readBool(ctx, g.cfg.SaleAddress, saleABI, MethodPaused)
}

// selectedAccount 读取会话中的账户。会话为空时返回参数错误，而不是拿零地址去查询。
func (g *Gateway) selectedAccount() (common.Address, error) {
	info := g.session.AccountInfo()
	if info.SelectedAccount == nil {
		return common.Address{}, xerrors.New(xerrors.CodeInvalidArgument, "当前会话没有选中的钱包账户")
	}
	return *info.SelectedAccount, nil
}

func (g *Gateway) readUint(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) (*big.Int, error) {
	values, err := g.read(ctx, contract, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s 返回值类型异常: %T", method, values[0])
	}
	return value, nil
}

func (g *Gateway) readBool(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) (bool, error) {
	values, err := g.read(ctx, contract, parsed, method, args...)
	if err != nil {
		return false, err
	}
	value, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s 返回值类型异常: %T", method, values[0])
	}
	return value, nil
}

// read 通过只读节点执行合约调用并解码返回值。
func (g *Gateway) read(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) (values []any, err error) {
	defer func() {
		if g.observer != nil {
			g.observer.ObserveContractCall(method, err)
		}
	}()

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("编码 %s 调用失败: %w", method, err)
	}
	out, err := g.reader.CallContract(ctx, gethcore.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, fmt.Sprintf("调用 %s 失败", method),
			xerrors.WithMetadata("contract", contract.Hex()))
	}
	values, err = parsed.Unpack(method, out)
	if err != nil {
		// 返回值与 ABI 不匹配通常是合约地址配置错误，重试没有意义。
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, fmt.Sprintf("解码 %s 返回值失败", method),
			xerrors.WithMetadata("contract", contract.Hex()),
			xerrors.WithRetryable(false),
			xerrors.WithSeverity(xerrors.SeverityCritical))
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s 没有返回值", method)
	}
	return values, nil
}

// networkLabel 用于错误提示中的网络名称。
func (g *Gateway) networkLabel() string {
	if strings.TrimSpace(g.cfg.Description) != "" {
		return g.cfg.Description
	}
	return fmt.Sprintf("chain %d", g.cfg.ChainID)
}
