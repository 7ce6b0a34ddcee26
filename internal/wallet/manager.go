package wallet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"cuffie-gateway/pkg/logger"
)

// ReloadHook is invoked when the connected wallet switches chain or network.
// Hosts typically respond by calling Manager.Reload.
type ReloadHook func(ctx context.Context, event ProviderEvent)

// Option customises a Manager.
type Option func(*Manager)

// WithReloadHook registers the host's reaction to chain/network switches.
func WithReloadHook(hook ReloadHook) Option {
	return func(m *Manager) {
		m.reloadHook = hook
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// Manager owns the wallet session and notifies listeners of every change.
type Manager struct {
	modal      *Modal
	reloadHook ReloadHook
	log        *slog.Logger

	mu           sync.RWMutex
	provider     Provider
	providerName string
	account      *common.Address
	watchStop    chan struct{}

	listenersMu sync.Mutex
	listeners   map[ListenerKey]Listener
	nextKey     uint64
}

// NewManager builds a disconnected manager on top of the modal.
func NewManager(modal *Modal, opts ...Option) *Manager {
	m := &Manager{
		modal:     modal,
		log:       logger.Named("wallet"),
		listeners: make(map[ListenerKey]Listener),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Initialize silently restores a cached session, if any, and always ends by
// broadcasting the current snapshot. A failed restore is reported in the
// result and never returned as an error.
func (m *Manager) Initialize(ctx context.Context) BestEffort {
	var result BestEffort

	cached, err := m.modal.CachedProvider(ctx)
	if err != nil {
		m.log.Warn("读取会话缓存失败", slog.Any("error", err))
		result.Err = err
	}
	if cached != "" {
		if err := m.connectInternal(ctx); err != nil {
			m.log.Warn("恢复缓存的钱包会话失败", slog.String("connector", cached), slog.Any("error", err))
			result.Err = err
		}
	}

	m.notify()
	return result
}

// ConnectToWallet opens the wallet selection and stores the resulting
// provider. An existing connection is replaced, not reused.
func (m *Manager) ConnectToWallet(ctx context.Context) error {
	if m.IsConnected() {
		m.log.Info("钱包已连接，重新建立连接")
	}
	return m.connectInternal(ctx)
}

func (m *Manager) connectInternal(ctx context.Context) error {
	provider, name, err := m.modal.Connect(ctx)
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	m.mu.Lock()
	previous, previousStop := m.provider, m.watchStop
	m.provider = provider
	m.providerName = name
	m.watchStop = stop
	m.mu.Unlock()

	m.release(previous, previousStop)
	go m.watch(provider, stop)

	logger.Audit().Info("钱包已连接", slog.String("connector", name))

	if res := m.RefreshAccount(ctx); !res.OK() {
		m.log.Debug("刷新钱包账户失败", slog.Any("error", res.Err))
	}
	return nil
}

// RefreshAccount re-reads the provider's accounts and selects the first one.
// Errors are reported in the result and never propagate.
func (m *Manager) RefreshAccount(ctx context.Context) BestEffort {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()
	if provider == nil {
		return BestEffort{Err: ErrProviderUnavailable}
	}

	accounts, err := provider.Accounts(ctx)
	if err != nil {
		return BestEffort{Err: fmt.Errorf("读取钱包账户失败: %w", err)}
	}

	var selected *common.Address
	if len(accounts) > 0 {
		account := accounts[0]
		selected = &account
	}

	m.mu.Lock()
	if m.provider != provider {
		m.mu.Unlock()
		return BestEffort{}
	}
	m.account = selected
	m.mu.Unlock()

	m.notify()
	return BestEffort{}
}

// DisconnectWallet closes the provider when it is closable, forgets the
// cached connector and resets the session. Calling it while disconnected is
// not an error. A provider close error is returned after the session has
// been reset; cache clearing errors are swallowed.
func (m *Manager) DisconnectWallet(ctx context.Context) error {
	m.mu.Lock()
	provider, stop, name := m.provider, m.watchStop, m.providerName
	m.provider = nil
	m.providerName = ""
	m.account = nil
	m.watchStop = nil
	m.mu.Unlock()

	if provider == nil {
		m.log.Info("钱包尚未连接")
	}
	if stop != nil {
		close(stop)
	}

	var closeErr error
	if closer, ok := provider.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			closeErr = fmt.Errorf("关闭钱包连接失败: %w", err)
		}
	}

	if err := m.modal.ClearCachedProvider(ctx); err != nil {
		m.log.Debug("清除会话缓存失败", slog.Any("error", err))
	}

	m.notify()
	if provider != nil {
		logger.Audit().Info("钱包已断开", slog.String("connector", name))
	}
	return closeErr
}

// Close releases the active provider on shutdown. Unlike DisconnectWallet it
// keeps the cached connector, so the next Initialize restores the session,
// and it does not notify listeners.
func (m *Manager) Close() error {
	m.mu.Lock()
	provider, stop := m.provider, m.watchStop
	m.provider = nil
	m.providerName = ""
	m.account = nil
	m.watchStop = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if closer, ok := provider.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("关闭钱包连接失败: %w", err)
		}
	}
	return nil
}

// Reload drops the in-memory session while keeping the cache, then runs
// Initialize again. It is what a host does instead of reloading a page.
func (m *Manager) Reload(ctx context.Context) BestEffort {
	m.mu.Lock()
	provider, stop := m.provider, m.watchStop
	m.provider = nil
	m.providerName = ""
	m.account = nil
	m.watchStop = nil
	m.mu.Unlock()

	m.release(provider, stop)
	return m.Initialize(ctx)
}

// IsConnected reports whether both a provider and an account are present.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.provider != nil && m.account != nil
}

// AccountInfo returns a snapshot of the session.
func (m *Manager) AccountInfo() AccountInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := AccountInfo{Provider: m.provider, ProviderName: m.providerName}
	if m.account != nil {
		account := *m.account
		info.SelectedAccount = &account
	}
	return info
}

// AddChangeListener registers a listener under a fresh key.
func (m *Manager) AddChangeListener(l Listener) ListenerKey {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	key := ListenerKey(fmt.Sprintf("listener_%d", m.nextKey))
	m.nextKey++
	m.listeners[key] = l
	return key
}

// RemoveChangeListener unregisters a listener; unknown keys are ignored.
func (m *Manager) RemoveChangeListener(key ListenerKey) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	delete(m.listeners, key)
}

// Subscribe registers a listener and returns a handle that removes it.
func (m *Manager) Subscribe(l Listener) *Subscription {
	return &Subscription{key: m.AddChangeListener(l), remove: m.RemoveChangeListener}
}

func (m *Manager) notify() {
	info := m.AccountInfo()

	m.listenersMu.Lock()
	targets := make(map[ListenerKey]Listener, len(m.listeners))
	for key, l := range m.listeners {
		targets[key] = l
	}
	m.listenersMu.Unlock()

	for key, l := range targets {
		m.deliver(key, l, info)
	}
}

func (m *Manager) deliver(key ListenerKey, l Listener, info AccountInfo) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("会话监听器执行失败", slog.String("listener", string(key)), slog.Any("panic", r))
		}
	}()
	if l != nil {
		l.SessionChanged(info)
	}
}

func (m *Manager) watch(provider Provider, stop <-chan struct{}) {
	events := provider.Events()
	if events == nil {
		return
	}
	for {
		select {
		case <-stop:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.handleEvent(provider, event)
		}
	}
}

func (m *Manager) handleEvent(provider Provider, event ProviderEvent) {
	m.mu.RLock()
	current := m.provider == provider
	m.mu.RUnlock()
	if !current {
		return
	}

	ctx := context.Background()
	switch event.Kind {
	case EventAccountsChanged:
		if res := m.RefreshAccount(ctx); !res.OK() {
			m.log.Debug("账户切换后刷新失败", slog.Any("error", res.Err))
		}
	case EventChainChanged, EventNetworkChanged:
		m.log.Warn("钱包切换了网络", slog.String("event", string(event.Kind)), slog.Any("chain_id", event.ChainID))
		if m.reloadHook != nil {
			m.reloadHook(ctx, event)
		}
	default:
		m.log.Debug("忽略未知的钱包事件", slog.String("event", string(event.Kind)))
	}
}

// release stops the watcher of a replaced provider and closes it.
func (m *Manager) release(provider Provider, stop chan struct{}) {
	if stop != nil {
		close(stop)
	}
	if closer, ok := provider.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			m.log.Debug("关闭旧的钱包连接失败", slog.Any("error", err))
		}
	}
}
