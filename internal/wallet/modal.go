package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	xerrors "cuffie-gateway/internal/errors"
	"cuffie-gateway/pkg/logger"
)

// Chooser picks one of the offered connector names. It plays the role of the
// wallet-selection dialog and may block until the user decides.
type Chooser func(ctx context.Context, options []string) (string, error)

// FixedChooser always answers with the given connector name.
func FixedChooser(name string) Chooser {
	return func(context.Context, []string) (string, error) {
		return name, nil
	}
}

// SoleChooser picks the only registered connector and rejects otherwise.
func SoleChooser() Chooser {
	return func(_ context.Context, options []string) (string, error) {
		if len(options) == 1 {
			return options[0], nil
		}
		return "", ErrConnectRejected
	}
}

// Modal holds the supported connection options and the cached choice.
type Modal struct {
	connectors map[string]Connector
	cache      SessionCache
	chooser    Chooser
	log        *slog.Logger
}

// NewModal registers connectors under their names. A nil cache disables
// session caching; a nil chooser falls back to SoleChooser.
func NewModal(cache SessionCache, chooser Chooser, connectors ...Connector) *Modal {
	set := make(map[string]Connector, len(connectors))
	for _, c := range connectors {
		if c == nil {
			continue
		}
		set[strings.ToLower(c.Name())] = c
	}
	if chooser == nil {
		chooser = SoleChooser()
	}
	return &Modal{connectors: set, cache: cache, chooser: chooser, log: logger.Named("wallet.modal")}
}

// Options lists the registered connector names.
func (m *Modal) Options() []string {
	names := make([]string, 0, len(m.connectors))
	for name := range m.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CachedProvider returns the connector remembered from a previous session.
func (m *Modal) CachedProvider(ctx context.Context) (string, error) {
	if m.cache == nil {
		return "", nil
	}
	name, err := m.cache.Get(ctx)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(name)), nil
}

// ClearCachedProvider forgets the remembered connector.
func (m *Modal) ClearCachedProvider(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}
	return m.cache.Clear(ctx)
}

// Connect reuses the cached connector when there is one and otherwise asks
// the chooser. The chosen connector is cached after a successful connection.
func (m *Modal) Connect(ctx context.Context) (Provider, string, error) {
	name, err := m.CachedProvider(ctx)
	if err != nil {
		m.log.Warn("读取会话缓存失败，改为重新选择钱包", slog.Any("error", err))
		name = ""
	}
	if name == "" {
		name, err = m.chooser(ctx, m.Options())
		if err != nil {
			return nil, "", err
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, "", ErrConnectRejected
		}
	}

	provider, err := m.ConnectTo(ctx, name)
	if err != nil {
		return nil, "", err
	}
	if m.cache != nil {
		if err := m.cache.Set(ctx, name); err != nil {
			m.log.Warn("写入会话缓存失败", slog.String("connector", name), slog.Any("error", err))
		}
	}
	return provider, name, nil
}

// ConnectTo opens the named connector without touching the cache.
func (m *Modal) ConnectTo(ctx context.Context, name string) (Provider, error) {
	connector, ok := m.connectors[strings.ToLower(name)]
	if !ok {
		return nil, xerrors.New(CodeConnectorNotFound, fmt.Sprintf("未注册的钱包连接方式: %s", name),
			xerrors.WithMetadata("connector", name))
	}
	provider, err := connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("连接钱包 %s 失败: %w", name, err)
	}
	return provider, nil
}
