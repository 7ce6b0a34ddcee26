package wallet

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// AccountInfo is a point-in-time snapshot of the session.
type AccountInfo struct {
	Provider        Provider        `json:"-"`
	ProviderName    string          `json:"provider,omitempty"`
	SelectedAccount *common.Address `json:"selectedAccount"`
}

// Connected reports whether both the provider and the account are set.
func (a AccountInfo) Connected() bool {
	return a.Provider != nil && a.SelectedAccount != nil
}

// Listener is told about every session mutation.
type Listener interface {
	SessionChanged(info AccountInfo)
}

// ListenerFunc adapts a plain function into a Listener.
type ListenerFunc func(info AccountInfo)

// SessionChanged implements Listener.
func (f ListenerFunc) SessionChanged(info AccountInfo) { f(info) }

// ListenerKey identifies a registered listener.
type ListenerKey string

// Subscription is the disposable handle returned by Manager.Subscribe.
type Subscription struct {
	key    ListenerKey
	once   sync.Once
	remove func(ListenerKey)
}

// Key returns the listener key backing the subscription.
func (s *Subscription) Key() ListenerKey {
	return s.key
}

// Unsubscribe removes the listener. Repeated calls are no-ops.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() { s.remove(s.key) })
}

// BestEffort reports the outcome of an operation whose failure never
// propagates to the primary flow. Callers may inspect or ignore it.
type BestEffort struct {
	Err error
}

// OK reports whether the operation succeeded.
func (b BestEffort) OK() bool {
	return b.Err == nil
}
