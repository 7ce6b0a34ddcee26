package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"cuffie-gateway/internal/wallet"
)

const eventWriteTimeout = 5 * time.Second

// SessionView 是会话快照的对外表示。
type SessionView struct {
	Connected       bool    `json:"connected"`
	Provider        string  `json:"provider,omitempty"`
	SelectedAccount *string `json:"selectedAccount"`
}

func viewOf(info wallet.AccountInfo) SessionView {
	view := SessionView{Connected: info.Connected(), Provider: info.ProviderName}
	if info.SelectedAccount != nil {
		hex := info.SelectedAccount.Hex()
		view.SelectedAccount = &hex
	}
	return view
}

func (v SessionView) equal(other SessionView) bool {
	if v.Connected != other.Connected || v.Provider != other.Provider {
		return false
	}
	if v.SelectedAccount == nil || other.SelectedAccount == nil {
		return v.SelectedAccount == other.SelectedAccount
	}
	return *v.SelectedAccount == *other.SelectedAccount
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	if s.session == nil {
		http.Error(w, errNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.session.AccountInfo()))
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		http.Error(w, errNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	if err := s.session.ConnectToWallet(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.session.AccountInfo()))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		http.Error(w, errNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	if err := s.session.DisconnectWallet(r.Context()); err != nil {
		// 会话已经重置，关闭失败只影响底层连接。
		s.log.Warn("断开钱包时关闭连接失败", "error", err)
	}
	writeJSON(w, http.StatusOK, viewOf(s.session.AccountInfo()))
}

// handleSessionEvents 先推送当前快照，之后推送会话变更。
// 客户端处理过慢时丢弃中间快照，最后一次推送总是当前状态。
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		http.Error(w, errNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.log.Info("WebSocket 握手失败", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	// 只读取控制帧，客户端关闭时 ctx 结束。
	ctx := conn.CloseRead(r.Context())

	// 监听器只发出信号，推送时总是重新读取最新会话，积压的变更合并为一次推送。
	changed := make(chan struct{}, 1)
	sub := s.session.Subscribe(wallet.ListenerFunc(func(wallet.AccountInfo) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))
	defer sub.Unsubscribe()

	last := viewOf(s.session.AccountInfo())
	if err := writeView(ctx, conn, last); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			view := viewOf(s.session.AccountInfo())
			if view.equal(last) {
				continue
			}
			if err := writeView(ctx, conn, view); err != nil {
				s.log.Info("推送会话事件失败", "close_status", websocket.CloseStatus(err), "error", err)
				return
			}
			last = view
		}
	}
}

func writeView(ctx context.Context, conn *websocket.Conn, view SessionView) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, view)
}
