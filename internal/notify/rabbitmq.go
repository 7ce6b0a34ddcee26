// Package notify fans wallet session changes out to external consumers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"cuffie-gateway/internal/wallet"
	"cuffie-gateway/pkg/logger"
)

// DefaultQueue is used when the configuration leaves the queue name empty.
const DefaultQueue = "cuffie.session"

// SessionEvent is the JSON document published for every session change.
type SessionEvent struct {
	EventID    string    `json:"event_id"`
	Connected  bool      `json:"connected"`
	Account    string    `json:"account,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewSessionEvent snapshots info into a publishable event.
func NewSessionEvent(info wallet.AccountInfo) SessionEvent {
	event := SessionEvent{
		EventID:    uuid.NewString(),
		Connected:  info.Connected(),
		Provider:   info.ProviderName,
		OccurredAt: time.Now().UTC(),
	}
	if info.SelectedAccount != nil {
		event.Account = info.SelectedAccount.Hex()
	}
	return event
}

// RabbitMQConfig 描述 RabbitMQ 发布端的连接参数。Buffer 是等待发布的事件上限，
// 超出后新事件会被丢弃；PublishTimeout 限制单条消息的发布时间。
type RabbitMQConfig struct {
	URL            string
	Queue          string
	Durable        bool
	Buffer         int
	PublishTimeout time.Duration
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher implements wallet.Listener. Events are queued and
// published from a single goroutine so a slow broker never blocks the session.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	ch      channel
	queue   string
	timeout time.Duration
	log     *slog.Logger

	events chan SessionEvent
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewRabbitMQPublisher 连接 RabbitMQ 并声明队列。
func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明 RabbitMQ 队列失败: %w", err)
	}
	p := newPublisher(ch, queue, cfg)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, queue string, cfg RabbitMQConfig) *RabbitMQPublisher {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &RabbitMQPublisher{
		ch:      ch,
		queue:   queue,
		timeout: timeout,
		log:     logger.Named("notify.rabbitmq"),
		events:  make(chan SessionEvent, buffer),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// SessionChanged implements wallet.Listener. It never blocks.
func (p *RabbitMQPublisher) SessionChanged(info wallet.AccountInfo) {
	event := NewSessionEvent(info)
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.events <- event:
	default:
		p.log.Warn("会话事件队列已满，丢弃事件", slog.String("event_id", event.EventID))
	}
}

func (p *RabbitMQPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			p.drain()
			return
		case event := <-p.events:
			p.publish(event)
		}
	}
}

func (p *RabbitMQPublisher) drain() {
	for {
		select {
		case event := <-p.events:
			p.publish(event)
		default:
			return
		}
	}
}

func (p *RabbitMQPublisher) publish(event SessionEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("序列化会话事件失败", slog.Any("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    event.OccurredAt,
		Type:         "session.changed",
		Body:         body,
	})
	if err != nil {
		p.log.Warn("发布会话事件失败", slog.String("event_id", event.EventID), slog.Any("error", err))
	}
}

// Close 发布剩余事件后关闭 RabbitMQ 连接。
func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() {
		close(p.done)
		p.wg.Wait()
		if p.ch != nil {
			_ = p.ch.Close()
		}
		if p.conn != nil {
			_ = p.conn.Close()
		}
	})
	return nil
}

var _ wallet.Listener = (*RabbitMQPublisher)(nil)
