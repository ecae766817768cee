package cache

import (
	"context"
	"encoding/json"
	"time"

	"metajuke/core/jukebox"
	"metajuke/logger"

	"github.com/go-redis/redis/v8"
)

// Publisher redis.Client 的发布子集
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// EventPublisher 通过 Redis pub/sub 发布引擎事件，实现 jukebox.Emitter
type EventPublisher struct {
	client  Publisher
	channel string
	timeout time.Duration
}

// NewEventPublisher 创建发布器
func NewEventPublisher(client Publisher, channel string) *EventPublisher {
	return &EventPublisher{client: client, channel: channel, timeout: 2 * time.Second}
}

// Emit 发布失败只记录日志
func (p *EventPublisher) Emit(ctx context.Context, evt *jukebox.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Warn("事件序列化失败", logger.ErrorField(err))
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.client.Publish(pubCtx, p.channel, data).Err(); err != nil {
		logger.Warn("发布事件失败",
			logger.String("channel", p.channel),
			logger.String("type", string(evt.Type)),
			logger.ErrorField(err))
	}
}

// RelayEvents 订阅频道并转发给本地 Emitter（通常是 EventHub），直到 ctx 结束
func RelayEvents(ctx context.Context, client *redis.Client, channel string, dst jukebox.Emitter) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			evt, err := DecodeEvent(msg.Payload)
			if err != nil {
				logger.Warn("无法解析事件", logger.ErrorField(err))
				continue
			}
			dst.Emit(ctx, evt)
		}
	}
}

// DecodeEvent 解析频道消息
func DecodeEvent(payload string) (*jukebox.Event, error) {
	var evt jukebox.Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
