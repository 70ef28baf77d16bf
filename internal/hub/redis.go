package hub

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBroadcaster 透過 Redis pub/sub 在多個程序之間廣播，
// 每個程序訂閱所有房間頻道並只送給自己的連線
type RedisBroadcaster struct {
	client   *redis.Client
	registry *Registry
	prefix   string

	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisClient 解析 URL 並確認連線可用
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

// NewRedisBroadcaster 建立並開始訂閱 <prefix>:*
func NewRedisBroadcaster(ctx context.Context, client *redis.Client, registry *Registry, prefix string) (*RedisBroadcaster, error) {
	b := &RedisBroadcaster{client: client, registry: registry, prefix: prefix}

	b.pubsub = client.PSubscribe(ctx, b.prefix+":*")
	// 等待訂閱確認，避免遺失啟動後的第一批訊息
	if _, err := b.pubsub.Receive(ctx); err != nil {
		_ = b.pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe: %w", err)
	}

	b.wg.Add(1)
	go b.listen()
	return b, nil
}

// Channel 回傳房間使用的 Redis 頻道名稱
func (b *RedisBroadcaster) Channel(roomID string) string {
	return b.prefix + ":" + roomID
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, env Envelope) error {
	raw, err := jsoniter.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	return b.client.Publish(ctx, b.Channel(env.RoomID), raw).Err()
}

func (b *RedisBroadcaster) listen() {
	defer b.wg.Done()

	for msg := range b.pubsub.Channel() {
		var env Envelope
		if err := jsoniter.UnmarshalFromString(msg.Payload, &env); err != nil {
			log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed broadcast envelope")
			continue
		}
		if env.RoomID == "" {
			env.RoomID = strings.TrimPrefix(msg.Channel, b.prefix+":")
		}
		b.registry.Deliver(env)
	}
}

func (b *RedisBroadcaster) Close() error {
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}
