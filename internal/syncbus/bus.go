package syncbus

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 房间变更类型
const (
	KindAlerts    = "alerts"
	KindMedicines = "medicines"
	KindCheckIns  = "checkins"
	KindMembers   = "members"
	// KindResync 兜底轮询触发的再同步（无具体变更来源）
	KindResync = "resync"
)

// Bus 房间同步总线
// 推送走 Redis pub/sub；每个订阅方另有固定节奏的兜底轮询，
// 防止推送丢失导致看板永久滞后。处理函数必须是幂等的全量重读
type Bus struct {
	redisClient   *redis.Client
	clock         clock.Clock
	logger        *zap.Logger
	channelPrefix string
	pollInterval  time.Duration
}

// New 创建同步总线
func New(
	redisClient *redis.Client,
	clk clock.Clock,
	channelPrefix string,
	pollInterval time.Duration,
	logger *zap.Logger,
) *Bus {
	return &Bus{
		redisClient:   redisClient,
		clock:         clk,
		logger:        logger,
		channelPrefix: channelPrefix,
		pollInterval:  pollInterval,
	}
}

// Channel 房间变更频道名
func (b *Bus) Channel(roomID string) string {
	return b.channelPrefix + roomID + ":changes"
}

// Publish 发布房间变更
func (b *Bus) Publish(ctx context.Context, roomID, kind string) error {
	return b.redisClient.Publish(ctx, b.Channel(roomID), kind).Err()
}

// Subscribe 订阅房间变更，返回取消函数
// onChange 以至少一次语义被调用：推送到达一次、兜底轮询一次，
// 不保证顺序，可能重复；处理函数自行全量重读
func (b *Bus) Subscribe(ctx context.Context, roomID string, onChange func(kind string)) func() {
	pubsub := b.redisClient.Subscribe(ctx, b.Channel(roomID))
	ticker := b.clock.Ticker(b.pollInterval)

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			ticker.Stop()
			if err := pubsub.Close(); err != nil {
				b.logger.Warn("Failed to close pubsub",
					zap.String("room_id", roomID),
					zap.Error(err),
				)
			}
		})
	}

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.invoke(roomID, msg.Payload, onChange)
			case <-ticker.C:
				b.invoke(roomID, KindResync, onChange)
			}
		}
	}()

	b.logger.Debug("Subscribed to room changes",
		zap.String("room_id", roomID),
		zap.String("channel", b.Channel(roomID)),
	)

	return cancel
}

// invoke 调用处理函数，panic 只记录，不中断订阅
func (b *Bus) invoke(roomID, kind string, onChange func(kind string)) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Room change handler panicked",
				zap.String("room_id", roomID),
				zap.String("kind", kind),
				zap.Any("panic", r),
			)
		}
	}()
	onChange(kind)
}
