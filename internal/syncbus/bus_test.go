package syncbus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupBus(t *testing.T, clk clock.Clock, pollInterval time.Duration) (*Bus, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, clk, "famroom:room:", pollInterval, zap.NewNop()), client
}

// waitForKind 等待处理函数收到一条变更，超时视为失败
func waitForKind(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case kind := <-ch:
		return kind
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for room change")
		return ""
	}
}

func TestBus_Channel(t *testing.T) {
	bus, _ := setupBus(t, clock.New(), time.Hour)
	assert.Equal(t, "famroom:room:room-1:changes", bus.Channel("room-1"))
}

func TestBus_PublishDeliveredToSubscriber(t *testing.T) {
	// 兜底轮询设为一小时，测试期间只会走推送路径
	bus, _ := setupBus(t, clock.New(), time.Hour)
	ctx := context.Background()

	received := make(chan string, 10)
	cancel := bus.Subscribe(ctx, "room-1", func(kind string) {
		received <- kind
	})
	defer cancel()

	// 订阅在后台建立，先确认通道已就绪再发布
	require.Eventually(t, func() bool {
		require.NoError(t, bus.Publish(ctx, "room-1", KindAlerts))
		select {
		case kind := <-received:
			return kind == KindAlerts
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, "room-1", KindMedicines))
	assert.Equal(t, KindMedicines, waitForKind(t, received))
}

func TestBus_RoomsIsolated(t *testing.T) {
	bus, _ := setupBus(t, clock.New(), time.Hour)
	ctx := context.Background()

	received := make(chan string, 10)
	cancel := bus.Subscribe(ctx, "room-1", func(kind string) {
		received <- kind
	})
	defer cancel()

	require.Eventually(t, func() bool {
		require.NoError(t, bus.Publish(ctx, "room-1", KindAlerts))
		select {
		case <-received:
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)

	// 其他房间的变更不会串台
	require.NoError(t, bus.Publish(ctx, "room-2", KindCheckIns))
	require.NoError(t, bus.Publish(ctx, "room-1", KindMembers))
	assert.Equal(t, KindMembers, waitForKind(t, received))
}

func TestBus_PollFallbackFiresResync(t *testing.T) {
	mock := clock.NewMock()
	bus, _ := setupBus(t, mock, 30*time.Second)
	ctx := context.Background()

	received := make(chan string, 10)
	cancel := bus.Subscribe(ctx, "room-1", func(kind string) {
		received <- kind
	})
	defer cancel()

	// 没有任何推送时，轮询节拍到点触发再同步
	require.Eventually(t, func() bool {
		mock.Add(30 * time.Second)
		select {
		case kind := <-received:
			return kind == KindResync
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus, _ := setupBus(t, clock.New(), time.Hour)
	ctx := context.Background()

	received := make(chan string, 10)
	cancel := bus.Subscribe(ctx, "room-1", func(kind string) {
		received <- kind
	})

	require.Eventually(t, func() bool {
		require.NoError(t, bus.Publish(ctx, "room-1", KindAlerts))
		select {
		case <-received:
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	// 取消幂等
	cancel()

	require.NoError(t, bus.Publish(ctx, "room-1", KindAlerts))
	select {
	case kind := <-received:
		t.Fatalf("received %q after cancel", kind)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBus_HandlerPanicDoesNotKillSubscription(t *testing.T) {
	bus, _ := setupBus(t, clock.New(), time.Hour)
	ctx := context.Background()

	received := make(chan string, 10)
	cancel := bus.Subscribe(ctx, "room-1", func(kind string) {
		if kind == KindAlerts {
			panic("handler bug")
		}
		received <- kind
	})
	defer cancel()

	require.Eventually(t, func() bool {
		require.NoError(t, bus.Publish(ctx, "room-1", KindAlerts))
		require.NoError(t, bus.Publish(ctx, "room-1", KindMedicines))
		select {
		case kind := <-received:
			return kind == KindMedicines
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)
}
