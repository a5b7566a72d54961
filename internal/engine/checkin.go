package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/notclassx-sys/FAM-ROOM/internal/models"
	"github.com/notclassx-sys/FAM-ROOM/internal/syncbus"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckInTracker 平安打卡跟踪器
// 每位老人一小时冷却窗口；冷却从已持久化的打卡时间推导，
// 首次访问时从存储回填，进程重启不会重置冷却
type CheckInTracker struct {
	roomID    string
	cooldown  time.Duration
	clock     clock.Clock
	store     CheckInStore
	publisher Publisher
	logger    *zap.Logger

	mu           sync.Mutex
	lastAccepted map[string]time.Time
	loaded       map[string]bool
}

// NewCheckInTracker 创建打卡跟踪器
func NewCheckInTracker(
	roomID string,
	cooldown time.Duration,
	clk clock.Clock,
	store CheckInStore,
	publisher Publisher,
	logger *zap.Logger,
) *CheckInTracker {
	return &CheckInTracker{
		roomID:       roomID,
		cooldown:     cooldown,
		clock:        clk,
		store:        store,
		publisher:    publisher,
		logger:       logger,
		lastAccepted: make(map[string]time.Time),
		loaded:       make(map[string]bool),
	}
}

// CheckIn 记录一次平安打卡
// 冷却窗口内的重复请求被拒绝（accepted=false，无副作用）
func (t *CheckInTracker) CheckIn(ctx context.Context, elderUserID, message string) (bool, error) {
	if elderUserID == "" {
		return false, fmt.Errorf("elder_user_id is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()

	last, err := t.lastCheckIn(ctx, elderUserID)
	if err != nil {
		return false, err
	}
	if !last.IsZero() && now.Sub(last) < t.cooldown {
		t.logger.Debug("Check-in rejected within cooldown",
			zap.String("elder_user_id", elderUserID),
			zap.Time("last_accepted", last),
		)
		return false, nil
	}

	checkIn := &models.CheckIn{
		ID:          uuid.New().String(),
		RoomID:      t.roomID,
		ElderUserID: elderUserID,
		Timestamp:   now,
		Message:     message,
	}
	if err := t.store.Append(ctx, checkIn); err != nil {
		// 落库失败不更新冷却窗口，调用方可重试
		return false, fmt.Errorf("append check-in: %w", err)
	}

	t.lastAccepted[elderUserID] = now
	t.loaded[elderUserID] = true

	t.logger.Info("Check-in accepted",
		zap.String("room_id", t.roomID),
		zap.String("elder_user_id", elderUserID),
	)

	if t.publisher != nil {
		if err := t.publisher.Publish(ctx, t.roomID, syncbus.KindCheckIns); err != nil {
			t.logger.Warn("Failed to publish check-in change",
				zap.String("room_id", t.roomID),
				zap.Error(err),
			)
		}
	}

	return true, nil
}

// lastCheckIn 取上次打卡时间，未缓存时从存储回填
func (t *CheckInTracker) lastCheckIn(ctx context.Context, elderUserID string) (time.Time, error) {
	if t.loaded[elderUserID] {
		return t.lastAccepted[elderUserID], nil
	}

	last, err := t.store.LastForElder(ctx, t.roomID, elderUserID)
	if err != nil {
		return time.Time{}, fmt.Errorf("load last check-in: %w", err)
	}
	t.loaded[elderUserID] = true
	if last != nil {
		t.lastAccepted[elderUserID] = last.Timestamp
		return last.Timestamp, nil
	}
	return time.Time{}, nil
}
