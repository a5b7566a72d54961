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

// Engine 报警引擎（每个房间一个实例）
// 统一持有报警生命周期：创建、查询活跃列表、解除；
// 引擎本身无持久状态，存储层是唯一事实来源，
// 内存中只保留连击状态、去重表与升级定时器句柄
type Engine struct {
	roomID     string
	clock      clock.Clock
	logger     *zap.Logger
	alerts     AlertStore
	sosLog     EmergencyLogStore
	publisher  Publisher
	debouncer  *TapDebouncer
	escalation *EscalationScheduler

	sosDelay time.Duration
	medDelay time.Duration

	// 串行化本房间的全部状态转换
	mu      sync.Mutex
	cancels map[string]func() // alertID → 升级定时器取消函数
}

// NewEngine 创建报警引擎
func NewEngine(
	roomID string,
	clk clock.Clock,
	alerts AlertStore,
	sosLog EmergencyLogStore,
	publisher Publisher,
	debouncer *TapDebouncer,
	escalation *EscalationScheduler,
	sosDelay, medDelay time.Duration,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		roomID:     roomID,
		clock:      clk,
		logger:     logger,
		alerts:     alerts,
		sosLog:     sosLog,
		publisher:  publisher,
		debouncer:  debouncer,
		escalation: escalation,
		sosDelay:   sosDelay,
		medDelay:   medDelay,
		cancels:    make(map[string]func()),
	}
}

// TriggerSOS 记录一次 SOS 按键
// 连击达到阈值时创建 SOS 报警、写入紧急历史、布防升级定时器；
// 未达到阈值时返回 (nil, nil)
func (e *Engine) TriggerSOS(ctx context.Context, elderUserID, displayName string) (*models.Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if !e.debouncer.RegisterTap(elderUserID, now) {
		return nil, nil
	}

	alert := &models.Alert{
		ID:                uuid.New().String(),
		RoomID:            e.roomID,
		Kind:              models.AlertKindSOS,
		OriginUserID:      elderUserID,
		OriginDisplayName: displayName,
		Message:           fmt.Sprintf("EMERGENCY SOS from %s", displayName),
		CreatedAt:         now,
		EscalateAt:        now.Add(e.sosDelay),
		Status:            models.AlertStatusActive,
	}

	if err := e.createAndArm(ctx, alert, e.sosDelay); err != nil {
		return nil, err
	}

	e.logger.Info("SOS alert created",
		zap.String("room_id", e.roomID),
		zap.String("alert_id", alert.ID),
		zap.String("elder_user_id", elderUserID),
	)

	return alert, nil
}

// ReportMissedDose 将漏服药事件转为报警
func (e *Engine) ReportMissedDose(ctx context.Context, event MissedDoseEvent) (*models.Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	alert := &models.Alert{
		ID:                uuid.New().String(),
		RoomID:            e.roomID,
		Kind:              models.AlertKindMedicineMissed,
		OriginUserID:      event.OwnerUserID,
		OriginDisplayName: event.OwnerUserID,
		Message:           fmt.Sprintf("MEDICINE MISSED: %s has not been taken", event.MedicineName),
		CreatedAt:         now,
		EscalateAt:        now.Add(e.medDelay),
		Status:            models.AlertStatusActive,
	}

	if err := e.createAndArm(ctx, alert, e.medDelay); err != nil {
		return nil, err
	}

	e.logger.Info("Missed dose alert created",
		zap.String("room_id", e.roomID),
		zap.String("alert_id", alert.ID),
		zap.String("schedule_id", event.ScheduleID),
		zap.String("medicine", event.MedicineName),
	)

	return alert, nil
}

// createAndArm 落库后布防升级定时器（先创建后布防，顺序不可倒置）
// 任何一步落库失败都直接返回错误，不布防、不改内存状态
func (e *Engine) createAndArm(ctx context.Context, alert *models.Alert, delay time.Duration) error {
	if err := e.alerts.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}

	// 紧急历史与报警共用 ID，解除时按同一 ID 标记
	log := &models.EmergencyLog{
		ID:          alert.ID,
		RoomID:      alert.RoomID,
		ElderUserID: alert.OriginUserID,
		Timestamp:   alert.CreatedAt,
		Resolved:    false,
		Message:     alert.Message,
	}
	if err := e.sosLog.Append(ctx, log); err != nil {
		return fmt.Errorf("append emergency log: %w", err)
	}

	e.cancels[alert.ID] = e.escalation.Arm(alert.ID, delay)

	e.publishChange(ctx, syncbus.KindAlerts)
	return nil
}

// ListActive 查询本房间活跃报警（最早创建的排在最前）
func (e *Engine) ListActive(ctx context.Context) ([]models.Alert, error) {
	alerts, err := e.alerts.ListActiveAlerts(ctx, e.roomID)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	return alerts, nil
}

// Resolve 解除报警并取消其升级定时器
// 幂等：报警不存在或已解除时为空操作，不报错；
// 落库失败时不触碰内存状态，定时器保持布防
func (e *Engine) Resolve(ctx context.Context, alertID string) error {
	if alertID == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	transitioned, err := e.alerts.ResolveAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	if !transitioned {
		// 未知 ID 或已解除。上一次解除可能在标记紧急历史前中断，
		// 这里补做一次幂等标记，保证重试最终能对齐两张表
		if err := e.sosLog.Resolve(ctx, alertID); err != nil {
			return fmt.Errorf("resolve emergency log: %w", err)
		}
		return nil
	}

	if cancel, ok := e.cancels[alertID]; ok {
		cancel()
		delete(e.cancels, alertID)
	}

	if err := e.sosLog.Resolve(ctx, alertID); err != nil {
		return fmt.Errorf("resolve emergency log: %w", err)
	}

	e.logger.Info("Alert resolved",
		zap.String("room_id", e.roomID),
		zap.String("alert_id", alertID),
	)

	e.publishChange(ctx, syncbus.KindAlerts)
	return nil
}

// PendingTaps 当前连击窗口内已累计的点击数
func (e *Engine) PendingTaps(elderUserID string) int {
	return e.debouncer.PendingTaps(elderUserID, e.clock.Now())
}

// publishChange 发布房间变更通知，失败只记录（订阅方有兜底轮询）
func (e *Engine) publishChange(ctx context.Context, kind string) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, e.roomID, kind); err != nil {
		e.logger.Warn("Failed to publish room change",
			zap.String("room_id", e.roomID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}
