package engine

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// EscalateFunc 升级动作（如模拟紧急呼叫），由外部注入
type EscalateFunc func(alertID string)

// EscalationScheduler 升级定时器调度器
// 每个报警一个可取消的延迟动作；取消幂等，触发后取消为空操作；
// 副作用至多执行一次，各定时器互不影响
type EscalationScheduler struct {
	clock      clock.Clock
	onEscalate EscalateFunc
	logger     *zap.Logger

	mu     sync.Mutex
	armed  map[string]func() // alertID → cancel
	closed bool
}

// NewEscalationScheduler 创建升级调度器
func NewEscalationScheduler(clk clock.Clock, onEscalate EscalateFunc, logger *zap.Logger) *EscalationScheduler {
	if onEscalate == nil {
		onEscalate = func(alertID string) {
			logger.Info("Escalation fired (no-op)",
				zap.String("alert_id", alertID),
			)
		}
	}
	return &EscalationScheduler{
		clock:      clk,
		onEscalate: onEscalate,
		logger:     logger,
		armed:      make(map[string]func()),
	}
}

// Arm 布防一个升级定时器，返回取消函数
// 取消必须在触发前调用才生效；触发与取消竞争时以先到者为准
func (s *EscalationScheduler) Arm(alertID string, delay time.Duration) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	var stateMu sync.Mutex
	fired := false
	cancelled := false

	timer := s.clock.AfterFunc(delay, func() {
		stateMu.Lock()
		if cancelled {
			stateMu.Unlock()
			return
		}
		fired = true
		stateMu.Unlock()

		s.unregister(alertID)
		s.fire(alertID)
	})

	cancel := func() {
		stateMu.Lock()
		defer stateMu.Unlock()
		if fired || cancelled {
			return
		}
		cancelled = true
		timer.Stop()
		s.unregister(alertID)
		s.logger.Debug("Escalation timer cancelled",
			zap.String("alert_id", alertID),
		)
	}

	s.armed[alertID] = cancel

	s.logger.Debug("Escalation timer armed",
		zap.String("alert_id", alertID),
		zap.Duration("delay", delay),
	)

	return cancel
}

// ArmedCount 当前布防中的定时器数量
func (s *EscalationScheduler) ArmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

// Close 取消全部布防定时器（服务停止时调用）
func (s *EscalationScheduler) Close() {
	s.mu.Lock()
	cancels := make([]func(), 0, len(s.armed))
	for _, cancel := range s.armed {
		cancels = append(cancels, cancel)
	}
	s.closed = true
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// fire 执行升级动作，副作用抛出的 panic 只记录，不波及其他定时器
func (s *EscalationScheduler) fire(alertID string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Escalation side effect panicked",
				zap.String("alert_id", alertID),
				zap.Any("panic", r),
			)
		}
	}()

	s.logger.Info("Escalation fired",
		zap.String("alert_id", alertID),
	)
	s.onEscalate(alertID)
}

func (s *EscalationScheduler) unregister(alertID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.armed, alertID)
}
