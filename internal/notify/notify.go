package notify

import (
	"go.uber.org/zap"
)

// LogEscalator 默认升级动作：只记录日志（真实呼叫集成的占位）
func LogEscalator(logger *zap.Logger) func(alertID string) {
	return func(alertID string) {
		logger.Info("ESCALATION: triggering emergency call simulation",
			zap.String("alert_id", alertID),
		)
	}
}
