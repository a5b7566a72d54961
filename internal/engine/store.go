package engine

import (
	"context"

	"github.com/notclassx-sys/FAM-ROOM/internal/models"
)

// AlertStore 报警存储接口（由 repository.AlertRepository 实现）
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *models.Alert) error
	ListActiveAlerts(ctx context.Context, roomID string) ([]models.Alert, error)
	// ResolveAlert 返回本次是否实际发生了 active → resolved 转换
	ResolveAlert(ctx context.Context, alertID string) (bool, error)
}

// EmergencyLogStore 紧急历史存储接口（由 repository.EmergencyLogRepository 实现）
type EmergencyLogStore interface {
	Append(ctx context.Context, log *models.EmergencyLog) error
	Resolve(ctx context.Context, logID string) error
}

// CheckInStore 打卡存储接口（由 repository.CheckInRepository 实现）
type CheckInStore interface {
	Append(ctx context.Context, checkIn *models.CheckIn) error
	LastForElder(ctx context.Context, roomID, elderUserID string) (*models.CheckIn, error)
}

// Publisher 房间变更通知接口（由 syncbus.Bus 实现）
type Publisher interface {
	Publish(ctx context.Context, roomID, kind string) error
}
