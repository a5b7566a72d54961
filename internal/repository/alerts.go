package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/notclassx-sys/FAM-ROOM/internal/models"

	"go.uber.org/zap"
)

// AlertRepository 报警记录仓库
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository 创建报警记录仓库
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAlert 创建报警记录
func (r *AlertRepository) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	if alert.ID == "" {
		return fmt.Errorf("alert id is required")
	}
	if alert.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}

	query := `
		INSERT INTO alerts (
			id,
			family_room_id,
			kind,
			origin_user_id,
			origin_display_name,
			message,
			created_at,
			escalate_at,
			status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		alert.RoomID,
		string(alert.Kind),
		alert.OriginUserID,
		alert.OriginDisplayName,
		alert.Message,
		alert.CreatedAt,
		alert.EscalateAt,
		string(alert.Status),
	)
	if err != nil {
		return wrapStoreError("create alert", err)
	}

	return nil
}

// ListActiveAlerts 查询房间内活跃报警（按创建时间升序，最早的排在最前）
func (r *AlertRepository) ListActiveAlerts(ctx context.Context, roomID string) ([]models.Alert, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room_id is required")
	}

	query := `
		SELECT
			id,
			family_room_id,
			kind,
			origin_user_id,
			origin_display_name,
			message,
			created_at,
			escalate_at,
			status
		FROM alerts
		WHERE family_room_id = $1
		  AND status = 'active'
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, wrapStoreError("list active alerts", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var kind, status string
		if err := rows.Scan(
			&a.ID,
			&a.RoomID,
			&kind,
			&a.OriginUserID,
			&a.OriginDisplayName,
			&a.Message,
			&a.CreatedAt,
			&a.EscalateAt,
			&status,
		); err != nil {
			return nil, wrapStoreError("scan alert", err)
		}
		a.Kind = models.AlertKind(kind)
		a.Status = models.AlertStatus(status)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("iterate alerts", err)
	}

	return alerts, nil
}

// ResolveAlert 将报警标记为已解除
// 返回本次是否实际发生了状态转换；报警不存在或已解除时返回 false
func (r *AlertRepository) ResolveAlert(ctx context.Context, alertID string) (bool, error) {
	if alertID == "" {
		return false, fmt.Errorf("alert id is required")
	}

	query := `
		UPDATE alerts
		SET status = 'resolved'
		WHERE id = $1
		  AND status = 'active'
	`

	result, err := r.db.ExecContext(ctx, query, alertID)
	if err != nil {
		return false, wrapStoreError("resolve alert", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, wrapStoreError("resolve alert rows affected", err)
	}

	return affected > 0, nil
}
