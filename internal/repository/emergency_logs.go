package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/notclassx-sys/FAM-ROOM/internal/models"

	"go.uber.org/zap"
)

// EmergencyLogRepository 紧急历史记录仓库（对应 sos_logs 表）
type EmergencyLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEmergencyLogRepository 创建紧急历史记录仓库
func NewEmergencyLogRepository(db *sql.DB, logger *zap.Logger) *EmergencyLogRepository {
	return &EmergencyLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append 追加一条紧急历史记录
func (r *EmergencyLogRepository) Append(ctx context.Context, log *models.EmergencyLog) error {
	if log == nil {
		return fmt.Errorf("emergency log is required")
	}
	if log.ID == "" {
		return fmt.Errorf("log id is required")
	}
	if log.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}

	query := `
		INSERT INTO sos_logs (
			id,
			family_room_id,
			elder_user_id,
			timestamp,
			resolved,
			message
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.RoomID,
		log.ElderUserID,
		log.Timestamp,
		log.Resolved,
		log.Message,
	)
	if err != nil {
		return wrapStoreError("append emergency log", err)
	}

	return nil
}

// Resolve 标记紧急记录为已处理
// 记录不存在时视为无操作（与报警解除的幂等语义一致）
func (r *EmergencyLogRepository) Resolve(ctx context.Context, logID string) error {
	if logID == "" {
		return fmt.Errorf("log id is required")
	}

	query := `
		UPDATE sos_logs
		SET resolved = true
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, logID)
	if err != nil {
		return wrapStoreError("resolve emergency log", err)
	}

	return nil
}

// ListByRoom 查询房间的紧急历史（按时间倒序）
func (r *EmergencyLogRepository) ListByRoom(ctx context.Context, roomID string) ([]models.EmergencyLog, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room_id is required")
	}

	query := `
		SELECT
			id,
			family_room_id,
			elder_user_id,
			timestamp,
			resolved,
			message
		FROM sos_logs
		WHERE family_room_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, wrapStoreError("list emergency logs", err)
	}
	defer rows.Close()

	var logs []models.EmergencyLog
	for rows.Next() {
		var l models.EmergencyLog
		if err := rows.Scan(
			&l.ID,
			&l.RoomID,
			&l.ElderUserID,
			&l.Timestamp,
			&l.Resolved,
			&l.Message,
		); err != nil {
			return nil, wrapStoreError("scan emergency log", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("iterate emergency logs", err)
	}

	return logs, nil
}
