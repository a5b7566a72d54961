package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/notclassx-sys/FAM-ROOM/internal/models"

	"go.uber.org/zap"
)

// CheckInRepository 平安打卡仓库（对应 checkin_logs 表，仅追加）
type CheckInRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCheckInRepository 创建平安打卡仓库
func NewCheckInRepository(db *sql.DB, logger *zap.Logger) *CheckInRepository {
	return &CheckInRepository{
		db:     db,
		logger: logger,
	}
}

// Append 追加一条打卡记录
func (r *CheckInRepository) Append(ctx context.Context, checkIn *models.CheckIn) error {
	if checkIn == nil {
		return fmt.Errorf("check-in is required")
	}
	if checkIn.ID == "" {
		return fmt.Errorf("check-in id is required")
	}
	if checkIn.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if checkIn.ElderUserID == "" {
		return fmt.Errorf("elder_user_id is required")
	}

	query := `
		INSERT INTO checkin_logs (
			id,
			family_room_id,
			elder_user_id,
			timestamp,
			message
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		checkIn.ID,
		checkIn.RoomID,
		checkIn.ElderUserID,
		checkIn.Timestamp,
		checkIn.Message,
	)
	if err != nil {
		return wrapStoreError("append check-in", err)
	}

	return nil
}

// ListByRoom 查询房间打卡历史（按时间倒序）
func (r *CheckInRepository) ListByRoom(ctx context.Context, roomID string) ([]models.CheckIn, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room_id is required")
	}

	query := `
		SELECT
			id,
			family_room_id,
			elder_user_id,
			timestamp,
			message
		FROM checkin_logs
		WHERE family_room_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, wrapStoreError("list check-ins", err)
	}
	defer rows.Close()

	var checkIns []models.CheckIn
	for rows.Next() {
		var c models.CheckIn
		if err := rows.Scan(
			&c.ID,
			&c.RoomID,
			&c.ElderUserID,
			&c.Timestamp,
			&c.Message,
		); err != nil {
			return nil, wrapStoreError("scan check-in", err)
		}
		checkIns = append(checkIns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("iterate check-ins", err)
	}

	return checkIns, nil
}

// LastForElder 查询某位老人最近一次打卡
// 没有历史记录时返回 (nil, nil)，用于重启后恢复冷却窗口
func (r *CheckInRepository) LastForElder(ctx context.Context, roomID, elderUserID string) (*models.CheckIn, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room_id is required")
	}
	if elderUserID == "" {
		return nil, fmt.Errorf("elder_user_id is required")
	}

	query := `
		SELECT
			id,
			family_room_id,
			elder_user_id,
			timestamp,
			message
		FROM checkin_logs
		WHERE family_room_id = $1
		  AND elder_user_id = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var c models.CheckIn
	err := r.db.QueryRowContext(ctx, query, roomID, elderUserID).Scan(
		&c.ID,
		&c.RoomID,
		&c.ElderUserID,
		&c.Timestamp,
		&c.Message,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStoreError("last check-in for elder", err)
	}

	return &c, nil
}
