package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/notclassx-sys/FAM-ROOM/internal/models"

	"go.uber.org/zap"
)

// MembershipRepository 房间成员仓库（引擎只读，成员管理由外部系统负责）
type MembershipRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMembershipRepository 创建房间成员仓库
func NewMembershipRepository(db *sql.DB, logger *zap.Logger) *MembershipRepository {
	return &MembershipRepository{
		db:     db,
		logger: logger,
	}
}

// ListRoomMembers 查询房间全部成员
func (r *MembershipRepository) ListRoomMembers(ctx context.Context, roomID string) ([]models.Membership, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room_id is required")
	}

	query := `
		SELECT
			room_id,
			user_id,
			role
		FROM room_members
		WHERE room_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, wrapStoreError("list room members", err)
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		var m models.Membership
		var role string
		if err := rows.Scan(&m.RoomID, &m.UserID, &role); err != nil {
			return nil, wrapStoreError("scan room member", err)
		}
		m.Role = models.Role(role)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("iterate room members", err)
	}

	return members, nil
}
