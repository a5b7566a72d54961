package models

// Role 房间成员角色
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleYoung Role = "Young"
	RoleElder Role = "Elder"
)

// IsCaregiver 是否为照护者角色（可接收/解除报警）
func (r Role) IsCaregiver() bool {
	return r == RoleAdmin || r == RoleYoung
}

// Membership 房间成员关系（对应 room_members 表，引擎只读）
type Membership struct {
	RoomID string `json:"room_id" db:"room_id"`
	UserID string `json:"user_id" db:"user_id"`
	Role   Role   `json:"role" db:"role"`
}
