package models

import (
	"time"
)

// CheckIn 老人平安打卡记录（对应 checkin_logs 表，仅追加）
type CheckIn struct {
	ID          string    `json:"id" db:"id"`
	RoomID      string    `json:"room_id" db:"family_room_id"`
	ElderUserID string    `json:"elder_user_id" db:"elder_user_id"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	Message     string    `json:"message" db:"message"`
}
