package models

import (
	"time"
)

// AlertKind 报警类型
type AlertKind string

const (
	AlertKindSOS            AlertKind = "SOS"
	AlertKindMedicineMissed AlertKind = "MED_MISSED"
)

// AlertStatus 报警状态
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
)

// Alert 报警记录（对应 alerts 表）
// 状态只能从 active 转为 resolved 一次，不可恢复
type Alert struct {
	ID                string      `json:"id" db:"id"`
	RoomID            string      `json:"room_id" db:"family_room_id"`
	Kind              AlertKind   `json:"kind" db:"kind"`
	OriginUserID      string      `json:"origin_user_id" db:"origin_user_id"`
	OriginDisplayName string      `json:"origin_display_name" db:"origin_display_name"`
	Message           string      `json:"message" db:"message"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	EscalateAt        time.Time   `json:"escalate_at" db:"escalate_at"`
	Status            AlertStatus `json:"status" db:"status"`
}

// EmergencyLog 紧急历史记录（对应 sos_logs 表）
// 每次 SOS 写入一条，报警解除后仍保留
type EmergencyLog struct {
	ID          string    `json:"id" db:"id"`
	RoomID      string    `json:"room_id" db:"family_room_id"`
	ElderUserID string    `json:"elder_user_id" db:"elder_user_id"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	Resolved    bool      `json:"resolved" db:"resolved"`
	Message     string    `json:"message" db:"message"`
}
