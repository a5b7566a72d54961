package models

// MedicineSchedule 服药计划（对应 medicines 表）
// Timings 为 "HH:MM" 格式的当日时间点，按先后排序
type MedicineSchedule struct {
	ID          string   `json:"id" db:"id"`
	RoomID      string   `json:"room_id" db:"family_room_id"`
	OwnerUserID string   `json:"owner_user_id" db:"elder_user_id"`
	Name        string   `json:"name" db:"medicine_name"`
	Timings     []string `json:"timings" db:"timings"`
	DaysOfWeek  []string `json:"days_of_week" db:"days_of_week"`
	Notes       string   `json:"notes" db:"notes"`
	TakenToday  bool     `json:"taken_today" db:"taken_today"`
}
