package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/notclassx-sys/FAM-ROOM/internal/models"

	"go.uber.org/zap"
)

// MissedDoseEvent 漏服药事件
type MissedDoseEvent struct {
	ScheduleID   string
	RoomID       string
	OwnerUserID  string
	MedicineName string
	Scheduled    time.Time // 当日应服时间点
	Date         string    // 自然日（YYYY-MM-DD）
}

// AdherenceMonitor 服药检查器
// 按固定节奏扫描服药计划，逾期进入 [N, N+1) 分钟窗口时发出事件；
// 以 (计划ID, 自然日) 为键做本地去重，同一天绝不重复发出
// 只评估第一个时间点（沿用既有产品范围）；不修改 taken_today
type AdherenceMonitor struct {
	overdueMinutes int
	scanInterval   time.Duration
	logger         *zap.Logger

	mu       sync.Mutex
	fired    map[string]struct{} // "scheduleID@date"
	lastScan time.Time
}

// NewAdherenceMonitor 创建服药检查器
func NewAdherenceMonitor(overdueMinutes int, scanInterval time.Duration, logger *zap.Logger) *AdherenceMonitor {
	if overdueMinutes <= 0 {
		overdueMinutes = 20
	}
	return &AdherenceMonitor{
		overdueMinutes: overdueMinutes,
		scanInterval:   scanInterval,
		logger:         logger,
		fired:          make(map[string]struct{}),
	}
}

// Scan 扫描服药计划，返回新产生的漏服药事件
func (m *AdherenceMonitor) Scan(schedules []models.MedicineSchedule, now time.Time) []MissedDoseEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.warnOnSkew(now)

	date := now.Format("2006-01-02")
	var events []MissedDoseEvent

	for _, med := range schedules {
		if med.TakenToday {
			continue
		}
		if len(med.Timings) == 0 {
			continue
		}

		scheduled, err := timeOfDayOn(now, med.Timings[0])
		if err != nil {
			m.logger.Warn("Skipping schedule with malformed timing",
				zap.String("schedule_id", med.ID),
				zap.String("timing", med.Timings[0]),
				zap.Error(err),
			)
			continue
		}

		elapsedMinutes := now.Sub(scheduled).Minutes()
		if elapsedMinutes < float64(m.overdueMinutes) || elapsedMinutes >= float64(m.overdueMinutes+1) {
			continue
		}

		key := med.ID + "@" + date
		if _, done := m.fired[key]; done {
			continue
		}
		m.fired[key] = struct{}{}

		events = append(events, MissedDoseEvent{
			ScheduleID:   med.ID,
			RoomID:       med.RoomID,
			OwnerUserID:  med.OwnerUserID,
			MedicineName: med.Name,
			Scheduled:    scheduled,
			Date:         date,
		})
	}

	// 清理非当日的去重条目
	for key := range m.fired {
		if !strings.HasSuffix(key, "@"+date) {
			delete(m.fired, key)
		}
	}

	return events
}

// Unmark 撤销一条去重标记
// 事件对应的报警落库失败时调用，窗口未过的话下一轮扫描会重新发出
func (m *AdherenceMonitor) Unmark(scheduleID, date string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fired, scheduleID+"@"+date)
}

// ResetDay 日切时清空去重表（与 taken_today 的清除同时进行）
func (m *AdherenceMonitor) ResetDay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fired = make(map[string]struct{})
}

// warnOnSkew 扫描节奏明显偏离预期时告警（时钟跳变或调度抖动）
func (m *AdherenceMonitor) warnOnSkew(now time.Time) {
	if m.scanInterval <= 0 {
		return
	}
	if !m.lastScan.IsZero() {
		gap := now.Sub(m.lastScan)
		if gap > 2*m.scanInterval || gap < 0 {
			m.logger.Warn("Adherence scan cadence out of expected range",
				zap.Duration("gap", gap),
				zap.Duration("expected", m.scanInterval),
			)
		}
	}
	m.lastScan = now
}

// timeOfDayOn 将 "HH:MM" 时间点落到给定日期
func timeOfDayOn(day time.Time, hhmm string) (time.Time, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid timing %q", hhmm)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return time.Time{}, fmt.Errorf("invalid hour in timing %q", hhmm)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return time.Time{}, fmt.Errorf("invalid minute in timing %q", hhmm)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hours, minutes, 0, 0, day.Location()), nil
}
