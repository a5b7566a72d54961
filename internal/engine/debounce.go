package engine

import (
	"sync"
	"time"
)

// tapState 单个老人的连击状态（仅存于内存，进程重启即清零）
type tapState struct {
	count          int
	windowDeadline time.Time
}

// TapDebouncer SOS 连击防抖器
// 连续点击计入同一次触发，每次点击都刷新防抖窗口；
// 窗口过期后计数归零，达到阈值时触发并原子复位
type TapDebouncer struct {
	threshold int
	window    time.Duration

	mu     sync.Mutex
	states map[string]*tapState
}

// NewTapDebouncer 创建连击防抖器
func NewTapDebouncer(threshold int, window time.Duration) *TapDebouncer {
	if threshold <= 0 {
		threshold = 3
	}
	if window <= 0 {
		window = 2 * time.Second
	}
	return &TapDebouncer{
		threshold: threshold,
		window:    window,
		states:    make(map[string]*tapState),
	}
}

// RegisterTap 记录一次点击，达到阈值时返回 true
func (d *TapDebouncer) RegisterTap(elderUserID string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, ok := d.states[elderUserID]
	if !ok {
		state = &tapState{}
		d.states[elderUserID] = state
	}

	// 窗口已过期，本次点击重新开始计数
	if now.After(state.windowDeadline) {
		state.count = 0
	}

	state.count++
	state.windowDeadline = now.Add(d.window)

	if state.count >= d.threshold {
		state.count = 0
		state.windowDeadline = time.Time{}
		return true
	}

	return false
}

// PendingTaps 当前窗口内已累计的点击数（供界面提示"再点 N 次"）
func (d *TapDebouncer) PendingTaps(elderUserID string, now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, ok := d.states[elderUserID]
	if !ok || now.After(state.windowDeadline) {
		return 0
	}
	return state.count
}
