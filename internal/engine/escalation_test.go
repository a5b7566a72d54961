package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// firedRecorder 线程安全地记录升级动作的调用
type firedRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *firedRecorder) escalate(alertID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, alertID)
}

func (r *firedRecorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func TestEscalationScheduler_FiresAfterDelay(t *testing.T) {
	mock := clock.NewMock()
	rec := &firedRecorder{}
	s := NewEscalationScheduler(mock, rec.escalate, zap.NewNop())

	s.Arm("alert-1", 300*time.Second)
	assert.Equal(t, 1, s.ArmedCount())

	mock.Add(299 * time.Second)
	assert.Empty(t, rec.calls())

	mock.Add(time.Second)
	assert.Equal(t, []string{"alert-1"}, rec.calls())
	assert.Equal(t, 0, s.ArmedCount())
}

func TestEscalationScheduler_CancelBeforeFire(t *testing.T) {
	mock := clock.NewMock()
	rec := &firedRecorder{}
	s := NewEscalationScheduler(mock, rec.escalate, zap.NewNop())

	cancel := s.Arm("alert-1", 300*time.Second)

	mock.Add(200 * time.Second)
	cancel()
	assert.Equal(t, 0, s.ArmedCount())

	// 取消后时间再怎么推进也不触发
	mock.Add(time.Hour)
	assert.Empty(t, rec.calls())
}

func TestEscalationScheduler_CancelIdempotent(t *testing.T) {
	mock := clock.NewMock()
	rec := &firedRecorder{}
	s := NewEscalationScheduler(mock, rec.escalate, zap.NewNop())

	cancel := s.Arm("alert-1", time.Minute)
	cancel()
	cancel()
	cancel()

	mock.Add(time.Hour)
	assert.Empty(t, rec.calls())
}

func TestEscalationScheduler_CancelAfterFireIsNoop(t *testing.T) {
	mock := clock.NewMock()
	rec := &firedRecorder{}
	s := NewEscalationScheduler(mock, rec.escalate, zap.NewNop())

	cancel := s.Arm("alert-1", time.Minute)
	mock.Add(time.Minute)
	require.Equal(t, []string{"alert-1"}, rec.calls())

	cancel()
	assert.Equal(t, []string{"alert-1"}, rec.calls())
	assert.Equal(t, 0, s.ArmedCount())
}

func TestEscalationScheduler_TimersIndependent(t *testing.T) {
	mock := clock.NewMock()
	rec := &firedRecorder{}
	s := NewEscalationScheduler(mock, rec.escalate, zap.NewNop())

	cancelA := s.Arm("alert-a", time.Minute)
	s.Arm("alert-b", 2*time.Minute)
	assert.Equal(t, 2, s.ArmedCount())

	cancelA()
	mock.Add(2 * time.Minute)

	assert.Equal(t, []string{"alert-b"}, rec.calls())
}

func TestEscalationScheduler_FiresAtMostOnce(t *testing.T) {
	mock := clock.NewMock()
	rec := &firedRecorder{}
	s := NewEscalationScheduler(mock, rec.escalate, zap.NewNop())

	s.Arm("alert-1", time.Minute)
	mock.Add(time.Minute)
	mock.Add(time.Hour)

	assert.Equal(t, []string{"alert-1"}, rec.calls())
}

func TestEscalationScheduler_PanicInSideEffectContained(t *testing.T) {
	mock := clock.NewMock()
	rec := &firedRecorder{}
	s := NewEscalationScheduler(mock, func(alertID string) {
		if alertID == "alert-bad" {
			panic("notifier down")
		}
		rec.escalate(alertID)
	}, zap.NewNop())

	s.Arm("alert-bad", time.Minute)
	s.Arm("alert-good", 2*time.Minute)

	mock.Add(2 * time.Minute)

	assert.Equal(t, []string{"alert-good"}, rec.calls())
	assert.Equal(t, 0, s.ArmedCount())
}

func TestEscalationScheduler_DefaultEscalateIsNoop(t *testing.T) {
	mock := clock.NewMock()
	s := NewEscalationScheduler(mock, nil, zap.NewNop())

	s.Arm("alert-1", time.Minute)
	assert.NotPanics(t, func() {
		mock.Add(time.Minute)
	})
}

func TestEscalationScheduler_Close(t *testing.T) {
	mock := clock.NewMock()
	rec := &firedRecorder{}
	s := NewEscalationScheduler(mock, rec.escalate, zap.NewNop())

	s.Arm("alert-1", time.Minute)
	s.Arm("alert-2", time.Minute)
	s.Close()

	assert.Equal(t, 0, s.ArmedCount())

	mock.Add(time.Hour)
	assert.Empty(t, rec.calls())

	// 关闭后布防为空操作
	s.Arm("alert-3", time.Minute)
	mock.Add(time.Hour)
	assert.Empty(t, rec.calls())
	assert.Equal(t, 0, s.ArmedCount())
}
