package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// StoreError 存储层错误
// Transient 表示可安全重试（连接中断、序列化冲突等）
type StoreError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StoreError) Error() string {
	if e.Transient {
		return fmt.Sprintf("%s: transient store error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: permanent store error: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsTransient 判断错误是否可重试
func IsTransient(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Transient
	}
	return false
}

// wrapStoreError 包装并分类存储错误
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{
		Op:        op,
		Err:       err,
		Transient: isTransientErr(err),
	}
}

// isTransientErr 根据驱动错误码判断是否为瞬时错误
// Class 08: 连接异常；40001: 序列化失败；40P01: 死锁；57P01: 管理员关闭连接
func isTransientErr(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08":
			return true
		case pqErr.Code == "40001", pqErr.Code == "40P01", pqErr.Code == "57P01":
			return true
		}
	}
	return false
}
