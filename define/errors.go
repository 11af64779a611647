package define

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration    = errors.New("配置无效")
	ErrDriver           = errors.New("驱动错误")
	ErrSequenceEmpty    = errors.New("序列为空")
	ErrSequenceNotFound = errors.New("序列不存在")
	ErrInvalidRequest   = errors.New("请求无效")
	ErrCanceled         = errors.New("运动已被中断")
)

// 错误码，供上层区分错误原因
const (
	CodeConfiguration    = "configuration_error"
	CodeDriver           = "driver_error"
	CodeSequenceEmpty    = "sequence_empty"
	CodeSequenceNotFound = "sequence_not_found"
	CodeInvalidRequest   = "invalid_request"
	CodeCanceled         = "canceled"
	CodeInternal         = "internal_error"
)

// DriverError 表示一次 CAN 指令或状态查询失败
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s 失败", e.Op)
	}
	return fmt.Sprintf("%s 失败：%v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDriver}
	}
	return []error{ErrDriver, e.Err}
}

func NewDriverError(op string, err error) error { return &DriverError{Op: op, Err: err} }

// ConfigError 启动时配置校验失败，致命
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ErrorCode 把错误映射为机器可识别的错误码
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSequenceNotFound):
		return CodeSequenceNotFound
	case errors.Is(err, ErrSequenceEmpty):
		return CodeSequenceEmpty
	case errors.Is(err, ErrDriver):
		return CodeDriver
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrCanceled):
		return CodeCanceled
	default:
		return CodeInternal
	}
}
