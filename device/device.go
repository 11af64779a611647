package device

import (
	"context"
	"io"
)

// ServoDriver 单轴舵机的运动能力。位置单位为度。
type ServoDriver interface {
	// MoveAbsolute 以给定速度与加速度运动到绝对位置，指令发出后立即返回
	MoveAbsolute(ctx context.Context, speed, acceleration, position int) error

	// IsRunning 查询电机是否仍在运动
	IsRunning(ctx context.Context) (bool, error)

	// ReadPosition 读取当前实际位置
	ReadPosition(ctx context.Context) (int, error)

	// EmergencyStop 立即停止电机
	EmergencyStop(ctx context.Context) error
}

// Driver 由工厂创建的驱动，持有底层连接
type Driver interface {
	ServoDriver
	io.Closer
	GetModel() string
}
