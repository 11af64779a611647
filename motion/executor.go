package motion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"owl/define"
	"owl/device"

	"github.com/sirupsen/logrus"
)

// DefaultPollInterval 查询电机状态的间隔
const DefaultPollInterval = 100 * time.Millisecond

// Executor 在驱动上执行单个步骤，并把步骤补齐到声明的时长
type Executor struct {
	limits       Limits
	pollInterval time.Duration
	log          logrus.FieldLogger
}

func NewExecutor(limits Limits, pollInterval time.Duration, log logrus.FieldLogger) *Executor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{limits: limits, pollInterval: pollInterval, log: log}
}

func (e *Executor) Limits() Limits { return e.limits }

// Execute 发出运动指令，等待电机停止或时长用尽，再补齐剩余时长。
//
// 驱动调用不受 ctx 取消影响，已经发出的指令总会等到应答；
// ctx 取消只会打断两次驱动调用之间的等待，此时返回 define.ErrCanceled。
// 驱动错误不重试，直接返回。
func (e *Executor) Execute(ctx context.Context, step Step, driver device.ServoDriver) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", define.ErrCanceled, err)
	}

	start := time.Now()
	clamped := e.limits.Clamp(step)
	cmdCtx := context.WithoutCancel(ctx)

	if clamped != step {
		e.log.Debugf("步骤 %q 参数已钳位: 速度 %d→%d, 加速度 %d→%d, 位置 %d→%d", step.Label,
			step.Speed, clamped.Speed, step.Acceleration, clamped.Acceleration, step.TargetPosition, clamped.TargetPosition)
	}

	if err := driver.MoveAbsolute(cmdCtx, clamped.Speed, clamped.Acceleration, clamped.TargetPosition); err != nil {
		return Outcome{Elapsed: time.Since(start)}, asDriverError("绝对运动", err)
	}

	running, err := e.waitForIdle(ctx, cmdCtx, driver, start.Add(step.Duration))
	motionTime := time.Since(start)
	if err != nil {
		return Outcome{Elapsed: motionTime, MotionTime: motionTime}, err
	}

	if running || motionTime > step.Duration {
		return Outcome{
			Elapsed:    motionTime,
			MotionTime: motionTime,
			Warning: fmt.Sprintf("did not complete within %gs, actual %.3fs",
				step.Duration.Seconds(), ceilMillis(motionTime).Seconds()),
		}, nil
	}

	// 电机提前停下时补齐剩余时长，保证播放节奏稳定
	if err := sleepCtx(ctx, step.Duration-motionTime); err != nil {
		elapsed := time.Since(start)
		return Outcome{Elapsed: elapsed, MotionTime: motionTime}, err
	}

	return Outcome{Elapsed: time.Since(start), MotionTime: motionTime}, nil
}

// waitForIdle 按固定间隔查询电机状态，直到电机停止或到达 deadline。
// 返回值表示返回时电机是否仍在运动。
func (e *Executor) waitForIdle(ctx, cmdCtx context.Context, driver device.ServoDriver, deadline time.Time) (bool, error) {
	for {
		running, err := driver.IsRunning(cmdCtx)
		if err != nil {
			return false, asDriverError("查询电机状态", err)
		}
		if !running {
			return false, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true, nil
		}
		if err := sleepCtx(ctx, min(e.pollInterval, remaining)); err != nil {
			return true, err
		}
	}
}

// ceilMillis 向上取整到毫秒，超时警告里的实际耗时不会被舍入成与时长相同
func ceilMillis(d time.Duration) time.Duration {
	if t := d.Truncate(time.Millisecond); t < d {
		return t + time.Millisecond
	}
	return d
}

// sleepCtx 可被 ctx 打断的等待
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", define.ErrCanceled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

func asDriverError(op string, err error) error {
	if errors.Is(err, define.ErrDriver) {
		return err
	}
	return define.NewDriverError(op, err)
}
