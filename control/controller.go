package control

import (
	"context"
	"errors"

	"owl/define"
	"owl/device"
	"owl/motion"

	"github.com/sirupsen/logrus"
)

// Controller 对外提供的控制操作，直接映射到运行器和遥测
type Controller struct {
	runner    *motion.Runner
	telemetry *motion.TelemetryStore
	driver    device.ServoDriver
	library   *Library
	log       logrus.FieldLogger
}

func NewController(runner *motion.Runner, telemetry *motion.TelemetryStore, driver device.ServoDriver, library *Library, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{
		runner:    runner,
		telemetry: telemetry,
		driver:    driver,
		library:   library,
		log:       log,
	}
}

// RunSequence 循环播放给定的序列，立即返回运行 ID
func (c *Controller) RunSequence(seq motion.Sequence) (string, error) {
	return c.runner.Start(seq)
}

// RunSequenceFile 从序列目录加载并循环播放。
// 文件不存在或为空时在启动任何运行前返回错误，当前播放不受影响。
func (c *Controller) RunSequenceFile(name string) (string, motion.Sequence, error) {
	seq, err := c.library.Load(name)
	if err != nil {
		return "", motion.Sequence{}, err
	}
	id, err := c.runner.Start(seq)
	return id, seq, err
}

// ExecutePosition 同步执行单个运动
func (c *Controller) ExecutePosition(ctx context.Context, step motion.Step) (motion.Outcome, error) {
	return c.runner.ExecuteSingle(ctx, step)
}

// EmergencyStop 停止播放并急停
func (c *Controller) EmergencyStop(ctx context.Context) error {
	return c.runner.Stop(ctx)
}

// QueryLastStep 最近一步的信息，耗时与实际位置在读取时计算
func (c *Controller) QueryLastStep(ctx context.Context) (motion.Reading, error) {
	return c.telemetry.Sample(ctx, c.driver)
}

func (c *Controller) Status() motion.Status { return c.runner.Status() }

func (c *Controller) Library() *Library { return c.library }

// Autoplay 启动时循环播放默认序列，文件不存在只记录日志
func (c *Controller) Autoplay(name string) {
	if name == "" {
		return
	}
	id, seq, err := c.RunSequenceFile(name)
	switch {
	case errors.Is(err, define.ErrSequenceNotFound):
		c.log.Warnf("⚠️ 未找到 %s，请确认文件位于 %s 目录", name, c.library.Dir())
	case err != nil:
		c.log.Errorf("❌ 自动播放 %s 失败: %v", name, err)
	default:
		c.log.WithField("run", id).Infof("▶️ 自动播放 %s (%d 步)", seq.Name, seq.Len())
	}
}
