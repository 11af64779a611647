package motion

import (
	"fmt"
	"time"

	"owl/define"
)

// Step 一次运动指令。按值传递，创建后不再修改。
type Step struct {
	TargetPosition int           // 目标位置（度）
	Speed          int           // 速度，必须为正
	Acceleration   int           // 加速度，不能为负
	Duration       time.Duration // 该步占用的时长，必须为正
	Label          string
}

// Validate 检查步骤本身的约束，速度等上限在执行时钳位
func (s Step) Validate() error {
	if s.Duration <= 0 {
		return fmt.Errorf("%w: 步骤 %q 的时长必须大于 0", define.ErrInvalidRequest, s.Label)
	}
	if s.Speed <= 0 {
		return fmt.Errorf("%w: 步骤 %q 的速度必须大于 0", define.ErrInvalidRequest, s.Label)
	}
	if s.Acceleration < 0 {
		return fmt.Errorf("%w: 步骤 %q 的加速度不能为负数", define.ErrInvalidRequest, s.Label)
	}
	return nil
}

func (s Step) String() string {
	return fmt.Sprintf("%s: %d° 速度 %d 加速度 %d 时长 %.2fs", s.Label, s.TargetPosition, s.Speed, s.Acceleration, s.Duration.Seconds())
}

// Sequence 按顺序执行的非空步骤列表。是否循环由运行方式决定。
type Sequence struct {
	Name  string
	Steps []Step
}

// NewSequence 校验并复制步骤列表
func NewSequence(name string, steps []Step) (Sequence, error) {
	if len(steps) == 0 {
		return Sequence{}, fmt.Errorf("%w: %s", define.ErrSequenceEmpty, name)
	}
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return Sequence{}, fmt.Errorf("第 %d 步：%w", i, err)
		}
	}
	return Sequence{Name: name, Steps: append([]Step(nil), steps...)}, nil
}

func (s Sequence) Len() int { return len(s.Steps) }

// Limits 运动参数上限
type Limits struct {
	MaxSpeed        int
	MaxAcceleration int
	MinPosition     int
	MaxPosition     int
}

func LimitsFromConfig(cfg define.LimitsConfig) Limits {
	return Limits{
		MaxSpeed:        cfg.MaxSpeed,
		MaxAcceleration: cfg.MaxAcceleration,
		MinPosition:     cfg.MinPosition,
		MaxPosition:     cfg.MaxPosition,
	}
}

// Clamp 超出上限的参数按上限执行，不拒绝
func (l Limits) Clamp(step Step) Step {
	step.Speed = clamp(step.Speed, 1, l.MaxSpeed)
	step.Acceleration = clamp(step.Acceleration, 0, l.MaxAcceleration)
	step.TargetPosition = clamp(step.TargetPosition, l.MinPosition, l.MaxPosition)
	return step
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Outcome 单步执行结果
type Outcome struct {
	Elapsed    time.Duration // 整步耗时，包含补齐时长的等待
	MotionTime time.Duration // 发出指令到电机停止（或超时）的耗时
	Warning    string        // 超时时设置
}
