package device

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SimServo 模拟舵机，按速度匀速运动，无需硬件
type SimServo struct {
	mutex     sync.Mutex
	log       logrus.FieldLogger
	from      float64
	target    float64
	rate      float64 // 度/秒
	startedAt time.Time
	moving    bool
}

func NewSimServo(log logrus.FieldLogger) *SimServo {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SimServo{log: log.WithField("servo", "sim")}
}

func (s *SimServo) GetModel() string { return "sim" }

// positionLocked 计算当前位置，运动结束时更新状态
func (s *SimServo) positionLocked(now time.Time) float64 {
	if !s.moving {
		return s.from
	}
	distance := s.target - s.from
	travelled := s.rate * now.Sub(s.startedAt).Seconds()
	if travelled >= math.Abs(distance) {
		s.from = s.target
		s.moving = false
		return s.from
	}
	return s.from + math.Copysign(travelled, distance)
}

func (s *SimServo) MoveAbsolute(_ context.Context, speed, _ int, position int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	s.from = s.positionLocked(now)
	s.target = float64(position)
	s.rate = math.Max(float64(speed), 1)
	s.startedAt = now
	s.moving = s.from != s.target
	s.log.Debugf("模拟运动: %.1f° -> %d°, %.0f°/s", s.from, position, s.rate)
	return nil
}

func (s *SimServo) IsRunning(context.Context) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.positionLocked(time.Now())
	return s.moving, nil
}

func (s *SimServo) ReadPosition(context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return int(math.Round(s.positionLocked(time.Now()))), nil
}

func (s *SimServo) EmergencyStop(context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.from = s.positionLocked(time.Now())
	s.moving = false
	s.log.Infof("🛑 模拟舵机已停止")
	return nil
}

func (s *SimServo) Close() error { return nil }
