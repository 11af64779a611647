package device

import (
	"context"
	"fmt"

	"owl/communication"
	"owl/define"

	"github.com/sirupsen/logrus"
)

// MksServo 通过 CAN 总线控制 MKS SERVO 闭环步进电机
type MksServo struct {
	id             string
	canID          uint32
	unitsPerDegree float64
	communicator   communication.Communicator
	log            logrus.FieldLogger
}

// NewMksServo 在已打开的 CAN 通道上创建驱动
func NewMksServo(comm communication.Communicator, canID uint32, unitsPerDegree float64, log logrus.FieldLogger) *MksServo {
	if log == nil {
		log = logrus.StandardLogger()
	}
	id := fmt.Sprintf("mks-0x%X", canID)
	return &MksServo{
		id:             id,
		canID:          canID,
		unitsPerDegree: unitsPerDegree,
		communicator:   comm,
		log:            log.WithField("servo", id),
	}
}

// NewMksServoFromConfig 打开串口适配器并创建驱动
func NewMksServoFromConfig(cfg define.DeviceConfig, log logrus.FieldLogger) (Driver, error) {
	comm, err := communication.OpenSerial(communication.SerialConfig{
		Device:  cfg.SerialPort,
		Baud:    cfg.Baud,
		Bitrate: cfg.Bitrate,
	}, log)
	if err != nil {
		return nil, err
	}
	return NewMksServo(comm, cfg.CanID, cfg.UnitsPerDegree, log), nil
}

// checkMksLimits 速度、加速度和位置上限必须在 0xF5 指令的字段范围内
func checkMksLimits(cfg define.DeviceConfig, limits define.LimitsConfig) error {
	if limits.MaxSpeed > mksMaxSpeed {
		return define.ConfigError("max_speed %d 超出 MKS 舵机上限 %d", limits.MaxSpeed, mksMaxSpeed)
	}
	if limits.MaxAcceleration > mksMaxAcceleration {
		return define.ConfigError("max_acceleration %d 超出 MKS 舵机上限 %d", limits.MaxAcceleration, mksMaxAcceleration)
	}
	for _, deg := range []int{limits.MinPosition, limits.MaxPosition} {
		units := int(float64(deg) * cfg.UnitsPerDegree)
		if units < -mksMaxAxis || units > mksMaxAxis {
			return define.ConfigError("位置上限 %d° 换算为 %d 个单位，超出 MKS 坐标范围 ±%d", deg, units, mksMaxAxis)
		}
	}
	return nil
}

func (s *MksServo) GetID() string    { return s.id }
func (s *MksServo) GetModel() string { return "mks" }

func (s *MksServo) degreesToUnits(degrees int) int {
	return int(float64(degrees) * s.unitsPerDegree)
}

func (s *MksServo) unitsToDegrees(units int64) int {
	return int(float64(units) / s.unitsPerDegree)
}

// exchange 发送一帧并校验应答
func (s *MksServo) exchange(ctx context.Context, op string, req communication.RawMessage, payloadLen int) ([]byte, error) {
	reply, err := s.communicator.Request(ctx, req)
	if err != nil {
		s.log.Errorf("❌ %s 发送失败: %v (%s)", op, err, req)
		return nil, define.NewDriverError(op, err)
	}
	payload, err := parseReply(s.canID, req.Data[0], reply, payloadLen)
	if err != nil {
		s.log.Errorf("❌ %s 应答无效: %v", op, err)
		return nil, define.NewDriverError(op, err)
	}
	return payload, nil
}

func (s *MksServo) MoveAbsolute(ctx context.Context, speed, acceleration, position int) error {
	axis := s.degreesToUnits(position)
	req, err := moveAbsoluteFrame(s.canID, speed, acceleration, axis)
	if err != nil {
		return define.NewDriverError("绝对运动", err)
	}

	payload, err := s.exchange(ctx, "绝对运动", req, 1)
	if err != nil {
		return err
	}

	switch payload[0] {
	case moveStatusFail:
		return define.NewDriverError("绝对运动", fmt.Errorf("舵机拒绝执行"))
	case moveStatusEndLimit:
		s.log.Warnf("⚠️ 运动被限位开关停止 (目标 %d°)", position)
	case moveStatusStarting, moveStatusComplete:
	default:
		return define.NewDriverError("绝对运动", fmt.Errorf("未知状态 %d", payload[0]))
	}

	s.log.Debugf("✅ 绝对运动已发送: %d° (%d), 速度 %d, 加速度 %d", position, axis, speed, acceleration)
	return nil
}

func (s *MksServo) IsRunning(ctx context.Context) (bool, error) {
	payload, err := s.exchange(ctx, "查询电机状态", newFrame(s.canID, cmdQueryMotorStatus), 1)
	if err != nil {
		return false, err
	}

	switch payload[0] {
	case motorStatusFail:
		return false, define.NewDriverError("查询电机状态", fmt.Errorf("舵机返回失败"))
	case motorStatusStop:
		return false, nil
	case motorStatusSpeedUp, motorStatusSpeedDown, motorStatusFullSpeed, motorStatusHoming, motorStatusCalibrating:
		return true, nil
	default:
		return false, define.NewDriverError("查询电机状态", fmt.Errorf("未知状态 %d", payload[0]))
	}
}

func (s *MksServo) ReadPosition(ctx context.Context) (int, error) {
	payload, err := s.exchange(ctx, "读取编码器", newFrame(s.canID, cmdReadEncoderAddition), 6)
	if err != nil {
		return 0, err
	}
	return s.unitsToDegrees(decodeInt48(payload)), nil
}

func (s *MksServo) EmergencyStop(ctx context.Context) error {
	payload, err := s.exchange(ctx, "紧急停止", newFrame(s.canID, cmdEmergencyStop), 1)
	if err != nil {
		return err
	}
	if payload[0] != 1 {
		return define.NewDriverError("紧急停止", fmt.Errorf("舵机返回失败"))
	}
	s.log.Infof("🛑 舵机已紧急停止")
	return nil
}

func (s *MksServo) Close() error {
	return s.communicator.Close()
}
