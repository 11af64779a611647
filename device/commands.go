package device

import (
	"fmt"

	"owl/communication"
)

// MKS SERVO42D/57D CAN 指令码
const (
	cmdReadEncoderAddition byte = 0x31
	cmdQueryMotorStatus    byte = 0xF1
	cmdMoveAbsoluteAxis    byte = 0xF5
	cmdEmergencyStop       byte = 0xF7
)

// 指令参数范围
const (
	mksMaxSpeed        = 3000
	mksMaxAcceleration = 255
	mksMaxAxis         = 1<<23 - 1
)

// 0xF1 返回的电机状态
const (
	motorStatusFail        byte = 0
	motorStatusStop        byte = 1
	motorStatusSpeedUp     byte = 2
	motorStatusSpeedDown   byte = 3
	motorStatusFullSpeed   byte = 4
	motorStatusHoming      byte = 5
	motorStatusCalibrating byte = 6
)

// 0xF5 返回的运动状态
const (
	moveStatusFail     byte = 0
	moveStatusStarting byte = 1
	moveStatusComplete byte = 2
	moveStatusEndLimit byte = 3
)

// checksum 校验字节为 CAN ID 与所有数据字节之和的低 8 位
func checksum(canID uint32, data []byte) byte {
	sum := uint32(canID)
	for _, b := range data {
		sum += uint32(b)
	}
	return byte(sum & 0xFF)
}

func newFrame(canID uint32, payload ...byte) communication.RawMessage {
	data := append(payload, checksum(canID, payload))
	return communication.RawMessage{ID: canID, Data: data}
}

func moveAbsoluteFrame(canID uint32, speed, acceleration, axis int) (communication.RawMessage, error) {
	if speed < 0 || speed > mksMaxSpeed {
		return communication.RawMessage{}, fmt.Errorf("速度超出范围：%d", speed)
	}
	if acceleration < 0 || acceleration > mksMaxAcceleration {
		return communication.RawMessage{}, fmt.Errorf("加速度超出范围：%d", acceleration)
	}
	if axis < -mksMaxAxis || axis > mksMaxAxis {
		return communication.RawMessage{}, fmt.Errorf("目标坐标超出范围：%d", axis)
	}

	a := uint32(int32(axis)) & 0xFFFFFF
	return newFrame(canID,
		cmdMoveAbsoluteAxis,
		byte(speed>>8), byte(speed),
		byte(acceleration),
		byte(a>>16), byte(a>>8), byte(a),
	), nil
}

// parseReply 校验应答长度与校验字节，返回去掉指令码和校验字节的负载
func parseReply(canID uint32, code byte, reply communication.RawMessage, payloadLen int) ([]byte, error) {
	data := reply.Data
	if len(data) != payloadLen+2 {
		return nil, fmt.Errorf("应答长度错误：%X", data)
	}
	if data[0] != code {
		return nil, fmt.Errorf("应答指令码错误：0x%02X", data[0])
	}
	last := len(data) - 1
	if want := checksum(canID, data[:last]); data[last] != want {
		return nil, fmt.Errorf("应答校验错误：0x%02X != 0x%02X", data[last], want)
	}
	return data[1:last], nil
}

// decodeInt48 解析 6 字节大端有符号整数
func decodeInt48(b []byte) int64 {
	var v int64
	for _, x := range b[:6] {
		v = v<<8 | int64(x)
	}
	// 符号扩展
	return v << 16 >> 16
}
