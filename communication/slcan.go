package communication

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// SLCAN (Lawicel) ASCII 协议
const (
	slcanCR   = '\r'
	slcanBell = '\a'
)

var slcanBitrates = map[int]string{
	10000:   "S0",
	20000:   "S1",
	50000:   "S2",
	100000:  "S3",
	125000:  "S4",
	250000:  "S5",
	500000:  "S6",
	800000:  "S7",
	1000000: "S8",
}

// bitrateCommand 返回设置总线波特率的指令
func bitrateCommand(bitrate int) (string, error) {
	cmd, ok := slcanBitrates[bitrate]
	if !ok {
		return "", fmt.Errorf("SLCAN 不支持的波特率：%d", bitrate)
	}
	return cmd + string(slcanCR), nil
}

// EncodeFrame 将一帧编码为 SLCAN 发送指令，ID 超过 11 位时使用扩展帧
func EncodeFrame(msg RawMessage) (string, error) {
	if len(msg.Data) > 8 { // CAN 消息数据长度限制
		return "", fmt.Errorf("CAN 数据过长：%d 字节", len(msg.Data))
	}

	var b strings.Builder
	if msg.ID <= 0x7FF {
		fmt.Fprintf(&b, "t%03X", msg.ID)
	} else if msg.ID <= 0x1FFFFFFF {
		fmt.Fprintf(&b, "T%08X", msg.ID)
	} else {
		return "", fmt.Errorf("无效的 CAN ID：0x%X", msg.ID)
	}
	fmt.Fprintf(&b, "%d", len(msg.Data))
	b.WriteString(strings.ToUpper(hex.EncodeToString(msg.Data)))
	b.WriteByte(slcanCR)
	return b.String(), nil
}

// DecodeFrame 解析一行 SLCAN 数据帧（不含结尾的 \r）
func DecodeFrame(line string) (RawMessage, error) {
	if line == "" {
		return RawMessage{}, fmt.Errorf("空帧")
	}

	var idLen int
	switch line[0] {
	case 't':
		idLen = 3
	case 'T':
		idLen = 8
	default:
		return RawMessage{}, fmt.Errorf("不是数据帧：%q", line)
	}

	if len(line) < 1+idLen+1 {
		return RawMessage{}, fmt.Errorf("帧长度不足：%q", line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return RawMessage{}, fmt.Errorf("解析帧 ID 失败：%w", err)
	}

	dlc := int(line[1+idLen] - '0')
	if dlc < 0 || dlc > 8 {
		return RawMessage{}, fmt.Errorf("无效的 DLC：%q", line)
	}

	payload := line[2+idLen:]
	// 部分固件会在数据后附带 4 位时间戳
	if len(payload) < dlc*2 {
		return RawMessage{}, fmt.Errorf("数据长度与 DLC 不符：%q", line)
	}
	data, err := hex.DecodeString(payload[:dlc*2])
	if err != nil {
		return RawMessage{}, fmt.Errorf("解析帧数据失败：%w", err)
	}

	return RawMessage{ID: uint32(id), Data: data}, nil
}
