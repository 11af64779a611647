package communication

import (
	"context"
	"errors"
	"fmt"
)

var ErrClosed = errors.New("CAN 连接已关闭")

// RawMessage 代表在 CAN 总线上发送或接收的一帧
type RawMessage struct {
	Interface string `json:"interface"` // 接收/发送该帧的适配器，例如 "/dev/ttyACM0"
	ID        uint32 `json:"id"`        // CAN 帧的 ID
	Data      []byte `json:"data"`      // CAN 帧的数据负载
}

func (m RawMessage) String() string {
	return fmt.Sprintf("0x%03X [%X]", m.ID, m.Data)
}

// Communicator 定义了与 CAN 总线进行通信的接口
type Communicator interface {
	// SendMessage 发送一帧，不等待应答
	SendMessage(ctx context.Context, msg RawMessage) error

	// Request 发送一帧并等待同一 ID、首字节相同的应答帧。
	// 同一时刻只有一个请求在总线上等待应答。
	Request(ctx context.Context, msg RawMessage) (RawMessage, error)

	// IsConnected 检查与适配器的连接状态
	IsConnected() bool

	// Close 关闭适配器
	Close() error
}

// isReplyTo 判断 reply 是否是 req 的应答
func isReplyTo(req, reply RawMessage) bool {
	if reply.ID != req.ID || len(reply.Data) == 0 || len(req.Data) == 0 {
		return false
	}
	return reply.Data[0] == req.Data[0]
}
