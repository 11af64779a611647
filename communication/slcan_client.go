package communication

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// SerialConfig USB-CAN 适配器串口配置
type SerialConfig struct {
	Device      string // 例如 "/dev/ttyACM0"
	Baud        int
	Bitrate     int           // CAN 总线波特率
	ReadTimeout time.Duration // 串口读超时，0 表示阻塞读
}

// SlcanClient 通过 SLCAN 串口适配器收发 CAN 帧
type SlcanClient struct {
	name   string
	port   io.ReadWriteCloser
	log    logrus.FieldLogger
	frames chan RawMessage

	reqMutex   sync.Mutex // 同一时刻只允许一个请求等待应答
	writeMutex sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	readErr   error
	errMutex  sync.Mutex
}

// OpenSerial 打开串口并初始化 SLCAN 适配器
func OpenSerial(cfg SerialConfig, log logrus.FieldLogger) (*SlcanClient, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("缺少串口设备")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("打开串口 %s 失败：%w", cfg.Device, err)
	}

	client, err := NewSlcanClient(cfg.Device, port, cfg.Bitrate, log)
	if err != nil {
		port.Close()
		return nil, err
	}
	return client, nil
}

// NewSlcanClient 在已打开的端口上初始化 SLCAN 通道并开始接收
func NewSlcanClient(name string, port io.ReadWriteCloser, bitrate int, log logrus.FieldLogger) (*SlcanClient, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	setBitrate, err := bitrateCommand(bitrate)
	if err != nil {
		return nil, err
	}

	c := &SlcanClient{
		name:   name,
		port:   port,
		log:    log.WithField("can", name),
		frames: make(chan RawMessage, 64),
		closed: make(chan struct{}),
	}

	// 先关闭通道，防止适配器处于打开状态时拒绝设置波特率
	for _, cmd := range []string{"C\r", setBitrate, "O\r"} {
		if err := c.write(cmd); err != nil {
			return nil, fmt.Errorf("初始化 SLCAN 适配器失败：%w", err)
		}
	}

	go c.readLoop()

	c.log.Infof("🔗 SLCAN 适配器 %s 已打开 (%d bit/s)", name, bitrate)
	return c, nil
}

func (c *SlcanClient) write(s string) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	_, err := io.WriteString(c.port, s)
	return err
}

func (c *SlcanClient) SendMessage(ctx context.Context, msg RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.closed:
		return c.closedErr()
	default:
	}

	line, err := EncodeFrame(msg)
	if err != nil {
		return fmt.Errorf("编码 CAN 帧失败：%w", err)
	}
	if err := c.write(line); err != nil {
		return fmt.Errorf("写入串口失败：%w", err)
	}
	c.log.Debugf("➡️ %s", msg)
	return nil
}

func (c *SlcanClient) Request(ctx context.Context, msg RawMessage) (RawMessage, error) {
	c.reqMutex.Lock()
	defer c.reqMutex.Unlock()

	// 丢弃之前遗留的帧
	for drained := false; !drained; {
		select {
		case <-c.frames:
		default:
			drained = true
		}
	}

	if err := c.SendMessage(ctx, msg); err != nil {
		return RawMessage{}, err
	}

	for {
		select {
		case reply := <-c.frames:
			if isReplyTo(msg, reply) {
				reply.Interface = c.name
				return reply, nil
			}
			c.log.Debugf("忽略无关帧 %s", reply)
		case <-ctx.Done():
			return RawMessage{}, ctx.Err()
		case <-c.closed:
			return RawMessage{}, c.closedErr()
		}
	}
}

func (c *SlcanClient) readLoop() {
	buf := make([]byte, 256)
	var pending strings.Builder

	for {
		n, err := c.port.Read(buf)
		for _, b := range buf[:n] {
			switch b {
			case slcanCR:
				c.handleLine(pending.String())
				pending.Reset()
			case slcanBell:
				c.log.Warnf("⚠️ SLCAN 适配器返回错误")
				pending.Reset()
			default:
				pending.WriteByte(b)
			}
		}

		if err != nil {
			// 读超时在部分平台上表现为 EOF
			if errors.Is(err, io.EOF) {
				select {
				case <-c.closed:
					return
				default:
					continue
				}
			}
			c.shutdown(err)
			return
		}
	}
}

func (c *SlcanClient) handleLine(line string) {
	if line == "" || line[0] == 'z' || line[0] == 'Z' {
		return // 发送确认
	}
	msg, err := DecodeFrame(line)
	if err != nil {
		c.log.Debugf("忽略无法解析的数据：%v", err)
		return
	}
	c.log.Debugf("⬅️ %s", msg)

	select {
	case c.frames <- msg:
	default:
		c.log.Warnf("⚠️ 接收缓冲区已满，丢弃帧 %s", msg)
	}
}

func (c *SlcanClient) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.errMutex.Lock()
		c.readErr = err
		c.errMutex.Unlock()
		close(c.closed)
		if err != nil {
			c.log.Errorf("❌ SLCAN 适配器 %s 读取失败：%v", c.name, err)
		}
	})
}

func (c *SlcanClient) closedErr() error {
	c.errMutex.Lock()
	defer c.errMutex.Unlock()
	if c.readErr != nil {
		return fmt.Errorf("%w：%v", ErrClosed, c.readErr)
	}
	return ErrClosed
}

func (c *SlcanClient) IsConnected() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Close 关闭 CAN 通道和串口
func (c *SlcanClient) Close() error {
	if !c.IsConnected() {
		return nil
	}
	if err := c.write("C\r"); err != nil {
		c.log.Warnf("⚠️ 关闭 SLCAN 通道失败：%v", err)
	}
	c.shutdown(nil)
	err := c.port.Close()
	c.log.Infof("🔌 SLCAN 适配器 %s 已关闭", c.name)
	return err
}
