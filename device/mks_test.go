package device

import (
	"context"
	"errors"
	"sync"
	"testing"

	"owl/communication"
	"owl/define"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComm struct {
	mu       sync.Mutex
	requests []communication.RawMessage
	replies  map[byte][]byte
	err      error
	closed   bool
}

func (c *fakeComm) SendMessage(ctx context.Context, msg communication.RawMessage) error {
	return nil
}

func (c *fakeComm) Request(ctx context.Context, msg communication.RawMessage) (communication.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, msg)
	if c.err != nil {
		return communication.RawMessage{}, c.err
	}
	return communication.RawMessage{ID: msg.ID, Data: c.replies[msg.Data[0]]}, nil
}

func (c *fakeComm) IsConnected() bool { return !c.closed }

func (c *fakeComm) Close() error {
	c.closed = true
	return nil
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0xF2), checksum(1, []byte{0xF1}))
	assert.Equal(t, byte(0x98), checksum(1, []byte{0xF5, 0x02, 0x58, 0x02, 0x00, 0x40, 0x06}))
}

func TestMoveAbsoluteFrame(t *testing.T) {
	msg, err := moveAbsoluteFrame(1, 600, 2, 16390)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), msg.ID)
	assert.Equal(t, []byte{0xF5, 0x02, 0x58, 0x02, 0x00, 0x40, 0x06, 0x98}, msg.Data)

	msg, err = moveAbsoluteFrame(1, 0, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, msg.Data[4:7])

	_, err = moveAbsoluteFrame(1, 3001, 0, 0)
	assert.Error(t, err)
	_, err = moveAbsoluteFrame(1, 10, 256, 0)
	assert.Error(t, err)
	_, err = moveAbsoluteFrame(1, 10, 0, 1<<23)
	assert.Error(t, err)
}

func TestParseReply(t *testing.T) {
	payload, err := parseReply(1, 0xF1, communication.RawMessage{ID: 1, Data: []byte{0xF1, 0x01, 0xF3}}, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, payload)

	_, err = parseReply(1, 0xF1, communication.RawMessage{ID: 1, Data: []byte{0xF1, 0x01, 0x00}}, 1)
	assert.Error(t, err, "错误的校验字节")

	_, err = parseReply(1, 0xF1, communication.RawMessage{ID: 1, Data: []byte{0xF1}}, 1)
	assert.Error(t, err, "长度不足")
}

func TestDecodeInt48(t *testing.T) {
	assert.Equal(t, int64(16390), decodeInt48([]byte{0, 0, 0, 0, 0x40, 0x06}))
	assert.Equal(t, int64(-1), decodeInt48([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}))
	assert.Equal(t, int64(-256), decodeInt48([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}))
}

func TestMksServo_Commands(t *testing.T) {
	comm := &fakeComm{replies: map[byte][]byte{
		cmdMoveAbsoluteAxis:    {0xF5, 0x01, 0xF7},
		cmdQueryMotorStatus:    {0xF1, 0x04, 0xF6},
		cmdReadEncoderAddition: {0x31, 0, 0, 0, 0, 0x0E, 0x10, 0x50},
		cmdEmergencyStop:       {0xF7, 0x01, 0xF9},
	}}
	servo := NewMksServo(comm, 1, 10, nil)
	ctx := context.Background()

	require.NoError(t, servo.MoveAbsolute(ctx, 100, 5, 90))
	assert.Equal(t, []byte{0xF5, 0x00, 0x64, 0x05, 0x00, 0x03, 0x84}, comm.requests[0].Data[:7])

	running, err := servo.IsRunning(ctx)
	require.NoError(t, err)
	assert.True(t, running)

	pos, err := servo.ReadPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 360, pos)

	require.NoError(t, servo.EmergencyStop(ctx))
	assert.Len(t, comm.requests, 4)

	require.NoError(t, servo.Close())
	assert.True(t, comm.closed)
}

func TestMksServo_Failures(t *testing.T) {
	comm := &fakeComm{replies: map[byte][]byte{
		cmdMoveAbsoluteAxis: {0xF5, 0x00, 0xF6},
		cmdQueryMotorStatus: {0xF1, 0x00, 0xF2},
		cmdEmergencyStop:    {0xF7, 0x00, 0xF8},
	}}
	servo := NewMksServo(comm, 1, 10, nil)
	ctx := context.Background()

	err := servo.MoveAbsolute(ctx, 100, 5, 90)
	assert.ErrorIs(t, err, define.ErrDriver)

	_, err = servo.IsRunning(ctx)
	assert.ErrorIs(t, err, define.ErrDriver)

	err = servo.EmergencyStop(ctx)
	assert.ErrorIs(t, err, define.ErrDriver)

	// 未配置应答的指令得到空帧
	_, err = servo.ReadPosition(ctx)
	assert.ErrorIs(t, err, define.ErrDriver)
}

func TestMksServo_TransportError(t *testing.T) {
	busErr := errors.New("串口断开")
	servo := NewMksServo(&fakeComm{err: busErr}, 1, 10, nil)

	err := servo.MoveAbsolute(context.Background(), 100, 5, 90)
	assert.ErrorIs(t, err, define.ErrDriver)
	assert.ErrorIs(t, err, busErr)
	assert.Equal(t, define.CodeDriver, define.ErrorCode(err))
}

func TestMksServo_IdleStatus(t *testing.T) {
	comm := &fakeComm{replies: map[byte][]byte{
		cmdQueryMotorStatus: {0xF1, 0x01, 0xF3},
	}}
	running, err := NewMksServo(comm, 1, 10, nil).IsRunning(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
}

func TestValidateLimits_Mks(t *testing.T) {
	cfg := define.DeviceConfig{Model: "mks", UnitsPerDegree: 16390.0 / 360.0}
	ceiling := define.LimitsConfig{MaxSpeed: mksMaxSpeed, MaxAcceleration: mksMaxAcceleration, MinPosition: -184000, MaxPosition: 184000}
	require.NoError(t, ValidateLimits(cfg, ceiling))

	// 通过检查的上限一定能编码成指令
	servo := &MksServo{canID: 1, unitsPerDegree: cfg.UnitsPerDegree}
	for _, deg := range []int{ceiling.MinPosition, ceiling.MaxPosition} {
		_, err := moveAbsoluteFrame(1, ceiling.MaxSpeed, ceiling.MaxAcceleration, servo.degreesToUnits(deg))
		assert.NoError(t, err)
	}

	tooFast := ceiling
	tooFast.MaxSpeed = mksMaxSpeed + 1
	assert.ErrorIs(t, ValidateLimits(cfg, tooFast), define.ErrConfiguration)

	tooFar := ceiling
	tooFar.MaxPosition = 185000
	assert.ErrorIs(t, ValidateLimits(cfg, tooFar), define.ErrConfiguration)

	sim := define.DeviceConfig{Model: "sim"}
	assert.NoError(t, ValidateLimits(sim, tooFast))
}
