package motion

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"testing"
	"time"

	"owl/define"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_PacesToDuration(t *testing.T) {
	driver := &fakeDriver{motionTime: 30 * time.Millisecond}
	step := Step{TargetPosition: 90, Speed: 100, Acceleration: 5, Duration: 200 * time.Millisecond, Label: "抬头"}

	outcome, err := newTestExecutor().Execute(context.Background(), step, driver)
	require.NoError(t, err)

	assert.Empty(t, outcome.Warning)
	assert.GreaterOrEqual(t, outcome.Elapsed, 200*time.Millisecond)
	assert.Less(t, outcome.MotionTime, 200*time.Millisecond)
	assert.Len(t, driver.recordedMoves(), 1)
}

func TestExecutor_OverrunReturnsWithoutPacing(t *testing.T) {
	driver := &fakeDriver{motionTime: 2 * time.Second}
	step := Step{TargetPosition: 90, Speed: 100, Duration: 100 * time.Millisecond, Label: "慢"}

	start := time.Now()
	outcome, err := newTestExecutor().Execute(context.Background(), step, driver)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.GreaterOrEqual(t, outcome.Elapsed, 100*time.Millisecond)
	assert.Contains(t, outcome.Warning, "did not complete within 0.1s")

	m := regexp.MustCompile(`actual ([0-9.]+)s`).FindStringSubmatch(outcome.Warning)
	require.Len(t, m, 2, outcome.Warning)
	actual, err := strconv.ParseFloat(m[1], 64)
	require.NoError(t, err)
	assert.Greater(t, actual, step.Duration.Seconds(), "实际耗时必须能看出超时")
}

func TestCeilMillis(t *testing.T) {
	assert.Equal(t, 31*time.Millisecond, ceilMillis(30*time.Millisecond+time.Microsecond))
	assert.Equal(t, 30*time.Millisecond, ceilMillis(30*time.Millisecond))
}

func TestExecutor_AlreadyCanceledSendsNothing(t *testing.T) {
	driver := &fakeDriver{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExecutor().Execute(ctx, Step{TargetPosition: 10, Speed: 10, Duration: time.Second}, driver)
	assert.ErrorIs(t, err, define.ErrCanceled)
	assert.Empty(t, driver.recordedMoves())
}

func TestExecutor_ClampsToLimits(t *testing.T) {
	driver := &fakeDriver{}
	step := Step{TargetPosition: 1000, Speed: testLimits.MaxSpeed + 50, Acceleration: 99, Duration: time.Millisecond, Label: "超限"}

	_, err := newTestExecutor().Execute(context.Background(), step, driver)
	require.NoError(t, err)

	moves := driver.recordedMoves()
	require.Len(t, moves, 1)
	assert.Equal(t, testLimits.MaxSpeed, moves[0].speed)
	assert.Equal(t, testLimits.MaxAcceleration, moves[0].acceleration)
	assert.Equal(t, testLimits.MaxPosition, moves[0].position)
}

func TestExecutor_DriverErrors(t *testing.T) {
	step := Step{TargetPosition: 10, Speed: 10, Duration: 50 * time.Millisecond}

	_, err := newTestExecutor().Execute(context.Background(), step, &fakeDriver{moveErr: errors.New("总线错误")})
	assert.ErrorIs(t, err, define.ErrDriver)

	_, err = newTestExecutor().Execute(context.Background(), step, &fakeDriver{statusErr: errors.New("无应答")})
	assert.ErrorIs(t, err, define.ErrDriver)
}

func TestExecutor_CancelDuringPacing(t *testing.T) {
	driver := &fakeDriver{}
	step := Step{TargetPosition: 10, Speed: 10, Duration: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := newTestExecutor().Execute(ctx, step, driver)
	assert.ErrorIs(t, err, define.ErrCanceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecutor_CancelDuringWait(t *testing.T) {
	driver := &fakeDriver{motionTime: 5 * time.Second}
	step := Step{TargetPosition: 10, Speed: 10, Duration: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := newTestExecutor().Execute(ctx, step, driver)
	assert.ErrorIs(t, err, define.ErrCanceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLimits_Clamp(t *testing.T) {
	l := Limits{MaxSpeed: 100, MaxAcceleration: 10, MinPosition: -90, MaxPosition: 90}

	got := l.Clamp(Step{TargetPosition: -200, Speed: 150, Acceleration: -1, Duration: time.Second})
	assert.Equal(t, -90, got.TargetPosition)
	assert.Equal(t, 100, got.Speed)
	assert.Equal(t, 0, got.Acceleration)

	inRange := Step{TargetPosition: 45, Speed: 50, Acceleration: 5, Duration: time.Second}
	assert.Equal(t, inRange, l.Clamp(inRange))
}

func TestNewSequence(t *testing.T) {
	_, err := NewSequence("空", nil)
	assert.ErrorIs(t, err, define.ErrSequenceEmpty)

	_, err = NewSequence("坏", []Step{{Speed: 10, Duration: 0}})
	assert.ErrorIs(t, err, define.ErrInvalidRequest)

	steps := []Step{{Speed: 10, Duration: time.Second, Label: "a"}}
	seq, err := NewSequence("好", steps)
	require.NoError(t, err)
	steps[0].Label = "改"
	assert.Equal(t, "a", seq.Steps[0].Label, "序列持有自己的副本")
}
