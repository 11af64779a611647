package control

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"owl/define"
	"owl/motion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDriver struct {
	mu       sync.Mutex
	position int
	moves    []int
	stops    int
}

func (d *recordingDriver) MoveAbsolute(_ context.Context, _, _ int, position int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moves = append(d.moves, position)
	d.position = position
	return nil
}

func (d *recordingDriver) IsRunning(context.Context) (bool, error) { return false, nil }

func (d *recordingDriver) ReadPosition(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position, nil
}

func (d *recordingDriver) EmergencyStop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *recordingDriver) moveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.moves)
}

const sampleCSV = "Degrees,Speed,Acceleration,Duration,Label\n10,50,5,0.02,A\n20,50,5,0.02,B\n"

func newTestController(t *testing.T) (*Controller, *recordingDriver, string) {
	t.Helper()
	dir := t.TempDir()
	driver := &recordingDriver{}
	telemetry := motion.NewTelemetryStore()
	limits := motion.Limits{MaxSpeed: 600, MaxAcceleration: 50, MinPosition: -360, MaxPosition: 360}
	runner := motion.NewRunner(driver, motion.NewExecutor(limits, 5*time.Millisecond, nil), telemetry, nil)
	return NewController(runner, telemetry, driver, NewLibrary(dir), nil), driver, dir
}

func TestController_RunSequenceFile(t *testing.T) {
	ctrl, driver, dir := newTestController(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sequence.csv"), []byte(sampleCSV), 0o644))

	id, seq, err := ctrl.RunSequenceFile("sequence")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 2, seq.Len())

	require.Eventually(t, func() bool { return driver.moveCount() >= 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "running", ctrl.Status().State)

	require.NoError(t, ctrl.EmergencyStop(context.Background()))
	assert.Equal(t, "idle", ctrl.Status().State)
	assert.Equal(t, 1, driver.stops)
}

func TestController_RunSequenceFileErrorsLeaveStateAlone(t *testing.T) {
	ctrl, driver, dir := newTestController(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.csv"), []byte("Degrees,Speed,Acceleration,Duration,Label\n"), 0o644))

	_, _, err := ctrl.RunSequenceFile("missing.csv")
	assert.ErrorIs(t, err, define.ErrSequenceNotFound)
	assert.Equal(t, define.CodeSequenceNotFound, define.ErrorCode(err))

	_, _, err = ctrl.RunSequenceFile("empty.csv")
	assert.ErrorIs(t, err, define.ErrSequenceEmpty)

	_, _, err = ctrl.RunSequenceFile("../etc/passwd")
	assert.ErrorIs(t, err, define.ErrInvalidRequest)

	assert.Equal(t, "idle", ctrl.Status().State)
	assert.Zero(t, driver.moveCount())
}

func TestController_ExecutePositionAndQuery(t *testing.T) {
	ctrl, _, _ := newTestController(t)

	outcome, err := ctrl.ExecutePosition(context.Background(), motion.Step{TargetPosition: 45, Speed: 50, Duration: 10 * time.Millisecond, Label: "点头"})
	require.NoError(t, err)
	assert.Empty(t, outcome.Warning)

	reading, err := ctrl.QueryLastStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "点头", reading.Label)
	assert.Equal(t, 45, reading.CurrentPosition)
	assert.Nil(t, reading.StepIndex)
	assert.True(t, reading.Completed)
}

func TestController_Autoplay(t *testing.T) {
	ctrl, driver, dir := newTestController(t)

	ctrl.Autoplay("sequence.csv")
	assert.Equal(t, "idle", ctrl.Status().State, "文件不存在时不启动")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sequence.csv"), []byte(sampleCSV), 0o644))
	ctrl.Autoplay("sequence.csv")
	require.Eventually(t, func() bool { return driver.moveCount() >= 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, ctrl.EmergencyStop(context.Background()))
}

func TestLibrary_SaveAndList(t *testing.T) {
	lib := NewLibrary(filepath.Join(t.TempDir(), "instructions"))

	names, err := lib.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	steps := []motion.Step{{TargetPosition: 1, Speed: 10, Duration: time.Second, Label: "a"}}
	name, err := lib.Save("wave", steps)
	require.NoError(t, err)
	assert.Equal(t, "wave.csv", name)

	_, err = lib.Save("nothing", nil)
	assert.ErrorIs(t, err, define.ErrSequenceEmpty)

	names, err = lib.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"wave.csv"}, names)

	seq, err := lib.Load("wave.csv")
	require.NoError(t, err)
	assert.Equal(t, steps, seq.Steps)
}

func TestLibrary_AcceptsDirPrefixedNames(t *testing.T) {
	lib := NewLibrary("instructions")
	path, err := lib.resolve("instructions/temp.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("instructions", "temp.csv"), path)
}
