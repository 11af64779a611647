package motion

import (
	"context"
	"sync"
	"time"
)

type move struct {
	speed, acceleration, position int
	at                            time.Time
}

// fakeDriver 记录所有指令，电机在 motionTime 后停止
type fakeDriver struct {
	mu         sync.Mutex
	motionTime time.Duration
	movedAt    time.Time
	moves      []move
	stops      []time.Time
	position   int
	moveErr    error
	statusErr  error
	readErr    error
}

func (d *fakeDriver) MoveAbsolute(_ context.Context, speed, acceleration, position int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.moveErr != nil {
		return d.moveErr
	}
	now := time.Now()
	d.moves = append(d.moves, move{speed: speed, acceleration: acceleration, position: position, at: now})
	d.movedAt = now
	d.position = position
	return nil
}

func (d *fakeDriver) IsRunning(context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.statusErr != nil {
		return false, d.statusErr
	}
	return time.Since(d.movedAt) < d.motionTime, nil
}

func (d *fakeDriver) ReadPosition(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position, d.readErr
}

func (d *fakeDriver) EmergencyStop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops = append(d.stops, time.Now())
	return nil
}

func (d *fakeDriver) recordedMoves() []move {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]move(nil), d.moves...)
}

func (d *fakeDriver) recordedStops() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.stops...)
}

func (d *fakeDriver) setMoveErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moveErr = err
}

var testLimits = Limits{MaxSpeed: 600, MaxAcceleration: 50, MinPosition: -360, MaxPosition: 360}

func newTestExecutor() *Executor {
	return NewExecutor(testLimits, 10*time.Millisecond, nil)
}
