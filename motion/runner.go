package motion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"owl/define"
	"owl/device"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State 运行器状态
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// RunHandle 标识当前占用驱动的一次运行（循环序列或单步）
type RunHandle struct {
	id       string
	sequence string
	single   bool
	cancel   context.CancelFunc
	done     chan struct{} // 运行结束后关闭，此后不会再有指令发往驱动
	loops    atomic.Int64
}

func newRunHandle(ctx context.Context, sequence string, single bool) (*RunHandle, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &RunHandle{
		id:       uuid.NewString(),
		sequence: sequence,
		single:   single,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, ctx
}

func (h *RunHandle) ID() string { return h.id }

// Status 运行器状态快照
type Status struct {
	State     string `json:"state"`
	RunID     string `json:"runId,omitempty"`
	Sequence  string `json:"sequence,omitempty"`
	Single    bool   `json:"single"`
	Loops     int64  `json:"loops"`
	LastError string `json:"lastError,omitempty"`
}

// Runner 管理唯一的后台执行 goroutine。
// 任何时刻最多只有一个运行持有驱动：启动新运行前总是先取消旧运行并等待其退出。
type Runner struct {
	driver    device.ServoDriver
	executor  *Executor
	telemetry *TelemetryStore
	log       logrus.FieldLogger

	opMutex sync.Mutex // 串行化 Start / Stop / ExecuteSingle

	mutex   sync.Mutex // 保护以下状态，持有时间很短
	state   State
	current *RunHandle
	lastErr error
}

func NewRunner(driver device.ServoDriver, executor *Executor, telemetry *TelemetryStore, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		driver:    driver,
		executor:  executor,
		telemetry: telemetry,
		log:       log,
	}
}

// Start 启动循环播放，立即返回运行 ID。
// 已有运行时先取消并等待其完全退出。
func (r *Runner) Start(seq Sequence) (string, error) {
	if seq.Len() == 0 {
		return "", fmt.Errorf("%w: %s", define.ErrSequenceEmpty, seq.Name)
	}

	r.opMutex.Lock()
	defer r.opMutex.Unlock()

	if prev := r.cancelCurrent(); prev != nil {
		r.log.Infof("ℹ️ 正在停止当前运行 %s 以启动序列 %s...", prev.sequence, seq.Name)
		<-prev.done
	}

	h, ctx := newRunHandle(context.Background(), seq.Name, false)

	r.mutex.Lock()
	r.current = h
	r.state = StateRunning
	r.lastErr = nil
	r.mutex.Unlock()

	r.log.WithField("run", h.id).Infof("🚀 准备启动序列 %s (%d 步)", seq.Name, seq.Len())
	go r.runLoop(ctx, h, seq)

	return h.id, nil
}

// Stop 取消当前运行，等待其退出后向驱动发出急停。
// 没有运行时也会发出急停，用于停止单独的运动。
func (r *Runner) Stop(ctx context.Context) error {
	r.opMutex.Lock()
	defer r.opMutex.Unlock()

	if h := r.cancelCurrent(); h != nil {
		r.log.WithField("run", h.id).Infof("⏳ 正在发送停止信号给 %s...", h.sequence)
		<-h.done
	}

	err := r.driver.EmergencyStop(context.WithoutCancel(ctx))

	r.mutex.Lock()
	r.current = nil
	r.state = StateIdle
	r.mutex.Unlock()

	if err != nil {
		r.log.Errorf("❌ 急停失败: %v", err)
		return asDriverError("紧急停止", err)
	}
	r.log.Infof("🛑 舵机已停止")
	return nil
}

// ExecuteSingle 在调用方 goroutine 上执行单个步骤。
// 与序列播放共用同一个串行点：执行前会停止正在播放的序列，执行期间 Stop 可以中断它。
func (r *Runner) ExecuteSingle(ctx context.Context, step Step) (Outcome, error) {
	if err := step.Validate(); err != nil {
		return Outcome{}, err
	}
	// 调用方已经放弃时不打断正在播放的序列，也不发出指令
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", define.ErrCanceled, err)
	}

	r.opMutex.Lock()
	if prev := r.cancelCurrent(); prev != nil {
		r.log.Infof("ℹ️ 正在停止当前运行 %s 以执行单步 %s...", prev.sequence, step.Label)
		<-prev.done
	}

	h, runCtx := newRunHandle(ctx, "", true)
	r.mutex.Lock()
	r.current = h
	r.state = StateRunning
	r.lastErr = nil
	r.mutex.Unlock()
	r.opMutex.Unlock()

	outcome, err := r.runStep(runCtx, h, nil, step)
	h.cancel()
	close(h.done)
	r.finish(h, err)

	return outcome, err
}

// Status 返回当前状态
func (r *Runner) Status() Status {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	status := Status{State: r.state.String()}
	if h := r.current; h != nil {
		status.RunID = h.id
		status.Sequence = h.sequence
		status.Single = h.single
		status.Loops = h.loops.Load()
	}
	if r.lastErr != nil {
		status.LastError = r.lastErr.Error()
	}
	return status
}

// IsRunning 检查是否有运行持有驱动
func (r *Runner) IsRunning() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.current != nil
}

// cancelCurrent 向当前运行发送取消信号并返回它，调用方负责等待 done
func (r *Runner) cancelCurrent() *RunHandle {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	h := r.current
	if h == nil {
		return nil
	}
	r.state = StateStopping
	h.cancel()
	return h
}

// runLoop 是循环播放的核心，在单独的 goroutine 中运行
func (r *Runner) runLoop(ctx context.Context, h *RunHandle, seq Sequence) {
	log := r.log.WithField("run", h.id)

	var err error
	defer func() {
		close(h.done)
		r.finish(h, err)
	}()

	log.Infof("▶️ 序列 %s 已启动", seq.Name)

	for {
		for i, step := range seq.Steps {
			if ctx.Err() != nil {
				log.Infof("🛑 序列 %s 在第 %d 步前被停止", seq.Name, i)
				return
			}

			index := i
			if _, err = r.runStep(ctx, h, &index, step); err != nil {
				if errors.Is(err, define.ErrCanceled) {
					log.Infof("🛑 序列 %s 在第 %d 步被中断", seq.Name, i)
					err = nil
				} else {
					log.Errorf("❌ 序列 %s 第 %d 步执行出错: %v", seq.Name, i, err)
				}
				return
			}
		}

		loops := h.loops.Add(1)
		log.Debugf("🔁 序列 %s 第 %d 轮完成，重新开始", seq.Name, loops)
	}
}

// runStep 执行一步并记录遥测：开始时写入进行中的快照，结束后整体替换
func (r *Runner) runStep(ctx context.Context, h *RunHandle, index *int, step Step) (Outcome, error) {
	clamped := r.executor.Limits().Clamp(step)

	var lastWarning string
	if prev := r.telemetry.Read(); prev.RunID == h.id && prev.Completed {
		lastWarning = prev.Warning
	}

	snap := Snapshot{
		RunID:          h.id,
		Sequence:       h.sequence,
		StepIndex:      index,
		Label:          step.Label,
		TargetPosition: clamped.TargetPosition,
		Speed:          clamped.Speed,
		Acceleration:   clamped.Acceleration,
		Duration:       step.Duration,
		StartTime:      time.Now(),
		LastWarning:    lastWarning,
	}
	r.telemetry.Write(snap)

	outcome, err := r.executor.Execute(ctx, step, r.driver)

	snap.Completed = true
	snap.Elapsed = outcome.Elapsed
	snap.Warning = outcome.Warning
	snap.LastWarning = outcome.Warning
	switch {
	case errors.Is(err, define.ErrCanceled):
		snap.Interrupted = true
	case err != nil:
		snap.Error = err.Error()
	}
	r.telemetry.Write(snap)

	if outcome.Warning != "" {
		r.log.WithFields(logrus.Fields{"run": h.id, "step": step.Label}).Warnf("⚠️ %s", outcome.Warning)
	}
	return outcome, err
}

// finish 在运行退出后更新状态。
// 如果运行器已经被新的运行接管，旧运行只需安静退出。
func (r *Runner) finish(h *RunHandle, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.current != h {
		r.log.Debugf("ℹ️ 旧运行 %s 退出，新运行已接管", h.id)
		return
	}
	r.current = nil
	r.state = StateIdle
	if err != nil && !errors.Is(err, define.ErrCanceled) {
		r.lastErr = err
	}
}
