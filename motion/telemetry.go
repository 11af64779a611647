package motion

import (
	"context"
	"sync/atomic"
	"time"
)

// Snapshot 最近一步的执行记录，每次整体替换，从不逐字段修改
type Snapshot struct {
	RunID          string
	Sequence       string
	StepIndex      *int // 单步执行时为空
	Label          string
	TargetPosition int
	Speed          int
	Acceleration   int
	Duration       time.Duration
	StartTime      time.Time
	Completed      bool          // 步骤结束后 Elapsed 固定
	Elapsed        time.Duration // 仅在 Completed 时有效
	Warning        string
	LastWarning    string // 本次运行中最近一个已完成步骤的超时警告，下一步执行期间仍然可见
	Interrupted    bool
	Error          string
}

// IsEmpty 进程启动后还没有执行过任何步骤
func (s Snapshot) IsEmpty() bool { return s.StartTime.IsZero() }

// ElapsedAt 进行中的步骤按读取时刻计算耗时，已结束的步骤返回固定值
func (s Snapshot) ElapsedAt(now time.Time) time.Duration {
	if s.IsEmpty() {
		return 0
	}
	if s.Completed {
		return s.Elapsed
	}
	return now.Sub(s.StartTime)
}

// PositionReader 读取实际位置
type PositionReader interface {
	ReadPosition(ctx context.Context) (int, error)
}

// Reading 在读取时刻计算出的遥测数据
type Reading struct {
	Snapshot
	Elapsed         time.Duration
	CurrentPosition int
	ReadAt          time.Time
}

// TelemetryStore 保存最近一步的快照，读写互不阻塞
type TelemetryStore struct {
	current atomic.Pointer[Snapshot]
}

func NewTelemetryStore() *TelemetryStore {
	t := &TelemetryStore{}
	t.current.Store(&Snapshot{})
	return t
}

// Write 整体替换当前快照
func (t *TelemetryStore) Write(s Snapshot) {
	t.current.Store(&s)
}

// Read 返回当前快照的副本
func (t *TelemetryStore) Read() Snapshot {
	return *t.current.Load()
}

// Sample 读取快照，并在读取时刻计算耗时、从驱动查询实际位置
func (t *TelemetryStore) Sample(ctx context.Context, reader PositionReader) (Reading, error) {
	snap := t.Read()
	now := time.Now()

	pos, err := reader.ReadPosition(ctx)
	if err != nil {
		return Reading{}, asDriverError("读取位置", err)
	}

	return Reading{
		Snapshot:        snap,
		Elapsed:         snap.ElapsedAt(now),
		CurrentPosition: pos,
		ReadAt:          now,
	}, nil
}
