package api

import (
	"time"

	"owl/define"
	"owl/motion"
)

// ApiResponse 统一 API 响应格式
type ApiResponse = define.ApiResponse

// ===== 运动控制相关模型 =====

// PositionQuery 旧版 GET /execute_position 的查询参数
type PositionQuery struct {
	Degrees      *int    `form:"degrees" binding:"required"`
	Speed        int     `form:"speed" binding:"required,gt=0"`
	Acceleration int     `form:"acceleration" binding:"gte=0"`
	Duration     float64 `form:"duration" binding:"required,gt=0"`
	Label        string  `form:"label"`
}

// StepRequest 一个步骤，Duration 单位为秒
type StepRequest struct {
	Degrees      *int    `json:"degrees" binding:"required"`
	Speed        int     `json:"speed" binding:"required,gt=0"`
	Acceleration int     `json:"acceleration" binding:"gte=0"`
	Duration     float64 `json:"duration" binding:"required,gt=0"`
	Label        string  `json:"label"`
}

func (r StepRequest) toStep() motion.Step {
	return motion.Step{
		TargetPosition: *r.Degrees,
		Speed:          r.Speed,
		Acceleration:   r.Acceleration,
		Duration:       secondsToDuration(r.Duration),
		Label:          r.Label,
	}
}

func (q PositionQuery) toStep() motion.Step {
	return StepRequest(q).toStep()
}

// SequenceRunRequest 播放序列：给出文件名或内联步骤
type SequenceRunRequest struct {
	Name  string        `json:"name"`
	Steps []StepRequest `json:"steps" binding:"dive"`
}

// SequenceSaveRequest 保存序列
type SequenceSaveRequest struct {
	Steps []StepRequest `json:"steps" binding:"required,dive"`
}

// StepOutcomeResponse 单步执行结果
type StepOutcomeResponse struct {
	Elapsed    float64 `json:"elapsed"`
	MotionTime float64 `json:"motion_time"`
	Warning    *string `json:"warning"`
}

func newStepOutcomeResponse(o motion.Outcome) StepOutcomeResponse {
	return StepOutcomeResponse{
		Elapsed:    o.Elapsed.Seconds(),
		MotionTime: o.MotionTime.Seconds(),
		Warning:    optional(o.Warning),
	}
}

// LastStepResponse 最近一步信息，字段名与旧版仪表盘保持一致
type LastStepResponse struct {
	Degrees        *int       `json:"degrees"` // 实际位置，读取时从舵机查询
	TargetPosition *int       `json:"target_position"`
	Speed          *int       `json:"speed"`
	Acceleration   *int       `json:"acceleration"`
	Duration       *float64   `json:"duration"`
	Label          *string    `json:"label"`
	StartTime      *time.Time `json:"start_time"`
	ElapsedTime    *float64   `json:"elapsed_time"`
	SequenceFile   *string    `json:"sequence_file"`
	StepNumber     *int       `json:"step_number"` // 从 1 开始，单步执行时为空
	StepIndex      *int       `json:"step_index"`
	Completed      bool       `json:"completed"`
	Interrupted    bool       `json:"interrupted"`
	Warning        *string    `json:"warning"`
	LastWarning    *string    `json:"last_warning"` // 上一个已完成步骤的超时警告
	Error          *string    `json:"error"`
	RunID          *string    `json:"run_id"`
}

func newLastStepResponse(r motion.Reading) LastStepResponse {
	resp := LastStepResponse{Degrees: &r.CurrentPosition}
	if r.IsEmpty() {
		return resp
	}

	elapsed := r.Elapsed.Seconds()
	duration := r.Duration.Seconds()
	start := r.StartTime
	resp.TargetPosition = &r.TargetPosition
	resp.Speed = &r.Speed
	resp.Acceleration = &r.Acceleration
	resp.Duration = &duration
	resp.Label = &r.Label
	resp.StartTime = &start
	resp.ElapsedTime = &elapsed
	resp.SequenceFile = optional(r.Sequence)
	resp.Completed = r.Completed
	resp.Interrupted = r.Interrupted
	resp.Warning = optional(r.Warning)
	resp.LastWarning = optional(r.LastWarning)
	resp.Error = optional(r.Snapshot.Error)
	resp.RunID = optional(r.RunID)
	if r.StepIndex != nil {
		index := *r.StepIndex
		number := index + 1
		resp.StepIndex = &index
		resp.StepNumber = &number
	}
	return resp
}

// SequenceListResponse 序列文件列表
type SequenceListResponse struct {
	Sequences []string `json:"sequences"`
	Total     int      `json:"total"`
}

// ===== 系统相关模型 =====

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	State     string    `json:"state"`
	LastError string    `json:"lastError,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
