package api

import (
	"errors"
	"fmt"
	"net/http"

	"owl/define"
	"owl/motion"

	"github.com/gin-gonic/gin"
)

// respondError 按错误类型返回状态码和错误码
func respondError(c *gin.Context, err error) {
	code := define.ErrorCode(err)

	status := http.StatusInternalServerError
	switch code {
	case define.CodeSequenceNotFound:
		status = http.StatusNotFound
	case define.CodeSequenceEmpty, define.CodeInvalidRequest:
		status = http.StatusBadRequest
	case define.CodeDriver:
		status = http.StatusBadGateway
	case define.CodeCanceled:
		status = http.StatusConflict
	}

	c.JSON(status, ApiResponse{
		Status: "error",
		Error:  err.Error(),
		Code:   code,
	})
}

func invalidRequest(c *gin.Context, err error) {
	respondError(c, fmt.Errorf("%w: %v", define.ErrInvalidRequest, err))
}

// handleExecutePositionQuery 旧版 GET 接口，参数在查询字符串中
func (s *Server) handleExecutePositionQuery(c *gin.Context) {
	var q PositionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalidRequest(c, err)
		return
	}
	s.executePosition(c, q.toStep())
}

// handleExecutePosition 执行单步运动
func (s *Server) handleExecutePosition(c *gin.Context) {
	var req StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}
	s.executePosition(c, req.toStep())
}

func (s *Server) executePosition(c *gin.Context, step motion.Step) {
	outcome, err := s.controller.ExecutePosition(c.Request.Context(), step)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Message: fmt.Sprintf("Executed %s to %d degrees at speed %d with acceleration %d",
			step.Label, step.TargetPosition, step.Speed, step.Acceleration),
		Data: newStepOutcomeResponse(outcome),
	})
}

// handleRunSequenceFile 旧版接口，从序列目录播放文件
func (s *Server) handleRunSequenceFile(c *gin.Context) {
	name := c.Query("file_path")
	if name == "" {
		invalidRequest(c, errors.New("缺少 file_path"))
		return
	}

	id, seq, err := s.controller.RunSequenceFile(name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("Started executing sequence from %s", seq.Name),
		Data: map[string]any{
			"runId":    id,
			"sequence": seq.Name,
			"steps":    seq.Len(),
		},
	})
}

// handleRunSequence 播放内联序列或序列文件
func (s *Server) handleRunSequence(c *gin.Context) {
	var req SequenceRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	var (
		id  string
		seq motion.Sequence
		err error
	)
	if len(req.Steps) == 0 && req.Name != "" {
		id, seq, err = s.controller.RunSequenceFile(req.Name)
	} else {
		seq, err = motion.NewSequence(nameOr(req.Name, "inline"), toSteps(req.Steps))
		if err == nil {
			id, err = s.controller.RunSequence(seq)
		}
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("序列 %s 已开始循环播放", seq.Name),
		Data: map[string]any{
			"runId":    id,
			"sequence": seq.Name,
			"steps":    seq.Len(),
		},
	})
}

// handleEmergencyStop 停止播放并急停
func (s *Server) handleEmergencyStop(c *gin.Context) {
	if err := s.controller.EmergencyStop(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: "Servo motor stopped successfully",
	})
}

// handleLastStepInfo 最近一步信息
func (s *Server) handleLastStepInfo(c *gin.Context) {
	reading, err := s.controller.QueryLastStep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	// 旧版仪表盘直接读取顶层字段
	if c.FullPath() == "/last_step_info" {
		c.JSON(http.StatusOK, newLastStepResponse(reading))
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   newLastStepResponse(reading),
	})
}

// handleListSequences 获取序列文件列表
func (s *Server) handleListSequences(c *gin.Context) {
	names, err := s.controller.Library().List()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data: SequenceListResponse{
			Sequences: names,
			Total:     len(names),
		},
	})
}

// handleSaveSequence 保存序列文件
func (s *Server) handleSaveSequence(c *gin.Context) {
	var req SequenceSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	name, err := s.controller.Library().Save(c.Param("name"), toSteps(req.Steps))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("Sequence saved as %s", name),
		Data: map[string]any{
			"name":  name,
			"steps": len(req.Steps),
		},
	})
}

func toSteps(reqs []StepRequest) []motion.Step {
	steps := make([]motion.Step, 0, len(reqs))
	for _, r := range reqs {
		steps = append(steps, r.toStep())
	}
	return steps
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
