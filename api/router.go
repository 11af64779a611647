package api

import (
	"time"

	"owl/control"

	"github.com/gin-gonic/gin"
)

// Server 控制服务 HTTP 接口
type Server struct {
	controller *control.Controller
	startTime  time.Time
	version    string
}

// NewServer 创建新的 API 服务器实例
func NewServer(controller *control.Controller) *Server {
	return &Server{
		controller: controller,
		startTime:  time.Now(),
		version:    "1.0.0",
	}
}

// SetupRoutes 设置路由
func (s *Server) SetupRoutes(r *gin.Engine) {
	// 旧版仪表盘使用的接口
	r.GET("/execute_position", s.handleExecutePositionQuery)
	r.GET("/run_sequence", s.handleRunSequenceFile)
	r.GET("/emergency_stop", s.handleEmergencyStop)
	r.GET("/last_step_info", s.handleLastStepInfo)

	api := r.Group("/api")
	{
		// 运动控制路由
		api.POST("/position", s.handleExecutePosition) // 执行单步运动
		api.POST("/stop", s.handleEmergencyStop)       // 紧急停止
		api.GET("/last-step", s.handleLastStepInfo)    // 最近一步信息

		// 序列路由
		sequences := api.Group("/sequences")
		{
			sequences.GET("", s.handleListSequences)       // 获取序列文件列表
			sequences.POST("/run", s.handleRunSequence)    // 播放序列
			sequences.POST("/:name", s.handleSaveSequence) // 保存序列
		}

		// 系统路由
		api.GET("/status", s.handleStatus) // 运行状态
		api.GET("/health", s.handleHealthCheck)
	}
}
