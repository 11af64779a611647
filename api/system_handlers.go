package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleStatus 获取运行状态
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   s.controller.Status(),
	})
}

// handleHealthCheck 健康检查，播放因驱动错误中止时报告 degraded
func (s *Server) handleHealthCheck(c *gin.Context) {
	runner := s.controller.Status()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		State:     runner.State,
		LastError: runner.LastError,
	}
	if runner.LastError != "" {
		response.Status = "degraded"
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   response,
	})
}
