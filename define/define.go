package define

import "time"

// 配置结构体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Device    DeviceConfig    `yaml:"device"`
	Limits    LimitsConfig    `yaml:"limits"`
	Motion    MotionConfig    `yaml:"motion"`
	Sequences SequencesConfig `yaml:"sequences"`
}

// ServerConfig Web 服务配置
type ServerConfig struct {
	Port       string `yaml:"port"`
	LogLevel   string `yaml:"log_level"`
	EnableCORS bool   `yaml:"enable_cors"`
}

// DeviceConfig 舵机与 CAN 适配器配置
type DeviceConfig struct {
	Model          string  `yaml:"model"`       // "mks" 或 "sim"
	SerialPort     string  `yaml:"serial_port"` // SLCAN 适配器串口，例如 /dev/ttyACM0
	Baud           int     `yaml:"baud"`
	Bitrate        int     `yaml:"bitrate"` // CAN 总线波特率
	CanID          uint32  `yaml:"can_id"`
	UnitsPerDegree float64 `yaml:"units_per_degree"`
}

// LimitsConfig 运动参数上限，执行时会被钳位
type LimitsConfig struct {
	MaxSpeed        int `yaml:"max_speed"`
	MaxAcceleration int `yaml:"max_acceleration"`
	MinPosition     int `yaml:"min_position"`
	MaxPosition     int `yaml:"max_position"`
}

type MotionConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SequencesConfig 序列文件目录与开机自动播放
type SequencesConfig struct {
	Dir      string `yaml:"dir"`
	Autoplay string `yaml:"autoplay"`
}

// API 响应结构体
type ApiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}
