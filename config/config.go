package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"owl/define"
	"owl/device"

	"gopkg.in/yaml.v3"
)

// MKS 舵机编码器一圈 16390 个单位
const DefaultUnitsPerDegree = 16390.0 / 360.0

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *define.Config {
	return &define.Config{
		Server: define.ServerConfig{
			Port:       "9120",
			LogLevel:   "info",
			EnableCORS: true,
		},
		Device: define.DeviceConfig{
			Model:          "mks",
			SerialPort:     "/dev/ttyACM0",
			Baud:           115200,
			Bitrate:        500000,
			CanID:          1,
			UnitsPerDegree: DefaultUnitsPerDegree,
		},
		Limits: define.LimitsConfig{
			MaxSpeed:        600,
			MaxAcceleration: 50,
			MinPosition:     -3600,
			MaxPosition:     3600,
		},
		Motion: define.MotionConfig{
			PollInterval: 100 * time.Millisecond,
		},
		Sequences: define.SequencesConfig{
			Dir:      "instructions",
			Autoplay: "sequence.csv",
		},
	}
}

// LoadConfig 从 YAML 文件加载配置，未设置的字段保留默认值。
// 文件不存在时返回默认配置。
func LoadConfig(configPath string) (*define.Config, error) {
	cfg := GetDefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("打开配置文件失败：%w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, define.ConfigError("解析配置文件 %s 失败：%v", configPath, err)
	}
	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *define.Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败：%w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("保存配置文件失败：%w", err)
	}
	return nil
}

// Validate 校验启动配置，任何错误都是致命的
func Validate(cfg *define.Config) error {
	if cfg == nil {
		return define.ConfigError("缺少配置")
	}
	if cfg.Limits.MaxSpeed <= 0 {
		return define.ConfigError("max_speed 必须大于 0，当前 %d", cfg.Limits.MaxSpeed)
	}
	if cfg.Limits.MaxAcceleration < 0 {
		return define.ConfigError("max_acceleration 不能为负数，当前 %d", cfg.Limits.MaxAcceleration)
	}
	if cfg.Limits.MinPosition > cfg.Limits.MaxPosition {
		return define.ConfigError("min_position (%d) 大于 max_position (%d)", cfg.Limits.MinPosition, cfg.Limits.MaxPosition)
	}
	if cfg.Motion.PollInterval <= 0 {
		return define.ConfigError("poll_interval 必须大于 0")
	}
	if models := device.SupportedModels(); !slices.Contains(models, cfg.Device.Model) {
		return define.ConfigError("未知的驱动型号 %q，可用型号：%v", cfg.Device.Model, models)
	}
	if cfg.Device.CanID == 0 || cfg.Device.CanID > 0x7FF {
		return define.ConfigError("can_id 必须在 1..0x7FF 之间，当前 0x%X", cfg.Device.CanID)
	}
	if cfg.Device.UnitsPerDegree <= 0 {
		return define.ConfigError("units_per_degree 必须大于 0")
	}
	if err := device.ValidateLimits(cfg.Device, cfg.Limits); err != nil {
		return err
	}
	if cfg.Server.Port == "" {
		return define.ConfigError("缺少 Web 端口")
	}
	return nil
}
