package device

import (
	"fmt"
	"slices"
	"sync"

	"owl/define"

	"github.com/sirupsen/logrus"
)

// Constructor 根据配置创建驱动
type Constructor func(cfg define.DeviceConfig, log logrus.FieldLogger) (Driver, error)

// LimitsCheck 检查运动上限能否被该型号的指令格式表示
type LimitsCheck func(cfg define.DeviceConfig, limits define.LimitsConfig) error

// DriverFactory 驱动工厂
type DriverFactory struct {
	mutex        sync.RWMutex
	constructors map[string]Constructor
	limitChecks  map[string]LimitsCheck
}

var defaultFactory = &DriverFactory{
	constructors: make(map[string]Constructor),
	limitChecks:  make(map[string]LimitsCheck),
}

func init() {
	RegisterDriver("mks", NewMksServoFromConfig)
	RegisterLimitsCheck("mks", checkMksLimits)
	RegisterDriver("sim", func(cfg define.DeviceConfig, log logrus.FieldLogger) (Driver, error) {
		return NewSimServo(log), nil
	})
}

// RegisterDriver 注册驱动型号
func RegisterDriver(model string, constructor Constructor) {
	defaultFactory.mutex.Lock()
	defer defaultFactory.mutex.Unlock()
	defaultFactory.constructors[model] = constructor
}

// RegisterLimitsCheck 为型号注册上限检查，没有注册的型号不做限制
func RegisterLimitsCheck(model string, check LimitsCheck) {
	defaultFactory.mutex.Lock()
	defer defaultFactory.mutex.Unlock()
	defaultFactory.limitChecks[model] = check
}

// ValidateLimits 在启动时确认钳位后的参数不会被驱动拒绝
func ValidateLimits(cfg define.DeviceConfig, limits define.LimitsConfig) error {
	defaultFactory.mutex.RLock()
	check, ok := defaultFactory.limitChecks[cfg.Model]
	defaultFactory.mutex.RUnlock()
	if !ok {
		return nil
	}
	return check(cfg, limits)
}

// CreateDriver 创建驱动实例
func CreateDriver(cfg define.DeviceConfig, log logrus.FieldLogger) (Driver, error) {
	defaultFactory.mutex.RLock()
	constructor, ok := defaultFactory.constructors[cfg.Model]
	defaultFactory.mutex.RUnlock()
	if !ok {
		return nil, define.ConfigError("未知的驱动型号：%s", cfg.Model)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	drv, err := constructor(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("创建驱动 %s 失败：%w", cfg.Model, err)
	}
	return drv, nil
}

// SupportedModels 获取支持的驱动型号列表
func SupportedModels() []string {
	defaultFactory.mutex.RLock()
	defer defaultFactory.mutex.RUnlock()

	models := make([]string, 0, len(defaultFactory.constructors))
	for model := range defaultFactory.constructors {
		models = append(models, model)
	}
	slices.Sort(models)
	return models
}
