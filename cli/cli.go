package cli

import (
	"os"
	"strconv"

	"owl/config"
	"owl/define"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type flags struct {
	configPath string
	port       string
	model      string
	serialPort string
	canID      uint32
	maxSpeed   int
	seqDir     string
	autoplay   string
	logLevel   string
}

// NewRootCommand 创建根命令，解析完成的配置交给 run
func NewRootCommand(run func(cfg *define.Config) error) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "owl",
		Short: "单轴动画舵机控制服务",
		Long: `通过 CAN 总线驱动单个舵机，循环播放动作序列，支持紧急停止和实时状态查询。

环境变量（优先级高于命令行参数）：
  SERVO_CONFIG       配置文件路径
  WEB_PORT           Web 服务的端口
  SERVO_DRIVER       驱动型号 (mks, sim)
  SERVO_PORT         SLCAN 适配器串口
  SERVO_CAN_ID       舵机 CAN ID
  INSTRUCTIONS_DIR   序列文件目录
  AUTOPLAY_SEQUENCE  启动时自动循环播放的序列文件`,
		Example: `  owl --driver sim
  owl --serial-port /dev/ttyACM0 --can-id 1
  WEB_PORT=9120 SERVO_DRIVER=sim owl`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := parseConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "config.yaml", "配置文件路径")
	fs.StringVar(&f.port, "port", "", "Web 服务的端口")
	fs.StringVar(&f.model, "driver", "", "驱动型号 (mks, sim)")
	fs.StringVar(&f.serialPort, "serial-port", "", "SLCAN 适配器串口")
	fs.Uint32Var(&f.canID, "can-id", 0, "舵机 CAN ID")
	fs.IntVar(&f.maxSpeed, "max-speed", 0, "速度上限")
	fs.StringVar(&f.seqDir, "instructions", "", "序列文件目录")
	fs.StringVar(&f.autoplay, "autoplay", "", "启动时自动循环播放的序列文件，空字符串表示不播放")
	fs.StringVar(&f.logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")

	return cmd
}

// parseConfig 合并配置文件、命令行参数与环境变量，并做启动校验
func parseConfig(cmd *cobra.Command, f *flags) (*define.Config, error) {
	configPath := f.configPath
	if env := os.Getenv("SERVO_CONFIG"); env != "" {
		configPath = env
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	// 命令行参数只覆盖显式设置的项
	fs := cmd.Flags()
	if fs.Changed("port") {
		cfg.Server.Port = f.port
	}
	if fs.Changed("driver") {
		cfg.Device.Model = f.model
	}
	if fs.Changed("serial-port") {
		cfg.Device.SerialPort = f.serialPort
	}
	if fs.Changed("can-id") {
		cfg.Device.CanID = f.canID
	}
	if fs.Changed("max-speed") {
		cfg.Limits.MaxSpeed = f.maxSpeed
	}
	if fs.Changed("instructions") {
		cfg.Sequences.Dir = f.seqDir
	}
	if fs.Changed("autoplay") {
		cfg.Sequences.Autoplay = f.autoplay
	}
	if fs.Changed("log-level") {
		cfg.Server.LogLevel = f.logLevel
	}

	// 环境变量覆盖命令行参数
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *define.Config) error {
	if env := os.Getenv("WEB_PORT"); env != "" {
		cfg.Server.Port = env
	}
	if env := os.Getenv("SERVO_DRIVER"); env != "" {
		cfg.Device.Model = env
	}
	if env := os.Getenv("SERVO_PORT"); env != "" {
		cfg.Device.SerialPort = env
	}
	if env := os.Getenv("SERVO_CAN_ID"); env != "" {
		id, err := strconv.ParseUint(env, 0, 32)
		if err != nil {
			return define.ConfigError("SERVO_CAN_ID 无效：%v", err)
		}
		cfg.Device.CanID = uint32(id)
	}
	if env := os.Getenv("INSTRUCTIONS_DIR"); env != "" {
		cfg.Sequences.Dir = env
	}
	if env, ok := os.LookupEnv("AUTOPLAY_SEQUENCE"); ok {
		cfg.Sequences.Autoplay = env
	}
	return nil
}

// LogConfig 打印最终生效的配置
func LogConfig(log logrus.FieldLogger, cfg *define.Config) {
	log.Infof("🔧 服务配置：")
	log.Infof("   - Web 端口: %s", cfg.Server.Port)
	log.Infof("   - 驱动型号: %s", cfg.Device.Model)
	log.Infof("   - 串口: %s (CAN ID 0x%X, %d bit/s)", cfg.Device.SerialPort, cfg.Device.CanID, cfg.Device.Bitrate)
	log.Infof("   - 速度上限: %d, 加速度上限: %d", cfg.Limits.MaxSpeed, cfg.Limits.MaxAcceleration)
	log.Infof("   - 位置范围: [%d, %d]", cfg.Limits.MinPosition, cfg.Limits.MaxPosition)
	log.Infof("   - 序列目录: %s", cfg.Sequences.Dir)
}
