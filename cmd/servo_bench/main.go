package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"owl/config"
	"owl/define"
	"owl/device"
	"owl/motion"
	"owl/sequence"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// 台架调试工具：不启动 Web 服务，直接对舵机按顺序执行序列文件
func main() {
	var (
		configPath string
		model      string
		loops      int
	)

	cmd := &cobra.Command{
		Use:          "servo_bench <sequence.csv>",
		Short:        "在台架上直接执行序列文件",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOrCreateConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("driver") {
				cfg.Device.Model = model
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return bench(cfg, args[0], loops)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径")
	cmd.Flags().StringVar(&model, "driver", "", "驱动型号，覆盖配置文件")
	cmd.Flags().IntVarP(&loops, "loops", "n", 1, "执行轮数")

	if err := cmd.Execute(); err != nil {
		logrus.Fatalf("❌ %v", err)
	}
}

func loadOrCreateConfig(configPath string) (*define.Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		// 配置文件不存在，创建默认配置
		cfg := config.GetDefaultConfig()
		if err := config.SaveConfig(cfg, configPath); err != nil {
			return nil, fmt.Errorf("保存默认配置失败：%w", err)
		}
		logrus.Infof("📝 创建默认配置文件: %s", configPath)
		return cfg, nil
	}

	return config.LoadConfig(configPath)
}

func bench(cfg *define.Config, path string, loops int) error {
	steps, err := sequence.LoadFile(path)
	if err != nil {
		return err
	}
	seq, err := motion.NewSequence(path, steps)
	if err != nil {
		return err
	}

	driver, err := device.CreateDriver(cfg.Device, nil)
	if err != nil {
		return err
	}
	defer driver.Close()

	executor := motion.NewExecutor(motion.LimitsFromConfig(cfg.Limits), cfg.Motion.PollInterval, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.Infof("🚀 使用 %s 驱动执行 %s (%d 步 × %d 轮)", driver.GetModel(), seq.Name, seq.Len(), loops)

	for loop := 1; loop <= loops; loop++ {
		for i, step := range seq.Steps {
			outcome, err := executor.Execute(ctx, step, driver)
			if err != nil {
				if stopErr := driver.EmergencyStop(context.Background()); stopErr != nil {
					logrus.Errorf("❌ 急停失败: %v", stopErr)
				}
				if errors.Is(err, define.ErrCanceled) {
					logrus.Infof("🛑 第 %d 轮第 %d 步被中断，舵机已停止", loop, i+1)
					return nil
				}
				return err
			}

			entry := logrus.WithFields(logrus.Fields{"loop": loop, "step": i + 1})
			if outcome.Warning != "" {
				entry.Warnf("⚠️ %s: %s", step, outcome.Warning)
				continue
			}
			entry.Infof("✅ %s 用时 %.2fs (运动 %.2fs)", step, outcome.Elapsed.Seconds(), outcome.MotionTime.Seconds())
		}
	}

	logrus.Infof("👋 执行完成")
	return nil
}
