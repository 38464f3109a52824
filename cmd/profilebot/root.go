package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/xiaopang/profilebot/internal/api"
	"github.com/xiaopang/profilebot/internal/config"
	"github.com/xiaopang/profilebot/internal/logger"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "profilebot",
		Short:        "Telegram bot that answers questions about one person",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "配置文件路径")

	load := func() (*config.Config, error) {
		return loadConfig(configPath)
	}
	cmd.AddCommand(newServeCmd(load))
	cmd.AddCommand(newPollCmd(load))
	cmd.AddCommand(newSetWebhookCmd(load))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), api.Version)
		},
	})
	return cmd
}

// loadConfig 读取 .env、配置文件与环境变量，并初始化日志
func loadConfig(path string) (*config.Config, error) {
	// .env 可选
	_ = godotenv.Load()

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetJSON(cfg.Logging.Format == "json")
	logger.Info("config loaded", "path", path, "environment", cfg.Server.Environment)

	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		logger.Warn("missing credentials, related features will fail", "missing", missing)
	}
	return cfg, nil
}
