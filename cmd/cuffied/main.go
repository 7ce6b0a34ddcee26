package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cuffie-gateway/internal/app"
	"cuffie-gateway/internal/config"
	"cuffie-gateway/pkg/logger"
)

// main 是网关守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.L().Error("cuffied 运行失败", slog.Any("error", err))
		_ = logger.Sync()
		fmt.Fprintf(os.Stderr, "cuffied 运行失败: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer logger.Sync()

	daemon, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := daemon.Close(); err != nil {
			logger.L().Warn("释放资源失败", slog.Any("error", err))
		}
	}()

	return daemon.Run(ctx)
}
