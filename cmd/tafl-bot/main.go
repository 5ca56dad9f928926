package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/config"
	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/taflbuilder"
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("dotenv: %v", err)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if flags.WroteHelp(err) {
			fmt.Println(err)
			return 0
		}
		log.Printf("config error: %v", err)
		return 2
	}
	if err := obslog.Init(cfg.LogOptions()); err != nil {
		log.Printf("logger init error: %v", err)
		return 1
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := taflbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("init_failed", zap.Error(err))
		return 1
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("close_failed", zap.Error(err))
		}
	}()

	if deps.Status != nil {
		go func() {
			if err := deps.Status.ListenAndServe(cfg.StatusAddr); err != nil {
				logger.Warn("statusz_stopped", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = deps.Status.Shutdown(sctx)
		}()
	}

	logger.Info("bot_start",
		zap.String("address", cfg.Address()),
		zap.String("username", "ai-"+cfg.Username),
		zap.String("role", cfg.Role().String()),
		zap.String("join_game", cfg.JoinGame),
	)
	if err := deps.Runner.Run(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info("bot_stopped", zap.String("reason", "signal"))
			return 0
		}
		logger.Error("bot_failed", zap.Error(err))
		return 1
	}
	logger.Info("bot_stopped")
	return 0
}
