package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devpulse-hq/devpulse-bot/internal/app"
	"github.com/devpulse-hq/devpulse-bot/internal/config"
	"github.com/devpulse-hq/devpulse-bot/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bot start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	runNow := flag.Bool("now", false, "execute one posting run immediately and exit")
	verify := flag.Bool("verify", false, "verify platform credentials and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	if missing := cfg.ValidateCredentials(); len(missing) > 0 {
		logger.WarnObj("credentials incomplete", "credentials_meta", map[string]any{
			"missing": missing,
			"dry_run": cfg.DryRun,
		})
	}

	logger.InfoObj("bot starting", "config", map[string]any{
		"app_name":  cfg.AppName,
		"env":       cfg.Env,
		"dry_run":   cfg.DryRun,
		"timezone":  cfg.Timezone,
		"post_time": fmt.Sprintf("%02d:%02d", cfg.PostHour, cfg.PostMin),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := app.NewBot(ctx, cfg, logger.Std{})
	if err != nil {
		logger.ErrorObj("failed to initialize bot", "error", err)
		return err
	}
	defer bot.Close()

	switch {
	case *verify:
		user, err := bot.VerifyCredentials(ctx)
		if err != nil {
			return fmt.Errorf("verify credentials: %w", err)
		}
		logger.InfoObj("credentials verified", "account", map[string]any{
			"id":       user.ID,
			"username": user.Username,
			"name":     user.Name,
		})
		return nil
	case *runNow:
		if err := bot.RunOnce(ctx); err != nil {
			return fmt.Errorf("run once: %w", err)
		}
		return nil
	default:
		if err := bot.Run(ctx); err != nil {
			return fmt.Errorf("bot run: %w", err)
		}
		return nil
	}
}
