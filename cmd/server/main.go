// Binary server runs the webhook-to-order bridge: it authenticates inbound
// trading signals and turns them into sized spot orders on Bybit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hookbot-go/internal/config"
	"hookbot-go/internal/execution"
	"hookbot-go/internal/metrics"
	"hookbot-go/internal/notify"
	"hookbot-go/internal/risk"
	"hookbot-go/internal/signal"
	"hookbot-go/internal/sizing"
	"hookbot-go/internal/tunnel"
	"hookbot-go/internal/util"
	"hookbot-go/internal/venue"
	"hookbot-go/internal/webhook"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}

	configPath := flag.String("config", "config.yaml", "path to YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLoggerWithFile(cfg.App.LogLevel, cfg.App.LogFile)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
	} else {
		log.Warn().Msg("telegram not configured, notifications disabled")
	}

	client := venue.NewClient(cfg.Bybit.RestURL, cfg.Bybit.APIKey, cfg.Bybit.APISecret, log,
		venue.WithSimulate(cfg.Trading.Simulate),
		venue.WithRecvWindow(cfg.Bybit.RecvWindow),
	)
	sizer := sizing.NewSizer(client)
	limits := risk.Limits{MinOrderUSDT: cfg.Trading.MinOrderUSDT, MaxOrderUSDT: cfg.Trading.MaxOrderUSDT}
	exec := execution.NewExecutor(client, sizer, limits, log)

	handler := webhook.NewHandler(
		cfg.Webhook.Secret,
		time.Duration(cfg.Webhook.MaxSkewSeconds)*time.Second,
		cfg.Webhook.AuthDisabled,
		webhook.Defaults{
			OrderType:  signal.OrderType(cfg.Trading.DefaultOrderType),
			AmountUSDT: cfg.Trading.DefaultAmountUSDT,
		},
		exec, notifier, log,
	)

	mux := http.NewServeMux()
	handler.Register(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	localURL := fmt.Sprintf("http://%s", addr)

	announce := func(base string) {
		url := strings.TrimSuffix(base, "/") + "/webhook"
		log.Info().Str("url", url).Msg("public webhook URL")
		notifier.Announce("Public webhook URL: " + url)
	}
	switch {
	case cfg.Server.PublicBaseURL != "":
		announce(cfg.Server.PublicBaseURL)
	case cfg.Tunnel.Enabled:
		sup := tunnel.New(cfg.Tunnel.Bin, localURL, log, announce, func(err error) {
			log.Warn().Err(err).Msg("tunnel stopped, webhook remains local-only")
		})
		if err := sup.Start(ctx); err != nil {
			log.Error().Err(err).Msg("tunnel failed to start")
		} else {
			defer sup.Stop()
		}
	}

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Bool("simulate", cfg.Trading.Simulate).Msg("webhook server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("shutdown complete")
}
