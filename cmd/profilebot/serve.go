package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaopang/profilebot/internal/api"
	"github.com/xiaopang/profilebot/internal/config"
	"github.com/xiaopang/profilebot/internal/logger"
)

type configLoader func() (*config.Config, error)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook, health and admin HTTP endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.janitor.Start(); err != nil {
		return err
	}

	// 更新在后台处理，关闭时仍需允许其完成投递
	webhook := api.NewWebhookHandler(context.WithoutCancel(ctx), a.bot.Handle, a.client, cfg)
	admin := api.NewAdminHandler(a.bot, cfg)
	router := api.SetupRouter(cfg, webhook, admin, a.registry)

	// 使用 http.Server 以支持 Graceful Shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr, "webhook_path", cfg.Telegram.WebhookPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case err := <-srvErr:
		if err != nil {
			a.close()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	webhook.Wait()
	a.close()
	logger.Info("server stopped gracefully")
	return nil
}

func newPollCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Receive updates by long polling (local development)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			// Telegram 不允许 webhook 与 getUpdates 同时使用
			if err := a.client.DeleteWebhook(); err != nil {
				return fmt.Errorf("failed to delete webhook: %w", err)
			}
			if err := a.janitor.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("polling for updates")
			a.client.Poll(ctx, a.bot.Handle)
			logger.Info("polling stopped")
			return nil
		},
	}
}

func newSetWebhookCmd(load configLoader) *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "set-webhook",
		Short: "Register the public webhook URL with Telegram",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			url := api.WebhookURL(cfg.Telegram.WebhookURL, host, cfg.Telegram.WebhookPath)
			if url == "" {
				return errors.New("no webhook url: set WEBHOOK_URL or pass --host")
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.client.SetWebhook(url, cfg.Telegram.WebhookSecret); err != nil {
				return fmt.Errorf("failed to set webhook: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Webhook set successfully: %s\n", url)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "public host when webhook_url is not configured")
	return cmd
}
