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

	"github.com/spf13/cobra"

	"kanban-planner/internal/api"
	"kanban-planner/internal/bot"
	"kanban-planner/internal/config"
	"kanban-planner/internal/repository"
	"kanban-planner/internal/service"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "kanbanbot",
		Short: "Telegram front end for the Kanban task board",
		RunE:  runServe,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults to $CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll Telegram updates and serve chat sessions",
		RunE:  runServe,
	}
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored chat sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete sessions whose token has expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := repository.NewDB(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			auth := service.NewAuthService(nil, repository.NewSessionRepository(db))
			removed, err := auth.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", removed)
			return nil
		},
	})
	return cmd
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	sessions := repository.NewSessionRepository(db)
	backend := service.NewBackendFactory(api.New(cfg.APIBaseURL, cfg.APITimeout))

	authSvc := service.NewAuthService(backend, sessions)
	boardSvc := service.NewBoardListService(backend, sessions)

	telegramBot, err := bot.New(cfg.TelegramToken, authSvc, boardSvc, backend)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	scheduler := service.NewSchedulerService(time.Local)
	if cfg.SessionSweepInterval > 0 {
		if _, err := scheduler.ScheduleSessionSweep(cfg.SessionSweepInterval, authSvc); err != nil {
			return fmt.Errorf("schedule session sweep: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Printf("Kanban bot started, backend %s", cfg.APIBaseURL)
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	log.Println("Shutdown complete.")
	return nil
}
