package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bondora_go/internal/app"

	"github.com/spf13/cobra"

	_ "net/http/pprof" // For pprof profiling
)

var pprofAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the event router and the scheduled scans until interrupted",
	RunE: func(ccmd *cobra.Command, args []string) error {
		// 1. Pprof Server (for performance profiling)
		if pprofAddr != "" {
			go func() {
				slog.Info("🕵️ Pprof server started", slog.String("addr", pprofAddr))
				if err := http.ListenAndServe(pprofAddr, nil); err != nil {
					slog.Error("Pprof server failed", slog.Any("error", err))
				}
			}()
		}

		// 2. System Bootstrapping
		bootstrap := app.NewBootstrap()
		if err := bootstrap.Initialize(configPath); err != nil {
			slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
			return err
		}
		defer bootstrap.Close()

		// 3. Graceful Shutdown Context
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bootstrap.Run(ctx)

		slog.Info("👋 Shutting down gracefully...")
		return nil
	},
}

func init() {
	// Localhost only for security
	runCmd.Flags().StringVar(&pprofAddr, "pprof", "", "pprof listen address, e.g. localhost:6060 (disabled when empty)")
}
