package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bondora_go/internal/app"
	"bondora_go/internal/domain"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single portfolio scan and exit",
}

var scanSellCmd = &cobra.Command{
	Use:   "sell",
	Short: "List matching investments on the secondary market once",
	RunE: func(ccmd *cobra.Command, args []string) error {
		return runScan(func(ctx context.Context, b *app.Bootstrap) domain.OrderResult {
			return b.Scanner.RunSellScan(ctx)
		})
	},
}

var scanCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Withdraw the account's matching secondary market offers once",
	RunE: func(ccmd *cobra.Command, args []string) error {
		return runScan(func(ctx context.Context, b *app.Bootstrap) domain.OrderResult {
			return b.Scanner.RunCancelScan(ctx)
		})
	},
}

func init() {
	scanCmd.AddCommand(scanSellCmd)
	scanCmd.AddCommand(scanCancelCmd)
}

func runScan(scan func(context.Context, *app.Bootstrap) domain.OrderResult) error {
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		return err
	}
	defer bootstrap.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := scan(ctx, bootstrap)
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if res.Outcome == domain.OutcomeFailed || res.Outcome == domain.OutcomeRejected {
		return fmt.Errorf("scan finished with outcome %s", res.Outcome)
	}
	return nil
}
