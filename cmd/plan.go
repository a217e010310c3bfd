package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oilroute/dispatch/app"
	"github.com/oilroute/dispatch/config"
	"github.com/oilroute/dispatch/core/scheduler"
	"github.com/oilroute/dispatch/infra/logger"
	"github.com/oilroute/dispatch/pkg/export"
)

var (
	planOrdersPath string
	planFormat     string
	planOutput     string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Schedule an order book and export the resulting timeline",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOrdersPath, "orders", "o", "", "order book file (json or yaml)")
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "json", "output format: json or csv")
	planCmd.Flags().StringVar(&planOutput, "out", "", "output file (default stdout)")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// One-shot planning needs no broker connection.
	cfg.MQTTEnabled = false
	cfg.OrdersPath = ""

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	logg := logger.New("plan-command")
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	ordersPath := planOrdersPath
	if ordersPath == "" {
		return fmt.Errorf("--orders is required")
	}
	orders, err := scheduler.LoadOrders(ordersPath)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}

	now := time.Now()
	res, err := svc.Scheduler.Run(ctx, orders, now)
	if err != nil {
		return err
	}
	logg.Infof("%d dispatch orders placed, %d conflicts, %d cycles",
		len(res.Placed), len(res.Conflicts), res.Cycles)

	out := os.Stdout
	if planOutput != "" {
		f, err := os.Create(planOutput)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	entries := svc.Queue.Gantt(now)
	switch planFormat {
	case "json":
		return export.WriteJSON(out, entries)
	case "csv":
		return export.WriteCSV(out, entries)
	default:
		return fmt.Errorf("unsupported format: %s", planFormat)
	}
}
