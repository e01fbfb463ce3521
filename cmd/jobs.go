package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brightpath-edu/ms-go-billing/app/service"
	"github.com/brightpath-edu/ms-go-billing/config"
)

var (
	workerMode bool
)

var trialsCmd = &cobra.Command{
	Use:   "trials",
	Short: "Run trial-payment related commands",
}

var trialsReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Convert expired trial payments into real charges",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"trials_reconcile",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.TrialReconcileInterval },
			func(s *service.BillingService, ctx context.Context) error {
				result, err := s.ReconcileTrials(ctx, time.Now().UTC())
				if err != nil {
					return err
				}
				logrus.WithFields(logrus.Fields{
					"total":        result.Total,
					"succeeded":    result.Succeeded,
					"failed":       result.Failed,
					"skipped":      result.Skipped,
					"ledger_drift": result.LedgerDrift,
				}).Info("trial_reconciliation_summary")
				return nil
			},
		)
	},
}

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "Run gateway customer related commands",
}

var customersSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ensure every guardian has a valid gateway customer id",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"customers_sync",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.CustomerSyncInterval },
			func(s *service.BillingService, ctx context.Context) error {
				result, err := s.SyncCustomers(ctx, nil)
				if err != nil {
					return err
				}
				logrus.WithFields(logrus.Fields{
					"total":     result.Total,
					"valid":     result.Valid,
					"invalid":   result.Invalid,
					"recreated": result.Recreated,
					"failed":    result.Failed,
				}).Info("customer_sync_summary")
				return nil
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(trialsCmd)
	rootCmd.AddCommand(customersCmd)
	trialsCmd.AddCommand(trialsReconcileCmd)
	customersCmd.AddCommand(customersSyncCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.BillingService, ctx context.Context) error,
) {
	cfg, billingService, cleanup := mustCreateBillingService()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), billingService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(billingService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	billingService *service.BillingService,
	fn func(s *service.BillingService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(billingService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(billingService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
