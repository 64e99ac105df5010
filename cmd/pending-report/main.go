// Command pending-report prints the pending orders a sync would pick up,
// without calling the payment gateway.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"premium-order-sync/internal/config"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/repository"
	pg "premium-order-sync/internal/infra/db/postgres"
	"premium-order-sync/internal/infra/logging"
	"premium-order-sync/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	users, err := pg.NewPostgresUserRepo(pool).ListWithPendingOrders(ctx, repository.NoTX)
	if err != nil {
		logger.Fatal().Err(err).Msg("list pending users")
	}
	orders := usecase.LocatePendingOrders(users, cfg.Reconcile.ExcludeNamePatterns, time.Now())
	report := model.PendingReport{Orders: orders, Summary: usecase.SummarizePending(orders)}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal().Err(err).Msg("encode")
	}
	logger.Info().Int("total_pending", report.Summary.TotalPending).Int64("total_amount", report.Summary.TotalAmount).Msg("pending report done")
}
