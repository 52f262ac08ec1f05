package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vietddude/stylelog"

	"github.com/permitpath/engine/internal/baseline"
	"github.com/permitpath/engine/internal/core/config"
	"github.com/permitpath/engine/internal/infra/storage/postgres"
	"github.com/permitpath/engine/internal/resilience/pool"
)

// One-shot manual baseline recompute, for operators who do not want to
// wait for the next scheduled refresh.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	_ = godotenv.Load()
	stylelog.InitDefault()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	connPool := pool.New(db.DB, cfg.Pool, nil)
	refresher := baseline.NewRefresher(
		postgres.NewEventRepo(db, connPool),
		postgres.NewBaselineRepo(db, connPool),
		nil,
		cfg.Baseline.Refresher,
		nil,
	)

	if err := refresher.RefreshOnce(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Baseline refresh complete")
}
