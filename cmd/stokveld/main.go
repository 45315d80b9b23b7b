package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stokvel/config"
	"stokvel/core"
	"stokvel/native/yield"
	"stokvel/observability/logging"
	"stokvel/rpc"
	"stokvel/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("STOKVEL_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logOpts := []logging.Option{}
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logging.WithFile(cfg.LogFile))
	}
	logger := logging.Setup("stokveld", env, logOpts...)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	var router yield.Router = yield.NoopRouter{}
	if url := strings.TrimSpace(cfg.YieldServiceURL); url != "" {
		router = yield.NewHTTPRouter(url, time.Duration(cfg.YieldClaimTimeout)*time.Second)
		logger.Info("yield claims forwarded", "endpoint", url)
	}

	node := core.NewNode(db, router, cfg.Pauses(), core.WithLogger(logger))

	server := rpc.NewServer(node)
	server.SetRateLimit(cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	logger.Info("starting JSON-RPC server",
		"address", cfg.RPCAddress,
		"network", cfg.NetworkName,
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "error", err)
		os.Exit(1)
	}
}
