package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"bbsgate/internal/config"
	"bbsgate/internal/logger"
	"bbsgate/internal/network/telnet"
	"bbsgate/internal/nodes"
	"bbsgate/internal/store"
)

var Version = "0.1.000"

var (
	Config *config.Config
	Store  *store.Store
	Logger *slog.Logger
	Nodes  *nodes.Manager

	// Registry and TelnetMetrics outlive config reloads; collectors can only
	// be registered once.
	Registry      *prometheus.Registry
	TelnetMetrics *telnet.Metrics
)

func Boot(configPath string, quiet bool) error {
	if configPath == "" {
		configPath = "config.yml"
	}

	newConfig, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Prepare the data store before anything is swapped, so a bad reload
	// leaves the running configuration alone.
	dir := newConfig.Paths.Data
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data path: %w", err)
	}

	path := filepath.Clean(filepath.Join(dir, "data.sqlite3"))
	newStore := Store
	if newStore == nil || newStore.Path != path {
		newStore, err = store.New(path, quiet)
		if err != nil {
			return fmt.Errorf("failed to connect to the database: %w", err)
		}
	}

	Config = newConfig
	Logger = logger.Setup(Config.Loggers, quiet)

	// Callers still online keep writing to the store they started with, so
	// it is only closed when the data path has moved.
	if Store != nil && Store != newStore {
		if err := Store.Close(); err != nil {
			Logger.Error("Failed to close existing store", "err", err)
		}
	}
	Store = newStore

	// Nodes survive reloads; a changed maxNodes takes effect on restart.
	if Nodes == nil {
		Nodes = nodes.NewManager(Config.MaxNodes)
	}

	if Registry == nil {
		Registry = prometheus.NewRegistry()
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		TelnetMetrics = telnet.NewMetrics(Registry)
	}

	if !quiet {
		Logger.Info("Successfully loaded configuration", "file", configPath)
	}

	return nil
}
