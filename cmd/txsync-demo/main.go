// txsync-demo drives one full transaction lifecycle against a configured
// PostgreSQL pool (or a built-in in-memory factory), the way an external
// transaction manager would, and optionally exposes the resulting metrics.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/txsync/pkg/datasource"
	"github.com/dd0wney/txsync/pkg/logging"
	"github.com/dd0wney/txsync/pkg/memds"
	"github.com/dd0wney/txsync/pkg/metrics"
	"github.com/dd0wney/txsync/pkg/pgxds"
	"github.com/dd0wney/txsync/pkg/txsync"
	"github.com/dd0wney/txsync/pkg/validation"
)

// Config represents the demo configuration
type Config struct {
	LogLevel    string       `yaml:"log_level"`
	MetricsAddr string       `yaml:"metrics_addr"`
	Database    pgxds.Config `yaml:"database"`

	Transaction struct {
		Name      string        `yaml:"name"`
		ReadOnly  bool          `yaml:"read_only"`
		Isolation string        `yaml:"isolation"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"transaction"`
}

func main() {
	var (
		configFile = flag.String("config", "txsync-demo.yaml", "Demo configuration file")
		useFake    = flag.Bool("fake", false, "Use the in-memory factory instead of PostgreSQL")
	)
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	registry := metrics.NewRegistry()

	ctx := context.Background()
	var factory datasource.Factory
	if *useFake {
		factory = memds.New("demo")
		logger.Info("using in-memory factory")
	} else {
		pgFactory, err := pgxds.New(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pgFactory.Close()
		factory = pgFactory
		logger.Info("connected to database", logging.Factory(pgFactory.Name()))
	}

	isolation, err := txsync.ParseIsolation(cfg.Transaction.Isolation)
	if err != nil {
		log.Fatalf("Bad transaction config: %v", err)
	}
	def := &txsync.Definition{
		Name:      cfg.Transaction.Name,
		ReadOnly:  cfg.Transaction.ReadOnly,
		Isolation: isolation,
		Timeout:   cfg.Transaction.Timeout,
	}
	if err := validation.ValidateDefinition(def); err != nil {
		log.Fatalf("Bad transaction definition: %v", err)
	}

	if err := runTransaction(ctx, logger, registry, factory, def); err != nil {
		logger.Error("transaction failed", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("transaction completed")

	if cfg.MetricsAddr != "" {
		logger.Info("serving metrics", logging.String("addr", cfg.MetricsAddr))
		http.Handle("/metrics", promhttp.HandlerFor(registry.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
			log.Fatalf("Metrics server failed: %v", err)
		}
	}
}

// runTransaction plays the external transaction manager for one
// transaction
func runTransaction(ctx context.Context, logger logging.Logger, registry *metrics.Registry, factory datasource.Factory, def *txsync.Definition) error {
	scope := txsync.NewScope(logger)
	scope.SetMetrics(registry)
	scope.ApplyDefinition(def)
	scope.SetTransactionActive(true)
	if err := scope.InitSynchronization(); err != nil {
		return err
	}
	ctx = txsync.WithScope(ctx, scope)

	conn, err := datasource.Acquire(ctx, factory)
	if err != nil {
		return err
	}

	prev, err := datasource.Prepare(ctx, conn, def)
	if err != nil {
		datasource.Release(ctx, conn, factory)
		scope.TriggerAfterCompletion(txsync.StatusUnknown)
		return err
	}

	if def.Timeout > 0 {
		if holder, ok := scope.Resource(factory).(*datasource.ConnHolder); ok {
			holder.SetTimeout(def.Timeout)
		}
	}

	// A second checkout sees the same transactional connection
	again, err := datasource.Acquire(ctx, factory)
	if err != nil {
		return err
	}
	logger.Info("shared transactional connection", logging.Bool("same", again == conn))
	if err := datasource.Release(ctx, again, factory); err != nil {
		return err
	}

	if err := scope.TriggerBeforeCommit(def.ReadOnly); err != nil {
		scope.TriggerBeforeCompletion()
		scope.TriggerAfterCompletion(txsync.StatusRolledBack)
		return err
	}
	scope.TriggerBeforeCompletion()

	datasource.Reset(ctx, conn, prev)
	if err := datasource.Release(ctx, conn, factory); err != nil {
		return err
	}

	if err := scope.TriggerAfterCommit(); err != nil {
		scope.TriggerAfterCompletion(txsync.StatusUnknown)
		return err
	}
	scope.TriggerAfterCompletion(txsync.StatusCommitted)
	return nil
}

// loadConfig reads the demo configuration file
func loadConfig(path string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Run with defaults when no config file is present
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
