package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/soumitsalman/insightsack/logger"
	"github.com/soumitsalman/insightsack/sdk"
	"github.com/soumitsalman/insightsack/store"
)

const _VERSION = "insightsack v0.3.0"

var (
	cfgFile string
	config  *Config
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "insightsack",
	Short: "Insightsack - read-only analytics API over a curated insight dataset",
	Long: `Insightsack serves filtered records and aggregate views (stats, sector,
topic, PESTLE, SWOT, intensity, region and year breakdowns) of an insight
dataset stored in MongoDB or held in memory.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// serve and ingest share keys, so only the running command's flags are bound
		for key, flag := range map[string]string{"server.port": "port", "data.source": "data"} {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}
		cfg, err := loadConfig(v, cfgFile)
		if err != nil {
			return err
		}
		if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		config = cfg
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the dashboard API. The dataset is loaded in the background so the
server answers health checks while a large file is still being ingested.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), config)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Replace the stored records with the configured dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := openRepository(ctx, config.DB)
		if err != nil {
			return err
		}
		dashboard, err := sdk.NewDashboard(repo, sdk.WithCache(0, 0))
		if err != nil {
			return err
		}
		defer dashboard.Close(context.Background())

		count, err := dashboard.Reload(ctx, config.Data.Source, false)
		if err != nil {
			return err
		}
		fmt.Printf("%d records ingested from %s\n", count, config.Data.Source)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect insightsack configuration",
	Long: `Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (INSIGHTSACK_*, PORT, MONGODB_URI, DATA_SOURCE, CORS_ORIGIN)
3. Config file (--config)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if used := v.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", used)
		}
		yamlData, err := yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Println(string(yamlData))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(_VERSION)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")

	serveCmd.Flags().Int("port", 0, "listen port (default 5000)")
	serveCmd.Flags().String("data", "", "dataset file path or http(s) url")
	ingestCmd.Flags().String("data", "", "dataset file path or http(s) url")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(serveCmd, ingestCmd, configCmd, versionCmd)
}

func execute() error {
	return rootCmd.Execute()
}

// openRepository picks the record store: mongo when a uri is configured,
// in-memory otherwise.
func openRepository(ctx context.Context, cfg DBConfig) (sdk.Repository, error) {
	log := logger.Component("main")
	if cfg.URI == "" {
		log.Info("no database configured, records are held in memory")
		return sdk.NewMemoryRepository(), nil
	}
	repo, err := sdk.NewMongoRepository(ctx, cfg.URI, cfg.Database, cfg.Collection, store.WithConnectRetry[sdk.Record](5, 2*time.Second))
	if err != nil {
		return nil, err
	}
	log.WithField("collection", cfg.Database+"."+cfg.Collection).Info("connected to mongodb")
	return repo, nil
}

func runServer(ctx context.Context, cfg *Config) error {
	log := logger.Component("main")
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg.DB)
	if err != nil {
		return err
	}
	dashboard, err := sdk.NewDashboard(repo, sdk.WithCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval))
	if err != nil {
		return err
	}
	defer dashboard.Close(context.Background())

	// a failed load leaves the server up with whatever the store already holds
	go func() {
		if _, err := dashboard.Reload(ctx, cfg.Data.Source, !cfg.Data.ReloadOnStart); err != nil {
			log.WithError(err).WithField("source", cfg.Data.Source).Error("dataset load failed")
		}
	}()

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: newServer(dashboard, cfg),
	}
	serve_err := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", srv.Addr)
		serve_err <- srv.ListenAndServe()
	}()

	select {
	case err := <-serve_err:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdown_ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdown_ctx)
}
