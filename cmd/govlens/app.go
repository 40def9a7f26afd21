package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/govlens/govlens/chaininfo"
	"github.com/govlens/govlens/config"
	"github.com/govlens/govlens/proposal"
	"github.com/govlens/govlens/proposal/platforms"
	"github.com/govlens/govlens/server"
)

const (
	Version = "0.1.0"
	appName = "govlens"
)

// rootOptions holds global flags shared by all subcommands.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Aggregate DeFi governance proposals into one feed",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default: layered lookup)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newFetchCommand(opts))

	return root
}

// newLogger builds the process logger from the global flags.
func newLogger(opts *rootOptions) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(opts.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(opts.logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	return slog.New(handler)
}

// loadConfig loads layered config, or the explicit file when --config
// is set.
func loadConfig(opts *rootOptions, logger *slog.Logger) (*config.Config, error) {
	loader := config.NewLoader(logger)
	if opts.configPath != "" {
		return loader.LoadFrom(opts.configPath)
	}
	return loader.Load()
}

// buildEngine wires the resolver, adapters, and aggregator from config.
// The returned close func releases resolver resources.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *proposal.Metrics) (*proposal.Aggregator, func(), error) {
	var resolver proposal.Resolver
	closeFn := func() {}

	switch cfg.Resolver.Mode {
	case config.ResolverModeRPC:
		rpc, err := chaininfo.NewRPCResolver(ctx, cfg.Resolver.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("create rpc resolver: %w", err)
		}
		resolver = rpc
		closeFn = rpc.Close
	default:
		resolver = chaininfo.NewHTTPResolver(cfg.Resolver.URL, chaininfo.WithLogger(logger))
	}

	client := proposal.NewClient(
		proposal.WithLogger(logger),
		proposal.WithRetryConfig(proposal.RetryConfig{
			MaxAttempts:       cfg.Fetch.RetryAttempts,
			BackoffBase:       cfg.Fetch.RetryBackoff,
			BackoffMultiplier: 2.0,
			MaxBackoff:        5 * time.Second,
		}),
	)

	// Fixed platform order; this is also the output concatenation order.
	adapters := []proposal.Adapter{
		platforms.NewAave(client, cfg.Platforms.Aave.SubgraphURL),
		platforms.NewCompound(client, cfg.Platforms.Compound.APIURL),
		platforms.NewUniswap(client, cfg.Platforms.Uniswap.SubgraphURL, cfg.Platforms.Uniswap.TitleURL),
		platforms.NewMaker(client, cfg.Platforms.Maker.ExecutiveURL, cfg.Platforms.Maker.PollsURL),
	}

	aggregatorOpts := []proposal.AggregatorOption{
		proposal.WithTimeout(cfg.Fetch.Timeout),
		proposal.WithAggregatorLogger(logger),
	}
	if metrics != nil {
		aggregatorOpts = append(aggregatorOpts, proposal.WithMetrics(metrics))
	}

	return proposal.NewAggregator(resolver, adapters, aggregatorOpts...), closeFn, nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the proposals HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(opts)
			slog.SetDefault(logger)

			cfg, err := loadConfig(opts, logger)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := proposal.NewMetrics(registry)

			aggregator, closeEngine, err := buildEngine(ctx, cfg, logger, metrics)
			if err != nil {
				return err
			}
			defer closeEngine()

			mux := http.NewServeMux()
			server.New(aggregator, server.WithLogger(logger)).RegisterHTTPHandlers("/api", mux)
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

			httpServer := &http.Server{
				Addr:              cfg.Server.Listen,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Listening", "addr", cfg.Server.Listen, "version", Version)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

func newFetchCommand(opts *rootOptions) *cobra.Command {
	var (
		block         uint64
		platformNames []string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one aggregation and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(opts)
			slog.SetDefault(logger)

			cfg, err := loadConfig(opts, logger)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			aggregator, closeEngine, err := buildEngine(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer closeEngine()

			var cutoff *uint64
			if cmd.Flags().Changed("block") {
				cutoff = &block
			}

			result, err := aggregator.Aggregate(ctx, cutoff, platformNames)
			if err != nil {
				return err
			}
			if len(result.Failed) > 0 {
				logger.Warn("Some platforms failed", "platforms", strings.Join(result.Failed, ", "))
			}

			out, err := json.MarshalIndent(result.Proposals, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if len(result.Failed) == len(platformNames) && len(result.Failed) > 0 {
				return errors.New("all requested platforms failed")
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&block, "block", 0, "explicit cutoff block height (default: current height)")
	cmd.Flags().StringArrayVar(&platformNames, "platform", nil, "platform filter, repeatable (aave, compound, uniswap, maker)")

	return cmd
}
