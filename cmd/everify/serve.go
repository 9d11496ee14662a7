package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/infodancer/everify/internal/cache"
	"github.com/infodancer/everify/internal/config"
	"github.com/infodancer/everify/internal/domainlist"
	"github.com/infodancer/everify/internal/httpapi"
	"github.com/infodancer/everify/internal/logging"
	"github.com/infodancer/everify/internal/metrics"
	"github.com/infodancer/everify/internal/mx"
	"github.com/infodancer/everify/internal/probe"
	"github.com/infodancer/everify/internal/refresh"
	"github.com/infodancer/everify/internal/store"
	"github.com/infodancer/everify/internal/verifier"
)

func runServe() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
		metricsServer := metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	lists, err := loadLists(cfg.Lists, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading domain lists: %v\n", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable at startup, continuing", "addr", cfg.Cache.RedisAddr, "error", err)
	}

	resolver := mx.New(cfg.DNS.Server, cfg.DNS.DNSTimeout())
	runner := probe.NewRunner(cfg.SMTP.SMTPTimeout(), cfg.HeloName, cfg.MailFrom, logger, collector)
	v := verifier.New(resolver, runner, lists, cfg.SMTP.Ports, logger, collector)

	registry := store.New(rdb, logger)
	results := cache.New(rdb, cfg.Cache.CacheTTL(), v, registry, logger, collector)

	if cfg.Refresh.Enabled {
		refresher := refresh.New(results, registry, cfg.Refresh.RefreshInterval(), logger)
		go refresher.Run(ctx)
	}

	logger.Info("starting everify",
		"hostname", cfg.Hostname,
		"http", cfg.HTTP.Address,
		"ports", cfg.SMTP.Ports)

	if cfg.HTTP.Enabled {
		api := httpapi.New(cfg.HTTP.Address, results, registry, cfg.HTTP.BatchWorkers, logger, collector)
		if err := api.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "http server error: %v\n", err)
			os.Exit(1)
		}
	}

	<-ctx.Done()
}

// loadLists builds the domain classifier from inline config entries and
// optional list files.
func loadLists(cfg config.ListsConfig, logger *slog.Logger) (*domainlist.Classifier, error) {
	load := func(inline []string, path string) (*domainlist.Set, error) {
		domains := inline
		if path != "" {
			fromFile, err := domainlist.LoadFile(path)
			if err != nil {
				return nil, err
			}
			domains = append(domains, fromFile...)
		}
		return domainlist.NewSet(domains), nil
	}

	whitelist, err := load(cfg.Whitelist, cfg.WhitelistFile)
	if err != nil {
		return nil, err
	}
	disposable, err := load(cfg.Disposable, cfg.DisposableFile)
	if err != nil {
		return nil, err
	}
	blacklist, err := load(cfg.Blacklist, cfg.BlacklistFile)
	if err != nil {
		return nil, err
	}

	logger.Info("domain lists loaded",
		"whitelist", whitelist.Len(),
		"disposable", disposable.Len(),
		"blacklist", blacklist.Len())
	return domainlist.NewClassifier(whitelist, disposable, blacklist), nil
}
