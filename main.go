package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"devpulse/internal/aggregator"
	"devpulse/internal/config"
	"devpulse/internal/hook"
	"devpulse/internal/logger"
	"devpulse/internal/models"
	"devpulse/internal/sources"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clientOpts := func(baseURL string) sources.Options {
		return sources.Options{
			BaseURL:      baseURL,
			Timeout:      cfg.HTTP.Timeout,
			Retries:      cfg.HTTP.Retries,
			RetryWait:    cfg.HTTP.RetryWait,
			RetryMaxWait: cfg.HTTP.RetryMax,
			RatePerSec:   cfg.HTTP.RatePerSec,
			RateBurst:    cfg.HTTP.RateBurst,
			CacheTTL:     cfg.Cache.TTL,
			Logger:       log,
		}
	}

	coord := aggregator.New(aggregator.Options{
		CacheTTL:   cfg.Cache.TTL,
		FetchLimit: cfg.Fetch.DefaultLimit,
		Timeout:    cfg.Fetch.AggregateTimeout,
		Logger:     log,
	})
	defer coord.Close()

	coord.Register(sources.NewHackerNewsClient(clientOpts(cfg.Sources.HackerNews.BaseURL)), cfg.Sources.HackerNews.Enabled)
	coord.Register(sources.NewDevToClient(clientOpts(cfg.Sources.DevTo.BaseURL)), cfg.Sources.DevTo.Enabled)
	coord.Register(sources.NewGitHubClient(clientOpts(cfg.Sources.GitHub.BaseURL)), cfg.Sources.GitHub.Enabled)
	coord.Register(sources.NewLobstersClient(clientOpts(cfg.Sources.Lobsters.BaseURL)), cfg.Sources.Lobsters.Enabled)

	feed := hook.New(coord, log)
	defer feed.Close()

	log.Info("starting devpulse")

	feed.Refresh(ctx, &models.Filter{})
	printHeadlines(feed, log)

	feed.SetAutoRefresh(5 * time.Minute)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("devpulse stopped")
			return
		case <-ticker.C:
			printHeadlines(feed, log)
		}
	}
}

func printHeadlines(feed *hook.Feed, log *logrus.Entry) {
	items := feed.Items()
	max := 10
	if len(items) < max {
		max = len(items)
	}
	for _, item := range items[:max] {
		log.Infof("[%s] %s (%s)", item.Source, item.Title, item.URL)
	}
	for _, se := range feed.SourceErrors() {
		log.Warnf("source %s failing: %s", se.SourceID, se.Message)
	}
}
