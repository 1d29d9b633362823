package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/batch"
	"github.com/openjustice/courtwatch/internal/reconcile"
	"github.com/openjustice/courtwatch/internal/scraper"
	"github.com/openjustice/courtwatch/internal/store"
	"github.com/openjustice/courtwatch/internal/tasks"
)

func openStore(ctx context.Context) (*store.PostgresStore, error) {
	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "cmd: open store")
	}
	return st, nil
}

func dialTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, eris.Wrap(err, "cmd: dial temporal")
	}
	return c, nil
}

func newRunner() *scraper.Runner {
	fetch := scraper.NewHTTPFetcher(time.Duration(cfg.Scrape.TimeoutSecs) * time.Second)
	solver := scraper.NewHTTPSolver(cfg.Captcha.SolverURL, time.Duration(cfg.Captcha.TimeoutSecs)*time.Second)
	sleep := scraper.RandomDelay(cfg.Scrape.MinDelay(), cfg.Scrape.MaxDelay())
	return scraper.NewRunner(fetch, solver, sleep, zap.L())
}

func scrapeInputs() tasks.ScrapeInputs {
	return tasks.ScrapeInputs{
		Articles:      cfg.Scrape.Articles,
		SubTypes:      cfg.Scrape.SubTypes,
		EntryDateFrom: cfg.Scrape.EntryDateFrom,
	}
}

func newActivities(st *store.PostgresStore, queue *tasks.Queue) *tasks.Activities {
	return &tasks.Activities{
		Runner:    newRunner(),
		Recon:     reconcile.New(st, zap.L()),
		Orch:      batch.New(st, queue, cfg.Batch.PageSize, zap.L()),
		Inputs:    scrapeInputs(),
		Retention: cfg.Batch.Retention(),
		Log:       zap.L(),
	}
}
