package commands

import (
	"context"
	"fmt"

	"clubprogress/internal/aggregate"
	"clubprogress/internal/auth"
	"clubprogress/internal/basecamp"
	"clubprogress/internal/components/chrono"
	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/config"
	"clubprogress/internal/fetch"
	"clubprogress/internal/history"
	"clubprogress/internal/pathways"
	"clubprogress/internal/pipeline"
	"clubprogress/internal/report"
	"clubprogress/internal/session"
	"clubprogress/internal/storage"
	"clubprogress/lib/restyutil"
)

// newPipeline wires the production dependencies of a collection run. The returned
// function releases the history database.
func newPipeline(ctx context.Context, cfg config.Config, installBrowser bool, tel telemetry.API) (pipeline.Pipeline, func(), error) {
	clock := chrono.NewStandardTime()

	endpoints, err := basecamp.NewEndpoints(cfg.Endpoints)
	if err != nil {
		return pipeline.Pipeline{}, nil, err
	}
	authOptions, err := auth.OptionsFromConfig(cfg)
	if err != nil {
		return pipeline.Pipeline{}, nil, err
	}
	if cfg.Fetch.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(cfg.Fetch.DumpDir)
		if err != nil {
			return pipeline.Pipeline{}, nil, fmt.Errorf("http dump dir: %w", err)
		}
		authOptions.Client.Dump = output
	}
	renderers, err := report.Renderers(cfg.ReportTypes, clock)
	if err != nil {
		return pipeline.Pipeline{}, nil, err
	}

	sessions := session.NewStore(cfg.SessionFile(), tel)
	browser := auth.PlaywrightBrowser{
		Headless: cfg.Auth.Headless == nil || *cfg.Auth.Headless,
		Install:  installBrowser,
	}
	authenticator := auth.NewAuthenticator(browser, endpoints, sessions, authOptions, clock, tel)

	newFetcher := func(rec *session.Record) (pipeline.Fetcher, error) {
		client, err := basecamp.NewClient(basecamp.OptionsFromSession(rec, authOptions.Client), tel)
		if err != nil {
			return nil, err
		}
		return fetch.NewOrchestrator(client, endpoints, cfg.Fetch.MaxConcurrency, tel), nil
	}

	deps := pipeline.Deps{
		Config:        cfg,
		Sessions:      sessions,
		Authenticator: authenticator,
		NewFetcher:    newFetcher,
		Aggregator:    aggregate.NewAggregator(pathways.Load(cfg.PathwaysDir, tel), clock, tel),
		Files:         storage.NewFileStore(tel),
		Renderers:     renderers,
		Mailer:        report.NewMailer(cfg.Mail),
		Time:          clock,
	}

	closeHistory := func() {}
	err = storage.NewFileStore(tel).EnsureDirs(cfg.DataDir)
	if err == nil {
		store, closeFn, openErr := history.Open(ctx, cfg.HistoryFile())
		err = openErr
		if err == nil {
			deps.History = store
			closeHistory = func() { closeFn() }
		}
	}
	if err != nil {
		tel.ReportWarning("collect.history", fmt.Errorf("progress history disabled: %w", err))
	}

	return pipeline.NewPipeline(deps, tel), closeHistory, nil
}
