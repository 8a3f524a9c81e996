// Package pipeline runs one collection: session, fetch, aggregation, persistence and
// reports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clubprogress/internal/aggregate"
	"clubprogress/internal/auth"
	"clubprogress/internal/basecamp"
	"clubprogress/internal/components/assert"
	"clubprogress/internal/components/chrono"
	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/config"
	"clubprogress/internal/fetch"
	"clubprogress/internal/model"
	"clubprogress/internal/report"
	"clubprogress/internal/session"
	"clubprogress/internal/storage"

	"go.opentelemetry.io/otel"
)

const (
	report_pipeline_session  = "pipeline.session"
	report_pipeline_persist  = "pipeline.persist"
	report_pipeline_history  = "pipeline.history"
	report_pipeline_report   = "pipeline.report"
	report_pipeline_mail     = "pipeline.mail"
	report_pipeline_duration = "pipeline.duration-ms"
)

const (
	MemberSummaryFile = "member_summary_data.json"
	ClubSummaryFile   = "club_summary_data.json"
)

var tracer = otel.Tracer("clubprogress/pipeline")

type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (*session.Record, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, clubId string) (fetch.Dataset, fetch.DetailResult, error)
}

// FetcherFactory builds a fetcher that makes requests as the owner of rec.
type FetcherFactory func(rec *session.Record) (Fetcher, error)

type History interface {
	Push(ctx context.Context, at time.Time, club *model.Club) (string, error)
}

type Mailer interface {
	Enabled() bool
	Send(clubName string, html []byte, attachmentPath string) error
}

// Deps are the collaborators of a Pipeline, History and Mailer may be nil.
type Deps struct {
	Config        config.Config
	Sessions      session.Store
	Authenticator Authenticator
	NewFetcher    FetcherFactory
	Aggregator    aggregate.Aggregator
	Files         storage.FileStore
	History       History
	Renderers     []report.Renderer
	Mailer        Mailer
	Time          chrono.TimeAPI
}

type Pipeline struct {
	deps Deps
	tel  telemetry.API
}

func NewPipeline(deps Deps, tel telemetry.API) Pipeline {
	assert.NotNil(deps.Authenticator)
	assert.NotNil(deps.NewFetcher)
	assert.NotNil(deps.Time)
	return Pipeline{
		deps: deps,
		tel:  telemetry.NewScopedAPI("pipeline", tel),
	}
}

type Options struct {
	// Reauth skips the stored session.
	Reauth bool
	// NoReport skips rendering and mailing reports.
	NoReport bool
}

type Result struct {
	Club    *model.Club
	Details fetch.DetailResult
	// RunId is empty when no history store is configured or recording failed.
	RunId   string
	Reports []string
	Elapsed time.Duration
}

// Run performs a full collection. Failing to authenticate, to fetch the primary
// endpoints or to save the summaries is fatal, everything after is best effort.
func (p Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	// elapsed time only depends on the difference, chrono is not needed
	start := time.Now()
	cfg := p.deps.Config

	err := p.deps.Files.EnsureDirs(cfg.AuthDir(), cfg.EndpointDataDir(), cfg.SummaryDir(), cfg.ReportsDir())
	if err != nil {
		return Result{}, err
	}

	rec, err := p.session(ctx, opts.Reauth)
	if err != nil {
		return Result{}, err
	}

	fetcher, err := p.deps.NewFetcher(rec)
	if err != nil {
		return Result{}, fmt.Errorf("create fetcher: %w", err)
	}
	dataset, details, err := fetcher.Fetch(ctx, rec.ClubId)
	if err != nil {
		return Result{}, err
	}

	info := aggregate.ClubInfo{
		ClubId:     rec.ClubId,
		ClubName:   cfg.ClubName,
		Enrollment: rec.MemberEnrollmentStatus,
	}
	if rec.DashboardClubId != nil {
		info.DashboardClubId = *rec.DashboardClubId
	}
	club := p.deps.Aggregator.Build(dataset, info)

	if cfg.SaveEndpointData == nil || *cfg.SaveEndpointData {
		p.saveEndpointData(dataset)
	} else {
		p.tel.ReportDebug("skipping raw endpoint data")
	}
	err = p.saveSummaries(club)
	if err != nil {
		return Result{}, err
	}

	result := Result{Club: club, Details: details}
	if p.deps.History != nil {
		runId, err := p.deps.History.Push(ctx, club.Statistics.SummaryGeneratedAt, club)
		if err != nil {
			p.tel.ReportWarning(report_pipeline_history, err)
		} else {
			result.RunId = runId
		}
	}

	if !opts.NoReport {
		result.Reports = p.renderReports(club)
	}

	result.Elapsed = time.Since(start)
	p.tel.ReportCount(report_pipeline_duration, result.Elapsed.Milliseconds())
	p.tel.ReportInfo(
		"collection completed",
		telemetry.KV{Key: "members", Value: len(club.Members)},
		telemetry.KV{Key: "details", Value: fmt.Sprintf("%d/%d", len(details.Entries), details.Total)},
		telemetry.KV{Key: "elapsed", Value: result.Elapsed.Round(time.Millisecond).String()},
	)
	return result, nil
}

// session returns the stored session when it is valid and complete, otherwise it
// logs in again.
func (p Pipeline) session(ctx context.Context, reauth bool) (*session.Record, error) {
	if !reauth {
		rec, ok := p.deps.Sessions.LoadValid(p.deps.Time.Now())
		if ok && rec.Usable() {
			p.tel.ReportInfo("using stored session", telemetry.KV{Key: "expires", Value: rec.Expires.Time})
			return rec, nil
		}
		if ok {
			p.tel.ReportWarning(report_pipeline_session, "stored session lacks user or club id")
		}
	}

	cfg := p.deps.Config
	err := cfg.ValidateCredentials()
	if err != nil {
		return nil, fmt.Errorf("cannot authenticate: %w", err)
	}
	p.tel.ReportInfo("authenticating")
	return p.deps.Authenticator.Authenticate(ctx, auth.Credentials{
		Email:    cfg.Email,
		Password: cfg.Password,
		ClubName: cfg.ClubName,
	})
}

func (p Pipeline) saveEndpointData(dataset fetch.Dataset) {
	dir := p.deps.Config.EndpointDataDir()
	save := func(name string, v any) {
		_, err := p.deps.Files.SaveJSON(dir, name+"_data.json", v)
		if err != nil {
			p.tel.ReportWarning(report_pipeline_persist, name, err)
		}
	}

	for _, name := range []string{basecamp.EndpointOverview, basecamp.EndpointProgress} {
		pages := dataset.Pages[name]
		if pages == nil {
			pages = []basecamp.Page{}
		}
		save(name, pages)
	}
	details := dataset.Details
	if details == nil {
		details = []fetch.DetailEntry{}
	}
	save(basecamp.EndpointProgressDetail, details)
}

func (p Pipeline) saveSummaries(club *model.Club) error {
	dir := p.deps.Config.SummaryDir()
	_, err := p.deps.Files.SaveJSON(dir, MemberSummaryFile, club.Members)
	if err != nil {
		p.tel.ReportBroken(report_pipeline_persist, MemberSummaryFile, err)
		return err
	}
	_, err = p.deps.Files.SaveJSON(dir, ClubSummaryFile, map[string]*model.Club{club.ClubId: club})
	if err != nil {
		p.tel.ReportBroken(report_pipeline_persist, ClubSummaryFile, err)
		return err
	}
	return nil
}

func (p Pipeline) renderReports(club *model.Club) []string {
	dir := p.deps.Config.ReportsDir()

	var paths []string
	var html []byte
	var htmlPath string
	for _, renderer := range p.deps.Renderers {
		contents, err := renderer.Render(club)
		if err != nil {
			p.tel.ReportWarning(report_pipeline_report, renderer.Type(), err)
			continue
		}
		path, err := p.deps.Files.SaveText(
			dir,
			report.FileName(club.ClubName, renderer.Extension()),
			renderer.Extension(),
			string(contents),
		)
		if err != nil {
			p.tel.ReportWarning(report_pipeline_report, renderer.Type(), err)
			continue
		}
		paths = append(paths, path)
		if renderer.Type() == report.TypeHTML {
			html = contents
			htmlPath = path
		}
	}
	p.tel.ReportInfo("reports generated", telemetry.KV{Key: "count", Value: len(paths)})

	if p.deps.Mailer == nil || !p.deps.Mailer.Enabled() {
		return paths
	}
	if html == nil {
		p.tel.ReportWarning(report_pipeline_mail, errors.New("mail is configured but no html report was rendered"))
		return paths
	}
	err := p.deps.Mailer.Send(club.ClubName, html, htmlPath)
	if err != nil {
		p.tel.ReportWarning(report_pipeline_mail, err)
	} else {
		p.tel.ReportInfo("report mailed")
	}
	return paths
}
