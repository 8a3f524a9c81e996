// Package fetch runs the two concurrent fetch phases of a collection run and
// assembles their results into a Dataset.
package fetch

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"clubprogress/internal/basecamp"
	"clubprogress/internal/components/assert"
	"clubprogress/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

const (
	report_orchestrator_fetch_primary = "orchestrator.fetch-primary"
	report_orchestrator_fetch_details = "orchestrator.fetch-details"
	report_orchestrator_combinations  = "orchestrator.user-course-combinations"
)

var tracer = otel.Tracer("clubprogress/fetch")

// Client is the part of basecamp.Client the orchestrator needs.
type Client interface {
	Get(ctx context.Context, url string) (json.RawMessage, int, bool)
	GetPage(ctx context.Context, url string) (basecamp.Page, int, bool)
	Paginate(ctx context.Context, first basecamp.Page, collect func(basecamp.Page)) (int, bool)
}

type UserCourse struct {
	Username string `json:"username"`
	CourseId string `json:"course_id"`
}

// DetailEntry is the detail payload of one (username, course) pair.
type DetailEntry struct {
	Username string          `json:"username"`
	CourseId string          `json:"course_id"`
	Data     json.RawMessage `json:"data"`
}

// Dataset is everything fetched in one run, it is not modified after the detail
// phase joins.
type Dataset struct {
	// Pages holds the pages of each primary endpoint in page order.
	Pages   map[string][]basecamp.Page
	Details []DetailEntry
}

type DetailResult struct {
	// Entries holds the successful fetches in the order the pairs were given.
	Entries []DetailEntry
	// Failures holds a *DetailFetchError per failed pair.
	Failures []error
	// SessionExpired is set when any fetch was rejected with 401.
	SessionExpired bool
	Total          int
}

type Orchestrator struct {
	client    Client
	endpoints basecamp.Endpoints
	tel       telemetry.API
	// maxConcurrency bounds in-flight fetches, zero means unbounded.
	maxConcurrency int64
}

func NewOrchestrator(client Client, endpoints basecamp.Endpoints, maxConcurrency int64, tel telemetry.API) Orchestrator {
	assert.NotNil(client)
	return Orchestrator{
		client:         client,
		endpoints:      endpoints,
		tel:            telemetry.NewScopedAPI("fetch", tel),
		maxConcurrency: maxConcurrency,
	}
}

// limiter hands out slots to tasks, a nil semaphore never blocks.
type limiter struct {
	sem *semaphore.Weighted
}

func (o Orchestrator) newLimiter() limiter {
	if o.maxConcurrency <= 0 {
		return limiter{}
	}
	return limiter{sem: semaphore.NewWeighted(o.maxConcurrency)}
}

func (l limiter) acquire(ctx context.Context) error {
	if l.sem == nil {
		return nil
	}
	return l.sem.Acquire(ctx, 1)
}

func (l limiter) release() {
	if l.sem != nil {
		l.sem.Release(1)
	}
}

type primaryResult struct {
	pages   []basecamp.Page
	failure *EndpointFailure
}

func (o Orchestrator) fetchEndpoint(ctx context.Context, endpoint basecamp.Named) primaryResult {
	ctx, span := tracer.Start(ctx, "fetchEndpoint")
	defer span.End()
	span.SetAttributes(attribute.String("endpoint", endpoint.Name))

	first, status, ok := o.client.GetPage(ctx, endpoint.Url)
	if !ok {
		return primaryResult{failure: &EndpointFailure{
			Name:   endpoint.Name,
			Url:    endpoint.Url,
			Status: status,
		}}
	}

	pages := []basecamp.Page{first}
	count, complete := o.client.Paginate(ctx, first, func(p basecamp.Page) {
		pages = append(pages, p)
	})
	if !complete {
		return primaryResult{failure: &EndpointFailure{
			Name:  endpoint.Name,
			Url:   endpoint.Url,
			Pages: count,
		}}
	}
	o.tel.ReportDebug("endpoint fetched", endpoint.Name, count)
	return primaryResult{pages: pages}
}

// FetchPrimary fetches every endpoint with all of its pages concurrently. If any
// endpoint fails, on its first page or partway through pagination, the whole phase
// fails with a *FetchError.
func (o Orchestrator) FetchPrimary(ctx context.Context, endpoints []basecamp.Named) (map[string][]basecamp.Page, error) {
	ctx, span := tracer.Start(ctx, "FetchPrimary")
	defer span.End()

	results := make([]primaryResult, len(endpoints))
	lim := o.newLimiter()
	wg := sync.WaitGroup{}
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lim.acquire(ctx)
			if err != nil {
				results[i] = primaryResult{failure: &EndpointFailure{Name: endpoint.Name, Url: endpoint.Url}}
				return
			}
			defer lim.release()
			results[i] = o.fetchEndpoint(ctx, endpoint)
		}()
	}
	wg.Wait()

	out := make(map[string][]basecamp.Page, len(endpoints))
	var failures []EndpointFailure
	for i, res := range results {
		if res.failure != nil {
			failures = append(failures, *res.failure)
			continue
		}
		out[endpoints[i].Name] = res.pages
	}
	if len(failures) > 0 {
		err := &FetchError{Failures: failures}
		o.tel.ReportBroken(report_orchestrator_fetch_primary, err)
		return nil, err
	}
	return out, nil
}

// UserCourseCombinations lists every distinct (username, course) pair in the progress
// pages, sorted. Results missing either value are skipped.
func (o Orchestrator) UserCourseCombinations(progress []basecamp.Page) []UserCourse {
	results, skipped := basecamp.DecodeResults[basecamp.ProgressResult](progress)
	if skipped > 0 {
		o.tel.ReportWarning(report_orchestrator_combinations, fmt.Errorf("%d progress results could not be decoded", skipped))
	}

	seen := make(map[UserCourse]struct{}, len(results))
	var out []UserCourse
	for _, r := range results {
		pair := UserCourse{Username: r.User.Username, CourseId: r.CourseId.String()}
		if pair.Username == "" || pair.CourseId == "" {
			continue
		}
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		out = append(out, pair)
	}
	slices.SortFunc(out, func(a, b UserCourse) int {
		return cmp.Or(
			cmp.Compare(a.Username, b.Username),
			cmp.Compare(a.CourseId, b.CourseId),
		)
	})
	return out
}

type detailResult struct {
	entry DetailEntry
	err   error
}

func (o Orchestrator) fetchDetail(ctx context.Context, pair UserCourse) detailResult {
	url := o.endpoints.ProgressDetail(pair.CourseId, pair.Username)
	payload, status, ok := o.client.Get(ctx, url)
	if ok {
		return detailResult{entry: DetailEntry{
			Username: pair.Username,
			CourseId: pair.CourseId,
			Data:     payload,
		}}
	}

	var cause error
	switch {
	case status == http.StatusUnauthorized:
		cause = &SessionExpiredError{Pair: pair}
	case status == 0:
		cause = errors.New("request failed")
	default:
		cause = errors.New("unexpected status")
	}
	return detailResult{err: &DetailFetchError{
		Pair:   pair,
		Status: status,
		Err:    cause,
	}}
}

// FetchDetails fetches the detail payload of every pair concurrently. Failures are
// logged and left out, a 401 is flagged as an expired session but does not stop the
// other fetches. The only error returned is the cancellation of ctx.
func (o Orchestrator) FetchDetails(ctx context.Context, pairs []UserCourse) (DetailResult, error) {
	ctx, span := tracer.Start(ctx, "FetchDetails")
	defer span.End()

	results := make([]detailResult, len(pairs))
	lim := o.newLimiter()
	wg := sync.WaitGroup{}
	for i, pair := range pairs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lim.acquire(ctx)
			if err != nil {
				results[i] = detailResult{err: &DetailFetchError{Pair: pair, Err: err}}
				return
			}
			defer lim.release()
			results[i] = o.fetchDetail(ctx, pair)
		}()
	}
	wg.Wait()

	out := DetailResult{Total: len(pairs)}
	for _, res := range results {
		if res.err == nil {
			out.Entries = append(out.Entries, res.entry)
			continue
		}
		out.Failures = append(out.Failures, res.err)

		var expired *SessionExpiredError
		if errors.As(res.err, &expired) {
			out.SessionExpired = true
			o.tel.ReportWarning(
				report_orchestrator_fetch_details,
				res.err,
				"the session is no longer accepted, re-run with --reauth or delete the session file",
			)
			continue
		}
		o.tel.ReportWarning(report_orchestrator_fetch_details, res.err)
	}

	o.tel.ReportInfo(
		"detail fetches completed",
		telemetry.KV{Key: "succeeded", Value: len(out.Entries)},
		telemetry.KV{Key: "total", Value: out.Total},
	)
	o.tel.ReportCount(report_orchestrator_fetch_details, int64(len(out.Failures)))

	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, nil
}

// Fetch runs the primary phase for clubId followed by the detail phase over the
// progress pairs it found.
func (o Orchestrator) Fetch(ctx context.Context, clubId string) (Dataset, DetailResult, error) {
	pages, err := o.FetchPrimary(ctx, o.endpoints.Primary(clubId))
	if err != nil {
		return Dataset{}, DetailResult{}, err
	}
	pairs := o.UserCourseCombinations(pages[basecamp.EndpointProgress])
	o.tel.ReportInfo("fetching progress details", telemetry.KV{Key: "pairs", Value: len(pairs)})

	details, err := o.FetchDetails(ctx, pairs)
	if err != nil {
		return Dataset{}, details, err
	}
	return Dataset{Pages: pages, Details: details.Entries}, details, nil
}
