// Package basecamp is the HTTP client for the membership platform's JSON API.
package basecamp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/session"
	"clubprogress/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_get      = "client.get"
	report_client_paginate = "client.paginate"
)

// MaxPages is the most pages a single pagination walk will process, the first page
// included.
const MaxPages = 20

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	Cookies   []session.Cookie
	UserAgent string
	Referer   string
	// Timeout applies per request, zero means one minute.
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing requests, zero means unlimited.
	RequestsPerSecond float64
	// Dump receives a transcript of every response when set.
	Dump restyutil.Output
}

// OptionsFromSession fills the credential part of Options from a session record.
func OptionsFromSession(rec *session.Record, opts Options) Options {
	opts.Cookies = rec.Cookies
	opts.UserAgent = rec.UserAgent
	return opts
}

type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	tel = telemetry.NewScopedAPI("basecamp", tel)

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	cookies := make([]*http.Cookie, len(opts.Cookies))
	for i, c := range opts.Cookies {
		cookies[i] = &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		}
	}
	client.SetCookies(cookies)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeaders(map[string]string{
		"User-Agent":       userAgent,
		"Accept":           "application/json, text/plain, */*",
		"Accept-Language":  "en-US,en;q=0.9",
		"Connection":       "keep-alive",
		"X-Requested-With": "XMLHttpRequest",
	})
	if opts.Referer != "" {
		client.SetHeader("Referer", opts.Referer)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	client.SetTimeout(timeout)

	if opts.RequestsPerSecond > 0 {
		// burst >= 1 just means that no requests will be dropped
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, tel)
	restyutil.Dump(client, opts.Dump)

	return &Client{http: client, tel: tel}, nil
}

// Get fetches url and returns the decoded JSON body. Every failure is reported
// through ok instead of an error: a transport failure has status 0, a non-200 response
// keeps its status and a 200 with a body that is not JSON keeps 200.
func (c *Client) Get(ctx context.Context, url string) (payload json.RawMessage, status int, ok bool) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		c.tel.ReportWarning(report_client_get, fmt.Errorf("fetch: %w", err), url)
		return nil, 0, false
	}
	if res.StatusCode() != http.StatusOK {
		c.tel.ReportWarning(
			report_client_get,
			fmt.Errorf("unexpected status %d", res.StatusCode()),
			url,
		)
		return nil, res.StatusCode(), false
	}
	body := res.Body()
	if !json.Valid(body) {
		c.tel.ReportWarning(report_client_get, fmt.Errorf("response is not json"), url, len(body))
		return nil, res.StatusCode(), false
	}
	if emptyPayload(body) {
		c.tel.ReportWarning(report_client_get, fmt.Errorf("response is empty"), url)
		return nil, res.StatusCode(), false
	}
	return json.RawMessage(body), res.StatusCode(), true
}

// emptyPayload reports whether body is a JSON value that carries nothing: null, an
// empty object, array or string, false or zero.
func emptyPayload(body []byte) bool {
	var compact bytes.Buffer
	err := json.Compact(&compact, body)
	if err != nil {
		return false
	}
	switch compact.String() {
	case "null", "{}", "[]", `""`, "false", "0":
		return true
	}
	return false
}

// GetPage fetches url and decodes it as a pagination envelope.
func (c *Client) GetPage(ctx context.Context, url string) (Page, int, bool) {
	payload, status, ok := c.Get(ctx, url)
	if !ok {
		return Page{}, status, false
	}
	var page Page
	err := json.Unmarshal(payload, &page)
	if err != nil {
		c.tel.ReportWarning(report_client_get, fmt.Errorf("decode page: %w", err), url)
		return Page{}, status, false
	}
	return page, status, true
}

// Paginate follows the next cursor of first, handing every further page with results
// to collect. It returns the number of pages processed (first included) and whether
// the walk ended without a fetch failure. Reaching MaxPages or a page without results
// is a normal end.
func (c *Client) Paginate(ctx context.Context, first Page, collect func(Page)) (pageCount int, complete bool) {
	pageCount = 1
	if len(first.Results) == 0 {
		c.tel.ReportDebug("pagination complete", pageCount)
		return pageCount, true
	}

	next, hasNext := first.NextUrl()
	for hasNext && pageCount < MaxPages {
		if ctx.Err() != nil {
			c.tel.ReportWarning(report_client_paginate, ctx.Err(), next)
			return pageCount, false
		}

		page, status, ok := c.GetPage(ctx, next)
		if !ok {
			c.tel.ReportWarning(
				report_client_paginate,
				fmt.Errorf("failed to fetch page %d, stopping", pageCount+1),
				next,
				status,
			)
			return pageCount, false
		}
		if len(page.Results) == 0 {
			c.tel.ReportDebug("pagination complete", pageCount)
			return pageCount, true
		}

		collect(page)
		pageCount++
		next, hasNext = page.NextUrl()
	}

	if hasNext {
		c.tel.ReportWarning(
			report_client_paginate,
			fmt.Errorf("page limit of %d reached, remaining pages skipped", MaxPages),
			next,
		)
	}
	return pageCount, true
}
