// Package auth logs into the membership platform with a real browser and resolves the
// identifiers later fetches depend on.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"clubprogress/internal/basecamp"
	"clubprogress/internal/components/assert"
	"clubprogress/internal/components/chrono"
	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/config"
	"clubprogress/internal/session"

	"github.com/antzucaro/matchr"
	"github.com/yosida95/uritemplate/v3"
)

const (
	report_authenticator_authenticate = "authenticator.authenticate"
	report_authenticator_scrape       = "authenticator.scrape"
	report_authenticator_save         = "authenticator.save"
)

type Credentials struct {
	Email    string
	Password string
	ClubName string
}

// AuthError is returned when the platform did not yield a usable identity.
type AuthError struct {
	Reason string
}

func (e AuthError) Error() string {
	return "authentication failed: " + e.Reason
}

type Options struct {
	LoginUrl         string
	DashboardUrl     string
	ClubDashboardUrl string
	RosterUrl        string
	UserIdCookie     string
	CookieDomain     string

	LoginButton   string
	EmailInput    string
	PasswordInput string

	LoginWait       time.Duration
	NavigationWait  time.Duration
	SessionLifetime time.Duration

	// Client is applied to the profile lookup, its credential fields are replaced by
	// the ones captured from the browser.
	Client basecamp.Options
}

// OptionsFromConfig converts the auth and fetch sections of the config file.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	loginWait, err := cfg.Auth.LoginWaitDuration()
	if err != nil {
		return Options{}, fmt.Errorf("auth.login_wait: %w", err)
	}
	navigationWait, err := cfg.Auth.NavigationWaitDuration()
	if err != nil {
		return Options{}, fmt.Errorf("auth.navigation_wait: %w", err)
	}
	lifetime, err := cfg.Auth.SessionLifetimeDuration()
	if err != nil {
		return Options{}, fmt.Errorf("auth.session_lifetime: %w", err)
	}
	timeout, err := cfg.Fetch.TimeoutDuration()
	if err != nil {
		return Options{}, fmt.Errorf("fetch.timeout: %w", err)
	}

	return Options{
		LoginUrl:         cfg.Auth.LoginUrl,
		DashboardUrl:     cfg.Auth.DashboardUrl,
		ClubDashboardUrl: cfg.Auth.ClubDashboardUrl,
		RosterUrl:        cfg.Auth.RosterUrl,
		UserIdCookie:     cfg.Auth.UserIdCookie,
		CookieDomain:     cfg.Auth.CookieDomain,
		LoginButton:      cfg.Auth.LoginButton,
		EmailInput:       cfg.Auth.EmailInput,
		PasswordInput:    cfg.Auth.PasswordInput,
		LoginWait:        loginWait,
		NavigationWait:   navigationWait,
		SessionLifetime:  lifetime,
		Client: basecamp.Options{
			Referer:           cfg.Fetch.Referer,
			Timeout:           timeout,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		},
	}, nil
}

type Authenticator struct {
	browser   Browser
	endpoints basecamp.Endpoints
	store     session.Store
	options   Options
	time      chrono.TimeAPI
	tel       telemetry.API
}

func NewAuthenticator(
	browser Browser,
	endpoints basecamp.Endpoints,
	store session.Store,
	options Options,
	time chrono.TimeAPI,
	tel telemetry.API,
) Authenticator {
	assert.NotNil(browser)
	assert.NotNil(time)
	return Authenticator{
		browser:   browser,
		endpoints: endpoints,
		store:     store,
		options:   options,
		time:      time,
		tel:       telemetry.NewScopedAPI("auth", tel),
	}
}

// Authenticate logs in, resolves the user and club ids and persists the resulting
// record. The browser is closed before returning on every path.
func (a Authenticator) Authenticate(ctx context.Context, creds Credentials) (rec *session.Record, err error) {
	page, err := a.browser.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		closeErr := page.Close()
		if closeErr != nil {
			a.tel.ReportWarning(report_authenticator_authenticate, fmt.Errorf("close browser: %w", closeErr))
		}
	}()

	err = a.login(page, creds)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err = page.Goto(a.options.DashboardUrl)
	if err != nil {
		return nil, fmt.Errorf("navigate to dashboard: %w", err)
	}
	err = page.WaitForNetworkIdle(a.options.NavigationWait)
	if err != nil {
		a.tel.ReportWarning(report_authenticator_authenticate, fmt.Errorf("dashboard did not settle: %w", err))
	}

	cookies, err := page.Cookies()
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	userAgent, err := page.UserAgent()
	if err != nil {
		return nil, fmt.Errorf("read user agent: %w", err)
	}

	userId, ok := a.userId(cookies)
	if !ok {
		return nil, AuthError{Reason: fmt.Sprintf(
			"cookie %s for %s was not set, the login may have been rejected",
			a.options.UserIdCookie, a.options.CookieDomain,
		)}
	}
	a.tel.ReportDebug("resolved user id", telemetry.KV{Key: "user_id", Value: userId})

	clubId, err := a.clubId(ctx, cookies, userAgent, userId, creds.ClubName)
	if err != nil {
		return nil, err
	}

	now := a.time.Now()
	rec = &session.Record{
		Cookies:   cookies,
		UserAgent: userAgent,
		UserId:    userId,
		ClubId:    clubId,
		Timestamp: session.NewTime(now),
		Expires:   session.NewTime(now.Add(a.options.SessionLifetime)),
	}
	a.scrapeDashboard(page, creds.ClubName, rec)

	err = a.store.Save(rec)
	if err != nil {
		a.tel.ReportWarning(report_authenticator_save, err)
	}
	a.tel.ReportInfo(
		"authenticated",
		telemetry.KV{Key: "club_id", Value: clubId},
		telemetry.KV{Key: "expires", Value: rec.Expires.Time},
	)
	return rec, nil
}

func (a Authenticator) login(page BrowserSession, creds Credentials) error {
	err := page.Goto(a.options.LoginUrl)
	if err != nil {
		return fmt.Errorf("navigate to login: %w", err)
	}
	if !page.WaitFor(a.options.LoginButton, a.options.LoginWait) {
		a.tel.ReportDebug("login control absent, assuming an active login")
		return nil
	}

	err = page.Fill(a.options.EmailInput, creds.Email)
	if err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	err = page.Fill(a.options.PasswordInput, creds.Password)
	if err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	err = page.Click(a.options.LoginButton)
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	err = page.WaitForNetworkIdle(a.options.NavigationWait)
	if err != nil {
		a.tel.ReportWarning(report_authenticator_authenticate, fmt.Errorf("login did not settle: %w", err))
	}
	return nil
}

func (a Authenticator) userId(cookies []session.Cookie) (string, bool) {
	for _, c := range cookies {
		if c.Name == a.options.UserIdCookie && strings.Contains(c.Domain, a.options.CookieDomain) && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

func (a Authenticator) clubId(ctx context.Context, cookies []session.Cookie, userAgent, userId, clubName string) (string, error) {
	opts := a.options.Client
	opts.Cookies = cookies
	opts.UserAgent = userAgent
	client, err := basecamp.NewClient(opts, a.tel)
	if err != nil {
		return "", err
	}

	payload, status, ok := client.Get(ctx, a.endpoints.Profile(userId))
	if !ok {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", AuthError{Reason: fmt.Sprintf("profile lookup failed with status %d", status)}
	}
	var profile basecamp.Profile
	err = json.Unmarshal(payload, &profile)
	if err != nil {
		return "", AuthError{Reason: fmt.Sprintf("profile is not readable: %v", err)}
	}

	for _, club := range profile.Clubs {
		if club.Name == clubName && club.Uuid != "" {
			return club.Uuid.String(), nil
		}
	}
	return "", AuthError{Reason: clubNotFound(clubName, profile.Clubs)}
}

func clubNotFound(clubName string, clubs []basecamp.ProfileClub) string {
	reason := fmt.Sprintf("club %q is not among the member's clubs", clubName)

	best := ""
	bestScore := 0.0
	for _, club := range clubs {
		score := matchr.JaroWinkler(strings.ToLower(clubName), strings.ToLower(club.Name), false)
		if score > bestScore {
			best = club.Name
			bestScore = score
		}
	}
	if best != "" {
		reason += fmt.Sprintf(", closest is %q", best)
	}
	return reason
}

// scrapeDashboard fills the optional dashboard club id and enrollment snapshot. Any
// failure leaves the fields empty.
func (a Authenticator) scrapeDashboard(page BrowserSession, clubName string, rec *session.Record) {
	if a.options.ClubDashboardUrl == "" {
		return
	}
	html, err := a.pageContent(page, a.options.ClubDashboardUrl)
	if err != nil {
		a.tel.ReportWarning(report_authenticator_scrape, "club dashboard", err)
		return
	}
	dashboardId, err := dashboardClubId(html, clubName)
	if err != nil {
		a.tel.ReportWarning(report_authenticator_scrape, "club dashboard", err)
		return
	}
	rec.DashboardClubId = &dashboardId

	if a.options.RosterUrl == "" {
		return
	}
	tmpl, err := uritemplate.New(a.options.RosterUrl)
	if err != nil {
		a.tel.ReportWarning(report_authenticator_scrape, "roster url", err)
		return
	}
	values := uritemplate.Values{}
	values.Set("dashboard_club_id", uritemplate.String(dashboardId))
	rosterUrl, err := tmpl.Expand(values)
	if err != nil {
		a.tel.ReportWarning(report_authenticator_scrape, "roster url", err)
		return
	}
	html, err = a.pageContent(page, rosterUrl)
	if err != nil {
		a.tel.ReportWarning(report_authenticator_scrape, "roster", err)
		return
	}
	enrollment, err := memberEnrollment(html)
	if err != nil {
		a.tel.ReportWarning(report_authenticator_scrape, "roster", err)
		return
	}
	rec.MemberEnrollmentStatus = enrollment
}

func (a Authenticator) pageContent(page BrowserSession, url string) (string, error) {
	err := page.Goto(url)
	if err != nil {
		return "", err
	}
	err = page.WaitForNetworkIdle(a.options.NavigationWait)
	if err != nil {
		a.tel.ReportDebug("page did not settle", telemetry.KV{Key: "url", Value: url})
	}
	return page.Content()
}
