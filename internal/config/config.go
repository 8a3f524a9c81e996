// Package config holds the collector's configuration, read from clubprogress.json5 (and
// its .local override) and then from CLUBPROGRESS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"clubprogress/internal/components/telemetry"
	"clubprogress/lib/configutil"
)

const DefaultFile = "clubprogress.json5"

type Endpoints struct {
	Overview       string `json:"overview"`
	Progress       string `json:"progress"`
	ProgressDetail string `json:"progress_detail"`
	Profile        string `json:"profile"`
}

type Auth struct {
	LoginUrl         string `json:"login_url"`
	DashboardUrl     string `json:"dashboard_url"`
	ClubDashboardUrl string `json:"club_dashboard_url"`
	// RosterUrl is a URI template expanded with {dashboard_club_id}.
	RosterUrl        string `json:"roster_url"`
	UserIdCookie     string `json:"user_id_cookie"`
	CookieDomain     string `json:"cookie_domain"`
	LoginButton      string `json:"login_button"`
	EmailInput       string `json:"email_input"`
	PasswordInput    string `json:"password_input"`
	LoginWait        string `json:"login_wait"`
	NavigationWait   string `json:"navigation_wait"`
	SessionLifetime  string `json:"session_lifetime"`
	Headless         *bool  `json:"headless"`
}

type Fetch struct {
	Referer           string  `json:"referer"`
	Timeout           string  `json:"timeout"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	MaxConcurrency    int64   `json:"max_concurrency"`
	// DumpDir holds HTTP transcripts of the run when set, it is emptied first.
	DumpDir string `json:"dump_dir" env:"DUMP_DIR"`
}

type Mail struct {
	SmtpHost string   `json:"smtp_host" env:"SMTP_HOST"`
	SmtpPort int      `json:"smtp_port" env:"SMTP_PORT"`
	Username string   `json:"username" env:"SMTP_USERNAME"`
	Password string   `json:"password" env:"SMTP_PASSWORD"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

func (m Mail) Enabled() bool {
	return m.SmtpHost != "" && len(m.To) > 0
}

type Config struct {
	Email    string `json:"email" env:"EMAIL"`
	Password string `json:"password" env:"PASSWORD"`
	ClubName string `json:"club_name" env:"CLUB_NAME"`

	DataDir          string   `json:"data_dir" env:"DATA_DIR"`
	PathwaysDir      string   `json:"pathways_dir" env:"PATHWAYS_DIR"`
	SaveEndpointData *bool    `json:"save_endpoint_data"`
	ReportTypes      []string `json:"report_types"`

	Endpoints Endpoints        `json:"endpoints"`
	Auth      Auth             `json:"auth"`
	Fetch     Fetch            `json:"fetch"`
	Mail      Mail             `json:"mail"`
	Telemetry telemetry.Config `json:"telemetry"`
}

// Load reads the config file at path (missing is fine), applies environment overrides
// and fills every unset value with its default.
func Load(path string) (Config, error) {
	cfg, err := configutil.Load[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func boolPtr(v bool) *bool {
	return &v
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func (c *Config) applyDefaults() {
	setDefault(&c.DataDir, ".")
	setDefault(&c.PathwaysDir, filepath.Join(c.DataDir, "pathways"))
	if c.SaveEndpointData == nil {
		c.SaveEndpointData = boolPtr(true)
	}
	if len(c.ReportTypes) == 0 {
		c.ReportTypes = []string{"markdown", "html", "json"}
	}

	setDefault(&c.Endpoints.Overview, "https://basecamp.toastmasters.org/api/bcm/member/overview/?club={club_id}&page={page}")
	setDefault(&c.Endpoints.Progress, "https://basecamp.toastmasters.org/api/bcm/progress/?club={club_id}&page={page}")
	setDefault(&c.Endpoints.ProgressDetail, "https://basecamp.toastmasters.org/api/bcm/progress/{course_id}/detail?user={username}")
	setDefault(&c.Endpoints.Profile, "https://basecamp.toastmasters.org/api/ti/profile/{user_id}/about/")

	setDefault(&c.Auth.LoginUrl, "https://www.toastmasters.org/login")
	setDefault(&c.Auth.DashboardUrl, "https://app.basecamp.toastmasters.org/dashboard")
	setDefault(&c.Auth.UserIdCookie, "CEContactId")
	setDefault(&c.Auth.CookieDomain, "toastmasters.org")
	setDefault(&c.Auth.LoginButton, `button:has-text("Log in")`)
	setDefault(&c.Auth.EmailInput, `input[id="signInName"]`)
	setDefault(&c.Auth.PasswordInput, `input[id="password"]`)
	setDefault(&c.Auth.LoginWait, "5s")
	setDefault(&c.Auth.NavigationWait, "15s")
	setDefault(&c.Auth.SessionLifetime, "8h")
	if c.Auth.Headless == nil {
		c.Auth.Headless = boolPtr(true)
	}

	setDefault(&c.Fetch.Referer, "https://basecamp.toastmasters.org/dashboard/")
	setDefault(&c.Fetch.Timeout, "60s")

	if c.Mail.SmtpPort == 0 {
		c.Mail.SmtpPort = 587
	}
}

// ValidateCredentials reports the credential fields that are missing, authentication
// cannot start without all three.
func (c Config) ValidateCredentials() error {
	var missing []error
	if c.Email == "" {
		missing = append(missing, errors.New("email is empty"))
	}
	if c.Password == "" {
		missing = append(missing, errors.New("password is empty"))
	}
	if c.ClubName == "" {
		missing = append(missing, errors.New("club name is empty"))
	}
	return errors.Join(missing...)
}

// Durations are kept as strings in the file so they read naturally ("15s", "8h").

func (a Auth) LoginWaitDuration() (time.Duration, error) {
	return time.ParseDuration(a.LoginWait)
}

func (a Auth) NavigationWaitDuration() (time.Duration, error) {
	return time.ParseDuration(a.NavigationWait)
}

func (a Auth) SessionLifetimeDuration() (time.Duration, error) {
	return time.ParseDuration(a.SessionLifetime)
}

func (f Fetch) TimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(f.Timeout)
}

// Directory layout under DataDir.

func (c Config) SessionDir() string      { return filepath.Join(c.DataDir, "session") }
func (c Config) AuthDir() string         { return filepath.Join(c.SessionDir(), "auth") }
func (c Config) EndpointDataDir() string { return filepath.Join(c.SessionDir(), "endpoint_data") }
func (c Config) SummaryDir() string      { return filepath.Join(c.SessionDir(), "summary") }
func (c Config) ReportsDir() string      { return filepath.Join(c.SessionDir(), "reports") }
func (c Config) SessionFile() string     { return filepath.Join(c.AuthDir(), "session.json") }
func (c Config) HistoryFile() string     { return filepath.Join(c.DataDir, "history.db") }
