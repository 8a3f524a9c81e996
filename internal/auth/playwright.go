package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clubprogress/internal/session"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightBrowser drives a real Firefox through playwright.
type PlaywrightBrowser struct {
	Headless bool
	// Install downloads the browser driver before the first launch.
	Install bool
}

func (b PlaywrightBrowser) Open(ctx context.Context) (BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Install {
		err := playwright.Install(&playwright.RunOptions{Browsers: []string{"firefox"}})
		if err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Firefox.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.Headless),
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("launch firefox: %w", err), pw.Stop())
	}
	browserCtx, err := browser.NewContext()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("new context: %w", err), browser.Close(), pw.Stop())
	}
	page, err := browserCtx.NewPage()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("new page: %w", err), browser.Close(), pw.Stop())
	}

	return &playwrightSession{
		pw:      pw,
		browser: browser,
		context: browserCtx,
		page:    page,
	}, nil
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (s *playwrightSession) Goto(url string) error {
	_, err := s.page.Goto(url)
	return err
}

func (s *playwrightSession) WaitFor(selector string, timeout time.Duration) bool {
	err := s.page.Locator(selector).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	})
	return err == nil
}

func (s *playwrightSession) Fill(selector, value string) error {
	return s.page.Locator(selector).Fill(value)
}

func (s *playwrightSession) Click(selector string) error {
	return s.page.Locator(selector).Click()
}

func (s *playwrightSession) WaitForNetworkIdle(timeout time.Duration) error {
	return s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: millis(timeout),
	})
}

func (s *playwrightSession) Cookies() ([]session.Cookie, error) {
	cookies, err := s.context.Cookies()
	if err != nil {
		return nil, err
	}
	out := make([]session.Cookie, len(cookies))
	for i, c := range cookies {
		out[i] = session.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		}
	}
	return out, nil
}

func (s *playwrightSession) UserAgent() (string, error) {
	value, err := s.page.Evaluate("navigator.userAgent")
	if err != nil {
		return "", err
	}
	ua, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("user agent is %T, not a string", value)
	}
	return ua, nil
}

func (s *playwrightSession) Content() (string, error) {
	return s.page.Content()
}

func (s *playwrightSession) Close() error {
	return errors.Join(s.browser.Close(), s.pw.Stop())
}
