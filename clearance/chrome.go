package clearance

import (
	"time"

	"clearance-chromedp/entity"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// ChromeProvider launches, or attaches to, Chrome through chromedp.
type ChromeProvider struct {
	Headless  bool
	RemoteURL string // devtools 地址, 为空时启动本地浏览器
	UserAgent string
	Flags     map[string]interface{}
	Logger    logrus.FieldLogger
}

func NewChromeProvider(headless bool) *ChromeProvider {
	return &ChromeProvider{Headless: headless, Logger: entity.NullLogger()}
}

func (c *ChromeProvider) Launch() (Session, error) {
	opts := []entity.BrowserOption{
		entity.WithLogger(c.Logger),
		entity.WithBrowserUserAgent(c.UserAgent),
		entity.WithFlags(c.Flags),
	}

	var (
		b   *entity.Browser
		err error
	)
	if c.RemoteURL != "" {
		b, err = entity.NewRemote(c.RemoteURL, opts...)
	} else {
		b, err = entity.NewExec(c.Headless, opts...)
	}
	if err != nil {
		return nil, err
	}
	return &chromeSession{browser: b}, nil
}

type chromeSession struct {
	browser *entity.Browser
}

func (s *chromeSession) NewPage() (Page, error) {
	tab, err := s.browser.NewTab("")
	if err != nil {
		return nil, err
	}
	return &chromePage{tab: tab}, nil
}

func (s *chromeSession) UserAgent() (string, error) {
	v, err := s.browser.Version()
	if err != nil {
		return "", err
	}
	return v.UserAgent, nil
}

func (s *chromeSession) Close() { s.browser.Close() }

type chromePage struct {
	tab *entity.Tab
}

func (p *chromePage) Intercept(policy entity.HijackRequestFunc) error {
	p.tab.Hijack(policy)
	return p.tab.EnableFetch()
}

func (p *chromePage) Navigate(url string) error {
	p.tab.URL = url
	p.tab.Logger = p.tab.Logger.WithField("url", url)
	return chromedp.Run(p.tab.Ctx, p.tab.BuildHooks()...)
}

func (p *chromePage) WaitReady(selector string, timeout time.Duration) error {
	if err := p.tab.WaitReady(selector, timeout); err != nil {
		return err
	}
	p.tab.Logger.WithFields(logrus.Fields{
		"redirects": p.tab.FetchRedirectNodes(),
		"allowed":   p.tab.Allowed.Load(),
		"blocked":   p.tab.Blocked.Load(),
	}).Debug("page ready")
	return nil
}

func (p *chromePage) Cookies() ([]Cookie, error) {
	cookies, err := p.tab.Cookies()
	if err != nil {
		return nil, err
	}
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, Cookie{Name: c.Name, Value: c.Value})
	}
	return out, nil
}

func (p *chromePage) Close() { p.tab.Close() }
