// Package clearance drives one browser session per call to harvest an
// anti-bot clearance cookie together with the browser's user agent.
package clearance

import (
	"time"

	"clearance-chromedp/entity"
	"clearance-chromedp/utils"

	"github.com/sirupsen/logrus"
)

const (
	DefaultCookieName = "cf_clearance"
	DefaultTimeout    = 30 * time.Second
)

// Params are the harvested artifacts. Token is empty when the page did not
// set the cookie.
type Params struct {
	Token     string `json:"token,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type Cookie struct {
	Name  string
	Value string
}

// Provider starts browser sessions.
type Provider interface {
	Launch() (Session, error)
}

type Session interface {
	NewPage() (Page, error)
	UserAgent() (string, error)
	Close()
}

type Page interface {
	// Intercept registers policy and enables request stage interception.
	Intercept(policy entity.HijackRequestFunc) error
	Navigate(url string) error
	WaitReady(selector string, timeout time.Duration) error
	Cookies() ([]Cookie, error)
	Close()
}

type Harvester struct {
	provider   Provider
	cookieName string
	timeout    time.Duration
	logger     logrus.FieldLogger
}

type Option func(*Harvester)

func WithCookieName(name string) Option {
	return func(h *Harvester) {
		if name != "" {
			h.cookieName = name
		}
	}
}

// WithTimeout bounds the readiness wait.
func WithTimeout(d time.Duration) Option {
	return func(h *Harvester) {
		if d > 0 {
			h.timeout = d
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Harvester) {
		if l != nil {
			h.logger = l
		}
	}
}

func New(p Provider, opts ...Option) *Harvester {
	h := &Harvester{
		provider:   p,
		cookieName: DefaultCookieName,
		timeout:    DefaultTimeout,
		logger:     entity.NullLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetParams harvests without interception.
func (h *Harvester) GetParams(url, selector string) (*Params, error) {
	return h.browse(url, selector, nil)
}

// GetParamsWithInterceptor harvests with policy deciding every paused request.
func (h *Harvester) GetParamsWithInterceptor(url, selector string, policy entity.HijackRequestFunc) (*Params, error) {
	return h.browse(url, selector, policy)
}

func (h *Harvester) browse(url, selector string, policy entity.HijackRequestFunc) (*Params, error) {
	log := h.logger.WithFields(logrus.Fields{"url": url, "selector": selector})

	session, err := h.provider.Launch()
	if err != nil {
		return nil, newError(SessionLaunchFailed, url, err)
	}
	defer session.Close()

	p, err := session.NewPage()
	if err != nil {
		return nil, newError(SessionLaunchFailed, url, err)
	}
	defer p.Close()

	if policy != nil {
		if err := p.Intercept(policy); err != nil {
			return nil, newError(InterceptionSetupFailed, url, err)
		}
		log.Debug("interception enabled")
	}

	if err := p.Navigate(url); err != nil {
		return nil, newError(NavigationFailed, url, err)
	}

	start := time.Now()
	if err := p.WaitReady(selector, h.timeout); err != nil {
		return nil, newError(ElementWaitTimedOut, url, err)
	}
	log.WithField("elapsed", time.Since(start)).Debug("page ready")

	cookies, err := p.Cookies()
	if err != nil {
		return nil, newError(CookieReadFailed, url, err)
	}

	ua, err := session.UserAgent()
	if err != nil {
		return nil, newError(VersionReadFailed, url, err)
	}

	params := &Params{UserAgent: ua}
	if c, ok := utils.Find(cookies, func(c Cookie) bool { return c.Name == h.cookieName }); ok {
		params.Token = c.Value
	} else {
		log.WithField("cookie", h.cookieName).Info("clearance cookie not set")
	}
	return params, nil
}

var defaultHarvester = New(NewChromeProvider(false))

// GetParams harvests with a headed Chrome launched per call.
func GetParams(url, selector string) (*Params, error) {
	return defaultHarvester.GetParams(url, selector)
}

func GetParamsWithInterceptor(url, selector string, policy entity.HijackRequestFunc) (*Params, error) {
	return defaultHarvester.GetParamsWithInterceptor(url, selector, policy)
}
