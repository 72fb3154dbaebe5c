package entity

import (
	"context"
	"io"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultCapcity = 10
	maxCapcity     = 50
	poolTimeout    = time.Minute
)

var ErrPoolTimeout = errors.New("tab pool timeout")

type Browser struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	Capcity   int
	UserAgent string
	Flags     map[string]interface{}
	Logger    logrus.FieldLogger

	RWLock sync.RWMutex
	Tabs   sync.Map
	Pool   chan struct{} // 定义有缓冲通道
}

// Version 浏览器版本信息
type Version struct {
	Protocol  string
	Product   string
	Revision  string
	UserAgent string
	JSVersion string
}

type BrowserOption func(*Browser)

func WithCapcity(capcity int) BrowserOption {
	return func(b *Browser) {
		b.Capcity = capcity
	}
}

// WithBrowserUserAgent overrides the user agent the browser is launched with.
// Only takes effect for NewExec.
func WithBrowserUserAgent(ua string) BrowserOption {
	return func(b *Browser) {
		b.UserAgent = ua
	}
}

// WithFlags adds extra command line flags. Only takes effect for NewExec.
func WithFlags(flags map[string]interface{}) BrowserOption {
	return func(b *Browser) {
		for k, v := range flags {
			b.Flags[k] = v
		}
	}
}

func WithLogger(l logrus.FieldLogger) BrowserOption {
	return func(b *Browser) {
		if l != nil {
			b.Logger = l
		}
	}
}

// NullLogger discards everything.
func NullLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newBrowser(bOpts []BrowserOption) *Browser {
	b := &Browser{
		Tabs:   sync.Map{},
		Flags:  make(map[string]interface{}),
		Logger: NullLogger(),
	}
	for _, opt := range bOpts { // browser配置项
		opt(b)
	}

	// 创建tab有缓冲通道
	if b.Capcity <= 0 || b.Capcity > maxCapcity {
		b.Capcity = defaultCapcity
	}
	b.Pool = make(chan struct{}, b.Capcity)
	return b
}

// NewRemote 连接已启动的浏览器, url 为 devtools 地址
func NewRemote(url string, bOpts ...BrowserOption) (*Browser, error) {
	b := newBrowser(bOpts)

	allocCtx, cancel := chromedp.NewRemoteAllocator(context.Background(), url)
	b.Cancel = cancel
	b.Ctx, _ = chromedp.NewContext(allocCtx)
	if err := chromedp.Run(b.Ctx); err != nil {
		b.Cancel()
		return nil, errors.Wrapf(err, "connect to %s", url)
	}
	b.Logger.WithField("remote", url).Debug("browser connected")
	return b, nil
}

// NewExec 新建浏览器
// headless: true 隐藏浏览器
func NewExec(headless bool, bOpts ...BrowserOption) (*Browser, error) {
	b := newBrowser(bOpts)

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoSandbox,
		chromedp.NoDefaultBrowserCheck,
		chromedp.IgnoreCertErrors,
		chromedp.Flag("enable-automation", false), // disable automation
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}
	if b.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.UserAgent))
	}
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[3:]...) // chromedp配置项
	if headless {
		opts = append(opts, chromedp.Headless)
	}
	for k, v := range b.Flags {
		opts = append(opts, chromedp.Flag(k, v))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	b.Cancel = cancel
	b.Ctx, _ = chromedp.NewContext(allocCtx)
	if err := chromedp.Run(b.Ctx); err != nil {
		b.Cancel()
		return nil, errors.Wrap(err, "launch browser")
	}
	b.Logger.WithField("headless", headless).Debug("browser launched")
	return b, nil
}

// Close 关闭所有资源
func (b *Browser) Close() {
	b.RWLock.Lock()
	defer b.RWLock.Unlock()

	b.Tabs.Range(func(key, value interface{}) bool {
		tab := value.(*Tab)
		tab.Cancel()
		return true
	})

	chromedp.Cancel(b.Ctx)
	b.Cancel()
}

// Version 获取浏览器版本, 其中包含真实的 user agent
func (b *Browser) Version() (Version, error) {
	var v Version
	err := chromedp.Run(b.Ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		v.Protocol, v.Product, v.Revision, v.UserAgent, v.JSVersion, err = cdpbrowser.GetVersion().Do(ctx)
		return err
	}))
	if err != nil {
		return Version{}, errors.Wrap(err, "get browser version")
	}
	return v, nil
}

// NewTab 新建tab
// 开协程，防止阻塞
func (b *Browser) NewTab(url string, opts ...TabOption) (*Tab, error) {
	timer := time.NewTimer(poolTimeout) //	超时时间
	defer timer.Stop()

	select {
	case b.Pool <- struct{}{}: //	通道满了就阻塞
	case <-timer.C:
		b.Logger.Warn("tab pool timeout")
		return nil, ErrPoolTimeout
	}

	ctx, cancel := chromedp.NewContext(b.Ctx)
	tab := &Tab{
		Ctx:           ctx,
		Cancel:        cancel,
		Events:        make([]any, 0),
		Parent:        b,
		FirstResponse: new(network.Response),
		LastResponse:  new(network.Response),
		Header:        Header{},
		URL:           url,
		Logger:        b.Logger.WithField("url", url),
	}
	for _, opt := range opts {
		opt(tab)
	}

	// 触发target创建
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		<-b.Pool
		return nil, errors.Wrap(err, "open tab")
	}

	b.RWLock.Lock()
	defer b.RWLock.Unlock()
	b.Tabs.Store(tab, tab)

	return tab, nil
}
